// Package model contains domain models passed between layers.
package model

// Contributor records who produced a submission.
type Contributor string

const (
	ContributorHuman Contributor = "human"
	ContributorAI    Contributor = "ai"
)

// Valid reports whether c is empty or one of the known contributors.
func (c Contributor) Valid() bool {
	return c == "" || c == ContributorHuman || c == ContributorAI
}

// StudentIdentity is bound on a student's first submission and never changes.
// An empty Nickname and an absent one are the same identity.
type StudentIdentity struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Nickname  string `json:"nickname,omitempty"`
}

// Diff lists the identity fields on which other disagrees with id. Values are
// compared exactly; callers normalise input before it gets here.
func (id StudentIdentity) Diff(other StudentIdentity) []FieldDiff {
	var out []FieldDiff
	if id.Name != other.Name {
		out = append(out, FieldDiff{Field: "name", Registered: id.Name, Submitted: other.Name})
	}
	if id.Nickname != other.Nickname {
		out = append(out, FieldDiff{Field: "nickname", Registered: id.Nickname, Submitted: other.Nickname})
	}
	return out
}

// FieldDiff is one conflicting identity field.
type FieldDiff struct {
	Field      string `json:"field"`
	Registered string `json:"registered"`
	Submitted  string `json:"submitted"`
}
