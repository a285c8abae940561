package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/classboard/internal/domain/ranking"
)

// DefaultRequiredMetrics applies when an assignment names no metrics at all.
var DefaultRequiredMetrics = []string{"MAE", "MSE", "RMSE", "Prediction_Time"}

// naiveDeadlineLayout is accepted for deadlines without a zone; they are read as UTC.
const naiveDeadlineLayout = "2006-01-02T15:04:05"

// Assignment is the configuration of one gradable task.
type Assignment struct {
	ID              string               `json:"assignment_id"`
	Title           string               `json:"title,omitempty"`
	Description     string               `json:"description,omitempty"`
	Deadline        string               `json:"deadline,omitempty"`
	MaxSubmissions  int                  `json:"max_submissions,omitempty"`
	Metrics         ranking.PolicyConfig `json:"metrics,omitempty"`
	Checksums       map[string]string    `json:"checksums,omitempty"`
	RequiredMetrics []string             `json:"required_metrics,omitempty"`

	// Filled by Normalize.
	Policy     ranking.Policy `json:"-"`
	DeadlineAt *time.Time     `json:"-"`
}

// Normalize parses the deadline and resolves the ranking policy. Providers
// call it once when the catalogue is loaded.
func (a *Assignment) Normalize() error {
	a.Policy = ranking.Resolve(a.Metrics)
	a.DeadlineAt = nil
	if strings.TrimSpace(a.Deadline) == "" {
		return nil
	}
	t, err := ParseDeadline(a.Deadline)
	if err != nil {
		return fmt.Errorf("assignment %q: %w", a.ID, err)
	}
	a.DeadlineAt = &t
	return nil
}

// Required returns the metric names a submission must carry.
func (a *Assignment) Required() []string {
	if len(a.RequiredMetrics) > 0 {
		return a.RequiredMetrics
	}
	if len(a.Metrics) > 0 {
		return a.Metrics.Names()
	}
	return DefaultRequiredMetrics
}

// DailyLimit returns MaxSubmissions, or def when unset.
func (a *Assignment) DailyLimit(def int) int {
	if a.MaxSubmissions > 0 {
		return a.MaxSubmissions
	}
	return def
}

// Expired reports whether now is strictly after the deadline.
func (a *Assignment) Expired(now time.Time) bool {
	return a.DeadlineAt != nil && now.After(*a.DeadlineAt)
}

// ParseDeadline accepts RFC 3339 or a zone-less timestamp read as UTC.
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(naiveDeadlineLayout, s, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDeadline, s)
}
