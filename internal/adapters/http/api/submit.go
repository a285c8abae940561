package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/okian/classboard/internal/domain/model"
)

// maxSubmitBody bounds POST /api/submit payloads.
const maxSubmitBody = 1 << 20

// SubmitDependencies reconciles one submission.
type SubmitDependencies interface {
	Submit(ctx context.Context, sub model.Submission) (model.SubmissionResult, error)
}

// SubmitHandler handles submission requests.
type SubmitHandler struct {
	deps     SubmitDependencies
	validate *validator.Validate
}

// NewSubmitHandler creates a new submit handler.
func NewSubmitHandler(deps SubmitDependencies) *SubmitHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &SubmitHandler{deps: deps, validate: v}
}

type studentInfo struct {
	StudentID string `json:"student_id" validate:"required,max=128"`
	Name      string `json:"name" validate:"required,max=256"`
	Nickname  string `json:"nickname,omitempty" validate:"max=256"`
}

// submitRequest mirrors the OpenAPI schema for POST /api/submit.
type submitRequest struct {
	StudentInfo  studentInfo        `json:"student_info"`
	AssignmentID string             `json:"assignment_id" validate:"required,max=128"`
	Metrics      map[string]float64 `json:"metrics" validate:"required,min=1"`
	Checksums    map[string]string  `json:"checksums,omitempty"`
	Files        map[string]string  `json:"files,omitempty"`
	Contributor  string             `json:"contributor,omitempty"`
}

func (r submitRequest) submission() model.Submission {
	return model.Submission{
		Student: model.StudentIdentity{
			StudentID: strings.TrimSpace(r.StudentInfo.StudentID),
			Name:      strings.TrimSpace(r.StudentInfo.Name),
			Nickname:  strings.TrimSpace(r.StudentInfo.Nickname),
		},
		AssignmentID: strings.TrimSpace(r.AssignmentID),
		Metrics:      model.MetricSet(r.Metrics),
		Checksums:    r.Checksums,
		Files:        r.Files,
		Contributor:  model.Contributor(strings.ToLower(strings.TrimSpace(r.Contributor))),
	}
}

// HandleSubmit handles POST /api/submit requests.
func (h *SubmitHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit"
	var req submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(model.KindValidation), WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeSubmissionError(w, model.NewValidationError("invalid request body", invalidFields(err)...))
		return
	}

	res, err := h.deps.Submit(r.Context(), req.submission())
	if err != nil {
		writeSubmissionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// invalidFields lists the JSON paths validator rejected, without the root.
func invalidFields(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		out = append(out, ns)
	}
	return out
}
