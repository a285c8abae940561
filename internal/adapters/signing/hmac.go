// Package signing signs stored submission records so tampering with the log
// on disk can be detected.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/classboard/internal/domain/model"
)

// HMACSigner signs student_id|assignment_id|timestamp|submission_count|metrics
// with HMAC-SHA256. Metrics are name=value pairs sorted by name and joined
// with commas.
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner returns nil for an empty secret, which disables signing.
func NewHMACSigner(secret string) *HMACSigner {
	if secret == "" {
		return nil
	}
	return &HMACSigner{secret: []byte(secret)}
}

func payload(rec model.SubmissionRecord) string {
	return strings.Join([]string{
		rec.Student.StudentID,
		rec.AssignmentID,
		rec.Timestamp,
		strconv.Itoa(rec.SubmissionCount),
		canonicalMetrics(rec.Metrics),
	}, "|")
}

func canonicalMetrics(m model.MetricSet) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = name + "=" + strconv.FormatFloat(m[name], 'g', -1, 64)
	}
	return strings.Join(pairs, ",")
}

// Sign implements reconcile.Signer.
func (s *HMACSigner) Sign(rec model.SubmissionRecord) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload(rec)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether rec carries a valid signature. Backups use it to
// flag records edited after they were stored.
func (s *HMACSigner) Verify(rec model.SubmissionRecord) bool {
	want, err := hex.DecodeString(rec.Signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload(rec)))
	return hmac.Equal(want, mac.Sum(nil))
}
