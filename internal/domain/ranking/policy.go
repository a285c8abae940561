// Package ranking turns an assignment's metric configuration into a
// priority-ordered policy and compares metric sets under that policy.
package ranking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Direction says whether a metric is better when smaller or larger.
type Direction string

const (
	Min Direction = "min"
	Max Direction = "max"
)

// FallbackMetric is ranked on when an assignment configures no metrics.
const FallbackMetric = "RMSE"

// ParseDirection accepts "min" or "max" in any case. Empty means min.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Min):
		return Min, nil
	case string(Max):
		return Max, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// MetricConfig is one configured metric before normalization.
type MetricConfig struct {
	Name      string
	Priority  int
	Direction Direction
	// Legacy is set when the config used the bare-integer shape.
	Legacy bool
}

// PolicyConfig is the ordered metric configuration of one assignment.
// JSON accepts either shape per metric:
//
//	{"RMSE": 1, "Accuracy": {"priority": 2, "direction": "max"}}
//
// Key order is preserved so equal priorities resolve in declaration order.
type PolicyConfig []MetricConfig

type structuredMetric struct {
	Priority  json.Number `json:"priority"`
	Direction string      `json:"direction,omitempty"`
}

// UnmarshalJSON decodes an object while keeping key order.
func (p *PolicyConfig) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: metrics must be an object", ErrInvalidPolicy)
	}

	out := PolicyConfig{}
	seen := map[string]bool{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		mc, err := decodeMetric(name, raw)
		if err != nil {
			return err
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate metric %q", ErrInvalidPolicy, name)
		}
		seen[name] = true
		out = append(out, mc)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

func decodeMetric(name string, raw json.RawMessage) (MetricConfig, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var sm structuredMetric
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&sm); err != nil {
			return MetricConfig{}, fmt.Errorf("%w: metric %q: %w", ErrInvalidPolicy, name, err)
		}
		prio, err := parsePriority(name, sm.Priority)
		if err != nil {
			return MetricConfig{}, err
		}
		dir, err := ParseDirection(sm.Direction)
		if err != nil {
			return MetricConfig{}, fmt.Errorf("metric %q: %w", name, err)
		}
		return MetricConfig{Name: name, Priority: prio, Direction: dir}, nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return MetricConfig{}, fmt.Errorf("%w: metric %q: priority must be a number or object", ErrInvalidPolicy, name)
	}
	prio, err := parsePriority(name, n)
	if err != nil {
		return MetricConfig{}, err
	}
	return MetricConfig{Name: name, Priority: prio, Direction: Min, Legacy: true}, nil
}

func parsePriority(name string, n json.Number) (int, error) {
	if n == "" {
		return 0, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: metric %q: priority %q is not an integer", ErrInvalidPolicy, name, n)
	}
	return int(f), nil
}

// MarshalJSON writes the structured shape in declaration order.
func (p PolicyConfig) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, mc := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(mc.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if mc.Legacy {
			fmt.Fprintf(&buf, "%d", mc.Priority)
			continue
		}
		dir := mc.Direction
		if dir == "" {
			dir = Min
		}
		fmt.Fprintf(&buf, `{"priority":%d,"direction":%q}`, mc.Priority, dir)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Names lists every configured metric, including excluded ones.
func (p PolicyConfig) Names() []string {
	names := make([]string, 0, len(p))
	for _, mc := range p {
		names = append(names, mc.Name)
	}
	return names
}

// Rule is one ranking key of a resolved policy.
type Rule struct {
	Metric    string    `json:"metric"`
	Direction Direction `json:"direction"`
}

// Policy is the priority-ordered list of rules used for comparison.
type Policy []Rule

// DefaultPolicy is used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{{Metric: FallbackMetric, Direction: Min}}
}

// Resolve normalizes a configuration into a Policy. A nil or empty config
// yields DefaultPolicy. Entries with priority <= 0 are dropped; the rest are
// ordered by ascending priority, ties keeping declaration order. The result
// may be empty when every entry was dropped.
func Resolve(cfg PolicyConfig) Policy {
	if len(cfg) == 0 {
		return DefaultPolicy()
	}
	kept := make([]MetricConfig, 0, len(cfg))
	for _, mc := range cfg {
		if mc.Priority > 0 {
			kept = append(kept, mc)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Priority < kept[j].Priority })

	out := make(Policy, 0, len(kept))
	for _, mc := range kept {
		dir := mc.Direction
		if dir == "" {
			dir = Min
		}
		out = append(out, Rule{Metric: mc.Name, Direction: dir})
	}
	return out
}

// Primary returns the rank-determining metric, or false for an empty policy.
func (p Policy) Primary() (Rule, bool) {
	if len(p) == 0 {
		return Rule{}, false
	}
	return p[0], true
}

// Score reads the primary metric from m. It returns nil when the policy is
// empty or the metric is absent.
func (p Policy) Score(m map[string]float64) *float64 {
	rule, ok := p.Primary()
	if !ok {
		return nil
	}
	v, ok := m[rule.Metric]
	if !ok {
		return nil
	}
	return &v
}
