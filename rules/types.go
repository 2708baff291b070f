package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the closed set of rule kinds a catalog may contain
type Kind string

const (
	// KindPoints contributes a numeric score to a named category
	KindPoints Kind = "points"
	// KindMandatoryFail disqualifies the applicant when its predicate holds
	KindMandatoryFail Kind = "mandatory_fail"
	// KindFlag raises a non-fatal warning when its predicate holds
	KindFlag Kind = "flag"
)

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	switch k {
	case KindPoints, KindMandatoryFail, KindFlag:
		return true
	}
	return false
}

// Rule is a single scoring or disqualification test within a catalog.
// Expression is a CEL expression over the variable `applicant`.
type Rule struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Expression  string    `json:"expression"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// DerivedField is a computed applicant field, evaluated before any rule runs
type DerivedField struct {
	Name       string `json:"name"`
	Expression string `json:"expression"` // CEL expression producing the field value
}

// CatalogDefinition is the uncompiled, ordered rule set for one visa category
type CatalogDefinition struct {
	Key     string         `json:"key"`
	Name    string         `json:"name"`
	Derived []DerivedField `json:"derived,omitempty"`
	Rules   []*Rule        `json:"rules"`
}

// Finding identifies a mandatory failure or warning flag that fired
type Finding struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// CategoryPoints is one entry of the points breakdown
type CategoryPoints struct {
	Category string `json:"category"`
	Points   int    `json:"points"`
}

// Breakdown is the per-category points subtotal in encounter order.
// It serializes as a JSON object whose keys keep that order.
type Breakdown []CategoryPoints

// Get returns the subtotal for category and whether any rule contributed to it
func (b Breakdown) Get(category string) (int, bool) {
	for _, cp := range b {
		if cp.Category == category {
			return cp.Points, true
		}
	}
	return 0, false
}

// Sum returns the sum of all category subtotals
func (b Breakdown) Sum() int {
	total := 0
	for _, cp := range b {
		total += cp.Points
	}
	return total
}

// Map returns the breakdown as an unordered map
func (b Breakdown) Map() map[string]int {
	m := make(map[string]int, len(b))
	for _, cp := range b {
		m[cp.Category] = cp.Points
	}
	return m
}

func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cp := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(cp.Category)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", cp.Points)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (b *Breakdown) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("points breakdown must be a JSON object")
	}

	out := Breakdown{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		category, ok := tok.(string)
		if !ok {
			return fmt.Errorf("points breakdown key must be a string")
		}
		var points int
		if err := dec.Decode(&points); err != nil {
			return fmt.Errorf("points for category %q: %w", category, err)
		}
		out = append(out, CategoryPoints{Category: category, Points: points})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*b = out
	return nil
}

// Assessment is the outcome of evaluating one applicant record against one catalog
type Assessment struct {
	TotalPoints       int       `json:"total_points"`
	PointsPerCategory Breakdown `json:"points_per_category"`
	MandatoryFailures []Finding `json:"mandatory_failures"`
	WarningFlags      []Finding `json:"warning_flags"`
}

// RuleOutcome records what a single rule produced during an evaluation
type RuleOutcome struct {
	RuleID  string `json:"rule_id"`
	Kind    Kind   `json:"kind"`
	Points  int    `json:"points,omitempty"`
	Fired   bool   `json:"fired,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"` // why the rule was skipped
}
