// Package eligibility turns an assessment into an eligibility decision and
// the summary feature vector consumed by downstream scoring models.
package eligibility

import (
	"fmt"

	"github.com/liamcoop/visarules/rules"
)

// Status is the eligibility verdict for an assessment
type Status string

const (
	StatusLikelyEligible   Status = "LIKELY_ELIGIBLE"
	StatusBorderline       Status = "BORDERLINE"
	StatusLikelyIneligible Status = "LIKELY_INELIGIBLE"
	// StatusIneligible means at least one mandatory requirement failed
	StatusIneligible Status = "INELIGIBLE"
)

// Default score thresholds
const (
	DefaultPassScore       = 75
	DefaultBorderlineScore = 50
)

// Thresholds are the minimum scores for each positive status
type Thresholds struct {
	Pass       int `json:"pass"`
	Borderline int `json:"borderline"`
}

// DefaultThresholds returns the standard 75/50 thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{Pass: DefaultPassScore, Borderline: DefaultBorderlineScore}
}

// Validate checks that the thresholds are ordered and non-negative
func (t Thresholds) Validate() error {
	if t.Borderline < 0 {
		return fmt.Errorf("borderline score cannot be negative: %d", t.Borderline)
	}
	if t.Pass < t.Borderline {
		return fmt.Errorf("pass score %d is below borderline score %d", t.Pass, t.Borderline)
	}
	return nil
}

// Decision is the classified outcome of an assessment.
// Score is the displayed score: zero when a mandatory requirement failed.
type Decision struct {
	Status Status `json:"status"`
	Score  int    `json:"score"`
}

// Classify maps an assessment to a decision. Mandatory failures override the
// points total.
func Classify(a *rules.Assessment, t Thresholds) Decision {
	switch {
	case len(a.MandatoryFailures) > 0:
		return Decision{Status: StatusIneligible, Score: 0}
	case a.TotalPoints >= t.Pass:
		return Decision{Status: StatusLikelyEligible, Score: a.TotalPoints}
	case a.TotalPoints >= t.Borderline:
		return Decision{Status: StatusBorderline, Score: a.TotalPoints}
	default:
		return Decision{Status: StatusLikelyIneligible, Score: a.TotalPoints}
	}
}

// FeatureNames lists the feature vector columns in order
var FeatureNames = []string{
	"total_points",
	"num_mandatory_failures",
	"num_warning_flags",
	"points_age",
	"points_education",
	"points_language",
	"points_work",
	"points_bonus",
}

// Features summarizes a skilled worker assessment. Categories that no rule
// contributed to count as zero.
type Features struct {
	TotalPoints          int `json:"total_points"`
	NumMandatoryFailures int `json:"num_mandatory_failures"`
	NumWarningFlags      int `json:"num_warning_flags"`
	PointsAge            int `json:"points_age"`
	PointsEducation      int `json:"points_education"`
	PointsLanguage       int `json:"points_language"`
	PointsWork           int `json:"points_work"`
	PointsBonus          int `json:"points_bonus"`
}

// ExtractFeatures builds the feature summary of an assessment
func ExtractFeatures(a *rules.Assessment) Features {
	category := func(name string) int {
		points, _ := a.PointsPerCategory.Get(name)
		return points
	}

	return Features{
		TotalPoints:          a.TotalPoints,
		NumMandatoryFailures: len(a.MandatoryFailures),
		NumWarningFlags:      len(a.WarningFlags),
		PointsAge:            category("Age"),
		PointsEducation:      category("Education"),
		PointsLanguage:       category("Language"),
		PointsWork:           category("Work Experience"),
		PointsBonus:          category("Bonus"),
	}
}

// Vector returns the features in FeatureNames order
func (f Features) Vector() []float64 {
	return []float64{
		float64(f.TotalPoints),
		float64(f.NumMandatoryFailures),
		float64(f.NumWarningFlags),
		float64(f.PointsAge),
		float64(f.PointsEducation),
		float64(f.PointsLanguage),
		float64(f.PointsWork),
		float64(f.PointsBonus),
	}
}
