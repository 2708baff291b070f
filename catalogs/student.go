package catalogs

import "github.com/liamcoop/visarules/rules"

// Student financial coverage bands
const (
	CoverageAbove150 = "> 150%"
	Coverage100To150 = "100% - 150%"
	CoverageMinimum  = "100% (Minimum)"
	CoverageBelow100 = "< 100%"
)

// Student is the 100-point system for student visas. A missing letter of
// acceptance or insufficient financial coverage scores -100, which pushes the
// total to the zero floor without registering a mandatory failure.
func Student() *rules.CatalogDefinition {
	return &rules.CatalogDefinition{
		Key:  KeyStudent,
		Name: "Student",
		Derived: []rules.DerivedField{
			{Name: "financial_coverage", Expression: `
				applicant.available_funds > applicant.first_year_cost * 1.5 ? "> 150%"
				: applicant.available_funds >= applicant.first_year_cost ? "100% - 150%"
				: applicant.available_funds == applicant.first_year_cost ? "100% (Minimum)"
				: "< 100%"`},
		},
		Rules: []*rules.Rule{
			points("ST_LOA", "Academics", `applicant.?has_loa.orValue(false) ? 20 : -100`),
			points("ST_GPA", "Academics", `
				applicant.?gpa.orValue("") == "> 3.5" ? 10
				: applicant.?gpa.orValue("") == "3.0 - 3.5" ? 7
				: applicant.?gpa.orValue("") == "2.5 - 3.0" ? 4
				: 0`),

			points("ST_FIN_COVERAGE", "Financials", `
				applicant.?financial_coverage.orValue("") == "> 150%" ? 30
				: applicant.?financial_coverage.orValue("") == "100% - 150%" ? 20
				: applicant.?financial_coverage.orValue("") == "100% (Minimum)" ? 5
				: -100`),

			points("ST_LANG_SCORE", "Language", `
				applicant.?language_test_score.orValue("") == "High (IELTS 7+)" ? 15
				: applicant.?language_test_score.orValue("") == "Good (IELTS 6.5)" ? 10
				: applicant.?language_test_score.orValue("") == "Adequate (IELTS 6.0)" ? 5
				: 0`),

			points("ST_TIES_FAMILY", "Home Ties", `
				applicant.?family_ties.orValue("") == "Immediate family" ? 10
				: applicant.?family_ties.orValue("") == "Extended family" ? 5
				: 0`),
			points("ST_TIES_PROPERTY", "Home Ties", `applicant.?has_property.orValue(false) ? 10 : 0`),
			points("ST_TIES_JOB", "Home Ties", `applicant.?has_job_prospects.orValue(false) ? 5 : 0`),

			mandatoryFail("ST_FAIL_MISREP", "History of visa misrepresentation.",
				`applicant.?has_misrepresentation.orValue(false)`),
			flag("ST_FLAG_STUDY_GAP", "A long study gap requires a clear explanation.",
				`applicant.?study_gap.orValue("") == "> 3 years"`),
			flag("ST_FLAG_REFUSAL", "Previous visa refusal raises concerns.",
				`applicant.?has_previous_refusal.orValue(false)`),
			flag("ST_FLAG_COURSE_RELEVANCE", "Chosen course is not clearly relevant to past studies/career.",
				`!applicant.?is_course_relevant.orValue(false)`),
		},
	}
}
