package catalogs

import "github.com/liamcoop/visarules/rules"

// SkilledWorker is the comprehensive points system for skilled worker visas:
// core human capital (max 67), adaptability bonuses (max 33), plus mandatory
// failures and flags.
func SkilledWorker() *rules.CatalogDefinition {
	return &rules.CatalogDefinition{
		Key:  KeySkilledWorker,
		Name: "Skilled Worker",
		Rules: []*rules.Rule{
			points("SW_AGE", "Age", `
				applicant.age >= 18.0 && applicant.age <= 35.0 ? 12
				: applicant.age == 36.0 ? 11
				: applicant.age == 37.0 ? 10
				: applicant.age == 38.0 ? 9
				: applicant.age == 39.0 ? 8
				: applicant.age == 40.0 ? 7
				: applicant.age == 41.0 ? 6
				: applicant.age == 42.0 ? 5
				: applicant.age == 43.0 ? 4
				: applicant.age == 44.0 ? 3
				: applicant.age == 45.0 ? 2
				: applicant.age == 46.0 ? 1
				: 0`),
			points("SW_EDU", "Education", `
				applicant.education_level == "PhD" ? 25
				: applicant.education_level == "Masters" ? 23
				: applicant.education_level == "DualDegree" ? 22
				: applicant.education_level == "Bachelors" ? 21
				: applicant.education_level == "Diploma" ? 19
				: 5`),
			points("SW_WORK", "Work Experience", `
				applicant.work_experience_years >= 6.0 ? 15
				: 4.0 <= applicant.work_experience_years && applicant.work_experience_years < 6.0 ? 13
				: 2.0 <= applicant.work_experience_years && applicant.work_experience_years < 4.0 ? 11
				: applicant.work_experience_years == 1.0 ? 9
				: 0`),
			points("SW_LANG_L", "Language", `
				applicant.ielts_listening >= 8.0 ? 6
				: applicant.ielts_listening >= 7.5 ? 5
				: applicant.ielts_listening >= 6.0 ? 4
				: 0`),
			points("SW_LANG_S", "Language", `
				applicant.ielts_speaking >= 7.0 ? 6
				: applicant.ielts_speaking >= 6.5 ? 5
				: applicant.ielts_speaking >= 6.0 ? 4
				: 0`),
			points("SW_LANG_R", "Language", `
				applicant.ielts_reading >= 7.0 ? 6
				: applicant.ielts_reading >= 6.5 ? 5
				: applicant.ielts_reading >= 6.0 ? 4
				: 0`),
			points("SW_LANG_W", "Language", `
				applicant.ielts_writing >= 7.0 ? 6
				: applicant.ielts_writing >= 6.5 ? 5
				: applicant.ielts_writing >= 6.0 ? 4
				: 0`),

			points("SW_JOB_OFFER", "Bonus", `applicant.?has_job_offer.orValue(false) ? 10 : 0`),
			points("SW_DEMAND", "Bonus", `
				applicant.?occupation_demand_level.orValue("") == "Critical" ? 8
				: applicant.?occupation_demand_level.orValue("") == "High" ? 5
				: 0`),
			points("SW_LOCAL_WORK", "Bonus", `applicant.?has_local_work_experience.orValue(false) ? 5 : 0`),
			points("SW_RELATIVE", "Bonus", `applicant.?has_relative.orValue(false) ? 5 : 0`),
			points("SW_TRAVEL_HIST", "Bonus", `applicant.?has_positive_travel_history.orValue(false) ? 5 : 0`),

			mandatoryFail("SW_FAIL_FUNDS", "Settlement funds below minimum for family size.", `
				applicant.settlement_funds < 15000.0 + (applicant.?family_size.orValue(1.0) - 1.0) * 4000.0`),
			mandatoryFail("SW_FAIL_CRIMINAL", "Applicant has a disqualifying criminal record.",
				`applicant.?has_criminal_record.orValue(false)`),
			mandatoryFail("SW_FAIL_LANG_MIN", "Minimum language score (IELTS 6.0 in all bands) not met.", `
				math.least(applicant.ielts_speaking, applicant.ielts_listening, applicant.ielts_reading, applicant.ielts_writing) < 6.0`),
			flag("SW_FLAG_FUNDS", "Funds are very close to the minimum required level.", `
				15000.0 + (applicant.?family_size.orValue(1.0) - 1.0) * 4000.0 <= applicant.settlement_funds
				&& applicant.settlement_funds < 17000.0 + (applicant.?family_size.orValue(1.0) - 1.0) * 4000.0`),
			flag("SW_FLAG_REFUSAL", "Previous visa refusal needs to be strongly addressed.",
				`applicant.?has_previous_refusal.orValue(false)`),
		},
	}
}
