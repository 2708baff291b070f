package catalogs

import "github.com/liamcoop/visarules/rules"

// Tourist daily funds bands
const (
	FundsAbove300  = "> $300"
	Funds200To300  = "$200 - $300"
	Funds100To200  = "$100 - $200"
	FundsBelow100  = "< $100"
	TravelExtended = "Extensive (USA/UK/Schengen)"
)

// Tourist is the 100-point system for visitor visas
func Tourist() *rules.CatalogDefinition {
	return &rules.CatalogDefinition{
		Key:  KeyTourist,
		Name: "Tourist",
		Derived: []rules.DerivedField{
			{Name: "funds_per_day", Expression: `
				applicant.trip_duration > 0.0 && applicant.trip_funds / applicant.trip_duration > 300.0 ? "> $300"
				: applicant.trip_duration > 0.0 && applicant.trip_funds / applicant.trip_duration >= 200.0 ? "$200 - $300"
				: applicant.trip_duration > 0.0 && applicant.trip_funds / applicant.trip_duration >= 100.0 ? "$100 - $200"
				: "< $100"`},
		},
		Rules: []*rules.Rule{
			points("TR_FUNDS", "Financials", `
				applicant.?funds_per_day.orValue("") == "> $300" ? 30
				: applicant.?funds_per_day.orValue("") == "$200 - $300" ? 20
				: applicant.?funds_per_day.orValue("") == "$100 - $200" ? 10
				: -100`),

			points("TR_PURPOSE", "Purpose", `
				applicant.?purpose.orValue("") == "Visiting Family (with invitation)" ? 25
				: applicant.?purpose.orValue("") == "Tourism (detailed itinerary)" ? 20
				: applicant.?purpose.orValue("") == "Tourism (basic plan)" ? 10
				: 5`),

			points("TR_TIES_EMPLOYMENT", "Home Ties", `
				applicant.?employment_status.orValue("") == "Stable full-time job" ? 15
				: applicant.?employment_status.orValue("") == "Part-time / Self-employed" ? 5
				: 0`),
			points("TR_TIES_FAMILY", "Home Ties", `
				applicant.?family_ties.orValue("") == "Spouse and/or children" ? 10
				: applicant.?family_ties.orValue("") == "Parents / Siblings" ? 5
				: 0`),
			points("TR_TIES_PROPERTY", "Home Ties", `applicant.?has_property.orValue(false) ? 10 : 0`),

			points("TR_TRAVEL_HISTORY", "History", `
				applicant.?travel_history.orValue("") == "Extensive (USA/UK/Schengen)" ? 10
				: applicant.?travel_history.orValue("") == "Some regional travel" ? 5
				: 0`),

			mandatoryFail("TR_FAIL_CRIMINAL_MISREP", "History of criminal record or visa misrepresentation.", `
				applicant.?has_criminal_record.orValue(false) || applicant.?has_misrepresentation.orValue(false)`),
			flag("TR_FLAG_LONG_STAY", "Unusually long trip duration requested for a first-time tourist.", `
				applicant.trip_duration > 30.0 && applicant.?travel_history.orValue("") != "Extensive (USA/UK/Schengen)"`),
			flag("TR_FLAG_NO_HOST", "No host or hotel bookings can be a risk factor.",
				`!applicant.?has_host_or_booking.orValue(false)`),
			flag("TR_FLAG_REFUSAL", "Previous visa refusal needs strong justification.",
				`applicant.?has_previous_refusal.orValue(false)`),
		},
	}
}
