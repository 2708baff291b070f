package catalogs

import (
	"encoding/json"

	"github.com/liamcoop/visarules/rules"
)

// Typed applicant profiles for Go callers. Pointer fields are optional: a nil
// field is left out of the record, so rules reading it are skipped or fall
// back to their default.

// SkilledWorkerProfile holds the fields read by the skilled worker catalog
type SkilledWorkerProfile struct {
	Age                      *int     `json:"age,omitempty"`
	EducationLevel           *string  `json:"education_level,omitempty"`
	WorkExperienceYears      *int     `json:"work_experience_years,omitempty"`
	IELTSListening           *float64 `json:"ielts_listening,omitempty"`
	IELTSSpeaking            *float64 `json:"ielts_speaking,omitempty"`
	IELTSReading             *float64 `json:"ielts_reading,omitempty"`
	IELTSWriting             *float64 `json:"ielts_writing,omitempty"`
	SettlementFunds          *float64 `json:"settlement_funds,omitempty"`
	FamilySize               *int     `json:"family_size,omitempty"`
	OccupationDemandLevel    *string  `json:"occupation_demand_level,omitempty"`
	HasJobOffer              bool     `json:"has_job_offer,omitempty"`
	HasLocalWorkExperience   bool     `json:"has_local_work_experience,omitempty"`
	HasRelative              bool     `json:"has_relative,omitempty"`
	HasPositiveTravelHistory bool     `json:"has_positive_travel_history,omitempty"`
	HasCriminalRecord        bool     `json:"has_criminal_record,omitempty"`
	HasPreviousRefusal       bool     `json:"has_previous_refusal,omitempty"`
}

// StudentProfile holds the fields read by the student catalog.
// FinancialCoverage is derived from AvailableFunds and FirstYearCost when unset.
type StudentProfile struct {
	HasLOA               bool     `json:"has_loa,omitempty"`
	GPA                  *string  `json:"gpa,omitempty"`
	AvailableFunds       *float64 `json:"available_funds,omitempty"`
	FirstYearCost        *float64 `json:"first_year_cost,omitempty"`
	FinancialCoverage    *string  `json:"financial_coverage,omitempty"`
	LanguageTestScore    *string  `json:"language_test_score,omitempty"`
	FamilyTies           *string  `json:"family_ties,omitempty"`
	HasProperty          bool     `json:"has_property,omitempty"`
	HasJobProspects      bool     `json:"has_job_prospects,omitempty"`
	HasMisrepresentation bool     `json:"has_misrepresentation,omitempty"`
	StudyGap             *string  `json:"study_gap,omitempty"`
	HasPreviousRefusal   bool     `json:"has_previous_refusal,omitempty"`
	IsCourseRelevant     bool     `json:"is_course_relevant,omitempty"`
}

// TouristProfile holds the fields read by the tourist catalog.
// FundsPerDay is derived from TripFunds and TripDuration when unset.
type TouristProfile struct {
	TripFunds            *float64 `json:"trip_funds,omitempty"`
	TripDuration         *int     `json:"trip_duration,omitempty"`
	FundsPerDay          *string  `json:"funds_per_day,omitempty"`
	Purpose              *string  `json:"purpose,omitempty"`
	EmploymentStatus     *string  `json:"employment_status,omitempty"`
	FamilyTies           *string  `json:"family_ties,omitempty"`
	HasProperty          bool     `json:"has_property,omitempty"`
	TravelHistory        *string  `json:"travel_history,omitempty"`
	HasCriminalRecord    bool     `json:"has_criminal_record,omitempty"`
	HasMisrepresentation bool     `json:"has_misrepresentation,omitempty"`
	HasHostOrBooking     bool     `json:"has_host_or_booking,omitempty"`
	HasPreviousRefusal   bool     `json:"has_previous_refusal,omitempty"`
}

// Record converts the profile to an applicant record
func (p SkilledWorkerProfile) Record() rules.Record { return toRecord(p) }

// Record converts the profile to an applicant record
func (p StudentProfile) Record() rules.Record { return toRecord(p) }

// Record converts the profile to an applicant record
func (p TouristProfile) Record() rules.Record { return toRecord(p) }

// Ptr returns a pointer to v, for filling optional profile fields
func Ptr[T any](v T) *T { return &v }

func toRecord(profile any) rules.Record {
	// Profiles contain only scalars, so encoding cannot fail
	payload, _ := json.Marshal(profile)
	record := rules.Record{}
	_ = json.Unmarshal(payload, &record)
	return record
}
