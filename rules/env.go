package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// ApplicantVar is the CEL variable every rule and derived field reads from
const ApplicantVar = "applicant"

// NewEnv creates the CEL environment shared by all catalogs.
//
// The applicant is declared as map(string, dyn): selecting a missing key is an
// evaluation error, while `applicant.?field.orValue(default)` reads an optional
// field. Numeric comparisons are allowed across int and double.
func NewEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable(ApplicantVar, cel.MapType(cel.StringType, cel.DynType)),
		cel.OptionalTypes(),
		cel.CrossTypeNumericComparisons(true),
		ext.Math(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}
