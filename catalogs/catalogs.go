// Package catalogs declares the built-in visa rule catalogs.
//
// Each constructor returns a fresh definition; no rule instance is shared
// between catalogs. Expressions read required fields as `applicant.field`
// (a missing field skips the rule) and optional fields as
// `applicant.?field.orValue(default)`.
package catalogs

import (
	"context"
	"fmt"

	"github.com/liamcoop/visarules/rules"
)

// Catalog keys
const (
	KeySkilledWorker = "skilled_worker"
	KeyStudent       = "student"
	KeyTourist       = "tourist"
)

// All returns every built-in catalog definition in display order
func All() []*rules.CatalogDefinition {
	return []*rules.CatalogDefinition{
		SkilledWorker(),
		Student(),
		Tourist(),
	}
}

// Seed writes every built-in catalog into store, replacing existing versions
func Seed(ctx context.Context, store rules.RuleStore) error {
	for _, def := range All() {
		if err := store.PutCatalog(ctx, def); err != nil {
			return fmt.Errorf("failed to seed catalog %s: %w", def.Key, err)
		}
	}
	return nil
}

func points(id, category, expr string) *rules.Rule {
	return &rules.Rule{ID: id, Kind: rules.KindPoints, Category: category, Expression: expr, Active: true}
}

func mandatoryFail(id, description, expr string) *rules.Rule {
	return &rules.Rule{ID: id, Kind: rules.KindMandatoryFail, Description: description, Expression: expr, Active: true}
}

func flag(id, description, expr string) *rules.Rule {
	return &rules.Rule{ID: id, Kind: rules.KindFlag, Description: description, Expression: expr, Active: true}
}
