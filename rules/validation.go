package rules

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxRulesPerCatalog  = 500
	maxIdentifierLength = 100
	maxExpressionLength = 4096
)

var (
	catalogKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	ruleIDPattern     = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// ValidateDefinition checks the structure of a catalog definition.
// Expressions are only checked for presence here; NewCatalog compiles them.
func ValidateDefinition(def *CatalogDefinition) error {
	if def == nil {
		return fmt.Errorf("catalog definition cannot be nil")
	}

	if err := validateCatalogKey(def.Key); err != nil {
		return fmt.Errorf("invalid catalog key %q: %w", def.Key, err)
	}

	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("catalog %q must have a name", def.Key)
	}

	if len(def.Rules) == 0 {
		return fmt.Errorf("catalog %q must contain at least one rule", def.Key)
	}

	if len(def.Rules) > maxRulesPerCatalog {
		return fmt.Errorf("catalog %q contains %d rules, maximum allowed is %d", def.Key, len(def.Rules), maxRulesPerCatalog)
	}

	seenFields := make(map[string]bool, len(def.Derived))
	for _, df := range def.Derived {
		if err := validateIdentifier(df.Name); err != nil {
			return fmt.Errorf("invalid derived field name %q in catalog %q: %w", df.Name, def.Key, err)
		}
		if seenFields[df.Name] {
			return fmt.Errorf("derived field %q is defined twice in catalog %q", df.Name, def.Key)
		}
		seenFields[df.Name] = true
		if err := validateExpression(df.Expression); err != nil {
			return fmt.Errorf("derived field %q in catalog %q: %w", df.Name, def.Key, err)
		}
	}

	seenIDs := make(map[string]bool, len(def.Rules))
	for i, r := range def.Rules {
		if r == nil {
			return fmt.Errorf("rule at position %d in catalog %q is nil", i, def.Key)
		}
		if err := ValidateRule(r); err != nil {
			return fmt.Errorf("catalog %q: %w", def.Key, err)
		}
		if seenIDs[r.ID] {
			return fmt.Errorf("rule ID %q is not unique in catalog %q", r.ID, def.Key)
		}
		seenIDs[r.ID] = true
	}

	return nil
}

// ValidateRule checks a single rule definition
func ValidateRule(r *Rule) error {
	if r.ID == "" {
		return fmt.Errorf("rule ID cannot be empty")
	}
	if len(r.ID) > maxIdentifierLength {
		return fmt.Errorf("rule ID length %d exceeds maximum of %d characters", len(r.ID), maxIdentifierLength)
	}
	if !ruleIDPattern.MatchString(r.ID) {
		return fmt.Errorf("rule ID %q must match pattern %s", r.ID, ruleIDPattern)
	}

	if !r.Kind.Valid() {
		return fmt.Errorf("rule %s has unknown kind %q (must be one of: points, mandatory_fail, flag)", r.ID, r.Kind)
	}

	switch r.Kind {
	case KindPoints:
		if strings.TrimSpace(r.Category) == "" {
			return fmt.Errorf("points rule %s must have a category", r.ID)
		}
	case KindMandatoryFail, KindFlag:
		if strings.TrimSpace(r.Description) == "" {
			return fmt.Errorf("%s rule %s must have a description", r.Kind, r.ID)
		}
	}

	if err := validateExpression(r.Expression); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}

	return nil
}

func validateCatalogKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if len(key) > maxIdentifierLength {
		return fmt.Errorf("key length %d exceeds maximum of %d characters", len(key), maxIdentifierLength)
	}
	if !catalogKeyPattern.MatchString(key) {
		return fmt.Errorf("must match pattern %s", catalogKeyPattern)
	}
	return nil
}

func validateExpression(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("expression cannot be empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression length %d exceeds maximum of %d characters", len(expr), maxExpressionLength)
	}
	return nil
}

// validateIdentifier validates a derived field name.
// Must match ^[a-zA-Z_][a-zA-Z0-9_]*$, be 1-100 characters and not be a CEL reserved word.
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > maxIdentifierLength {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(name), maxIdentifierLength)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$ (start with letter or underscore, followed by letters, digits, or underscores)")
	}
	if isReservedKeyword(name) {
		return fmt.Errorf("cannot use reserved keyword %q as identifier", name)
	}
	return nil
}

// isReservedKeyword checks if a name is a CEL reserved word and so cannot be
// selected with dot notation
func isReservedKeyword(name string) bool {
	reservedKeywords := map[string]bool{
		"true":  true,
		"false": true,
		"null":  true,
		"in":    true,

		"as":        true,
		"break":     true,
		"const":     true,
		"continue":  true,
		"else":      true,
		"for":       true,
		"function":  true,
		"if":        true,
		"import":    true,
		"let":       true,
		"loop":      true,
		"package":   true,
		"namespace": true,
		"return":    true,
		"var":       true,
		"void":      true,
		"while":     true,
	}

	return reservedKeywords[name]
}
