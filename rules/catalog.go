package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// costLimit caps the work a single rule may do during one evaluation
const costLimit = 1000000

// Catalog is a compiled, immutable rule set for one visa category.
// It is safe for concurrent use.
type Catalog struct {
	key     string
	name    string
	derived []compiledField
	rules   []compiledRule
	index   map[string]int // rule ID to position in rules
}

type compiledRule struct {
	def     Rule
	program cel.Program
}

type compiledField struct {
	def     DerivedField
	program cel.Program
}

// NewCatalog validates def and compiles every expression it contains.
// The definition is copied, so later changes to def do not affect the catalog.
func NewCatalog(env *cel.Env, def *CatalogDefinition) (*Catalog, error) {
	if env == nil {
		return nil, fmt.Errorf("CEL environment cannot be nil")
	}
	if err := ValidateDefinition(def); err != nil {
		return nil, err
	}

	c := &Catalog{
		key:     def.Key,
		name:    def.Name,
		derived: make([]compiledField, 0, len(def.Derived)),
		rules:   make([]compiledRule, 0, len(def.Rules)),
		index:   make(map[string]int, len(def.Rules)),
	}

	for _, df := range def.Derived {
		prog, err := compileExpression(env, df.Expression, cel.StringType, cel.DoubleType, cel.IntType, cel.BoolType)
		if err != nil {
			return nil, fmt.Errorf("failed to compile derived field %s in catalog %s: %w", df.Name, def.Key, err)
		}
		c.derived = append(c.derived, compiledField{def: df, program: prog})
	}

	for _, r := range def.Rules {
		if !r.Active {
			continue
		}

		want := cel.BoolType
		if r.Kind == KindPoints {
			want = cel.IntType
		}

		prog, err := compileExpression(env, r.Expression, want)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %s in catalog %s: %w", r.ID, def.Key, err)
		}
		c.index[r.ID] = len(c.rules)
		c.rules = append(c.rules, compiledRule{def: *r, program: prog})
	}

	return c, nil
}

// compileExpression compiles expr and checks that its static type is one of
// want, or dyn when the type can only be known at evaluation time
func compileExpression(env *cel.Env, expr string, want ...*cel.Type) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	out := ast.OutputType()
	allowed := out.IsExactType(cel.DynType)
	for _, t := range want {
		if out.IsExactType(t) {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("expression has type %s, expected %v", out, want)
	}

	prog, err := env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// Key returns the catalog's stable identifier, e.g. "skilled_worker"
func (c *Catalog) Key() string { return c.key }

// Name returns the catalog's display name, e.g. "Skilled Worker"
func (c *Catalog) Name() string { return c.name }

// Len returns the number of active rules
func (c *Catalog) Len() int { return len(c.rules) }

// Rules returns copies of the active rule definitions in catalog order
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.def
	}
	return out
}

// Definition rebuilds a definition equivalent to the one the catalog was compiled from,
// restricted to active rules
func (c *Catalog) Definition() *CatalogDefinition {
	def := &CatalogDefinition{
		Key:   c.key,
		Name:  c.name,
		Rules: make([]*Rule, len(c.rules)),
	}
	for _, f := range c.derived {
		def.Derived = append(def.Derived, f.def)
	}
	for i, r := range c.rules {
		rule := r.def
		def.Rules[i] = &rule
	}
	return def
}
