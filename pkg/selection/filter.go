package selection

import (
	"fmt"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ormasoftchile/nttrun/pkg/suite"
)

// Matcher decides whether a test is selected.
type Matcher interface {
	Match(t suite.Test) (bool, error)
}

// Filter returns the tests accepted by every matcher, in their original
// order.
func Filter(tests []suite.Test, matchers ...Matcher) ([]suite.Test, error) {
	var out []suite.Test
next:
	for _, t := range tests {
		for _, m := range matchers {
			ok, err := m.Match(t)
			if err != nil {
				return nil, fmt.Errorf("select %s: %w", t.Name(), err)
			}
			if !ok {
				continue next
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// Names selects tests by exact name.
type Names []string

func (n Names) Match(t suite.Test) (bool, error) {
	return slices.Contains(n, t.Name()), nil
}

// Expr is a compiled boolean expression over a test. The expression sees
//
//	name     the test name
//	module   the module name
//	tags     the tags, sorted
//	hasTag   hasTag("@wip") reports whether a tag is present
//	tag      tag("@owner") returns the value of a "key: value" or "key value" tag
//
// For example: module == "m1" && !hasTag("@flaky").
type Expr struct {
	src     string
	program *vm.Program
}

// CompileExpr compiles src. The expression must evaluate to a bool.
func CompileExpr(src string) (*Expr, error) {
	src = strings.TrimSpace(src)
	program, err := expr.Compile(src, expr.Env(exprEnv(suite.Test{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", src, err)
	}
	return &Expr{src: src, program: program}, nil
}

func (e *Expr) String() string { return e.src }

// Match implements Matcher.
func (e *Expr) Match(t suite.Test) (bool, error) {
	out, err := expr.Run(e.program, exprEnv(t))
	if err != nil {
		return false, fmt.Errorf("eval expression %q: %w", e.src, err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("expression %q did not return bool (got %T)", e.src, out)
	}
	return ok, nil
}

func exprEnv(t suite.Test) map[string]any {
	tags := t.Tags()
	if tags == nil {
		tags = []string{}
	}
	split := splitTags(tags)
	return map[string]any{
		"name":   t.Name(),
		"module": t.Module(),
		"tags":   tags,
		"hasTag": func(tag string) bool { return t.HasTag(tag) },
		"tag": func(key string) string {
			for _, tg := range split {
				if tg.key == key {
					return tg.value
				}
			}
			return ""
		},
	}
}

// Query holds the selection inputs of a command.
type Query struct {
	Names  []string // explicit tests; each must exist in the suite
	Basket *Basket
	Where  string // expression, see Expr
}

// Apply returns the tests of s selected by q, in suite order.
func (q Query) Apply(s *suite.Suite) ([]suite.Test, error) {
	var matchers []Matcher
	if len(q.Names) > 0 {
		for _, name := range q.Names {
			if _, ok := s.Lookup(name); !ok {
				return nil, fmt.Errorf("test %q not found in %s", name, s.Source())
			}
		}
		matchers = append(matchers, Names(q.Names))
	}
	if q.Basket != nil && !q.Basket.IsEmpty() {
		matchers = append(matchers, q.Basket)
	}
	if q.Where != "" {
		e, err := CompileExpr(q.Where)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, e)
	}
	return Filter(s.Tests(), matchers...)
}
