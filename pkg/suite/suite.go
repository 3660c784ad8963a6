// Package suite loads the set of tests a compiled suite exposes.
//
// A suite is discovered through a Lister, which returns a JSON listing of
// the form
//
//	[{"name": "m1.tc_a", "tags": ["smoke"], "mod": "m1"}, ...]
//
// Load validates the listing against the listing JSON Schema, decodes it
// and checks that test names are unique. It either returns a complete
// Suite or a *LoadError; there are no partial suites.
package suite

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Test is one runnable test of a suite. Tags are an unordered set.
type Test struct {
	name   string
	module string
	tags   []string
}

// NewTest returns a Test. Duplicate tags are dropped.
func NewTest(name, module string, tags ...string) Test {
	t := Test{name: name, module: module}
	if len(tags) > 0 {
		t.tags = slices.Clone(tags)
		slices.Sort(t.tags)
		t.tags = slices.Compact(t.tags)
	}
	return t
}

// Name returns the fully qualified test name sent in RunRequest.test_name.
func (t Test) Name() string { return t.name }

// Module returns the name of the module that defines the test.
func (t Test) Module() string { return t.module }

// Tags returns the test's tags in sorted order.
func (t Test) Tags() []string { return slices.Clone(t.tags) }

// HasTag reports whether tag is one of the test's tags.
func (t Test) HasTag(tag string) bool {
	_, ok := slices.BinarySearch(t.tags, tag)
	return ok
}

func (t Test) String() string {
	if len(t.tags) == 0 {
		return t.name
	}
	return fmt.Sprintf("%s [%s]", t.name, strings.Join(t.tags, ", "))
}

// Suite is an immutable, ordered collection of uniquely named tests.
type Suite struct {
	source string
	tests  []Test
	index  map[string]int
}

// New returns a Suite of tests loaded from source. It fails if a name is
// empty or repeated.
func New(source string, tests ...Test) (*Suite, error) {
	s := &Suite{
		source: source,
		tests:  slices.Clone(tests),
		index:  make(map[string]int, len(tests)),
	}
	for i, t := range s.tests {
		path := fmt.Sprintf("/%d/name", i)
		if t.name == "" {
			return nil, &LoadError{Source: source, Phase: PhaseDomain, Path: path, Err: fmt.Errorf("empty test name")}
		}
		if j, dup := s.index[t.name]; dup {
			return nil, &LoadError{Source: source, Phase: PhaseDomain, Path: path,
				Err: fmt.Errorf("%w: %q also at index %d", ErrDuplicateTest, t.name, j)}
		}
		s.index[t.name] = i
	}
	return s, nil
}

// Source returns the path the suite was loaded from.
func (s *Suite) Source() string { return s.source }

// Len returns the number of tests.
func (s *Suite) Len() int { return len(s.tests) }

// Tests returns the tests in listing order. The slice is a copy.
func (s *Suite) Tests() []Test { return slices.Clone(s.tests) }

// Lookup returns the test with the given name.
func (s *Suite) Lookup(name string) (Test, bool) {
	i, ok := s.index[name]
	if !ok {
		return Test{}, false
	}
	return s.tests[i], true
}

// Load fetches the listing for source from lister and builds a Suite.
func Load(ctx context.Context, lister Lister, source string) (*Suite, error) {
	data, err := lister.List(ctx, source)
	if err != nil {
		return nil, &LoadError{Source: source, Phase: PhaseRead, Err: err}
	}
	return Parse(source, data)
}

// Parse builds a Suite from a JSON listing already in memory.
func Parse(source string, data []byte) (*Suite, error) {
	records, err := decodeListing(source, data)
	if err != nil {
		return nil, err
	}
	tests := make([]Test, len(records))
	for i, r := range records {
		tests[i] = NewTest(r.Name, r.Mod, r.Tags...)
	}
	return New(source, tests...)
}
