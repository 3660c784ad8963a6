package runner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/nttrun/pkg/suite"
	"github.com/ormasoftchile/nttrun/pkg/value"
)

// ParamSource supplies the parameters sent with each test.
type ParamSource interface {
	Parameters(t suite.Test) ([]value.Parameter, error)
}

// Static sends the same parameters with every test.
type Static []value.Parameter

func (s Static) Parameters(suite.Test) ([]value.Parameter, error) {
	return slices.Clone(s), nil
}

// ParamSet holds parameters common to all tests and per-test additions.
// A parameter file looks like
//
//	parameters:
//	  - name: timeout
//	    value: {float: 2.5}
//	tests:
//	  m1.tc_a:
//	    - name: peer
//	      value: {string: "10.0.0.1"}
type ParamSet struct {
	Common []value.Parameter            `yaml:"parameters" json:"parameters"`
	Tests  map[string][]value.Parameter `yaml:"tests"      json:"tests"`
}

// Parameters returns the common parameters followed by the test's own.
func (p *ParamSet) Parameters(t suite.Test) ([]value.Parameter, error) {
	out := slices.Clone(p.Common)
	return append(out, p.Tests[t.Name()]...), nil
}

// With returns a copy of p with extra common parameters appended.
func (p *ParamSet) With(extra ...value.Parameter) *ParamSet {
	return &ParamSet{Common: append(slices.Clone(p.Common), extra...), Tests: p.Tests}
}

// LoadParamSet reads a parameter file. Unknown keys are rejected.
func LoadParamSet(path string) (*ParamSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameter file: %w", err)
	}
	p, err := ParseParamSet(data)
	if err != nil {
		return nil, fmt.Errorf("parameter file %s: %w", path, err)
	}
	return p, nil
}

// ParseParamSet decodes a parameter document.
func ParseParamSet(data []byte) (*ParamSet, error) {
	var p ParamSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &p, nil
}
