package suite

import (
	"errors"
	"fmt"
)

// Load phases reported in LoadError.Phase.
const (
	PhaseRead   = "read"   // the lister failed
	PhaseSchema = "schema" // the listing is not valid JSON or violates the listing schema
	PhaseDecode = "decode" // the listing could not be decoded into records
	PhaseDomain = "domain" // the records are inconsistent, e.g. duplicate names
)

var (
	// ErrSuiteLoad is matched by every *LoadError.
	ErrSuiteLoad = errors.New("suite load failed")
	// ErrDuplicateTest reports two records with the same name.
	ErrDuplicateTest = errors.New("duplicate test name")
)

// LoadError reports why a listing could not be turned into a Suite.
type LoadError struct {
	Source string
	Phase  string
	Path   string // JSON pointer into the listing, if known
	Err    error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("load suite %q: %s: %s: %v", e.Source, e.Phase, e.Path, e.Err)
	}
	return fmt.Sprintf("load suite %q: %s: %v", e.Source, e.Phase, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrSuiteLoad }
