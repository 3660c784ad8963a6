package suite

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Record is one entry of a suite listing.
type Record struct {
	Name string   `json:"name" jsonschema:"minLength=1,description=Fully qualified test name"`
	Tags []string `json:"tags" jsonschema:"description=Tags attached to the test; may be empty"`
	Mod  string   `json:"mod" jsonschema:"description=Module that defines the test"`
}

const listingSchemaID = "https://github.com/ormasoftchile/nttrun/schemas/listing.json"

// GenerateListingJSONSchema produces the JSON Schema (Draft 2020-12) of a
// suite listing: an array of Record objects. Unknown record properties are
// allowed so that newer engines may add fields.
func GenerateListingJSONSchema() ([]byte, error) {
	r := &jsonschema.Reflector{AllowAdditionalProperties: true}
	rec := r.Reflect(&Record{})
	s := &jsonschema.Schema{
		Version:     jsonschema.Version,
		ID:          listingSchemaID,
		Title:       "Suite listing",
		Description: "Tests exposed by a compiled suite",
		Type:        "array",
		Items:       &jsonschema.Schema{Ref: "#/$defs/Record"},
		Definitions: rec.Definitions,
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal listing schema: %w", err)
	}
	return data, nil
}

var listingSchema = sync.OnceValues(func() (*sjsonschema.Schema, error) {
	data, err := GenerateListingJSONSchema()
	if err != nil {
		return nil, err
	}
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal listing schema: %w", err)
	}
	c := sjsonschema.NewCompiler()
	if err := c.AddResource(listingSchemaID, doc); err != nil {
		return nil, fmt.Errorf("add listing schema resource: %w", err)
	}
	sch, err := c.Compile(listingSchemaID)
	if err != nil {
		return nil, fmt.Errorf("compile listing schema: %w", err)
	}
	return sch, nil
})

var printer = message.NewPrinter(language.English)

// decodeListing validates data against the listing schema and decodes it.
func decodeListing(source string, data []byte) ([]Record, error) {
	inst, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Source: source, Phase: PhaseSchema, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	sch, err := listingSchema()
	if err != nil {
		return nil, &LoadError{Source: source, Phase: PhaseSchema, Err: err}
	}
	if err := sch.Validate(inst); err != nil {
		var ve *sjsonschema.ValidationError
		if !errors.As(err, &ve) {
			return nil, &LoadError{Source: source, Phase: PhaseSchema, Err: err}
		}
		causes := flattenValidationErrors(ve)
		errs := make([]error, len(causes))
		for i, c := range causes {
			errs[i] = fmt.Errorf("%s: %s", instancePath(c.InstanceLocation), c.ErrorKind.LocalizedString(printer))
		}
		return nil, &LoadError{
			Source: source,
			Phase:  PhaseSchema,
			Path:   instancePath(causes[0].InstanceLocation),
			Err:    errors.Join(errs...),
		}
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &LoadError{Source: source, Phase: PhaseDecode, Err: err}
	}
	return records, nil
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

func instancePath(loc []string) string {
	return "/" + strings.Join(loc, "/")
}
