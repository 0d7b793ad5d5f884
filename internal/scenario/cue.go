package scenario

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// scenarioSchema compiles the embedded schema and returns #Scenario.
func scenarioSchema(ctx *cue.Context) (cue.Value, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile scenario schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Scenario"))
	if !def.Exists() {
		return cue.Value{}, fmt.Errorf("scenario schema has no #Scenario definition")
	}
	return def, nil
}

// parseCUE compiles a CUE scenario, unifies it with the schema and decodes
// the concrete result.
func parseCUE(data []byte, filename string) (*Scenario, error) {
	ctx := cuecontext.New()
	def, err := scenarioSchema(ctx)
	if err != nil {
		return nil, err
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("scenario does not match schema: %w", err)
	}

	var s Scenario
	if err := unified.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode CUE scenario: %w", err)
	}
	return &s, nil
}

// validateSchema checks a decoded scenario against the schema, whatever
// format it was read from.
func validateSchema(s *Scenario) error {
	ctx := cuecontext.New()
	def, err := scenarioSchema(ctx)
	if err != nil {
		return err
	}

	v := ctx.Encode(s)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("scenario does not match schema: %w", err)
	}
	return nil
}
