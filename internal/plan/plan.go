// Package plan loads and validates session plans: the YAML documents that
// describe a recording session's duration, trial structure, probe timing,
// and force configuration.
//
// Plans are parsed strictly (unknown fields are typos, not extensions)
// and then unified against an embedded CUE schema, so a malformed plan
// fails before a participant sits down.
package plan

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/vigilab/comptrack/internal/forces"
	"github.com/vigilab/comptrack/internal/pvt"
)

//go:embed schema.cue
var schemaSrc string

// PVTConfig is the probe-timing section of a plan.
type PVTConfig struct {
	MinITI         int     `yaml:"min_iti"`
	MaxITI         int     `yaml:"max_iti"`
	LapseThreshold float64 `yaml:"lapse_threshold"`
	Window         int     `yaml:"window"`
}

// ForcesConfig is the force-generation section of a plan.
type ForcesConfig struct {
	Additional    bool    `yaml:"additional"`
	ModifierStart float64 `yaml:"modifier_start"`
	ModifierStop  float64 `yaml:"modifier_stop"`
	ModifierCount int     `yaml:"modifier_count"`
}

// Plan is one session plan.
type Plan struct {
	Name           string       `yaml:"name"`
	Duration       int          `yaml:"duration"` // seconds
	Blocks         int          `yaml:"blocks"`
	TrialsPerBlock int          `yaml:"trials_per_block"`
	PVT            PVTConfig    `yaml:"pvt"`
	Forces         ForcesConfig `yaml:"forces"`

	// ResetTargetAfterPoll recenters the cursor after each probe.
	ResetTargetAfterPoll bool `yaml:"reset_target_after_poll"`
}

// Load reads, parses, and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates plan YAML.
func Parse(data []byte) (*Plan, error) {
	p := defaults()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields (catches typos)
	if err := decoder.Decode(p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateSchema(p); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	if p.PVT.MaxITI < p.PVT.MinITI {
		return nil, fmt.Errorf("invalid plan: pvt max_iti %d below min_iti %d", p.PVT.MaxITI, p.PVT.MinITI)
	}
	return p, nil
}

func defaults() *Plan {
	return &Plan{
		Blocks:         1,
		TrialsPerBlock: 1,
		PVT: PVTConfig{
			MinITI:         pvt.DefaultMinITI,
			MaxITI:         pvt.DefaultMaxITI,
			LapseThreshold: pvt.DefaultLapseThreshold,
		},
		Forces: ForcesConfig{
			ModifierStart: forces.DefaultModifierStart,
			ModifierStop:  forces.DefaultModifierStop,
			ModifierCount: forces.DefaultModifierCount,
		},
		ResetTargetAfterPoll: true,
	}
}

// validateSchema unifies the plan with the embedded CUE schema.
func validateSchema(p *Plan) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling plan schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Plan"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("looking up plan definition: %w", err)
	}

	val := ctx.Encode(encodePlan(p))
	if err := val.Err(); err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}

// encodePlan maps the struct to the schema's field names. The YAML tags
// carry the names but ctx.Encode follows JSON rules, so the mapping is
// explicit here.
func encodePlan(p *Plan) map[string]any {
	return map[string]any{
		"name":             p.Name,
		"duration":         p.Duration,
		"blocks":           p.Blocks,
		"trials_per_block": p.TrialsPerBlock,
		"pvt": map[string]any{
			"min_iti":         p.PVT.MinITI,
			"max_iti":         p.PVT.MaxITI,
			"lapse_threshold": p.PVT.LapseThreshold,
			"window":          p.PVT.Window,
		},
		"forces": map[string]any{
			"additional":     p.Forces.Additional,
			"modifier_start": p.Forces.ModifierStart,
			"modifier_stop":  p.Forces.ModifierStop,
			"modifier_count": p.Forces.ModifierCount,
		},
		"reset_target_after_poll": p.ResetTargetAfterPoll,
	}
}

// TotalTrials returns blocks times trials per block.
func (p *Plan) TotalTrials() int {
	return p.Blocks * p.TrialsPerBlock
}

// ModifierSequence builds the additional-force modifier sequence the plan
// describes.
func (p *Plan) ModifierSequence() []float64 {
	return forces.ModifierSequence(p.Forces.ModifierStart, p.Forces.ModifierStop, p.Forces.ModifierCount)
}
