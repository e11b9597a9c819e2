// Package forces generates the perturbation forces applied to the
// tracking cursor: a deterministic sum-of-sinusoids buffeting force and
// an optional cyclic sequence of additional force modifiers.
package forces

import "math"

// Defaults for the additional-force modifier sequence.
const (
	DefaultModifierStart = 0.1
	DefaultModifierStop  = 1.4
	DefaultModifierCount = 100
)

// Buffeting returns the buffeting force at time t (seconds since session
// start). The force is a sum of sinusoids with different periods:
// the multiplier inside sin changes periodicity, not amplitude, so the
// components drift in and out of phase rather than scaling.
func Buffeting(t float64) float64 {
	return math.Sin(t) + math.Sin(0.3*t) + math.Sin(0.5*t) + math.Sin(0.7*t) - math.Sin(0.9*t)
}

// Geomspace returns n values spaced geometrically from start to stop,
// inclusive. Both endpoints must be positive. n < 2 yields just start.
func Geomspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	ratio := math.Pow(stop/start, 1/float64(n-1))
	v := start
	for i := 0; i < n-1; i++ {
		out[i] = v
		v *= ratio
	}
	out[n-1] = stop
	return out
}

// ModifierSequence builds the cyclic additional-force modifier terms:
// tan of a geometric ramp from start to stop, followed by the same ramp
// reversed and sign-flipped with the shared endpoints trimmed, so the
// sequence returns smoothly to its origin before repeating.
func ModifierSequence(start, stop float64, count int) []float64 {
	ramp := Geomspace(start, stop, count)
	for i, v := range ramp {
		ramp[i] = math.Tan(v)
	}
	// Mirror from the last element down to the third, leaving out the
	// first two so neither endpoint repeats back to back.
	seq := make([]float64, 0, 2*len(ramp)-2)
	seq = append(seq, ramp...)
	for i := len(ramp) - 1; i >= 2; i-- {
		seq = append(seq, -ramp[i])
	}
	return seq
}

// Cycle walks a modifier sequence endlessly.
type Cycle struct {
	values []float64
	idx    int
}

// NewCycle creates a cycle over the given values. An empty sequence
// always yields 0.
func NewCycle(values []float64) *Cycle {
	return &Cycle{values: values}
}

// Next returns the current modifier and advances, wrapping at the end.
func (c *Cycle) Next() float64 {
	if len(c.values) == 0 {
		return 0
	}
	v := c.values[c.idx]
	c.idx++
	if c.idx == len(c.values) {
		c.idx = 0
	}
	return v
}

// Len returns the cycle period.
func (c *Cycle) Len() int {
	return len(c.values)
}

// Generator produces the per-tick force triple. Additional forces are
// off by default, matching the source task, which records the column but
// leaves the modifier procedure disabled.
type Generator struct {
	cycle      *Cycle
	additional bool
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithAdditionalForces enables the cyclic additional-force modifiers.
func WithAdditionalForces(enabled bool) GeneratorOption {
	return func(g *Generator) {
		g.additional = enabled
	}
}

// WithModifierSequence replaces the default modifier sequence.
func WithModifierSequence(values []float64) GeneratorOption {
	return func(g *Generator) {
		g.cycle = NewCycle(values)
	}
}

// NewGenerator creates a force generator with the default modifier
// sequence.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		cycle: NewCycle(ModifierSequence(DefaultModifierStart, DefaultModifierStop, DefaultModifierCount)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// At returns the buffeting, additional, and total force for time t.
// Calling At advances the modifier cycle only when additional forces are
// enabled, so a disabled generator is a pure function of t.
func (g *Generator) At(t float64) (buffeting, additional, total float64) {
	buffeting = Buffeting(t)
	if g.additional {
		additional = g.cycle.Next()
	}
	total = buffeting + additional
	return buffeting, additional, total
}
