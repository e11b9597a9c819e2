package pvt

import (
	"math"

	"github.com/vigilab/comptrack/internal/model"
)

// DefaultLapseThreshold is the conventional reaction-time cutoff, in
// seconds, above which a response counts as a lapse.
const DefaultLapseThreshold = 0.5

// Metrics summarizes probe performance over a span of samples.
type Metrics struct {
	Probes    int     `json:"probes"`    // responses + timeouts
	Responses int     `json:"responses"` // probes answered before the deadline
	Timeouts  int     `json:"timeouts"`
	Lapses    int     `json:"lapses"` // responses at or above the lapse threshold

	MeanRT  float64 `json:"mean_rt"`  // over responses; 0 when there are none
	StdevRT float64 `json:"stdev_rt"` // sample standard deviation; 0 below 2 responses

	// Hypovigilance is the fraction of probes that were lapses or
	// timeouts. 0 when no probes occurred.
	Hypovigilance float64 `json:"hypovigilance"`
}

// MetricsConfig tunes metric computation.
type MetricsConfig struct {
	// LapseThreshold in seconds. Zero means DefaultLapseThreshold.
	LapseThreshold float64
	// Window keeps only the last Window probes. Zero means all probes.
	Window int
}

// Compute derives vigilance metrics from recorded samples. Samples whose
// PVT event is "none" are tracking ticks and are skipped.
func Compute(samples []model.Sample, cfg MetricsConfig) Metrics {
	threshold := cfg.LapseThreshold
	if threshold == 0 {
		threshold = DefaultLapseThreshold
	}

	type probe struct {
		timeout bool
		rt      float64
	}
	var probes []probe
	for _, s := range samples {
		switch s.PVTEvent {
		case model.PVTResponse:
			if s.PVTRT != nil {
				probes = append(probes, probe{rt: *s.PVTRT})
			}
		case model.PVTTimeout:
			probes = append(probes, probe{timeout: true})
		}
	}
	if cfg.Window > 0 && len(probes) > cfg.Window {
		probes = probes[len(probes)-cfg.Window:]
	}

	var m Metrics
	m.Probes = len(probes)
	if m.Probes == 0 {
		return m
	}

	var sum float64
	for _, p := range probes {
		if p.timeout {
			m.Timeouts++
			continue
		}
		m.Responses++
		sum += p.rt
		if p.rt >= threshold {
			m.Lapses++
		}
	}

	if m.Responses > 0 {
		m.MeanRT = sum / float64(m.Responses)
	}
	if m.Responses > 1 {
		var sq float64
		for _, p := range probes {
			if p.timeout {
				continue
			}
			d := p.rt - m.MeanRT
			sq += d * d
		}
		m.StdevRT = math.Sqrt(sq / float64(m.Responses-1))
	}
	m.Hypovigilance = float64(m.Lapses+m.Timeouts) / float64(m.Probes)
	return m
}
