package epidemic

import (
	"github.com/tifye/kansen/assert"
	"github.com/tifye/kansen/rng"
)

// Scheduler samples the timers and branch draws that move agents through
// the disease state machine. It is a pure function of its parameters and
// the stream it draws from; it holds no other state.
type Scheduler struct {
	params Parameters
	rnd    *rng.Stream
}

func NewScheduler(params Parameters, rnd *rng.Stream) *Scheduler {
	assert.AssertNotNil(rnd)
	return &Scheduler{
		params: params,
		rnd:    rnd,
	}
}

// SampleIncubation draws the delay between exposure and becoming
// infectious.
func (s *Scheduler) SampleIncubation() (float64, error) {
	return s.rnd.Exponential(s.params.MeanIncubation)
}

// SampleInfectiousDuration draws the delay between becoming infectious
// and leaving the infectious state.
func (s *Scheduler) SampleInfectiousDuration() (float64, error) {
	return s.rnd.Exponential(s.params.MeanInfectious)
}

// DrawDeath decides whether an agent whose infectious period just ended
// dies rather than recovers.
func (s *Scheduler) DrawDeath() (bool, error) {
	return s.rnd.Bernoulli(s.params.DeathProbability)
}
