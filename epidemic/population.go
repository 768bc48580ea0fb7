package epidemic

import (
	"fmt"
	"math"

	"github.com/tifye/kansen/assert"
	"github.com/tifye/kansen/rng"
)

// Population holds per-agent disease state as parallel columns indexed
// by agent. An agent is exactly one of susceptible, exposed, infectious,
// recovered, or dead at any time; the timer columns hold NaN except
// while their state is active (infectiousAt while exposed, recoveredAt
// while infectious).
//
// The column length is fixed at construction. Agents are never added or
// removed; death is a state, not a deletion.
//
// Only the engine mutates a Population during a step. Other components
// read it through the accessor methods.
type Population struct {
	n int

	susceptible []bool
	exposed     []bool
	infectious  []bool
	recovered   []bool
	dead        []bool

	infectiousAt []float64
	recoveredAt  []float64
}

// NewPopulation bootstraps a population of the given size: every agent
// starts susceptible except a Bernoulli(initPrev)-selected subset which
// starts infectious (skipping the exposed stage) with its recovery timer
// already scheduled.
func NewPopulation(size int, initPrev float64, rnd *rng.Stream, sched *Scheduler) (*Population, error) {
	assert.AssertNotNil(rnd)
	assert.AssertNotNil(sched)

	if size <= 0 {
		return nil, fmt.Errorf("population size %d: %w", size, ErrInvalidParameter)
	}
	if !(initPrev >= 0 && initPrev <= 1) {
		return nil, fmt.Errorf("initial prevalence %v: %w", initPrev, ErrInvalidParameter)
	}

	p := &Population{
		n: size,

		susceptible: make([]bool, size),
		exposed:     make([]bool, size),
		infectious:  make([]bool, size),
		recovered:   make([]bool, size),
		dead:        make([]bool, size),

		infectiousAt: make([]float64, size),
		recoveredAt:  make([]float64, size),
	}
	for i := range size {
		p.susceptible[i] = true
		p.infectiousAt[i] = math.NaN()
		p.recoveredAt[i] = math.NaN()
	}

	for i := range size {
		seedCase, err := rnd.Bernoulli(initPrev)
		if err != nil {
			return nil, fmt.Errorf("bootstrap draw: %w", err)
		}
		if !seedCase {
			continue
		}
		if err := p.becomeInfectious(i, 0, sched); err != nil {
			return nil, fmt.Errorf("bootstrap agent %d: %w", i, err)
		}
	}

	return p, nil
}

// N returns the population size.
func (p *Population) N() int {
	return p.n
}

func (p *Population) IsSusceptible(i int) bool { return p.susceptible[i] }
func (p *Population) IsExposed(i int) bool     { return p.exposed[i] }
func (p *Population) IsInfectious(i int) bool  { return p.infectious[i] }
func (p *Population) IsRecovered(i int) bool   { return p.recovered[i] }
func (p *Population) IsDead(i int) bool        { return p.dead[i] }

// MarkExposed flips agent i from susceptible to exposed and schedules
// the time at which it becomes infectious. Exposing an agent that is not
// susceptible returns ErrInvalidStateTransition.
func (p *Population) MarkExposed(i int, now float64, sched *Scheduler) error {
	if i < 0 || i >= p.n {
		return fmt.Errorf("agent index %d: %w", i, ErrInvalidParameter)
	}
	if !p.susceptible[i] {
		return fmt.Errorf("expose agent %d: not susceptible: %w", i, ErrInvalidStateTransition)
	}

	delay, err := sched.SampleIncubation()
	if err != nil {
		return fmt.Errorf("sample incubation: %w", err)
	}

	p.susceptible[i] = false
	p.exposed[i] = true
	p.infectiousAt[i] = now + delay
	return nil
}

// Flows tallies the transitions applied during one step.
type Flows struct {
	// Exposures counts susceptible -> exposed.
	Exposures int
	// Infections counts exposed -> infectious.
	Infections int
	// Recoveries counts infectious -> recovered.
	Recoveries int
	// Deaths counts infectious -> dead.
	Deaths int
}

func (f Flows) add(other Flows) Flows {
	f.Exposures += other.Exposures
	f.Infections += other.Infections
	f.Recoveries += other.Recoveries
	f.Deaths += other.Deaths
	return f
}

// AdvanceDue applies every transition due at or before now for agents in
// [lo, hi): exposed agents whose infectiousAt has passed become
// infectious, and infectious agents whose recoveredAt has passed recover
// or die per the scheduler's death draw.
//
// Both due sets are collected before either is applied, so an agent
// whose freshly sampled timer lands on the current step still moves at
// most one stage per call.
//
// The range bound lets the engine partition the scan across workers with
// disjoint writes; all draws come from the scheduler handed in, which
// must be owned by the calling worker.
func (p *Population) AdvanceDue(lo, hi int, now float64, sched *Scheduler) (Flows, error) {
	assert.Assertf(lo >= 0 && hi <= p.n && lo <= hi, "agent range [%d, %d) out of bounds", lo, hi)

	var dueExposed, dueInfectious []int
	for i := lo; i < hi; i++ {
		switch {
		case p.exposed[i] && p.infectiousAt[i] <= now:
			dueExposed = append(dueExposed, i)
		case p.infectious[i] && p.recoveredAt[i] <= now:
			dueInfectious = append(dueInfectious, i)
		}
	}

	var flows Flows
	for _, i := range dueExposed {
		if err := p.becomeInfectious(i, now, sched); err != nil {
			return flows, fmt.Errorf("agent %d: %w", i, err)
		}
		flows.Infections++
	}
	for _, i := range dueInfectious {
		dies, err := sched.DrawDeath()
		if err != nil {
			return flows, fmt.Errorf("agent %d death draw: %w", i, err)
		}

		p.infectious[i] = false
		p.recoveredAt[i] = math.NaN()
		if dies {
			p.dead[i] = true
			flows.Deaths++
		} else {
			p.recovered[i] = true
			flows.Recoveries++
		}
	}

	return flows, nil
}

func (p *Population) becomeInfectious(i int, now float64, sched *Scheduler) error {
	duration, err := sched.SampleInfectiousDuration()
	if err != nil {
		return fmt.Errorf("sample infectious duration: %w", err)
	}

	p.susceptible[i] = false
	p.exposed[i] = false
	p.infectiousAt[i] = math.NaN()
	p.infectious[i] = true
	p.recoveredAt[i] = now + duration
	return nil
}

// Counts is a snapshot of how many agents occupy each compartment.
type Counts struct {
	Susceptible int
	Exposed     int
	Infectious  int
	Recovered   int
	Dead        int
}

// Total returns the sum over all compartments. It equals the population
// size whenever the state invariants hold.
func (c Counts) Total() int {
	return c.Susceptible + c.Exposed + c.Infectious + c.Recovered + c.Dead
}

func (p *Population) Counts() Counts {
	var c Counts
	for i := range p.n {
		switch {
		case p.susceptible[i]:
			c.Susceptible++
		case p.exposed[i]:
			c.Exposed++
		case p.infectious[i]:
			c.Infectious++
		case p.recovered[i]:
			c.Recovered++
		case p.dead[i]:
			c.Dead++
		}
	}
	return c
}
