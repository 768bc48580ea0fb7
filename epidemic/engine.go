// Package epidemic implements a stochastic agent-based SEIR model with
// death. Agents live in columnar population state and move through
// susceptible -> exposed -> infectious -> recovered | dead, driven by a
// discrete-time engine, seeded random streams, and an injected contact
// model.
package epidemic

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/tifye/kansen/assert"
	"github.com/tifye/kansen/rng"
)

// Config describes one simulation.
type Config struct {
	PopulationSize int
	Parameters     Parameters

	// Seed1 and Seed2 seed the master random stream. Identical seeds,
	// config, and contact sequences reproduce a run exactly.
	Seed1 uint64
	Seed2 uint64

	// Workers is the number of goroutines used to advance due
	// transitions each step. Every worker owns a fixed range of agent
	// indexes and a stream forked from the master seeds, so runs
	// remain reproducible for a given worker count. Values below 1
	// are treated as 1.
	Workers int
}

// StepResult reports the population after one completed step, together
// with the transitions that step applied.
type StepResult struct {
	// Time is the clock value the step ran at, before the clock
	// advanced.
	Time   float64
	Counts Counts
	Flows  Flows
}

// Engine owns the simulation clock and drives the step loop. After
// every completed step the population state invariants hold: each agent
// occupies exactly one compartment and timers are live only in the
// states they belong to.
type Engine struct {
	logger *log.Logger
	params Parameters

	pop *Population

	// rnd is the master stream: bootstrap, transmission, and
	// incubation draws all happen on it, sequentially.
	rnd   *rng.Stream
	sched *Scheduler
	// partSched holds one scheduler per worker partition, each over
	// its own forked stream.
	partSched []*Scheduler

	contacts ContactSampler

	now   float64
	ready bool
}

// NewEngine validates the config and bootstraps the population. The
// returned engine cannot step until Initialize binds a contact sampler.
func NewEngine(logger *log.Logger, cfg Config) (*Engine, error) {
	assert.AssertNotNil(logger)

	if cfg.PopulationSize <= 0 {
		return nil, fmt.Errorf("population size %d: %w", cfg.PopulationSize, ErrInvalidParameter)
	}
	if err := cfg.Parameters.Validate(); err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}

	workers := max(cfg.Workers, 1)
	workers = min(workers, cfg.PopulationSize)

	rnd := rng.New(cfg.Seed1, cfg.Seed2)
	sched := NewScheduler(cfg.Parameters, rnd)

	pop, err := NewPopulation(cfg.PopulationSize, cfg.Parameters.InitPrevalence, rnd, sched)
	if err != nil {
		return nil, fmt.Errorf("bootstrap population: %w", err)
	}

	partSched := make([]*Scheduler, workers)
	for i := range partSched {
		partSched[i] = NewScheduler(cfg.Parameters, rnd.Fork(uint64(i)+1))
	}

	logger.Debug("engine constructed",
		"population", cfg.PopulationSize,
		"seed1", cfg.Seed1, "seed2", cfg.Seed2,
		"workers", workers,
	)

	return &Engine{
		logger: logger,
		params: cfg.Parameters,

		pop: pop,

		rnd:       rnd,
		sched:     sched,
		partSched: partSched,
	}, nil
}

// Initialize binds the contact model and makes the engine runnable.
func (e *Engine) Initialize(sampler ContactSampler) error {
	if sampler == nil {
		return fmt.Errorf("contact sampler is nil: %w", ErrInvalidParameter)
	}
	e.contacts = sampler
	e.ready = true
	return nil
}

// Population exposes the columnar state for contact models and
// observation. Callers must not mutate it.
func (e *Engine) Population() *Population {
	return e.pop
}

// Now returns the current clock value.
func (e *Engine) Now() float64 {
	return e.now
}

// Counts returns the current compartment occupancy.
func (e *Engine) Counts() Counts {
	return e.pop.Counts()
}

// Step advances the simulation by one time unit: due transitions are
// applied first, then new exposures from the current contact batch, then
// the clock moves.
func (e *Engine) Step() (StepResult, error) {
	if !e.ready {
		return StepResult{}, ErrNotInitialized
	}

	flows, err := e.advanceDue()
	if err != nil {
		return StepResult{}, err
	}

	flows.Exposures, err = e.applyContacts()
	if err != nil {
		return StepResult{}, err
	}

	res := StepResult{
		Time:   e.now,
		Counts: e.pop.Counts(),
		Flows:  flows,
	}
	e.now++

	e.logger.Debug("step",
		"t", res.Time,
		"s", res.Counts.Susceptible,
		"e", res.Counts.Exposed,
		"i", res.Counts.Infectious,
		"r", res.Counts.Recovered,
		"d", res.Counts.Dead,
	)
	return res, nil
}

// Run invokes Step exactly numSteps times and returns the per-step
// results in order. The engine does not stop early when the epidemic
// goes extinct; callers wanting that must inspect the counts.
//
// Cancellation is only honored between steps. A step either runs to
// completion or does not start.
func (e *Engine) Run(ctx context.Context, numSteps int) ([]StepResult, error) {
	if !e.ready {
		return nil, ErrNotInitialized
	}
	if numSteps < 0 {
		return nil, fmt.Errorf("numSteps %d: %w", numSteps, ErrInvalidParameter)
	}

	e.logger.Info("run started", "steps", numSteps, "t", e.now)

	results := make([]StepResult, 0, numSteps)
	for range numSteps {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := e.Step()
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	e.logger.Info("run finished", "steps", numSteps, "t", e.now)
	return results, nil
}

func (e *Engine) advanceDue() (Flows, error) {
	n := e.pop.N()
	workers := len(e.partSched)
	if workers == 1 {
		return e.pop.AdvanceDue(0, n, e.now, e.partSched[0])
	}

	flows := make([]Flows, workers)
	var g errgroup.Group
	for p := range workers {
		lo := p * n / workers
		hi := (p + 1) * n / workers
		sched := e.partSched[p]
		g.Go(func() error {
			f, err := e.pop.AdvanceDue(lo, hi, e.now, sched)
			flows[p] = f
			return err
		})
	}
	// The clock must not move until every partition is done, so this
	// wait doubles as the per-step barrier.
	if err := g.Wait(); err != nil {
		return Flows{}, err
	}

	var total Flows
	for _, f := range flows {
		total = total.add(f)
	}
	return total, nil
}

func (e *Engine) applyContacts() (int, error) {
	exposures := 0
	for c := range e.contacts.ContactsAt(e.now) {
		if c.Susceptible < 0 || c.Susceptible >= e.pop.N() {
			return exposures, fmt.Errorf("contact pair susceptible index %d: %w", c.Susceptible, ErrInvalidParameter)
		}
		// Re-check right before the draw: an agent already exposed
		// earlier in this batch is skipped, not exposed twice.
		if !e.pop.IsSusceptible(c.Susceptible) {
			continue
		}

		transmit, err := e.rnd.Bernoulli(e.params.TransmissionProbability)
		if err != nil {
			return exposures, fmt.Errorf("transmission draw: %w", err)
		}
		if !transmit {
			continue
		}

		if err := e.pop.MarkExposed(c.Susceptible, e.now, e.sched); err != nil {
			return exposures, fmt.Errorf("expose agent %d: %w", c.Susceptible, err)
		}
		exposures++
	}
	return exposures, nil
}
