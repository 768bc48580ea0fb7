// Package contact provides contact models that satisfy the engine's
// ContactSampler interface. Anything producing (susceptible, infectious)
// pairs per step is pluggable; this package ships a simple random-mixing
// model for runners and tests.
package contact

import (
	"fmt"
	"iter"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tifye/kansen/assert"
	"github.com/tifye/kansen/epidemic"
	"github.com/tifye/kansen/rng"
)

// UniformMixer models a homogeneously mixed population: each step every
// infectious agent contacts a Poisson-distributed number of partners
// drawn uniformly from the whole population. Only pairs whose target is
// currently susceptible are yielded.
//
// The mixer draws from its own stream, so plugging a different contact
// model into the engine does not perturb the engine's draw sequence.
type UniformMixer struct {
	pop *epidemic.Population
	rnd *rng.Stream

	numContacts distuv.Poisson
}

func NewUniformMixer(pop *epidemic.Population, rnd *rng.Stream, meanContacts float64) (*UniformMixer, error) {
	assert.AssertNotNil(pop)
	assert.AssertNotNil(rnd)

	if !(meanContacts > 0) {
		return nil, fmt.Errorf("mean contacts %v: %w", meanContacts, epidemic.ErrInvalidParameter)
	}

	return &UniformMixer{
		pop: pop,
		rnd: rnd,

		numContacts: distuv.Poisson{Lambda: meanContacts, Src: rnd},
	}, nil
}

func (m *UniformMixer) ContactsAt(now float64) iter.Seq[epidemic.Contact] {
	return func(yield func(epidemic.Contact) bool) {
		n := m.pop.N()
		for i := range n {
			if !m.pop.IsInfectious(i) {
				continue
			}

			k := int(m.numContacts.Rand())
			for range k {
				j := m.rnd.IntN(n)
				if j == i || !m.pop.IsSusceptible(j) {
					continue
				}
				if !yield(epidemic.Contact{Susceptible: j, Infectious: i}) {
					return
				}
			}
		}
	}
}
