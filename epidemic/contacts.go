package epidemic

import "iter"

// Contact pairs a susceptible agent with an infectious agent that may
// transmit to it during the current step.
type Contact struct {
	Susceptible int
	Infectious  int
}

// ContactSampler supplies the contact pairs eligible for transmission at
// a given time. It is the injection point for whatever mixing or network
// structure a caller wants; the engine only requires that each call
// yields a finite sequence, possibly empty.
//
// Pair order carries no epidemiological meaning. It only fixes the order
// of transmission draws, which matters for reproducibility.
type ContactSampler interface {
	ContactsAt(now float64) iter.Seq[Contact]
}
