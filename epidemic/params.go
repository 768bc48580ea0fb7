package epidemic

import "fmt"

// Parameters holds the disease configuration for a simulation. It is
// set once at engine construction and never mutated afterwards.
type Parameters struct {
	// InitPrevalence is the probability that an agent starts out
	// infectious when the population is bootstrapped.
	InitPrevalence float64
	// TransmissionProbability is the chance that a single contact
	// between a susceptible and an infectious agent results in
	// exposure.
	TransmissionProbability float64
	// MeanIncubation is the mean of the exponential incubation
	// duration, in steps.
	MeanIncubation float64
	// MeanInfectious is the mean of the exponential infectious
	// duration, in steps.
	MeanInfectious float64
	// DeathProbability is the chance that an agent dies instead of
	// recovering when its infectious period ends.
	DeathProbability float64
}

func (p Parameters) Validate() error {
	probabilities := []struct {
		name  string
		value float64
	}{
		{"init prevalence", p.InitPrevalence},
		{"transmission probability", p.TransmissionProbability},
		{"death probability", p.DeathProbability},
	}
	for _, prob := range probabilities {
		if !(prob.value >= 0 && prob.value <= 1) {
			return fmt.Errorf("%s %v: %w", prob.name, prob.value, ErrInvalidParameter)
		}
	}

	if !(p.MeanIncubation > 0) {
		return fmt.Errorf("mean incubation %v: %w", p.MeanIncubation, ErrInvalidParameter)
	}
	if !(p.MeanInfectious > 0) {
		return fmt.Errorf("mean infectious %v: %w", p.MeanInfectious, ErrInvalidParameter)
	}

	return nil
}
