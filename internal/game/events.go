package game

// MinEventGap is the number of turns after an event during which no new event fires
const MinEventGap = 3

// EventProbability returns the chance of a proactive event for a gap in turns
func EventProbability(gap int) float64 {
	switch {
	case gap < MinEventGap:
		return 0
	case gap <= 4:
		return 0.10
	case gap <= 6:
		return 0.20
	case gap <= 8:
		return 0.30
	default:
		return 0.40
	}
}

// EventPolicy decides whether a turn may carry a proactive world event
type EventPolicy struct {
	rng Randomizer
}

// NewEventPolicy creates an event policy; a nil rng uses the global source
func NewEventPolicy(rng Randomizer) *EventPolicy {
	if rng == nil {
		rng = globalRand{}
	}
	return &EventPolicy{rng: rng}
}

// ShouldTrigger draws once against the probability for the current gap.
// lastEventTurn is 0 when the adventure never had an event.
func (p *EventPolicy) ShouldTrigger(currentTurn, lastEventTurn int) bool {
	prob := EventProbability(currentTurn - lastEventTurn)
	if prob <= 0 {
		return false
	}
	return p.rng.Float64() < prob
}
