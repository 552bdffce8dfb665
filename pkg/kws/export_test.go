package kws

// Observe feeds one probability vector straight into the spotter's engine
// callback, bypassing the engine loop.
func (s *Spotter) Observe(probs []float64) { s.observe(probs) }

// QueueLen reports the number of currently queued detection events.
func (s *Spotter) QueueLen() int { return len(s.events) }
