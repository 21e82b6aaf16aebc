// Package coordinator advances every agent's flight state on a fixed tick,
// turns inbound commands into registry mutations and motion requests, and
// publishes per-tick feedback.
//
// Ownership boundary:
// - flight state machine (Tick)
// - command dispatcher (Dispatch)
// - land-and-regroup transaction (LandAndRegroup)
// - worker pool and tick scheduling (Run)
package coordinator
