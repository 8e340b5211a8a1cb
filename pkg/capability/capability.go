// Package capability defines the contract the orchestrator uses to manage
// every collector capability uniformly, independent of wire protocol.
package capability

import "context"

// Status is a capability's point-in-time lifecycle and counter snapshot.
type Status struct {
	Name     string
	Running  bool
	Host     string
	Port     int
	Ingested uint64
	Dropped  uint64
}

// Capability abstracts a collector behind start/stop/status so the
// orchestrator never needs to know the underlying wire protocol.
type Capability interface {
	// Name returns the capability's registered name.
	Name() string

	// Status returns a snapshot of the capability's current state.
	Status() Status

	// Start begins collection at host:port. Port 0 selects an ephemeral
	// port. Starting an already-running capability is a no-op.
	Start(ctx context.Context, host string, port int) error

	// Stop halts collection. Stopping an already-stopped capability is a
	// no-op.
	Stop() error
}
