// Package cloud specifies the capability surface the scheduler programs
// against for remote/elastic worker pools: Provision, Terminate, and Status
// on a typed WorkerId. No concrete cloud SDK backs this package; it exists
// so a future remote-wave dispatch extension has a stable interface to
// build against, and so cloud/local has something to implement for tests.
// Reshaped from the teacher's workflow phase-state-machine vocabulary
// (valid-transition table, terminal/active classification) away from its
// websocket RPC transport into a plain Go interface.
package cloud

import (
	"context"
	"time"

	"github.com/google/uuid"

	"forge.evalgo.org/bldrerr"
)

// WorkerId uniquely names a provisioned remote worker.
type WorkerId string

// NewWorkerId mints a fresh WorkerId.
func NewWorkerId() WorkerId {
	return WorkerId(uuid.New().String())
}

// Phase is a worker's lifecycle state.
type Phase string

const (
	PhaseRequested    Phase = "requested"
	PhaseProvisioning Phase = "provisioning"
	PhaseRunning      Phase = "running"
	PhaseTerminating  Phase = "terminating"
	PhaseTerminated   Phase = "terminated"
	PhaseFailed       Phase = "failed"
)

// validTransitions mirrors the project's phase-state-machine idiom: a
// worker's status can only move forward along these edges.
var validTransitions = map[Phase][]Phase{
	PhaseRequested:    {PhaseProvisioning, PhaseFailed},
	PhaseProvisioning: {PhaseRunning, PhaseFailed},
	PhaseRunning:      {PhaseTerminating, PhaseFailed},
	PhaseTerminating:  {PhaseTerminated, PhaseFailed},
}

// IsTerminal reports whether p is a state the worker never leaves on its own.
func (p Phase) IsTerminal() bool {
	return p == PhaseTerminated || p == PhaseFailed
}

// CanTransitionTo reports whether p -> target is a legal move.
func (p Phase) CanTransitionTo(target Phase) bool {
	for _, allowed := range validTransitions[p] {
		if allowed == target {
			return true
		}
	}
	return false
}

// WorkerInfo is a point-in-time snapshot of a provisioned worker.
type WorkerInfo struct {
	Id        WorkerId
	Phase     Phase
	Labels    map[string]string
	StartedAt time.Time
}

// Provider is the capability interface a remote worker backend implements:
// provision a new worker matching labels, terminate one by id, and query
// its current phase.
type Provider interface {
	Provision(ctx context.Context, labels map[string]string) (WorkerId, error)
	Terminate(ctx context.Context, id WorkerId) error
	Status(ctx context.Context, id WorkerId) (WorkerInfo, error)
}

// ErrUnknownWorker is returned by Status/Terminate for an id the provider
// never provisioned or has already forgotten.
var ErrUnknownWorker = bldrerr.New(bldrerr.KindConfig, "unknown worker id")
