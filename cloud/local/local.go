// Package local implements an in-memory cloud.Provider used by tests and
// by any scheduler run that has no real cloud backend configured: workers
// are never actually spawned, only tracked through the same Phase
// vocabulary a real provider would report.
package local

import (
	"context"
	"sync"

	"forge.evalgo.org/cloud"
)

// Provider is a cloud.Provider that tracks worker phases purely in memory.
type Provider struct {
	mu      sync.Mutex
	workers map[cloud.WorkerId]cloud.WorkerInfo
}

// New constructs an empty Provider.
func New() *Provider {
	return &Provider{workers: make(map[cloud.WorkerId]cloud.WorkerInfo)}
}

// Provision registers a new worker immediately in PhaseRunning; there is no
// real provisioning latency to simulate for the local stub.
func (p *Provider) Provision(ctx context.Context, labels map[string]string) (cloud.WorkerId, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := cloud.NewWorkerId()
	p.workers[id] = cloud.WorkerInfo{
		Id:     id,
		Phase:  cloud.PhaseRunning,
		Labels: labels,
	}
	return id, nil
}

// Terminate walks id through PhaseTerminating to PhaseTerminated; the local
// stub has no asynchronous teardown to wait for, so both legal transitions
// happen within this call.
func (p *Provider) Terminate(ctx context.Context, id cloud.WorkerId) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, ok := p.workers[id]
	if !ok {
		return cloud.ErrUnknownWorker
	}
	if info.Phase.IsTerminal() {
		return nil
	}
	if info.Phase.CanTransitionTo(cloud.PhaseTerminating) {
		info.Phase = cloud.PhaseTerminating
	}
	if info.Phase.CanTransitionTo(cloud.PhaseTerminated) {
		info.Phase = cloud.PhaseTerminated
	}
	p.workers[id] = info
	return nil
}

// Status returns the worker's current snapshot.
func (p *Provider) Status(ctx context.Context, id cloud.WorkerId) (cloud.WorkerInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, ok := p.workers[id]
	if !ok {
		return cloud.WorkerInfo{}, cloud.ErrUnknownWorker
	}
	return info, nil
}
