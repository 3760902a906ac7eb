// Package scheduler implements the coordinator/worker execution loop: a
// single coordinator loop hands waves of ready nodes to a bounded pool of
// workers, which consult the cache, invoke the sandbox executor, and report
// back for the coordinator to re-evaluate readiness. Adapted from the
// project's generic worker-pool idiom (queue, JobProcessor, start/stop),
// generalized from opaque jobs to typed BuildNodes.
package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"forge.evalgo.org/bldrerr"
	"forge.evalgo.org/cache"
	"forge.evalgo.org/cas"
	"forge.evalgo.org/common"
	"forge.evalgo.org/graph"
	"forge.evalgo.org/sandbox"
	"forge.evalgo.org/telemetry"
)

// FailureMode selects how the coordinator reacts to the first Failed node.
type FailureMode int

const (
	// KeepGoing is the default: continue scheduling nodes whose dependencies
	// succeeded; nodes transitively dependent on a failure are skipped.
	KeepGoing FailureMode = iota
	// FailFast cancels the run on the first Failed node.
	FailFast
)

// Config configures a Coordinator.
type Config struct {
	Workers            int
	Failure            FailureMode
	CheckpointInterval time.Duration
}

// DefaultConfig mirrors the worker pool's DefaultConfig idiom: sensible
// defaults a caller can override field by field.
func DefaultConfig() Config {
	return Config{
		Workers:            4,
		Failure:            KeepGoing,
		CheckpointInterval: 5 * time.Second,
	}
}

// ActionBuilder produces the sandbox.Spec and shell command for a node; the
// scheduler is otherwise agnostic to how a target's command line is
// derived from its Target.Config.
type ActionBuilder func(n *graph.BuildNode) (*sandbox.Spec, []string, error)

// CheckpointFunc is invoked (throttled to Config.CheckpointInterval) after
// any node status change, and always once more on run completion or
// failure.
type CheckpointFunc func(g *graph.BuildGraph)

// Coordinator runs a BuildGraph to completion using a bounded worker pool.
type Coordinator struct {
	Graph      *graph.BuildGraph
	Cache      *cache.Coordinator
	Blobs      *cas.Store
	Executor   sandbox.Executor
	Build      ActionBuilder
	Publish    telemetry.Publisher
	Checkpoint CheckpointFunc

	cfg   Config
	log   *common.ContextLogger
	runID string

	cancelled atomic.Bool
	lastCkpt  atomic.Int64 // unix nanos of last checkpoint write
}

// recordFirstErr retains only the first error reported across concurrent
// workers, matching errors.Join-free simplicity since the scheduler only
// needs "did anything fail" plus one representative cause.
type recordFirstErr struct {
	mu  sync.Mutex
	err error
}

func (r *recordFirstErr) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// New constructs a Coordinator. publish and checkpoint may be nil.
func New(g *graph.BuildGraph, cacheCo *cache.Coordinator, blobs *cas.Store, exec sandbox.Executor, build ActionBuilder, publish telemetry.Publisher, checkpoint CheckpointFunc, cfg Config) *Coordinator {
	if publish == nil {
		publish = telemetry.PublisherFunc(func(telemetry.Event) {})
	}
	runID := uuid.NewString()
	return &Coordinator{
		Graph:      g,
		Cache:      cacheCo,
		Blobs:      blobs,
		Executor:   exec,
		Build:      build,
		Publish:    publish,
		Checkpoint: checkpoint,
		cfg:        cfg,
		log:        common.ServiceLogger("forge-scheduler", "v1").WithRun(runID),
		runID:      runID,
	}
}

// Cancel sets the global cancellation flag; new dispatches stop, nodes
// already Building are left to finish naturally.
func (co *Coordinator) Cancel() {
	co.cancelled.Store(true)
}

type nodeResult struct {
	id     graph.TargetId
	err    error
	cached bool
}

// Run executes the graph to completion: dispatch waves of ready nodes to up
// to cfg.Workers concurrent workers until the ready queue is empty and no
// node is Building.
func (co *Coordinator) Run(ctx context.Context) error {
	co.log.WithField("workers", co.cfg.Workers).Info("build run started")
	co.Publish.Publish(telemetry.New(telemetry.TypeGraphBuildStarted, telemetry.CategoryProgress, nil))
	// The checkpoint interval is measured from the start of the run.
	co.lastCkpt.Store(time.Now().UnixNano())

	results := make(chan nodeResult, co.cfg.Workers)
	var active atomic.Int32
	var errs recordFirstErr

	for {
		if ctx.Err() != nil || co.cancelled.Load() {
			if active.Load() == 0 {
				break
			}
		} else {
			ready := co.Graph.GetReadyNodes()
			sortDeeperFirst(ready)

			slots := co.cfg.Workers - int(active.Load())
			for i := 0; i < len(ready) && i < slots; i++ {
				n := ready[i]
				n.SetStatus(graph.StatusBuilding)
				active.Add(1)
				go co.runWorker(ctx, n, results)
			}
		}

		if active.Load() == 0 && len(co.Graph.GetReadyNodes()) == 0 {
			break
		}

		select {
		case res := <-results:
			active.Add(-1)
			co.handleResult(res, &errs)
			co.maybeCheckpoint(false)
		case <-time.After(50 * time.Millisecond):
			// periodic wakeup so cancellation/context expiry is noticed even
			// with no in-flight worker about to report.
		}
	}

	co.maybeCheckpoint(true)
	co.Publish.Publish(telemetry.New(telemetry.TypeGraphBuildCompleted, telemetry.CategoryProgress, nil))

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errs.err
}

func (co *Coordinator) handleResult(res nodeResult, errs *recordFirstErr) {
	n := co.Graph.Node(res.id)
	if res.err != nil {
		n.SetStatus(graph.StatusFailed)
		co.Publish.Publish(telemetry.New(telemetry.TypeTargetFailed, telemetry.CategoryError, map[string]any{
			"target": string(res.id), "error": res.err.Error(),
		}))
		skipped := co.Graph.MarkSkipped()
		if len(skipped) > 0 {
			co.log.WithField("count", len(skipped)).Info("skipped nodes downstream of a failure")
		}
		errs.record(bldrerr.Wrap(bldrerr.KindBuild, res.err, "target "+string(res.id)+" failed"))
		if co.cfg.Failure == FailFast {
			co.Cancel()
		}
		return
	}

	if res.cached {
		n.SetStatus(graph.StatusCached)
	} else {
		n.SetStatus(graph.StatusSuccess)
	}
	co.Publish.Publish(telemetry.New(telemetry.TypeTargetCompleted, telemetry.CategoryProgress, map[string]any{
		"target": string(res.id), "cached": res.cached,
	}))
}

// runWorker is one worker's full cycle for node n (spec.md §4.H step 2):
// target-cache lookup (materializing outputs from CAS on a hit), an
// action-cache lookup covering the node's single build command, then
// invoking the sandbox executor and committing fresh outputs to the CAS.
func (co *Coordinator) runWorker(ctx context.Context, n *graph.BuildNode, results chan<- nodeResult) {
	tlog := co.log.WithTarget(string(n.Id()))
	co.Publish.Publish(telemetry.New(telemetry.TypeTargetStarted, telemetry.CategoryProgress, map[string]any{"target": string(n.Id())}))

	depHashes := make(map[graph.TargetId]string, len(n.Dependencies()))
	for _, dep := range n.Dependencies() {
		if depNode := co.Graph.Node(dep); depNode != nil {
			depHashes[dep] = depNode.Hash()
		}
	}

	if co.Cache != nil {
		hit, err := co.Cache.IsCached(n.Id(), n.Target.Sources, depHashes)
		if err != nil {
			results <- nodeResult{id: n.Id(), err: err}
			return
		}
		if hit {
			tlog.WithPhase("cache-lookup").Info("target cache hit")
			if err := co.materializeOutputs(n.Id()); err != nil {
				results <- nodeResult{id: n.Id(), err: err}
				return
			}
			results <- nodeResult{id: n.Id(), cached: true}
			return
		}
		tlog.WithPhase("cache-lookup").Debug("target cache miss")
	}

	spec, command, err := co.Build(n)
	if err != nil {
		results <- nodeResult{id: n.Id(), err: err}
		return
	}

	// §4.B/§4.D: the Action Cache covers a single sub-step keyed by the
	// action's own metadata (here, the spec's determinism key) and the
	// existence of its declared outputs on disk. Until a language handler
	// decomposes a target into multiple compile/link/codegen sub-steps,
	// each node maps to exactly one action.
	actionId := cache.ActionId{TargetId: n.Id(), Kind: cache.ActionBuild, InputHash: combinedDepHash(depHashes)}
	actionMeta := map[string]string{"determinism": spec.DeterminismKey()}

	if co.Cache != nil {
		actionHit, err := co.Cache.IsActionCached(actionId, actionMeta)
		if err != nil {
			results <- nodeResult{id: n.Id(), err: err}
			return
		}
		if actionHit {
			tlog.WithPhase("action-cache").Info("action cache hit, skipping execution")
			outputBlobs, buildHash, err := co.commitOutputsToCAS(spec)
			if err != nil {
				results <- nodeResult{id: n.Id(), err: err}
				return
			}
			n.SetHash(buildHash)
			if err := co.Cache.Update(n.Id(), n.Target.Sources, depHashes, buildHash, outputBlobs); err != nil {
				results <- nodeResult{id: n.Id(), err: err}
				return
			}
			results <- nodeResult{id: n.Id(), cached: true}
			return
		}
	}

	tlog.WithPhase("execute").Debug("invoking sandbox executor")
	out, err := co.Executor.Execute(ctx, spec, command, "")
	if err != nil {
		results <- nodeResult{id: n.Id(), err: err}
		return
	}
	if out.ExitCode != 0 {
		if co.Cache != nil {
			co.Cache.RecordAction(actionId, spec.Outputs.Paths(), actionMeta, false)
		}
		tlog.WithPhase("execute").WithField("exit_code", out.ExitCode).Warn("build command failed")
		results <- nodeResult{id: n.Id(), err: bldrerr.New(bldrerr.KindBuild, "command exited "+strconv.Itoa(out.ExitCode))}
		return
	}

	outputBlobs, buildHash, err := co.commitOutputsToCAS(spec)
	if err != nil {
		results <- nodeResult{id: n.Id(), err: err}
		return
	}
	n.SetHash(buildHash)
	tlog.WithPhase("commit").WithField("blobs", len(outputBlobs)).Info("committed build outputs to CAS")

	if co.Cache != nil {
		co.Cache.RecordAction(actionId, spec.Outputs.Paths(), actionMeta, true)
		if err := co.Cache.Update(n.Id(), n.Target.Sources, depHashes, buildHash, outputBlobs); err != nil {
			results <- nodeResult{id: n.Id(), err: err}
			return
		}
	}

	results <- nodeResult{id: n.Id()}
}

// combinedDepHash folds a node's dependency build hashes into a single
// stable string for use as an ActionId's InputHash, in lieu of a
// language-handler-provided per-action input hash.
func combinedDepHash(depHashes map[graph.TargetId]string) string {
	ids := make([]string, 0, len(depHashes))
	for id := range depHashes {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	var buf bytes.Buffer
	for _, id := range ids {
		fmt.Fprintf(&buf, "%s=%s\n", id, depHashes[id])
	}
	return cas.Hash(buf.Bytes())
}

// commitOutputsToCAS reads every path spec declares as an output, writes it
// into the blob store (when one is configured), and returns the per-path
// blob-hash map alongside a single combined build hash derived from the
// output manifest — never from command stdout, so the hash reflects what
// downstream targets actually depend on (spec.md §4.H step 2b).
func (co *Coordinator) commitOutputsToCAS(spec *sandbox.Spec) (map[string]string, string, error) {
	paths := spec.Outputs.Paths()
	outputBlobs := make(map[string]string, len(paths))

	var manifest bytes.Buffer
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, "", bldrerr.Wrap(bldrerr.KindBuild, err, "reading build output "+p)
		}
		hash := cas.Hash(data)
		if co.Blobs != nil {
			stored, err := co.Blobs.Put(data)
			if err != nil {
				return nil, "", err
			}
			hash = stored
			outputBlobs[p] = hash
		}
		fmt.Fprintf(&manifest, "%s=%s\n", p, hash)
	}
	return outputBlobs, cas.Hash(manifest.Bytes()), nil
}

// materializeOutputs restores a target's output files from the CAS on a
// target-cache hit (spec.md §4.H step 2a). A no-op when no CAS handle is
// configured, or when the hit target was built without one.
func (co *Coordinator) materializeOutputs(id graph.TargetId) error {
	if co.Blobs == nil {
		return nil
	}
	outputBlobs, ok := co.Cache.OutputBlobs(id)
	if !ok {
		return nil
	}
	for path, hash := range outputBlobs {
		data, err := co.Blobs.Get(hash)
		if err != nil {
			return bldrerr.Wrap(bldrerr.KindIntegrity, err, "materializing cached output "+path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return bldrerr.Wrap(bldrerr.KindSystem, err, "creating directory for materialized output "+path)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return bldrerr.Wrap(bldrerr.KindSystem, err, "writing materialized output "+path)
		}
	}
	return nil
}

func (co *Coordinator) maybeCheckpoint(force bool) {
	if co.Checkpoint == nil {
		return
	}
	now := time.Now().UnixNano()
	last := co.lastCkpt.Load()
	if !force && time.Duration(now-last) < co.cfg.CheckpointInterval {
		return
	}
	co.lastCkpt.Store(now)
	co.Checkpoint(co.Graph)
}

// sortDeeperFirst orders ready nodes by descending depth, per §4.H's
// "prefers deeper-first" dispatch rule (deeper nodes sit further from the
// leaves of the remaining work and are more likely to unblock long chains).
func sortDeeperFirst(nodes []*graph.BuildNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Depth > nodes[j].Depth })
}
