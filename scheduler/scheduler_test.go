package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge.evalgo.org/cache"
	"forge.evalgo.org/cache/eviction"
	"forge.evalgo.org/cas"
	"forge.evalgo.org/graph"
	"forge.evalgo.org/sandbox"
)

func mkTarget(id graph.TargetId, deps ...graph.TargetId) *graph.Target {
	return &graph.Target{Name: id, Kind: graph.KindCustom, Dependencies: deps}
}

// chainGraph builds a -> b -> c (b and c depend on the thing before them).
func chainGraph(t *testing.T) *graph.BuildGraph {
	t.Helper()
	g := graph.New(graph.Strict)
	_, err := g.AddTarget(mkTarget("a"))
	require.NoError(t, err)
	_, err = g.AddTarget(mkTarget("b"))
	require.NoError(t, err)
	_, err = g.AddTarget(mkTarget("c"))
	require.NoError(t, err)
	require.NoError(t, g.AddDependencyById("b", "a"))
	require.NoError(t, g.AddDependencyById("c", "b"))
	return g
}

func alwaysSucceed(n *graph.BuildNode) (*sandbox.Spec, []string, error) {
	spec, err := sandbox.NewBuilder("true", "/tmp").Build()
	if err != nil {
		return nil, nil, err
	}
	return spec, []string{"echo", string(n.Id())}, nil
}

func TestRunBuildsLinearChainToSuccess(t *testing.T) {
	g := chainGraph(t)
	co := New(g, nil, nil, sandbox.NoopExecutor{}, alwaysSucceed, nil, nil, DefaultConfig())

	err := co.Run(context.Background())
	require.NoError(t, err)

	for _, id := range []graph.TargetId{"a", "b", "c"} {
		assert.Equal(t, graph.StatusSuccess, g.Node(id).Status())
	}
}

func TestRunUsesCacheCoordinatorForHit(t *testing.T) {
	g := graph.New(graph.Strict)
	_, err := g.AddTarget(mkTarget("only"))
	require.NoError(t, err)

	cacheCo := cache.NewCoordinator(eviction.Params{}, eviction.Params{}, nil, nil)
	// Prime the cache so the first lookup is a hit.
	require.NoError(t, cacheCo.Update("only", nil, nil, "deadbeef", nil))

	co := New(g, cacheCo, nil, sandbox.NoopExecutor{}, alwaysSucceed, nil, nil, DefaultConfig())
	require.NoError(t, co.Run(context.Background()))

	assert.Equal(t, graph.StatusCached, g.Node("only").Status())
}

func TestRunWritesOutputsToCASAndMaterializesOnCacheHit(t *testing.T) {
	dir := t.TempDir()
	outputPath := filepath.Join(dir, "out.txt")

	blobs, err := cas.Open(filepath.Join(dir, "cas-root"))
	require.NoError(t, err)
	cacheCo := cache.NewCoordinator(eviction.Params{}, eviction.Params{}, blobs, nil)

	build := func(n *graph.BuildNode) (*sandbox.Spec, []string, error) {
		spec, err := sandbox.NewBuilder("sh", "/tmp").Output(outputPath).Build()
		if err != nil {
			return nil, nil, err
		}
		return spec, []string{"sh", "-c", "echo built-content > " + outputPath}, nil
	}

	g := graph.New(graph.Strict)
	_, err = g.AddTarget(mkTarget("only"))
	require.NoError(t, err)
	co := New(g, cacheCo, blobs, sandbox.NoopExecutor{}, build, nil, nil, DefaultConfig())
	require.NoError(t, co.Run(context.Background()))
	require.Equal(t, graph.StatusSuccess, g.Node("only").Status())

	written, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.NoError(t, os.Remove(outputPath))

	// Simulate a fresh invocation against the same workspace: a new graph
	// (fresh node status) but the same cache coordinator, as if loaded from
	// the persisted cache.bin/CAS on disk.
	g2 := graph.New(graph.Strict)
	_, err = g2.AddTarget(mkTarget("only"))
	require.NoError(t, err)
	co2 := New(g2, cacheCo, blobs, sandbox.NoopExecutor{}, build, nil, nil, DefaultConfig())
	require.NoError(t, co2.Run(context.Background()))

	assert.Equal(t, graph.StatusCached, g2.Node("only").Status())
	materialized, err := os.ReadFile(outputPath)
	require.NoError(t, err, "cache hit must materialize the output from the CAS")
	assert.Equal(t, written, materialized)
}

func TestRunMarksDownstreamSkippedOnFailure(t *testing.T) {
	g := chainGraph(t)
	build := func(n *graph.BuildNode) (*sandbox.Spec, []string, error) {
		spec, err := sandbox.NewBuilder("true", "/tmp").Build()
		if err != nil {
			return nil, nil, err
		}
		if n.Id() == "a" {
			return spec, []string{"sh", "-c", "exit 1"}, nil
		}
		return spec, []string{"echo", string(n.Id())}, nil
	}

	co := New(g, nil, nil, sandbox.NoopExecutor{}, build, nil, nil, DefaultConfig())
	err := co.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, graph.StatusFailed, g.Node("a").Status())
	assert.Equal(t, graph.StatusSkipped, g.Node("b").Status())
	assert.Equal(t, graph.StatusSkipped, g.Node("c").Status())
}

func TestRunFailFastCancelsRemainingWork(t *testing.T) {
	g := graph.New(graph.Strict)
	_, err := g.AddTarget(mkTarget("fails"))
	require.NoError(t, err)
	_, err = g.AddTarget(mkTarget("independent"))
	require.NoError(t, err)

	build := func(n *graph.BuildNode) (*sandbox.Spec, []string, error) {
		spec, err := sandbox.NewBuilder("true", "/tmp").Build()
		if err != nil {
			return nil, nil, err
		}
		if n.Id() == "fails" {
			return spec, []string{"sh", "-c", "exit 1"}, nil
		}
		// Give the failing node a head start so FailFast has a chance to
		// cancel before this one is dispatched.
		time.Sleep(20 * time.Millisecond)
		return spec, []string{"echo", "ok"}, nil
	}

	cfg := DefaultConfig()
	cfg.Failure = FailFast
	cfg.Workers = 1
	co := New(g, nil, nil, sandbox.NoopExecutor{}, build, nil, nil, cfg)

	err = co.Run(context.Background())
	require.Error(t, err)
}

func TestMaybeCheckpointThrottlesUnlessForced(t *testing.T) {
	g := chainGraph(t)
	var mu sync.Mutex
	calls := 0
	cfg := DefaultConfig()
	cfg.CheckpointInterval = time.Hour

	co := New(g, nil, nil, sandbox.NoopExecutor{}, alwaysSucceed, nil, func(*graph.BuildGraph) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, cfg)

	require.NoError(t, co.Run(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	// Exactly one forced checkpoint at the end; the long interval suppresses
	// every per-result checkpoint along the way.
	assert.Equal(t, 1, calls)
}

func TestSortDeeperFirstOrdersByDescendingDepth(t *testing.T) {
	g := chainGraph(t)
	nodes := []*graph.BuildNode{g.Node("a"), g.Node("b"), g.Node("c")}
	sortDeeperFirst(nodes)
	for i := 1; i < len(nodes); i++ {
		assert.GreaterOrEqual(t, nodes[i-1].Depth, nodes[i].Depth)
	}
}
