package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge.evalgo.org/graph"
)

func buildFourTargetGraph(t *testing.T) *graph.BuildGraph {
	t.Helper()
	g := graph.New(graph.Strict)
	for _, name := range []graph.TargetId{"t1", "t2", "t3", "t4"} {
		_, err := g.AddTarget(&graph.Target{Name: name, Kind: graph.KindCustom})
		require.NoError(t, err)
	}
	require.NoError(t, g.AddDependencyById("t2", "t1"))
	require.NoError(t, g.AddDependencyById("t3", "t2"))
	require.NoError(t, g.AddDependencyById("t4", "t3"))
	return g
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	g := buildFourTargetGraph(t)
	g.Node("t1").SetStatus(graph.StatusSuccess)
	g.Node("t1").SetHash("hash1")
	g.Node("t2").SetStatus(graph.StatusCached)
	g.Node("t2").SetHash("hash2")
	g.Node("t3").SetStatus(graph.StatusFailed)
	g.Node("t4").SetStatus(graph.StatusPending)

	ck := FromGraph("/workspace", g)
	data, err := ck.Serialize()
	require.NoError(t, err)

	got, err := Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, ck.Workspace, got.Workspace)
	assert.Equal(t, ck.TotalTargets, got.TotalTargets)
	assert.Equal(t, ck.CompletedTargets, got.CompletedTargets)
	assert.Equal(t, ck.FailedTargets, got.FailedTargets)
	assert.Equal(t, ck.NodeStates, got.NodeStates)
	assert.Equal(t, ck.NodeHashes, got.NodeHashes)
	assert.ElementsMatch(t, ck.FailedIds, got.FailedIds)
}

func TestFromGraphCountsMatchScenario(t *testing.T) {
	g := buildFourTargetGraph(t)
	g.Node("t1").SetStatus(graph.StatusSuccess)
	g.Node("t2").SetStatus(graph.StatusSuccess)
	g.Node("t3").SetStatus(graph.StatusFailed)
	g.Node("t4").SetStatus(graph.StatusPending)

	ck := FromGraph("/workspace", g)
	assert.EqualValues(t, 2, ck.CompletedTargets)
	assert.EqualValues(t, 1, ck.FailedTargets)
	assert.Equal(t, []graph.TargetId{"t3"}, ck.FailedIds)
}

func TestDeserializeRejectsBadMagic(t *testing.T) {
	_, err := Deserialize([]byte{0, 0, 0, 0, 1})
	require.Error(t, err)
}

func TestDeserializeRejectsTruncatedData(t *testing.T) {
	g := buildFourTargetGraph(t)
	ck := FromGraph("/workspace", g)
	data, err := ck.Serialize()
	require.NoError(t, err)

	_, err = Deserialize(data[:len(data)-2])
	require.Error(t, err)
}

func TestIsValidRejectsStaleCheckpoint(t *testing.T) {
	g := buildFourTargetGraph(t)
	ck := FromGraph("/workspace", g)
	ck.Timestamp = time.Now().Add(-48 * time.Hour)

	err := ck.IsValid(g)
	require.Error(t, err)
}

func TestIsValidRejectsGraphWithDifferentTargetCount(t *testing.T) {
	g := buildFourTargetGraph(t)
	ck := FromGraph("/workspace", g)

	_, err := g.AddTarget(&graph.Target{Name: "t5", Kind: graph.KindCustom})
	require.NoError(t, err)

	err = ck.IsValid(g)
	require.Error(t, err)
}

func TestMergeWithLeavesFailedAndPendingAsPending(t *testing.T) {
	g := buildFourTargetGraph(t)
	g.Node("t1").SetStatus(graph.StatusSuccess)
	g.Node("t1").SetHash("h1")
	g.Node("t2").SetStatus(graph.StatusFailed)
	ck := FromGraph("/workspace", g)

	g2 := buildFourTargetGraph(t)
	ck.MergeWith(g2)

	assert.Equal(t, graph.StatusSuccess, g2.Node("t1").Status())
	assert.Equal(t, "h1", g2.Node("t1").Hash())
	assert.Equal(t, graph.StatusPending, g2.Node("t2").Status())
	assert.Equal(t, graph.StatusPending, g2.Node("t3").Status())
}

func TestPlanRetryFailedRebuildsTransitiveDependents(t *testing.T) {
	g := buildFourTargetGraph(t)
	g.Node("t1").SetStatus(graph.StatusSuccess)
	g.Node("t2").SetStatus(graph.StatusFailed)
	g.Node("t3").SetStatus(graph.StatusPending)
	g.Node("t4").SetStatus(graph.StatusPending)
	ck := FromGraph("/workspace", g)

	g2 := buildFourTargetGraph(t)
	Plan(RetryFailed, ck, g2, nil)

	assert.Equal(t, graph.StatusSuccess, g2.Node("t1").Status())
	assert.Equal(t, graph.StatusPending, g2.Node("t2").Status())
	assert.Equal(t, graph.StatusPending, g2.Node("t3").Status())
	assert.Equal(t, graph.StatusPending, g2.Node("t4").Status())
}

func TestPlanRebuildAllResetsEveryNode(t *testing.T) {
	g := buildFourTargetGraph(t)
	g.Node("t1").SetStatus(graph.StatusSuccess)
	ck := FromGraph("/workspace", g)

	Plan(RebuildAll, ck, g, nil)
	for _, n := range g.Nodes() {
		assert.Equal(t, graph.StatusPending, n.Status())
	}
}

func TestPlanSkipFailedKeepsBothSuccessesAndFailures(t *testing.T) {
	g := buildFourTargetGraph(t)
	g.Node("t1").SetStatus(graph.StatusSuccess)
	g.Node("t2").SetStatus(graph.StatusFailed)
	ck := FromGraph("/workspace", g)

	g2 := buildFourTargetGraph(t)
	Plan(SkipFailed, ck, g2, nil)

	assert.Equal(t, graph.StatusSuccess, g2.Node("t1").Status())
	assert.Equal(t, graph.StatusFailed, g2.Node("t2").Status())
	assert.Equal(t, graph.StatusPending, g2.Node("t3").Status())
}

func TestPlanSmartRevalidatesDependencyHash(t *testing.T) {
	g := buildFourTargetGraph(t)
	g.Node("t1").SetStatus(graph.StatusSuccess)
	g.Node("t1").SetHash("old-hash")
	g.Node("t2").SetStatus(graph.StatusSuccess)
	g.Node("t2").SetHash("t2-hash")
	ck := FromGraph("/workspace", g)

	g2 := buildFourTargetGraph(t)
	Plan(Smart, ck, g2, func(id graph.TargetId) string {
		if id == "t1" {
			return "new-hash" // dependency content changed since the checkpoint
		}
		return ck.NodeHashes[id]
	})

	assert.Equal(t, graph.StatusPending, g2.Node("t2").Status())
}
