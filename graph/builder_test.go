package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWiresDeclaredDependencies(t *testing.T) {
	g, err := Build([]*Target{
		{Name: "lib", Kind: KindLibrary},
		{Name: "bin", Kind: KindExecutable, Dependencies: []TargetId{"lib"}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []TargetId{"lib"}, g.Node("bin").Dependencies())
}

func TestBuildRejectsUnknownDependency(t *testing.T) {
	_, err := Build([]*Target{
		{Name: "bin", Kind: KindExecutable, Dependencies: []TargetId{"ghost"}},
	})
	assert.Error(t, err)
}
