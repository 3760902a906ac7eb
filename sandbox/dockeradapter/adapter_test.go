package dockeradapter

import (
	"strings"
	"testing"

	"github.com/docker/docker/api/types/mount"
	"github.com/stretchr/testify/assert"

	"forge.evalgo.org/pathset"
	"forge.evalgo.org/sandbox"
)

func TestBuildMountsMarksInputsReadOnlyAndOutputsWritable(t *testing.T) {
	spec := &sandbox.Spec{
		Inputs:  pathset.New("/ws/src/main.go"),
		Outputs: pathset.New("/ws/bin/app"),
		Temp:    pathset.New("/tmp/forge-1"),
	}

	mounts := buildMounts(spec)
	bySource := map[string]mount.Mount{}
	for _, m := range mounts {
		bySource[m.Source] = m
	}

	assert.True(t, bySource["/ws/src/main.go"].ReadOnly)
	assert.False(t, bySource["/ws/bin/app"].ReadOnly)
	assert.False(t, bySource["/tmp/forge-1"].ReadOnly)
	assert.Len(t, mounts, 3)
}

func TestFlattenEnvIncludesExplicitAndDeterminismVars(t *testing.T) {
	spec := &sandbox.Spec{
		Environment: []sandbox.EnvVar{{Name: "GOOS", Value: "linux"}},
	}

	env := flattenEnv(spec)
	found := false
	for _, kv := range env {
		if kv == "GOOS=linux" {
			found = true
		}
	}
	assert.True(t, found, "explicit env vars must survive flattening")
	assert.NotEmpty(t, env, "ApplyDeterminismEnv should add at least the fixed clock/seed vars")
	epochFound, seedFound := false, false
	for _, kv := range env {
		epochFound = epochFound || strings.HasPrefix(kv, "SOURCE_DATE_EPOCH=")
		seedFound = seedFound || strings.HasPrefix(kv, "BUILD_PRNG_SEED=")
	}
	assert.True(t, epochFound, "the fixed clock var must be added")
	assert.True(t, seedFound, "the fixed PRNG seed var must be added")
}
