package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextLoggerWithRunTargetPhase(t *testing.T) {
	cl := NewContextLogger(Logger, nil)

	tagged := cl.WithRun("run-1").WithTarget("//cmd/forge").WithPhase("execute")

	assert.Equal(t, "run-1", tagged.fields["run_id"])
	assert.Equal(t, "//cmd/forge", tagged.fields["target"])
	assert.Equal(t, "execute", tagged.fields["phase"])

	// the base logger's fields are untouched by the chained calls
	assert.Empty(t, cl.fields)
}

func TestContextLoggerWithRunChainsOntoExistingFields(t *testing.T) {
	base := NewContextLogger(Logger, map[string]interface{}{"service": "forge-scheduler"})

	tagged := base.WithRun("run-2")

	assert.Equal(t, "forge-scheduler", tagged.fields["service"])
	assert.Equal(t, "run-2", tagged.fields["run_id"])
}

func TestServiceLoggerIncludesForgeVersion(t *testing.T) {
	sl := ServiceLogger("forge-scheduler", "v1")

	assert.Equal(t, "forge-scheduler", sl.fields["service"])
	assert.Equal(t, "v1", sl.fields["version"])
	assert.NotEmpty(t, sl.fields["forge_version"])
}
