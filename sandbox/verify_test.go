package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestCompareOutputsContentHashDetectsDifference(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeFile(t, a, "out.bin", "hello")
	writeFile(t, b, "out.bin", "world")

	diffs, err := CompareOutputs(StrategyContentHash, []string{"out.bin"}, a, b)
	require.NoError(t, err)
	assert.Len(t, diffs, 1)
}

func TestCompareOutputsContentHashMatchesIdenticalBytes(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeFile(t, a, "out.bin", "hello")
	writeFile(t, b, "out.bin", "hello")

	diffs, err := CompareOutputs(StrategyContentHash, []string{"out.bin"}, a, b)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}

func TestCompareOutputsFuzzyIgnoresEmbeddedTimestamp(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeFile(t, a, "log.txt", "built at 2024-01-01T00:00:00Z ok")
	writeFile(t, b, "log.txt", "built at 2024-06-15T12:30:00Z ok")

	diffs, err := CompareOutputs(StrategyFuzzy, []string{"log.txt"}, a, b)
	require.NoError(t, err)
	assert.Empty(t, diffs)

	diffs, err = CompareOutputs(StrategyContentHash, []string{"log.txt"}, a, b)
	require.NoError(t, err)
	assert.Len(t, diffs, 1)
}

func TestCompareOutputsStructuralIgnoresWhitespace(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeFile(t, a, "data.json", `{"a":  1}`)
	writeFile(t, b, "data.json", `{"a": 1}`)

	diffs, err := CompareOutputs(StrategyStructural, []string{"data.json"}, a, b)
	require.NoError(t, err)
	assert.Empty(t, diffs)
}
