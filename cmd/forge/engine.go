package main

import (
	"crypto/sha256"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"forge.evalgo.org/bldrerr"
	"forge.evalgo.org/cache"
	"forge.evalgo.org/cache/eviction"
	"forge.evalgo.org/cas"
	"forge.evalgo.org/config"
	"forge.evalgo.org/graph"
	"forge.evalgo.org/sandbox"
	"forge.evalgo.org/workspace"
)

// engine bundles everything a command needs once a workspace has been
// loaded: the graph, the cache coordinator, the CAS, and the paths the
// caches and checkpoints persist to.
type engine struct {
	ws         *workspace.WorkspaceConfig
	graph      *graph.BuildGraph
	blobs      *cas.Store
	cacheCo    *cache.Coordinator
	targetPath string
	actionPath string
	cacheKey   []byte
}

// loadEngine resolves the workspace file named by the --workspace flag,
// builds its graph, opens its CAS, and loads (or creates) its persisted
// target/action caches.
func loadEngine(cmd *cobra.Command) (*engine, error) {
	wsPath := viper.GetString("workspace")

	ws, err := workspace.Load(wsPath, cmd.Flags())
	if err != nil {
		return nil, err
	}

	g, err := graph.Build(ws.Targets)
	if err != nil {
		return nil, err
	}

	cacheDir := filepath.Join(ws.Root, viper.GetString("cache_dir"))
	blobs, err := cas.Open(filepath.Join(cacheDir, "cas"))
	if err != nil {
		return nil, err
	}

	key := cacheSigningKey(ws.Root)
	targetPath := filepath.Join(cacheDir, "targets.cache")
	actionPath := filepath.Join(cacheDir, "actions.cache")

	cacheCfg := config.LoadCacheConfig("FORGE")
	targets, _ := cache.LoadTargetCache(targetPath, key, eviction.New(cacheCfg.TargetParams()))
	actions, _ := cache.LoadActionCache(actionPath, key, eviction.New(cacheCfg.ActionParams()))

	cacheCo := cache.NewCoordinator(cacheCfg.TargetParams(), cacheCfg.ActionParams(), blobs, nil)
	cacheCo.Targets, cacheCo.Actions = targets, actions

	return &engine{
		ws:         ws,
		graph:      g,
		blobs:      blobs,
		cacheCo:    cacheCo,
		targetPath: targetPath,
		actionPath: actionPath,
		cacheKey:   key,
	}, nil
}

// save flushes both caches back to disk.
func (e *engine) save() error {
	return e.cacheCo.Flush(e.targetPath, e.actionPath, e.cacheKey)
}

// cacheSigningKey derives a stable per-workspace HMAC key so two
// independently-checked-out copies of the same workspace agree on it
// without a separate secrets file.
func cacheSigningKey(workspaceRoot string) []byte {
	sum := sha256.Sum256([]byte("forge-cache:" + workspaceRoot))
	return sum[:]
}

// buildActionSpec derives a sandbox.Spec and shell command line for a node
// from its Target.Config, the convention a workspace file uses to declare
// how a target is actually built: a "command" entry holding a shell-style
// space-separated argv, source files as hermetic inputs, and declared
// outputs as hermetic outputs.
func buildActionSpec(n *graph.BuildNode) (*sandbox.Spec, []string, error) {
	t := n.Target
	cmdLine := t.Config["command"]
	if cmdLine == "" {
		cmdLine = defaultCommandFor(t)
	}
	argv := strings.Fields(cmdLine)
	if len(argv) == 0 {
		return nil, nil, bldrerr.New(bldrerr.KindConfig, "target "+string(t.Id())+" has no build command")
	}

	b := sandbox.NewBuilder(argv[0], ".")
	for _, src := range t.Sources {
		b.Input(src)
	}
	for _, out := range t.Outputs {
		b.Output(out)
	}
	for k, v := range t.Config {
		if k == "command" {
			continue
		}
		b.Env(strings.ToUpper(k), v)
	}

	spec, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return spec, argv, nil
}

// defaultCommandFor falls back to a language-conventional command when a
// target declares no explicit one, mirroring how a zero-config workspace
// is expected to still do something reasonable for a handful of common
// toolchains.
func defaultCommandFor(t *graph.Target) string {
	switch t.Language {
	case "go":
		return "go build ./..."
	default:
		return "true"
	}
}
