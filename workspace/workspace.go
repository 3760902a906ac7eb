// Package workspace loads a WorkspaceConfig — the workspace root, a small
// set of build options, and the flat list of Target definitions — from a
// YAML file, with flag > env > default precedence for the options layer
// (options are not read from the workspace file). This is the "workspace/config parser" external collaborator whose
// output feeds graph.Builder. Grounded on the teacher's cli/root.go
// viper wiring (AutomaticEnv, BindPFlag, config-file search path),
// generalized from a single flat HTTP-service config to a workspace tree of
// build targets loaded via yaml.v3.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"forge.evalgo.org/bldrerr"
	"forge.evalgo.org/graph"
)

// Options are the workspace-wide build options resolved through viper's
// flag > env > default precedence.
type Options struct {
	Workers            int
	FailFast           bool
	CheckpointInterval string
	CacheDir           string
}

// TargetDef is the on-disk shape of one target entry in the workspace YAML
// file; it is translated to a graph.Target during Load.
type TargetDef struct {
	Name         string            `yaml:"name"`
	Kind         string            `yaml:"kind"`
	Language     string            `yaml:"language"`
	Sources      []string          `yaml:"sources"`
	Dependencies []string          `yaml:"dependencies"`
	Outputs      []string          `yaml:"outputs"`
	Config       map[string]string `yaml:"config"`
}

// file is the root shape of a workspace YAML file.
type file struct {
	Targets []TargetDef `yaml:"targets"`
}

// WorkspaceConfig is the fully resolved result of loading a workspace: its
// root directory, resolved Options, and flat Target list ready to feed a
// graph.Builder.
type WorkspaceConfig struct {
	Root    string
	Options Options
	Targets []*graph.Target
}

// DefaultOptions mirrors the project's DefaultConfig idiom.
func DefaultOptions() Options {
	return Options{
		Workers:            4,
		FailFast:           false,
		CheckpointInterval: "5s",
		CacheDir:           ".builder-cache",
	}
}

// Load reads the workspace YAML file at path, resolves Options using
// viper against the given flags (flags may be nil), and validates every
// target name is unique and every kind recognized.
func Load(path string, flags *pflag.FlagSet) (*WorkspaceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, bldrerr.Wrap(bldrerr.KindConfig, err, "reading workspace file")
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, bldrerr.Wrap(bldrerr.KindConfig, err, "parsing workspace YAML")
	}

	opts, err := resolveOptions(flags)
	if err != nil {
		return nil, err
	}

	targets := make([]*graph.Target, 0, len(f.Targets))
	seen := make(map[string]bool, len(f.Targets))
	for _, td := range f.Targets {
		if td.Name == "" {
			return nil, bldrerr.New(bldrerr.KindConfig, "target missing name")
		}
		if seen[td.Name] {
			return nil, bldrerr.New(bldrerr.KindConfig, "target "+td.Name+" declared more than once")
		}
		seen[td.Name] = true

		kind, err := parseKind(td.Kind)
		if err != nil {
			return nil, err
		}

		deps := make([]graph.TargetId, 0, len(td.Dependencies))
		for _, d := range td.Dependencies {
			deps = append(deps, graph.TargetId(d))
		}

		targets = append(targets, &graph.Target{
			Name:         graph.TargetId(td.Name),
			Kind:         kind,
			Language:     td.Language,
			Sources:      td.Sources,
			Dependencies: deps,
			Outputs:      td.Outputs,
			Config:       td.Config,
		})
	}

	root, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, bldrerr.Wrap(bldrerr.KindConfig, err, "resolving workspace root")
	}

	return &WorkspaceConfig{
		Root:    root,
		Options: opts,
		Targets: targets,
	}, nil
}

func parseKind(s string) (graph.Kind, error) {
	switch graph.Kind(s) {
	case graph.KindExecutable, graph.KindLibrary, graph.KindTest, graph.KindCustom:
		return graph.Kind(s), nil
	case "":
		return graph.KindCustom, nil
	default:
		return "", bldrerr.New(bldrerr.KindConfig, "unknown target kind "+s)
	}
}

// resolveOptions applies flag > env > default precedence via viper; no
// config file is read, so there is no file layer.
func resolveOptions(flags *pflag.FlagSet) (Options, error) {
	v := viper.New()
	v.SetDefault("workers", DefaultOptions().Workers)
	v.SetDefault("fail_fast", DefaultOptions().FailFast)
	v.SetDefault("checkpoint_interval", DefaultOptions().CheckpointInterval)
	v.SetDefault("cache_dir", DefaultOptions().CacheDir)

	v.SetEnvPrefix("FORGE")
	v.AutomaticEnv()

	// Bound individually, rather than via BindPFlags(flags) wholesale,
	// because the CLI's flag names are dash-separated (e.g.
	// "checkpoint-interval") while the viper keys above are
	// underscore-separated to match FORGE_CHECKPOINT_INTERVAL-style env
	// vars; a blanket bind would register each flag under its own
	// (different) key and the GetString calls below would never see it.
	bind := func(key, flagName string) error {
		if flags == nil {
			return nil
		}
		f := flags.Lookup(flagName)
		if f == nil {
			return nil
		}
		return v.BindPFlag(key, f)
	}
	for key, flagName := range map[string]string{
		"workers":             "workers",
		"fail_fast":           "fail-fast",
		"checkpoint_interval": "checkpoint-interval",
		"cache_dir":           "cache-dir",
	} {
		if err := bind(key, flagName); err != nil {
			return Options{}, bldrerr.Wrap(bldrerr.KindConfig, err, "binding workspace flag "+flagName)
		}
	}

	return Options{
		Workers:            v.GetInt("workers"),
		FailFast:           v.GetBool("fail_fast"),
		CheckpointInterval: v.GetString("checkpoint_interval"),
		CacheDir:           v.GetString("cache_dir"),
	}, nil
}
