// Package main provides forge, the command-line entry point for the build
// engine: workspace loading, graph construction, scheduled builds, proof
// verification, cache inspection, and checkpoint resume, all wired through
// one cobra command tree. Grounded on the teacher's cli/root.go flag/env/
// config-file precedence pattern (cobra.OnInitialize, persistent flags
// bound through viper, AutomaticEnv), generalized from a single HTTP
// service's flags to the workspace/build option surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"forge.evalgo.org/common"
)

var cfgFile string

var log = common.ServiceLogger("forge", "v1")

// rootCmd is the forge entry point; its subcommands are registered in
// init() by each command's own source file.
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "a hermetic, content-addressed, polyglot build engine",
	Long: `forge

A Bazel-style build engine: declare targets and dependencies in a workspace
file, and forge resolves a dependency graph, schedules hermetic sandboxed
actions across a worker pool, and caches results by content hash.

Configuration can be provided via command-line flags, environment
variables (FORGE_ prefix), or a YAML configuration file, with flag > env >
file > default precedence.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.forge.yaml)")
	rootCmd.PersistentFlags().String("workspace", "workspace.yaml", "path to the workspace definition file")
	rootCmd.PersistentFlags().Int("workers", 4, "number of concurrent build workers")
	rootCmd.PersistentFlags().Bool("fail-fast", false, "cancel the run on the first target failure")
	rootCmd.PersistentFlags().String("checkpoint-interval", "5s", "minimum interval between checkpoint writes")
	rootCmd.PersistentFlags().String("cache-dir", ".builder-cache", "directory for on-disk caches and CAS, relative to the workspace root (checkpoints are always written under .builder-cache)")

	viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	viper.BindPFlag("fail_fast", rootCmd.PersistentFlags().Lookup("fail-fast"))
	viper.BindPFlag("checkpoint_interval", rootCmd.PersistentFlags().Lookup("checkpoint-interval"))
	viper.BindPFlag("cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
}

// initConfig mirrors the teacher's config-file discovery: an explicit
// --config flag wins, otherwise search $HOME and the working directory for
// .forge.yaml.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".forge")
	}

	viper.SetEnvPrefix("FORGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
