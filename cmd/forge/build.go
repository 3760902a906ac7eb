package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"forge.evalgo.org/checkpoint"
	"forge.evalgo.org/graph"
	"forge.evalgo.org/retry"
	"forge.evalgo.org/sandbox"
	"forge.evalgo.org/scheduler"
	"forge.evalgo.org/telemetry"
)

var buildCmd = &cobra.Command{
	Use:   "build [targets...]",
	Short: "build every declared target, or only the named ones and their dependencies",
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().Bool("resume", false, "resume from the workspace's last checkpoint instead of starting clean")
	buildCmd.Flags().String("resume-strategy", "smart", "resume strategy when --resume is set: smart, retry-failed, skip-failed, rebuild-all")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	start := time.Now()
	eng, err := loadEngine(cmd)
	if err != nil {
		return err
	}

	if resume, _ := cmd.Flags().GetBool("resume"); resume {
		if err := resumeFromCheckpoint(cmd, eng); err != nil {
			return err
		}
	}

	if len(args) > 0 {
		if err := markOutsideSelectionSkipped(eng.graph, args); err != nil {
			return err
		}
	}

	feed := make(chan telemetry.Event, 64)
	publish := telemetry.PublisherFunc(func(e telemetry.Event) {
		select {
		case feed <- e:
		default:
		}
	})
	go drainFeed(feed)

	retryOrch := retry.New(nil)
	exec := sandbox.NewExecutor()

	var lastCk *checkpoint.Checkpoint
	ckFn := func(g *graph.BuildGraph) {
		ck := checkpoint.FromGraph(eng.ws.Root, g)
		lastCk = ck
		if err := checkpoint.Save(eng.ws.Root, ck); err != nil {
			log.WithError(err).Warn("failed to write checkpoint")
		}
	}

	cfg := scheduler.Config{
		Workers:            viper.GetInt("workers"),
		CheckpointInterval: checkpointInterval(),
	}
	if viper.GetBool("fail_fast") {
		cfg.Failure = scheduler.FailFast
	}

	wrappedExec := retryingExecutor{exec: exec, orch: retryOrch}

	co := scheduler.New(eng.graph, eng.cacheCo, eng.blobs, wrappedExec, buildActionSpec, publish, ckFn, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Warn("interrupt received, cancelling build")
		co.Cancel()
	}()

	runErr := co.Run(ctx)
	close(feed)

	if err := eng.save(); err != nil {
		log.WithError(err).Warn("failed to flush caches")
	}
	if lastCk == nil {
		lastCk = checkpoint.FromGraph(eng.ws.Root, eng.graph)
	}
	if err := checkpoint.Save(eng.ws.Root, lastCk); err != nil {
		log.WithError(err).Warn("failed to write final checkpoint")
	}

	stats := eng.graph.GetStats()
	fmt.Printf("built %d targets in %s\n", stats.TotalNodes, humanize.RelTime(start, time.Now(), "", ""))

	printRetryStats(retryOrch)

	return runErr
}

func checkpointInterval() time.Duration {
	d, err := time.ParseDuration(viper.GetString("checkpoint_interval"))
	if err != nil {
		return 5 * time.Second
	}
	return d
}

func drainFeed(feed <-chan telemetry.Event) {
	for e := range feed {
		switch e.Category {
		case telemetry.CategoryError:
			log.WithFields(e.Fields).Warn(string(e.Type))
		default:
			log.WithFields(e.Fields).Debug(string(e.Type))
		}
	}
}

func printRetryStats(orch *retry.Orchestrator) {
	total, successful, failed := orch.Stats().Snapshot()
	for kind, n := range total {
		if n == 0 {
			continue
		}
		fmt.Printf("  retries[%s]: %d attempted, %d succeeded, %d failed\n", kind, n, successful[kind], failed[kind])
	}
}

// markOutsideSelectionSkipped restricts a build to the named targets (and,
// transitively, whatever they depend on) by marking every other node
// Skipped before scheduling starts.
func markOutsideSelectionSkipped(g *graph.BuildGraph, names []string) error {
	wanted := make(map[graph.TargetId]bool, len(names))
	var mark func(id graph.TargetId)
	mark = func(id graph.TargetId) {
		if wanted[id] {
			return
		}
		wanted[id] = true
		n := g.Node(id)
		if n == nil {
			return
		}
		for _, dep := range n.Dependencies() {
			mark(dep)
		}
	}
	for _, name := range names {
		id := graph.TargetId(name)
		if g.Node(id) == nil {
			return fmt.Errorf("unknown target %q", name)
		}
		mark(id)
	}
	for _, n := range g.Nodes() {
		if !wanted[n.Id()] {
			n.SetStatus(graph.StatusSkipped)
		}
	}
	return nil
}

func resumeFromCheckpoint(cmd *cobra.Command, eng *engine) error {
	ck, err := checkpoint.Load(eng.ws.Root)
	if err != nil {
		return err
	}
	if ck == nil {
		return nil
	}
	if err := ck.IsValid(eng.graph); err != nil {
		log.WithError(err).Warn("checkpoint no longer valid for this workspace, rebuilding from scratch")
		return nil
	}

	strategyFlag, _ := cmd.Flags().GetString("resume-strategy")
	strategy, err := parseResumeStrategy(strategyFlag)
	if err != nil {
		return err
	}

	checkpoint.Plan(strategy, ck, eng.graph, func(id graph.TargetId) string {
		hash, _ := eng.cacheCo.Targets.BuildHash(id)
		return hash
	})
	return nil
}

func parseResumeStrategy(s string) (checkpoint.Strategy, error) {
	switch s {
	case "", "smart":
		return checkpoint.Smart, nil
	case "retry-failed":
		return checkpoint.RetryFailed, nil
	case "skip-failed":
		return checkpoint.SkipFailed, nil
	case "rebuild-all":
		return checkpoint.RebuildAll, nil
	default:
		return 0, fmt.Errorf("unknown resume strategy %q", s)
	}
}
