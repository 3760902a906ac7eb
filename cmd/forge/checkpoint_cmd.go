package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"forge.evalgo.org/checkpoint"
	"forge.evalgo.org/graph"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "inspect the workspace's last saved checkpoint",
}

var checkpointResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "apply a resume strategy to the workspace's checkpoint and report what would be rebuilt, without building",
	RunE:  runCheckpointResume,
}

func init() {
	checkpointResumeCmd.Flags().String("strategy", "smart", "resume strategy: smart, retry-failed, skip-failed, rebuild-all")
	checkpointCmd.AddCommand(checkpointResumeCmd)
	rootCmd.AddCommand(checkpointCmd)
}

func runCheckpointResume(cmd *cobra.Command, args []string) error {
	eng, err := loadEngine(cmd)
	if err != nil {
		return err
	}

	ck, err := checkpoint.Load(eng.ws.Root)
	if err != nil {
		return err
	}
	if ck == nil {
		fmt.Println("no checkpoint found for this workspace")
		return nil
	}

	if err := ck.IsValid(eng.graph); err != nil {
		return fmt.Errorf("checkpoint is not valid for this workspace: %w", err)
	}

	strategyFlag, _ := cmd.Flags().GetString("strategy")
	strategy, err := parseResumeStrategy(strategyFlag)
	if err != nil {
		return err
	}

	checkpoint.Plan(strategy, ck, eng.graph, func(id graph.TargetId) string {
		hash, _ := eng.cacheCo.Targets.BuildHash(id)
		return hash
	})

	var toBuild, toSkip int
	for _, n := range eng.graph.Nodes() {
		switch n.Status() {
		case graph.StatusPending:
			toBuild++
		default:
			toSkip++
		}
	}
	fmt.Printf("checkpoint from %s: %d targets to rebuild, %d already settled\n", ck.Timestamp, toBuild, toSkip)
	return nil
}
