package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"forge.evalgo.org/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "inspect and reclaim the workspace's on-disk caches",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print target cache, action cache, and CAS statistics",
	RunE:  runCacheStats,
}

var cacheGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "discard every target/action cache entry, forcing the next build to revalidate from scratch",
	RunE:  runCacheGC,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheGCCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	eng, err := loadEngine(cmd)
	if err != nil {
		return err
	}

	ts := eng.cacheCo.Targets.GetStats()
	as := eng.cacheCo.Actions.GetStats()

	fmt.Println("target cache:")
	printStats(ts)
	fmt.Println("action cache:")
	printStats(as)

	if eng.blobs != nil {
		fmt.Printf("content store: %s\n", eng.blobs.Root())
	}
	return nil
}

func runCacheGC(cmd *cobra.Command, args []string) error {
	eng, err := loadEngine(cmd)
	if err != nil {
		return err
	}

	eng.cacheCo.Targets.Clear()
	eng.cacheCo.Actions.Clear()

	if err := eng.save(); err != nil {
		return err
	}
	fmt.Println("cleared target and action caches")

	// Every blob was referenced only by the entries just cleared, so the
	// live set is empty: this reclaims the CAS alongside the caches rather
	// than leaving it to grow unbounded across "gc" invocations.
	if eng.blobs != nil {
		result, err := eng.blobs.GC(map[string]struct{}{})
		if err != nil {
			return err
		}
		fmt.Printf("content store: scanned=%d deleted=%d reclaimed=%s\n",
			result.ScannedBlobs, result.DeletedBlobs, humanize.Bytes(uint64(result.ReclaimedSize)))
	}
	return nil
}

func printStats(s cache.Stats) {
	fmt.Printf("  entries=%d metadata_hits=%d content_hashes=%d misses=%d evictions=%d\n",
		s.TotalEntries, s.MetadataHits, s.ContentHashes, s.Misses, s.Evictions)
}
