package cas

import (
	"os"
	"path/filepath"

	"forge.evalgo.org/bldrerr"
)

// GCResult summarizes a garbage collection pass.
type GCResult struct {
	ScannedBlobs  int
	DeletedBlobs  int
	ReclaimedSize int64
}

// GC walks every blob under the store and deletes any whose hash is not in
// live. The caller is responsible for computing live from the cache's
// current (post-eviction) entries: GC runs after eviction has already
// pruned expired/excess cache entries, so blobs referenced only by evicted
// entries become collectable here.
func (s *Store) GC(live map[string]struct{}) (GCResult, error) {
	var result GCResult
	blobsRoot := filepath.Join(s.root, "blobs")

	entries, err := os.ReadDir(blobsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, bldrerr.Wrap(bldrerr.KindSystem, err, "reading CAS blobs root")
	}

	for _, shard := range entries {
		if !shard.IsDir() {
			continue
		}
		shardPath := filepath.Join(blobsRoot, shard.Name())
		files, err := os.ReadDir(shardPath)
		if err != nil {
			return result, bldrerr.Wrap(bldrerr.KindSystem, err, "reading CAS shard")
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			hash := shard.Name() + f.Name()
			result.ScannedBlobs++
			if _, ok := live[hash]; ok {
				continue
			}
			info, statErr := f.Info()
			full := filepath.Join(shardPath, f.Name())
			if err := os.Remove(full); err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return result, bldrerr.Wrap(bldrerr.KindSystem, err, "deleting unreferenced blob")
			}
			result.DeletedBlobs++
			if statErr == nil {
				result.ReclaimedSize += info.Size()
			}
		}
	}
	return result, nil
}
