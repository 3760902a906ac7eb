// Package cache implements the target and action memoization caches: two-
// tier (metadata-fingerprint, then content-hash) lookup, transitive
// dependency invalidation for targets, and tamper-detecting binary
// persistence for both.
package cache

import (
	"fmt"
	"time"

	"forge.evalgo.org/graph"
)

// Fingerprint is the cheap (size, mtime) metadata snapshot of a source file,
// compared on the fast path before falling back to a content hash.
type Fingerprint struct {
	Size  int64
	Mtime int64 // Unix nanoseconds
}

// TargetEntry is the Target Cache's persisted record, keyed by TargetId.
type TargetEntry struct {
	TargetId       graph.TargetId
	BuildHash      string
	MetadataHash   string
	SourceFinger   map[string]Fingerprint
	SourceHashes   map[string]string
	DepBuildHashes map[graph.TargetId]string
	// OutputBlobs maps each declared output path to the CAS hash it was
	// stored under, so a cache hit can materialize outputs without
	// re-running the action. Empty when the target was built without a
	// CAS handle configured.
	OutputBlobs    map[string]string
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// ActionKind enumerates the Action Cache's sub-step taxonomy.
type ActionKind string

const (
	ActionCompile ActionKind = "compile"
	ActionLink    ActionKind = "link"
	ActionCodegen ActionKind = "codegen"
	ActionTest    ActionKind = "test"
	// ActionBuild covers a target whose ActionBuilder produces a single
	// command rather than decomposed compile/link/codegen sub-steps; the
	// scheduler records one action per node at this granularity until a
	// language handler decomposes it further.
	ActionBuild ActionKind = "build"
)

// ActionId identifies a single sub-step of a target build.
type ActionId struct {
	TargetId  graph.TargetId
	Kind      ActionKind
	InputHash string
	SubId     string
}

// String serializes the id as "targetId:kind:inputHash[:subId]".
func (a ActionId) String() string {
	if a.SubId == "" {
		return fmt.Sprintf("%s:%s:%s", a.TargetId, a.Kind, a.InputHash)
	}
	return fmt.Sprintf("%s:%s:%s:%s", a.TargetId, a.Kind, a.InputHash, a.SubId)
}

// ActionEntry is the Action Cache's persisted record, keyed by ActionId.
type ActionEntry struct {
	Id             ActionId
	MetadataHash   string
	Outputs        []string
	Success        bool
	CreatedAt      time.Time
	LastAccessedAt time.Time
	Size           int64
}
