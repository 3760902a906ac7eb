// Package checkpoint implements the engine's crash/resume snapshot: a
// versioned, length-prefixed binary encoding of a BuildGraph's per-node
// status and hashes, plus a resume planner that decides what a reloaded
// graph should re-dispatch. Grounded on cache's own envelope format
// (magic/version/length-prefixed payload), generalized from gob-encoded
// entries to the spec's explicit field-by-field binary layout.
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"time"

	"forge.evalgo.org/bldrerr"
	"forge.evalgo.org/graph"
)

// checkpointMagic identifies a checkpoint.bin file ("CKPT" as a big-endian u32).
const checkpointMagic uint32 = 0x434B5054

const checkpointVersion uint8 = 1

// maxCheckpointAge is the default staleness bound; older checkpoints are
// refused rather than silently resumed against a possibly-unrelated tree.
const maxCheckpointAge = 24 * time.Hour

// Checkpoint is a snapshot of one run: the workspace root, when it was
// taken, aggregate counts, and per-node status/hash.
type Checkpoint struct {
	Workspace        string
	Timestamp        time.Time
	TotalTargets     uint32
	CompletedTargets uint32
	FailedTargets    uint32
	NodeStates       map[graph.TargetId]graph.Status
	NodeHashes       map[graph.TargetId]string
	FailedIds        []graph.TargetId
}

// FromGraph builds a Checkpoint snapshotting g's current node states.
func FromGraph(workspace string, g *graph.BuildGraph) *Checkpoint {
	nodes := g.Nodes()

	ck := &Checkpoint{
		Workspace:  workspace,
		Timestamp:  time.Now(),
		NodeStates: make(map[graph.TargetId]graph.Status, len(nodes)),
		NodeHashes: make(map[graph.TargetId]string),
	}

	for _, n := range nodes {
		id := n.Id()
		ck.TotalTargets++
		status := n.Status()
		ck.NodeStates[id] = status
		switch status {
		case graph.StatusSuccess, graph.StatusCached:
			ck.CompletedTargets++
			if h := n.Hash(); h != "" {
				ck.NodeHashes[id] = h
			}
		case graph.StatusFailed:
			ck.FailedTargets++
			ck.FailedIds = append(ck.FailedIds, id)
		}
	}
	return ck
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
}

// Serialize encodes ck per the binary checkpoint format: magic, version,
// length-prefixed workspace, Unix-seconds timestamp, three u32 counts, then
// the nodeStates/nodeHashes/failedIds sections, each u32-count-prefixed.
func (ck *Checkpoint) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, checkpointMagic)
	buf.WriteByte(checkpointVersion)
	writeString(&buf, ck.Workspace)
	binary.Write(&buf, binary.BigEndian, ck.Timestamp.Unix())
	binary.Write(&buf, binary.BigEndian, ck.TotalTargets)
	binary.Write(&buf, binary.BigEndian, ck.CompletedTargets)
	binary.Write(&buf, binary.BigEndian, ck.FailedTargets)

	binary.Write(&buf, binary.BigEndian, uint32(len(ck.NodeStates)))
	for id, status := range ck.NodeStates {
		writeString(&buf, string(id))
		buf.WriteByte(byte(status))
	}

	binary.Write(&buf, binary.BigEndian, uint32(len(ck.NodeHashes)))
	for id, hash := range ck.NodeHashes {
		writeString(&buf, string(id))
		writeString(&buf, hash)
	}

	binary.Write(&buf, binary.BigEndian, uint32(len(ck.FailedIds)))
	for _, id := range ck.FailedIds {
		writeString(&buf, string(id))
	}

	return buf.Bytes(), nil
}

// reader bound-checks every slice it hands out, surfacing a Kind: Integrity
// error instead of panicking on truncated or adversarial input.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.data) {
		return bldrerr.New(bldrerr.KindIntegrity, "checkpoint truncated")
	}
	return nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) u8() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) i64() (int64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := int64(binary.BigEndian.Uint64(r.data[r.pos : r.pos+8]))
	r.pos += 8
	return v, nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// Deserialize parses a checkpoint previously produced by Serialize,
// rejecting any magic/version mismatch or truncated/malformed section as a
// Kind: Integrity error.
func Deserialize(data []byte) (*Checkpoint, error) {
	r := &reader{data: data}

	magic, err := r.u32()
	if err != nil {
		return nil, err
	}
	if magic != checkpointMagic {
		return nil, bldrerr.New(bldrerr.KindIntegrity, "checkpoint magic mismatch")
	}
	version, err := r.u8()
	if err != nil {
		return nil, err
	}
	if version != checkpointVersion {
		return nil, bldrerr.New(bldrerr.KindIntegrity, "checkpoint version mismatch")
	}

	workspace, err := r.str()
	if err != nil {
		return nil, err
	}
	unixSecs, err := r.i64()
	if err != nil {
		return nil, err
	}
	total, err := r.u32()
	if err != nil {
		return nil, err
	}
	completed, err := r.u32()
	if err != nil {
		return nil, err
	}
	failed, err := r.u32()
	if err != nil {
		return nil, err
	}

	ck := &Checkpoint{
		Workspace:        workspace,
		Timestamp:        time.Unix(unixSecs, 0).UTC(),
		TotalTargets:     total,
		CompletedTargets: completed,
		FailedTargets:    failed,
		NodeStates:       make(map[graph.TargetId]graph.Status),
		NodeHashes:       make(map[graph.TargetId]string),
	}

	stateCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < stateCount; i++ {
		key, err := r.str()
		if err != nil {
			return nil, err
		}
		status, err := r.u8()
		if err != nil {
			return nil, err
		}
		ck.NodeStates[graph.TargetId(key)] = graph.Status(status)
	}

	hashCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < hashCount; i++ {
		key, err := r.str()
		if err != nil {
			return nil, err
		}
		val, err := r.str()
		if err != nil {
			return nil, err
		}
		ck.NodeHashes[graph.TargetId(key)] = val
	}

	failedCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < failedCount; i++ {
		id, err := r.str()
		if err != nil {
			return nil, err
		}
		ck.FailedIds = append(ck.FailedIds, graph.TargetId(id))
	}

	return ck, nil
}

// IsValid enforces the age bound and that every node named in the
// checkpoint still exists in g with matching cardinality; a graph that has
// since gained or lost targets invalidates the snapshot.
func (ck *Checkpoint) IsValid(g *graph.BuildGraph) error {
	if time.Since(ck.Timestamp) > maxCheckpointAge {
		return bldrerr.New(bldrerr.KindIntegrity, "checkpoint older than maxCheckpointAge")
	}
	stats := g.GetStats()
	if uint32(stats.TotalNodes) != ck.TotalTargets {
		return bldrerr.New(bldrerr.KindIntegrity, "checkpoint target count does not match graph")
	}
	for id := range ck.NodeStates {
		if g.Node(id) == nil {
			return bldrerr.New(bldrerr.KindIntegrity, "checkpoint references unknown target "+string(id))
		}
	}
	return nil
}

// MergeWith copies Success/Cached statuses and hashes from ck onto g;
// Failed and Pending entries are left (or reset to) Pending so the
// scheduler will re-dispatch them.
func (ck *Checkpoint) MergeWith(g *graph.BuildGraph) {
	for id, status := range ck.NodeStates {
		n := g.Node(id)
		if n == nil {
			continue
		}
		switch status {
		case graph.StatusSuccess, graph.StatusCached:
			n.SetStatus(status)
			if h, ok := ck.NodeHashes[id]; ok {
				n.SetHash(h)
			}
		default:
			n.SetStatus(graph.StatusPending)
		}
	}
}
