// Package boltlog persists the telemetry event stream to a bbolt database,
// one bucket per run id, for post-mortem inspection. Adapted from the
// generic bbolt wrapper used elsewhere in the codebase for JSON-keyed
// storage.
package boltlog

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"forge.evalgo.org/bldrerr"
	"forge.evalgo.org/telemetry"
)

// Journal is a telemetry.Publisher backed by a bbolt database. Each run gets
// its own bucket, keyed by a monotonically increasing sequence number so
// ForEach replays events in emission order.
type Journal struct {
	db    *bolt.DB
	runID string
}

// Open opens (creating if needed) the database at path and prepares the
// bucket for runID.
func Open(path, runID string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, bldrerr.Wrap(bldrerr.KindSystem, err, "opening event journal")
	}

	j := &Journal{db: db, runID: runID}
	if err := j.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runID))
		return err
	}); err != nil {
		db.Close()
		return nil, bldrerr.Wrap(bldrerr.KindSystem, err, "creating journal bucket")
	}
	return j, nil
}

// Publish implements telemetry.Publisher. A write failure is swallowed
// without being logged: the journal is a durability convenience, not a
// build correctness dependency.
func (j *Journal) Publish(event telemetry.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	_ = j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(j.runID))
		if b == nil {
			return fmt.Errorf("journal bucket %s missing", j.runID)
		}
		seq, _ := b.NextSequence()
		key := fmt.Sprintf("%020d", seq)
		return b.Put([]byte(key), data)
	})
}

// Events replays every event recorded for runID in emission order.
func (j *Journal) Events() ([]telemetry.Event, error) {
	var events []telemetry.Event
	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(j.runID))
		if b == nil {
			return fmt.Errorf("journal bucket %s missing", j.runID)
		}
		return b.ForEach(func(k, v []byte) error {
			var e telemetry.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			events = append(events, e)
			return nil
		})
	})
	if err != nil {
		return nil, bldrerr.Wrap(bldrerr.KindSystem, err, "reading event journal")
	}
	return events, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
