package cache

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"os"

	"forge.evalgo.org/bldrerr"
	"forge.evalgo.org/cache/eviction"
)

// cacheMagic identifies a cache.bin file ("CACH" as a big-endian u32).
const cacheMagic uint32 = 0x43414348

const cacheVersion uint8 = 1

// targetSnapshot and actionSnapshot are the gob-encoded payloads of a
// persisted cache: one of TargetEntry or ActionEntry slices, selected by the
// caller.
type targetSnapshot struct {
	Entries []TargetEntry
}

type actionSnapshot struct {
	Entries []ActionEntry
}

func writeEnvelope(path string, payload []byte, key []byte) error {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	sig := mac.Sum(nil)

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, cacheMagic)
	buf.WriteByte(byte(cacheVersion))
	binary.Write(&buf, binary.BigEndian, uint32(len(payload)))
	buf.Write(payload)
	buf.Write(sig)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return bldrerr.Wrap(bldrerr.KindSystem, err, "writing cache file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return bldrerr.Wrap(bldrerr.KindSystem, err, "renaming cache file into place")
	}
	return nil
}

// readEnvelope validates magic, version, length, and HMAC signature,
// returning the inner payload. Any mismatch is reported as a
// Kind: Integrity error — callers must treat this as "reset to empty", per
// the recovery policy; it is never fatal.
func readEnvelope(path string, key []byte) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, bldrerr.Wrap(bldrerr.KindSystem, err, "reading cache file")
	}

	const headerLen = 4 + 1 + 4
	if len(raw) < headerLen {
		return nil, bldrerr.New(bldrerr.KindIntegrity, "cache file truncated")
	}

	magic := binary.BigEndian.Uint32(raw[0:4])
	version := raw[4]
	payloadLen := binary.BigEndian.Uint32(raw[5:9])

	if magic != cacheMagic {
		return nil, bldrerr.New(bldrerr.KindIntegrity, "cache file magic mismatch")
	}
	if version != cacheVersion {
		return nil, bldrerr.New(bldrerr.KindIntegrity, "cache file version mismatch")
	}
	if uint32(len(raw)-headerLen) < payloadLen {
		return nil, bldrerr.New(bldrerr.KindIntegrity, "cache file payload length out of bounds")
	}

	payload := raw[headerLen : headerLen+int(payloadLen)]
	sig := raw[headerLen+int(payloadLen):]

	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	expected := mac.Sum(nil)
	if !hmac.Equal(expected, sig) {
		return nil, bldrerr.New(bldrerr.KindIntegrity, "cache file signature mismatch")
	}

	return payload, nil
}

// SaveTargetCache persists c's entries to path, signed with key.
func (c *TargetCache) SaveTargetCache(path string, key []byte) error {
	c.mu.Lock()
	snap := targetSnapshot{Entries: make([]TargetEntry, 0, len(c.entries))}
	for _, e := range c.entries {
		snap.Entries = append(snap.Entries, *e)
	}
	c.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return bldrerr.Wrap(bldrerr.KindSystem, err, "encoding target cache payload")
	}
	return writeEnvelope(path, buf.Bytes(), key)
}

// LoadTargetCache loads entries from path into c. On any integrity failure
// it resets c to empty and returns the (non-fatal) error for logging;
// callers typically ignore a non-nil error here beyond a warning log, per
// bldrerr.Recover.
func LoadTargetCache(path string, key []byte, policy eviction.Policy) (*TargetCache, error) {
	c := NewTargetCache(policy)
	payload, err := readEnvelope(path, key)
	if err != nil {
		bldrerr.Recover(err, c.Clear)
		return c, err
	}
	if payload == nil {
		return c, nil
	}

	var snap targetSnapshot
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&snap); err != nil {
		werr := bldrerr.Wrap(bldrerr.KindIntegrity, err, "decoding target cache payload")
		bldrerr.Recover(werr, c.Clear)
		return c, werr
	}

	for i := range snap.Entries {
		e := snap.Entries[i]
		c.entries[e.TargetId] = &e
	}
	return c, nil
}

// SaveActionCache persists c's entries to path, signed with key.
func (c *ActionCache) SaveActionCache(path string, key []byte) error {
	c.mu.Lock()
	snap := actionSnapshot{Entries: make([]ActionEntry, 0, len(c.entries))}
	for _, e := range c.entries {
		snap.Entries = append(snap.Entries, *e)
	}
	c.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return bldrerr.Wrap(bldrerr.KindSystem, err, "encoding action cache payload")
	}
	return writeEnvelope(path, buf.Bytes(), key)
}

// LoadActionCache loads entries from path into c, resetting to empty on any
// integrity failure (never fatal).
func LoadActionCache(path string, key []byte, policy eviction.Policy) (*ActionCache, error) {
	c := NewActionCache(policy)
	payload, err := readEnvelope(path, key)
	if err != nil {
		bldrerr.Recover(err, c.Clear)
		return c, err
	}
	if payload == nil {
		return c, nil
	}

	var snap actionSnapshot
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&snap); err != nil {
		werr := bldrerr.Wrap(bldrerr.KindIntegrity, err, "decoding action cache payload")
		bldrerr.Recover(werr, c.Clear)
		return c, werr
	}

	for i := range snap.Entries {
		e := snap.Entries[i]
		c.entries[e.Id.String()] = &e
	}
	return c, nil
}
