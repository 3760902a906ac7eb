package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"

	"forge.evalgo.org/bldrerr"
)

// StatFingerprint computes the cheap (size, mtime) fingerprint for the fast
// path of the two-tier hashing lookup.
func StatFingerprint(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, bldrerr.Wrap(bldrerr.KindSystem, err, "statting cache input")
	}
	return Fingerprint{Size: info.Size(), Mtime: info.ModTime().UnixNano()}, nil
}

// ContentHashFile computes the slow-path content hash of a file, used once
// the fast-path fingerprint comparison has already mismatched.
func ContentHashFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", bldrerr.Wrap(bldrerr.KindSystem, err, "reading cache input for content hash")
	}
	return ContentHashBytes(b), nil
}

// ContentHashBytes hashes b directly, used for in-memory inputs such as a
// command line or environment tuple.
func ContentHashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// StableMapHash hashes a string-keyed metadata map with a stable key
// ordering, so two maps with identical content hash identically regardless
// of construction order.
func StableMapHash(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(m[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
