package verifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"forge.evalgo.org/bldrerr"
	"forge.evalgo.org/graph"
)

// Certificate bundles a Proof's hash with an HMAC signature and the
// workspace identifier it was produced for. Verify re-derives the proof
// hash and re-checks the signature; it never re-runs the underlying graph
// checks.
type Certificate struct {
	Workspace string
	ProofHash string
	Signature string
}

// proofHash produces a stable digest of a Proof's content, used both to
// sign and to verify a Certificate. Ordering is normalized so the hash is
// independent of map iteration order.
func proofHash(p *Proof) string {
	h := sha256.New()

	fmt.Fprintf(h, "order:")
	for _, id := range p.Acyclicity.Order {
		fmt.Fprintf(h, "%s,", id)
	}

	var checked []string
	for _, id := range p.Hermeticity.CheckedTargets {
		checked = append(checked, string(id))
	}
	sort.Strings(checked)
	fmt.Fprintf(h, "hermetic:%s", strings.Join(checked, ","))

	var detKeys []string
	for id := range p.Determinism.HashedTargets {
		detKeys = append(detKeys, string(id))
	}
	sort.Strings(detKeys)
	for _, id := range detKeys {
		fmt.Fprintf(h, "det:%s=%s,", id, p.Determinism.HashedTargets[graph.TargetId(id)])
	}

	fmt.Fprintf(h, "race:%v", p.RaceFreedom.Verified)

	return hex.EncodeToString(h.Sum(nil))
}

// Sign produces a Certificate for proof, signed with key.
func Sign(workspace string, proof *Proof, key []byte) *Certificate {
	ph := proofHash(proof)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(workspace))
	mac.Write([]byte(ph))
	sig := hex.EncodeToString(mac.Sum(nil))

	return &Certificate{
		Workspace: workspace,
		ProofHash: ph,
		Signature: sig,
	}
}

// Verify re-derives proof's hash and re-checks c's signature against it.
func (c *Certificate) Verify(proof *Proof, key []byte) error {
	ph := proofHash(proof)
	if ph != c.ProofHash {
		return bldrerr.New(bldrerr.KindIntegrity, "certificate proof hash mismatch")
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(c.Workspace))
	mac.Write([]byte(ph))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(c.Signature)) {
		return bldrerr.New(bldrerr.KindIntegrity, "certificate signature mismatch")
	}
	return nil
}
