package sandbox

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"

	"forge.evalgo.org/bldrerr"
)

// VerificationStrategy selects how two runs of the same action are compared
// to establish determinism.
type VerificationStrategy string

const (
	// StrategyContentHash hashes every output file and compares digests.
	// This is the default.
	StrategyContentHash VerificationStrategy = "content_hash"
	// StrategyBitwiseCompare compares output files byte for byte.
	StrategyBitwiseCompare VerificationStrategy = "bitwise_compare"
	// StrategyFuzzy ignores embedded timestamps and mtimes before comparing.
	StrategyFuzzy VerificationStrategy = "fuzzy"
	// StrategyStructural blanks timestamps and collapses runs of spaces and
	// tabs before comparing. No format-specific normalization (such as JSON
	// or XML canonicalization) is applied.
	StrategyStructural VerificationStrategy = "structural"
	// StrategyStructuralGo compares with the same normalizer as
	// StrategyStructural; no Go-specific normalization (build ids, symbol
	// tables, gofmt) is applied.
	StrategyStructuralGo VerificationStrategy = "structural_go"
)

// FileDiff names one output file whose two runs disagree.
type FileDiff struct {
	Path    string
	ReasonA string
	ReasonB string
}

// CompareOutputs runs the named strategy over every path in outputs,
// evaluated against the same path under each of dirA and dirB, and returns
// the files that differ (empty means the runs are equivalent under the
// strategy).
func CompareOutputs(strategy VerificationStrategy, outputs []string, dirA, dirB string) ([]FileDiff, error) {
	var diffs []FileDiff
	for _, rel := range outputs {
		equal, err := compareOne(strategy, dirA+"/"+rel, dirB+"/"+rel)
		if err != nil {
			return nil, bldrerr.Wrap(bldrerr.KindSystem, err, fmt.Sprintf("comparing output %s", rel))
		}
		if !equal {
			diffs = append(diffs, FileDiff{Path: rel})
		}
	}
	return diffs, nil
}

func compareOne(strategy VerificationStrategy, pathA, pathB string) (bool, error) {
	a, err := os.ReadFile(pathA)
	if err != nil {
		return false, err
	}
	b, err := os.ReadFile(pathB)
	if err != nil {
		return false, err
	}

	switch strategy {
	case StrategyBitwiseCompare:
		return bytes.Equal(a, b), nil
	case StrategyFuzzy:
		return bytes.Equal(normalizeTimestamps(a), normalizeTimestamps(b)), nil
	case StrategyStructural, StrategyStructuralGo:
		return bytes.Equal(normalizeStructural(a), normalizeStructural(b)), nil
	case StrategyContentHash:
		fallthrough
	default:
		return hashOf(a) == hashOf(b), nil
	}
}

func hashOf(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

var timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?`)

// normalizeTimestamps blanks out ISO-8601-looking substrings so embedded
// build times don't cause a spurious mismatch.
func normalizeTimestamps(b []byte) []byte {
	return timestampPattern.ReplaceAll(b, []byte("<timestamp>"))
}

var whitespaceRun = regexp.MustCompile(`[ \t]+`)

// normalizeStructural collapses insignificant whitespace runs, the cheapest
// domain-agnostic approximation of "structural" equality. It offers no hook
// for format-specific normalizers (JSON key order, gofmt).
func normalizeStructural(b []byte) []byte {
	return whitespaceRun.ReplaceAll(normalizeTimestamps(b), []byte(" "))
}
