// Package common provides the forge build engine's logging infrastructure:
// a global logrus instance whose output is split across stdout/stderr by
// level, so container log collectors can treat the two streams
// differently without forge having to know about any particular collector.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes error-level log lines to stderr and everything else
// to stdout, matching the "level=" field of logrus's own text formatter
// without requiring a custom formatter. Lines from the JSON formatter carry
// "level":"error" instead, which does not match, so they all go to stdout.
type OutputSplitter struct{}

// Write implements io.Writer, inspecting the already-formatted line for
// "level=error" before picking a stream.
func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the package-wide logrus instance every ContextLogger wraps by
// default.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
