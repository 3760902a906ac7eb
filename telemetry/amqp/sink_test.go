package amqp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSinkInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "InvalidURL", cfg: Config{URL: "invalid://url", Exchange: "forge-events"}},
		{name: "EmptyURL", cfg: Config{URL: "", Exchange: "forge-events"}},
		{name: "NonExistentBroker", cfg: Config{URL: "amqp://nonexistent:5672", Exchange: "forge-events"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, err := NewSink(tt.cfg)
			assert.Error(t, err)
			assert.Nil(t, sink)
		})
	}
}

func TestSinkCloseOnNilFieldsDoesNotPanic(t *testing.T) {
	s := &Sink{}
	assert.NotPanics(t, func() {
		_ = s.Close()
	})
}
