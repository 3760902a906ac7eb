package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiFansOutToAllSubscribers(t *testing.T) {
	var calls []Type
	a := PublisherFunc(func(e Event) { calls = append(calls, e.Type) })
	b := PublisherFunc(func(e Event) { calls = append(calls, e.Type) })

	m := Multi{Subscribers: []Publisher{a, b}}
	m.Publish(New(TypeCacheHit, CategoryStatistics, nil))

	assert.Equal(t, []Type{TypeCacheHit, TypeCacheHit}, calls)
}

func TestCacheAdapterWrapsEventType(t *testing.T) {
	var got Event
	pub := PublisherFunc(func(e Event) { got = e })

	adapter := NewCacheAdapter(pub)
	adapter.Publish("cache.hit", map[string]any{"target": "a"})

	assert.Equal(t, TypeCacheHit, got.Type)
	assert.Equal(t, "a", got.Fields["target"])
}
