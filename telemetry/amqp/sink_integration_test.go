//go:build integration

package amqp

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"forge.evalgo.org/telemetry"
)

func setupRabbitMQContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-management-alpine",
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForLog("Server startup complete").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	url := fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
	time.Sleep(2 * time.Second)

	return url, func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
}

func TestSinkIntegrationPublishesEventOntoExchange(t *testing.T) {
	url, cleanup := setupRabbitMQContainer(t)
	defer cleanup()

	sink, err := NewSink(Config{URL: url, Exchange: "forge-events-test", ExchangeKind: "fanout"})
	require.NoError(t, err)
	defer sink.Close()

	assert.NotPanics(t, func() {
		sink.Publish(telemetry.New(telemetry.TypeTargetStarted, telemetry.CategoryProgress, nil))
	})
}
