//go:build integration

package integration_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/burn-area-service/internal/adapter/kafka"
	"github.com/couchcryptid/burn-area-service/internal/config"
	"github.com/couchcryptid/burn-area-service/internal/domain"
	"github.com/couchcryptid/burn-area-service/internal/fixture"
	"github.com/couchcryptid/burn-area-service/internal/observability"
	"github.com/couchcryptid/burn-area-service/internal/pipeline"
)

const testTopic = "burn-area-analyses-test"

func readEvent(t *testing.T, consumer *kafkago.Reader) (domain.Run, kafkago.Message) {
	t.Helper()
	ctx := withTimeout(t, 30*time.Second)
	msg, err := consumer.ReadMessage(ctx)
	require.NoError(t, err, "read completion event")

	var run domain.Run
	require.NoError(t, json.Unmarshal(msg.Value, &run))
	return run, msg
}

func headers(msg kafkago.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

// TestPipeline_PublishesCompletionEvents runs a successful and a failing
// analysis and reads both completion events back from Kafka.
func TestPipeline_PublishesCompletionEvents(t *testing.T) {
	ctx := withTimeout(t, 4*time.Minute)

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic, KafkaEnabled: true}
	publisher := kafka.NewPublisher(cfg, discardLogger(), observability.NewMetricsForTesting())
	t.Cleanup(func() { _ = publisher.Close() })

	h := newSceneHarness(t, fixture.Options{}, pipeline.WithPublisher(publisher))

	ok, err := h.pipeline.Run(ctx, h.request(domain.BurnIndex, "published"), nil)
	require.NoError(t, err)

	bad := h.request(domain.BurnIndex, "broken")
	bad.Pre = []domain.ArchiveRef{{Path: "/nonexistent/S2A_MSIL2A_20200810T112121_N0214_R037_T29SNB_20200810T131012.zip"}}
	failed, err := h.pipeline.Run(ctx, bad, nil)
	require.ErrorIs(t, err, domain.ErrExtraction)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	run, msg := readEvent(t, consumer)
	assert.Equal(t, ok.RunID, string(msg.Key))
	assert.Equal(t, domain.RunSucceeded, run.Status)
	assert.Equal(t, ok.BurnedPixels, run.BurnedPixels)
	assert.Equal(t, kafka.EventType, headers(msg)["event_type"])
	_, err = time.Parse(time.RFC3339, headers(msg)["finished_at"])
	assert.NoError(t, err)

	run, msg = readEvent(t, consumer)
	assert.Equal(t, failed.RunID, string(msg.Key))
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Equal(t, "failed", headers(msg)["status"])
	assert.NotEmpty(t, run.Error)
}
