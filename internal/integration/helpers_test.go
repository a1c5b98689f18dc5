//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/burn-area-service/internal/adapter/archive"
	"github.com/couchcryptid/burn-area-service/internal/adapter/gdal"
	"github.com/couchcryptid/burn-area-service/internal/adapter/sqlite"
	"github.com/couchcryptid/burn-area-service/internal/domain"
	"github.com/couchcryptid/burn-area-service/internal/fixture"
	"github.com/couchcryptid/burn-area-service/internal/observability"
	"github.com/couchcryptid/burn-area-service/internal/pipeline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("burnscan-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// sceneHarness runs the real pipeline over a generated scene.
type sceneHarness struct {
	scene    fixture.Scene
	pipeline *pipeline.Pipeline
	ledger   *sqlite.Store
	dirs     pipeline.Dirs
}

func newSceneHarness(t *testing.T, opts fixture.Options, pipelineOpts ...pipeline.Option) *sceneHarness {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()
	logger := discardLogger()

	scene, err := fixture.Generate(ctx, filepath.Join(root, "scene"), opts, logger)
	require.NoError(t, err)

	ledger, err := sqlite.Open(ctx, filepath.Join(root, "ledger.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	engine := gdal.NewEngine(logger)
	dirs := pipeline.Dirs{WorkRoot: filepath.Join(root, "work"), Results: filepath.Join(root, "results")}
	p := pipeline.New(pipeline.Stages{
		Extractor:  archive.NewExtractor(4, logger),
		Clipper:    engine,
		Rasters:    engine,
		Vectorizer: engine,
	}, dirs, logger, observability.NewMetricsForTesting(),
		append([]pipeline.Option{pipeline.WithRecorder(ledger)}, pipelineOpts...)...)

	return &sceneHarness{scene: scene, pipeline: p, ledger: ledger, dirs: dirs}
}

func (h *sceneHarness) request(variant domain.Variant, name string) pipeline.Request {
	return pipeline.Request{
		Pre:        h.scene.Pre,
		Post:       h.scene.Post,
		Boundary:   h.scene.Boundary,
		Variant:    variant,
		OutputName: name,
	}
}

// recordingSink collects progress milestones.
type recordingSink struct {
	percents []int
}

func (s *recordingSink) Progress(percent int, _ string) {
	s.percents = append(s.percents, percent)
}

func withTimeout(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}
