package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/skeinflow/skein/pkg/config"
	"github.com/skeinflow/skein/pkg/hadoop"
	"github.com/skeinflow/skein/pkg/log"
	"github.com/skeinflow/skein/pkg/metrics"
	"github.com/skeinflow/skein/pkg/plugin"
	"github.com/skeinflow/skein/pkg/reporter"
	"github.com/skeinflow/skein/pkg/resource"
	"github.com/skeinflow/skein/pkg/rpc"
	"github.com/skeinflow/skein/pkg/runner"
)

// Worker is a Skein worker node: it consumes task dispatches from masters,
// schedules them through the delay queue and worker pool, and reports
// lifecycle status back.
type Worker struct {
	cfg *config.Config

	reader     *kafka.Reader
	status     *rpc.StatusProducer
	alerts     *rpc.AlertProducer
	heartbeats *rpc.HeartbeatProducer

	reporter *reporter.Reporter
	stager   *resource.Stager
	registry *plugin.Registry
	cache    *runner.Cache
	queue    *runner.DelayQueue
	pool     *runner.Pool
	killer   hadoop.AppKiller

	healthServer *health.Server
	grpcServer   *grpc.Server
	httpServer   *http.Server

	stopOnce sync.Once
}

// New assembles a worker from its configuration. storage may be nil when
// resource uploads are disabled; registry must already hold the deployed
// plugins.
func New(cfg *config.Config, registry *plugin.Registry, storage resource.StorageOperate) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}

	status := rpc.NewStatusProducer(cfg.Kafka.Brokers, cfg.Kafka.StatusTopic, cfg.NodeID)
	alerts := rpc.NewAlertProducer(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic, cfg.NodeID)

	w := &Worker{
		cfg:        cfg,
		reader:     rpc.NewDispatchReader(cfg.Kafka.Brokers, cfg.Kafka.DispatchTopic, cfg.Kafka.GroupID),
		status:     status,
		alerts:     alerts,
		heartbeats: rpc.NewHeartbeatProducer(cfg.Kafka.Brokers, cfg.Kafka.HeartbeatTopic, cfg.NodeID),
		reporter:   reporter.New(status, alerts, cfg.Retry),
		stager:     resource.NewStager(storage, cfg.ResourceUploadEnabled),
		registry:   registry,
		cache:      runner.NewCache(),
		queue:      runner.NewDelayQueue(),
		killer:     hadoop.NewYarnClient(),
	}
	w.pool = runner.NewPool(w.queue, cfg.ExecThreads)
	return w, nil
}

// Start runs the worker until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	logger := log.WithNodeID(w.cfg.NodeID)
	logger.Info().
		Int("exec_threads", w.cfg.ExecThreads).
		Strs("brokers", w.cfg.Kafka.Brokers).
		Msg("worker starting")

	if err := w.serveHealth(); err != nil {
		return err
	}
	w.serveMetrics()

	w.pool.Start(ctx)
	go w.heartbeatLoop(ctx)

	w.healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	err := w.consumeLoop(ctx)

	w.healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	w.pool.Wait()
	w.close()
	logger.Info().Msg("worker stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// consumeLoop reads dispatch messages until ctx is cancelled.
func (w *Worker) consumeLoop(ctx context.Context) error {
	logger := log.WithComponent("dispatcher")
	for {
		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return err
			}
			logger.Error().Err(err).Msg("dispatch read error, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		w.handleMessage(ctx, msg.Value)
	}
}

// heartbeatLoop publishes periodic liveness reports, the worker-side half
// of the master's dead-node detection.
func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval.Std())
	defer ticker.Stop()

	logger := log.WithComponent("heartbeat")
	for {
		select {
		case <-ticker.C:
			queued := w.queue.Size()
			running := w.cache.Size() - queued
			if running < 0 {
				running = 0
			}
			hb := rpc.Heartbeat{
				QueueDepth:   queued,
				RunningTasks: running,
				ExecThreads:  w.cfg.ExecThreads,
			}
			if err := w.heartbeats.SendHeartbeat(ctx, hb); err != nil {
				logger.Warn().Err(err).Msg("heartbeat send failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// serveHealth starts the gRPC health endpoint.
func (w *Worker) serveHealth() error {
	lis, err := net.Listen("tcp", w.cfg.HealthAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on health address %s: %w", w.cfg.HealthAddr, err)
	}

	w.healthServer = health.NewServer()
	w.grpcServer = grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(w.grpcServer, w.healthServer)

	go func() {
		if err := w.grpcServer.Serve(lis); err != nil {
			logger := log.WithComponent("health")
			logger.Error().Err(err).Msg("health server stopped")
		}
	}()
	return nil
}

// serveMetrics starts the Prometheus endpoint.
func (w *Worker) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	w.httpServer = &http.Server{Addr: w.cfg.MetricsAddr, Handler: mux}

	go func() {
		if err := w.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger := log.WithComponent("metrics")
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}

func (w *Worker) close() {
	w.stopOnce.Do(func() {
		if w.reader != nil {
			_ = w.reader.Close()
		}
		if w.status != nil {
			_ = w.status.Close()
		}
		if w.alerts != nil {
			_ = w.alerts.Close()
		}
		if w.heartbeats != nil {
			_ = w.heartbeats.Close()
		}
		if w.grpcServer != nil {
			w.grpcServer.GracefulStop()
		}
		if w.httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = w.httpServer.Shutdown(shutdownCtx)
		}
	})
}
