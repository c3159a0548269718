// Package worker consumes store-result tasks and persists transformed
// outputs to the object store.
package worker

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/pixelgate/internal/bufferstore"
	"github.com/dunamismax/pixelgate/internal/config"
	"github.com/dunamismax/pixelgate/internal/queue"
)

type Server struct {
	logger  *log.Logger
	server  *asynq.Server
	sem     chan struct{}
	writer  resultWriter
	metrics *metrics
	tracer  trace.Tracer
}

type resultWriter interface {
	Put(ctx context.Context, uri string, obj bufferstore.Object) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	writer resultWriter,
) (*Server, error) {
	if writer == nil {
		return nil, fmt.Errorf("result writer is required")
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:     make(chan struct{}, max(1, workerCfg.MaxActiveTasks)),
		writer:  writer,
		metrics: newMetrics(),
		tracer:  otel.Tracer("pixelgate/worker"),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeStoreResult, s.handleStoreResult)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleStoreResult(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := "failed"

	payload, err := queue.ParseStoreResultPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.store_result", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("result.cache_key", payload.CacheKey),
		attribute.String("result.object_uri", payload.ObjectURI),
		attribute.Int("result.bytes", len(payload.Bytes)),
	)
	defer span.End()
	defer func() {
		s.metrics.taskDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.tasksTotal.WithLabelValues(outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeTasks.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeTasks.Dec()
	}()

	if len(payload.Bytes) == 0 {
		return fmt.Errorf("empty result payload for %s: %w", payload.CacheKey, asynq.SkipRetry)
	}

	obj := bufferstore.Object{
		Bytes:       payload.Bytes,
		ContentType: payload.ContentType,
	}
	if err := s.writer.Put(ctx, payload.CacheKey, obj); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "result write failed")
		return fmt.Errorf("write result %s: %w", payload.CacheKey, err)
	}

	s.logger.Printf("stored result cache_key=%s object=%s bytes=%d", payload.CacheKey, payload.ObjectURI, len(payload.Bytes))
	s.metrics.bytesWrittenTotal.Add(float64(len(payload.Bytes)))

	outcome = "stored"
	span.SetStatus(codes.Ok, "stored")
	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
