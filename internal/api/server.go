// Package api exposes the gateway HTTP surface: object fetches with an
// optional processing instruction, health probes, and metrics.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/pixelgate/internal/apierr"
	"github.com/dunamismax/pixelgate/internal/auth"
	"github.com/dunamismax/pixelgate/internal/bufferstore"
	"github.com/dunamismax/pixelgate/internal/id"
	"github.com/dunamismax/pixelgate/internal/parser"
	"github.com/dunamismax/pixelgate/internal/pipeline"
	"github.com/dunamismax/pixelgate/internal/queue"
	"github.com/dunamismax/pixelgate/internal/store"
)

// Runner executes a parsed request, either as a passthrough fetch or a
// full transform pipeline.
type Runner interface {
	Run(ctx context.Context, req parser.ParsedRequest) (pipeline.Result, error)
}

// ResultEnqueuer hands transformed outputs to the write-behind queue.
type ResultEnqueuer interface {
	EnqueueStoreResult(ctx context.Context, payload queue.StoreResultPayload) (*asynq.TaskInfo, error)
}

// Options carries the optional collaborators. Every nil field simply
// disables its feature.
type Options struct {
	Cache       bufferstore.Store
	Enqueuer    ResultEnqueuer
	Usage       store.UsageStore
	Verifier    *auth.Verifier
	RateLimiter RateLimiter
	UserHeader  string
}

type Server struct {
	logger     *log.Logger
	runner     Runner
	cache      bufferstore.Store
	enqueuer   ResultEnqueuer
	usage      store.UsageStore
	verifier   *auth.Verifier
	limiter    RateLimiter
	userHeader string
	metrics    *metrics
	tracer     trace.Tracer
	mux        *http.ServeMux
}

func NewServer(logger *log.Logger, runner Runner, opts Options) *Server {
	verifier := opts.Verifier
	if verifier == nil {
		verifier = auth.NewVerifier("")
	}
	userHeader := opts.UserHeader
	if userHeader == "" {
		userHeader = "X-User-ID"
	}

	s := &Server{
		logger:     logger,
		runner:     runner,
		cache:      opts.Cache,
		enqueuer:   opts.Enqueuer,
		usage:      opts.Usage,
		verifier:   verifier,
		limiter:    opts.RateLimiter,
		userHeader: userHeader,
		metrics:    newMetrics(),
		tracer:     otel.Tracer("pixelgate/api"),
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleOK)
	s.mux.HandleFunc("GET /ping", s.handleOK)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("GET /", s.handleImage)
}

func (s *Server) handleOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rawInstruction := r.URL.Query().Get(parser.InstructionParam)

	if err := s.verifier.Verify(r.URL.Path, rawInstruction, r.URL.Query().Get(auth.SignatureParam)); err != nil {
		s.writeError(w, err)
		return
	}

	req, err := parser.Parse(r.URL.Path, r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}

	if obj, ok := s.cachedResult(r.Context(), req); ok {
		s.metrics.cacheHitsTotal.Inc()
		s.writeImage(w, obj.Bytes, obj.ContentType)
		return
	}

	result, err := s.runner.Run(r.Context(), req)
	if err != nil {
		if req.Transform() {
			s.metrics.transformsTotal.WithLabelValues("failed").Inc()
		}
		s.writeError(w, err)
		return
	}

	s.writeImage(w, result.Bytes, result.ContentType)

	if result.Transformed {
		s.metrics.transformsTotal.WithLabelValues("ok").Inc()
		s.persistResult(r.Context(), req, result)
		s.recordUsage(r.Context(), req, result, time.Since(start))
	}
}

// cachedResult checks the write-behind cache for a previously persisted
// transform of the same object and instruction.
func (s *Server) cachedResult(ctx context.Context, req parser.ParsedRequest) (bufferstore.Object, bool) {
	if s.cache == nil || !req.Transform() {
		return bufferstore.Object{}, false
	}
	obj, err := s.cache.Get(ctx, queue.CacheKey(req.ObjectURI, req.Instruction()))
	if err != nil {
		return bufferstore.Object{}, false
	}
	return obj, true
}

func (s *Server) persistResult(ctx context.Context, req parser.ParsedRequest, result pipeline.Result) {
	if s.enqueuer == nil {
		return
	}
	payload := queue.StoreResultPayload{
		CacheKey:    queue.CacheKey(req.ObjectURI, req.Instruction()),
		ObjectURI:   req.ObjectURI,
		Instruction: req.Instruction(),
		ContentType: result.ContentType,
		Bytes:       result.Bytes,
		ProducedAt:  time.Now().UTC(),
	}
	if _, err := s.enqueuer.EnqueueStoreResult(ctx, payload); err != nil {
		s.logger.Printf("result enqueue failed object=%s err=%v", req.ObjectURI, err)
	}
}

func (s *Server) recordUsage(ctx context.Context, req parser.ParsedRequest, result pipeline.Result, elapsed time.Duration) {
	if s.usage == nil {
		return
	}
	durationMS := elapsed.Milliseconds()
	if durationMS < 1 {
		durationMS = 1
	}
	record := store.UsageRecord{
		ID:          id.New(),
		ObjectURI:   req.ObjectURI,
		Instruction: req.Instruction(),
		SourceBytes: result.SourceBytes,
		OutputBytes: len(result.Bytes),
		Format:      result.Format,
		DurationMS:  durationMS,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.usage.CreateUsageRecord(ctx, record); err != nil {
		s.logger.Printf("usage record write failed object=%s err=%v", req.ObjectURI, err)
	}
}

func (s *Server) writeImage(w http.ResponseWriter, data []byte, contentType string) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	apiErr := apierr.From(err)
	if apiErr.Status >= http.StatusInternalServerError && s.logger != nil {
		s.logger.Printf("request failed status=%d err=%v", apiErr.Status, err)
	}
	writeJSON(w, apiErr.Status, apiErr)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
