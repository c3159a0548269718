package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/dunamismax/pixelgate/internal/apierr"
	"github.com/dunamismax/pixelgate/internal/auth"
	"github.com/dunamismax/pixelgate/internal/bufferstore"
	"github.com/dunamismax/pixelgate/internal/parser"
	"github.com/dunamismax/pixelgate/internal/pipeline"
	"github.com/dunamismax/pixelgate/internal/queue"
	"github.com/dunamismax/pixelgate/internal/store"
)

type fakeRunner struct {
	result pipeline.Result
	err    error
	calls  int
	last   parser.ParsedRequest
}

func (r *fakeRunner) Run(_ context.Context, req parser.ParsedRequest) (pipeline.Result, error) {
	r.calls++
	r.last = req
	if r.err != nil {
		return pipeline.Result{}, r.err
	}
	return r.result, nil
}

type fakeCache struct {
	objects map[string]bufferstore.Object
}

func (c *fakeCache) Get(_ context.Context, uri string) (bufferstore.Object, error) {
	obj, ok := c.objects[uri]
	if !ok {
		return bufferstore.Object{}, apierr.NotFound("object not found: %s", uri)
	}
	return obj, nil
}

type fakeEnqueuer struct {
	payloads []queue.StoreResultPayload
	err      error
}

func (e *fakeEnqueuer) EnqueueStoreResult(_ context.Context, payload queue.StoreResultPayload) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.payloads = append(e.payloads, payload)
	return &asynq.TaskInfo{}, nil
}

type recordingUsage struct {
	records []store.UsageRecord
}

func (u *recordingUsage) CreateUsageRecord(_ context.Context, record store.UsageRecord) error {
	u.records = append(u.records, record)
	return nil
}

func (u *recordingUsage) GetUsageRecord(context.Context, string) (store.UsageRecord, bool, error) {
	return store.UsageRecord{}, false, nil
}

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(logWriter{t}, "[api] ", 0)
}

type logWriter struct{ t *testing.T }

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthEndpointsReturnOK(t *testing.T) {
	s := NewServer(testLogger(t), &fakeRunner{}, Options{})
	handler := s.Handler()

	for _, target := range []string{"/", "/ping"} {
		rec := get(t, handler, target)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", target, rec.Code)
		}
		if rec.Body.String() != "ok" {
			t.Errorf("GET %s body = %q, want ok", target, rec.Body.String())
		}
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	s := NewServer(testLogger(t), &fakeRunner{}, Options{})
	rec := get(t, s.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", rec.Code)
	}
}

func TestPassthroughResponse(t *testing.T) {
	runner := &fakeRunner{result: pipeline.Result{
		Bytes:       []byte("raw-bytes"),
		ContentType: "image/png",
	}}
	enqueuer := &fakeEnqueuer{}
	s := NewServer(testLogger(t), runner, Options{Enqueuer: enqueuer})

	rec := get(t, s.Handler(), "/photos/cat.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "raw-bytes" {
		t.Errorf("body = %q, want the stored bytes", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("content type = %q, want image/png", got)
	}
	if runner.last.ObjectURI != "photos/cat.png" {
		t.Errorf("object uri = %q", runner.last.ObjectURI)
	}
	if len(enqueuer.payloads) != 0 {
		t.Error("passthrough responses must not be enqueued for persistence")
	}
}

func TestTransformPersistsAndRecordsUsage(t *testing.T) {
	runner := &fakeRunner{result: pipeline.Result{
		Bytes:       []byte("jpeg-bytes"),
		Format:      "jpeg",
		ContentType: "image/jpeg",
		Transformed: true,
		SourceBytes: 4096,
	}}
	enqueuer := &fakeEnqueuer{}
	usage := &recordingUsage{}
	s := NewServer(testLogger(t), runner, Options{Enqueuer: enqueuer, Usage: usage})

	instruction := "image/resize,w_100/format,jpg"
	rec := get(t, s.Handler(), "/photos/cat.png?"+parser.InstructionParam+"="+url.QueryEscape(instruction))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	if len(enqueuer.payloads) != 1 {
		t.Fatalf("enqueued payloads = %d, want 1", len(enqueuer.payloads))
	}
	payload := enqueuer.payloads[0]
	if payload.CacheKey != queue.CacheKey("photos/cat.png", instruction) {
		t.Errorf("cache key = %q", payload.CacheKey)
	}
	if payload.ContentType != "image/jpeg" || string(payload.Bytes) != "jpeg-bytes" {
		t.Errorf("payload = %+v, want the transformed output", payload)
	}

	if len(usage.records) != 1 {
		t.Fatalf("usage records = %d, want 1", len(usage.records))
	}
	record := usage.records[0]
	if record.ObjectURI != "photos/cat.png" || record.Instruction != instruction {
		t.Errorf("record = %+v", record)
	}
	if record.SourceBytes != 4096 || record.OutputBytes != len("jpeg-bytes") {
		t.Errorf("record sizes = %d/%d", record.SourceBytes, record.OutputBytes)
	}
	if record.ID == "" || record.DurationMS < 1 {
		t.Errorf("record should carry an id and a positive duration: %+v", record)
	}
}

func TestCacheHitSkipsThePipeline(t *testing.T) {
	instruction := "image/format,webp"
	key := queue.CacheKey("photos/cat.png", instruction)
	cache := &fakeCache{objects: map[string]bufferstore.Object{
		key: {Bytes: []byte("cached-webp"), ContentType: "image/webp"},
	}}
	runner := &fakeRunner{}
	s := NewServer(testLogger(t), runner, Options{Cache: cache})

	rec := get(t, s.Handler(), "/photos/cat.png?"+parser.InstructionParam+"="+url.QueryEscape(instruction))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "cached-webp" {
		t.Errorf("body = %q, want the cached bytes", rec.Body.String())
	}
	if runner.calls != 0 {
		t.Errorf("runner calls = %d, want 0", runner.calls)
	}
}

func TestCacheIsBypassedForPassthrough(t *testing.T) {
	cache := &fakeCache{objects: map[string]bufferstore.Object{}}
	runner := &fakeRunner{result: pipeline.Result{Bytes: []byte("raw"), ContentType: "image/png"}}
	s := NewServer(testLogger(t), runner, Options{Cache: cache})

	rec := get(t, s.Handler(), "/photos/cat.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if runner.calls != 1 {
		t.Errorf("runner calls = %d, want 1", runner.calls)
	}
}

func TestErrorResponsesAreStructuredJSON(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantName   string
	}{
		{"not found", apierr.NotFound("object not found: photos/cat.png"), http.StatusNotFound, "NotFound"},
		{"invalid argument", apierr.InvalidArgument("unsupported action: sharpen"), http.StatusBadRequest, "InvalidArgument"},
		{"internal detail hidden", errors.New("vips exploded"), http.StatusInternalServerError, "InternalError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(testLogger(t), &fakeRunner{err: tt.err}, Options{})
			rec := get(t, s.Handler(), "/photos/cat.png")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body apierr.Error
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if body.Name != tt.wantName || body.Status != tt.wantStatus {
				t.Errorf("body = %+v", body)
			}
			if tt.wantStatus == http.StatusInternalServerError && body.Message != "internal server error" {
				t.Errorf("internal detail leaked: %q", body.Message)
			}
		})
	}
}

func TestSignatureEnforcement(t *testing.T) {
	verifier := auth.NewVerifier("topsecret")
	runner := &fakeRunner{result: pipeline.Result{Bytes: []byte("raw"), ContentType: "image/png"}}
	s := NewServer(testLogger(t), runner, Options{Verifier: verifier})
	handler := s.Handler()

	rec := get(t, handler, "/photos/cat.png")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unsigned request status = %d, want 403", rec.Code)
	}

	sig := verifier.Sign("/photos/cat.png", "")
	rec = get(t, handler, "/photos/cat.png?"+auth.SignatureParam+"="+sig)
	if rec.Code != http.StatusOK {
		t.Fatalf("signed request status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
}
