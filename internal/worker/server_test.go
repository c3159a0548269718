package worker

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/dunamismax/pixelgate/internal/bufferstore"
	"github.com/dunamismax/pixelgate/internal/config"
	"github.com/dunamismax/pixelgate/internal/queue"
)

type fakeWriter struct {
	puts map[string]bufferstore.Object
	err  error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{puts: make(map[string]bufferstore.Object)}
}

func (w *fakeWriter) Put(_ context.Context, uri string, obj bufferstore.Object) error {
	if w.err != nil {
		return w.err
	}
	w.puts[uri] = obj
	return nil
}

func newTestServer(t *testing.T, writer resultWriter) *Server {
	t.Helper()
	s, err := NewServer(
		log.New(testWriter{t}, "[worker] ", 0),
		config.QueueConfig{RedisAddr: "localhost:6379", Name: "default"},
		config.WorkerConfig{Concurrency: 1, MaxActiveTasks: 1},
		writer,
	)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestHandleStoreResultWritesObject(t *testing.T) {
	writer := newFakeWriter()
	s := newTestServer(t, writer)

	payload := queue.StoreResultPayload{
		CacheKey:    queue.CacheKey("photos/cat.png", "image/format,jpg"),
		ObjectURI:   "photos/cat.png",
		Instruction: "image/format,jpg",
		ContentType: "image/jpeg",
		Bytes:       []byte("jpeg-bytes"),
		ProducedAt:  time.Now().UTC(),
	}
	task, err := queue.NewStoreResultTask(payload)
	if err != nil {
		t.Fatalf("NewStoreResultTask: %v", err)
	}

	if err := s.handleStoreResult(context.Background(), task); err != nil {
		t.Fatalf("handleStoreResult: %v", err)
	}

	obj, ok := writer.puts[payload.CacheKey]
	if !ok {
		t.Fatalf("no object written under %s", payload.CacheKey)
	}
	if obj.ContentType != "image/jpeg" || string(obj.Bytes) != "jpeg-bytes" {
		t.Fatalf("written object = %+v, want the payload bytes", obj)
	}
}

func TestHandleStoreResultPropagatesWriteFailure(t *testing.T) {
	writer := newFakeWriter()
	writer.err = errors.New("bucket offline")
	s := newTestServer(t, writer)

	task, err := queue.NewStoreResultTask(queue.StoreResultPayload{
		CacheKey: "cache/abc",
		Bytes:    []byte("data"),
	})
	if err != nil {
		t.Fatalf("NewStoreResultTask: %v", err)
	}

	if err := s.handleStoreResult(context.Background(), task); err == nil {
		t.Fatal("expected the write failure to surface for retry")
	}
}

func TestNewServerRequiresWriter(t *testing.T) {
	_, err := NewServer(log.Default(), config.QueueConfig{}, config.WorkerConfig{}, nil)
	if err == nil {
		t.Fatal("expected an error without a result writer")
	}
}
