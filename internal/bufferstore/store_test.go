package bufferstore

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	calls int
	obj   Object
	err   error
}

func (f *fakeStore) Get(_ context.Context, _ string) (Object, error) {
	f.calls++
	return f.obj, f.err
}

func TestGetWithShortCircuit(t *testing.T) {
	inner := &fakeStore{obj: Object{Bytes: []byte("stored")}}
	intercept := func(_ context.Context, _ string) (Object, bool, error) {
		return Object{Bytes: []byte("redirected"), ContentType: "text/plain"}, true, nil
	}

	obj, err := GetWith(context.Background(), inner, "a.png", intercept)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(obj.Bytes) != "redirected" {
		t.Fatalf("intercept result expected, got %q", obj.Bytes)
	}
	if inner.calls != 0 {
		t.Fatal("store must not be hit when the interceptor short-circuits")
	}
}

func TestGetWithFallsThrough(t *testing.T) {
	inner := &fakeStore{obj: Object{Bytes: []byte("stored"), ContentType: "image/png"}}
	intercept := func(_ context.Context, _ string) (Object, bool, error) {
		return Object{}, false, nil
	}

	obj, err := GetWith(context.Background(), inner, "a.png", intercept)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(obj.Bytes) != "stored" || inner.calls != 1 {
		t.Fatalf("expected store hit, got %q calls=%d", obj.Bytes, inner.calls)
	}
}

func TestGetWithInterceptError(t *testing.T) {
	inner := &fakeStore{}
	wantErr := errors.New("signature rejected")
	intercept := func(_ context.Context, _ string) (Object, bool, error) {
		return Object{}, false, wantErr
	}

	if _, err := GetWith(context.Background(), inner, "a.png", intercept); !errors.Is(err, wantErr) {
		t.Fatalf("expected intercept error, got %v", err)
	}
	if inner.calls != 0 {
		t.Fatal("store must not be hit after an interceptor error")
	}
}
