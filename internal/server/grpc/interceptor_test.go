package grpc

import (
	"context"
	"sync"
	"testing"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// recordingLogger keeps the messages passed to Debug.
type recordingLogger struct {
	logging.Nop
	mu   sync.Mutex
	msgs []string
	args [][]any
}

func (r *recordingLogger) Debug(_ context.Context, msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	r.args = append(r.args, args)
}

func (r *recordingLogger) With(...any) logging.Logger { return r }

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	rec := &recordingLogger{}
	s := NewHealthServer("", rec, okPinger{}, 0)

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	handlerCalled := false
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.loggingInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
	if len(rec.msgs) != 1 || rec.msgs[0] != "grpc request" {
		t.Fatalf("expected one log line, got %v", rec.msgs)
	}
}

func TestLoggingInterceptor_LogsErrorCode(t *testing.T) {
	rec := &recordingLogger{}
	s := NewHealthServer("", rec, okPinger{}, 0)

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	}

	_, err := s.loggingInterceptor(context.Background(), nil, info, h)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}

	args := rec.args[0]
	found := false
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == "code" && args[i+1] == codes.NotFound.String() {
			found = true
		}
	}
	if !found {
		t.Fatalf("status code not logged: %v", args)
	}
}
