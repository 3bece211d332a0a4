package grpcx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

func TestWatchReadinessSetsStatus(t *testing.T) {
	hs := health.NewServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		WatchReadiness(ctx, hs, "spa", time.Hour, func(context.Context) error { return errors.New("db down") })
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "spa"})
		if err == nil && resp.Status == healthpb.HealthCheckResponse_NOT_SERVING {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected NOT_SERVING, got %v / %v", resp, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestRequestIDInterceptorUsesIncomingMetadata(t *testing.T) {
	interceptor := UnaryServerRequestIDInterceptor()
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "req-7"))

	var seen string
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/x"}, func(ctx context.Context, _ any) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor failed: %v", err)
	}
	if seen != "req-7" {
		t.Fatalf("expected req-7, got %q", seen)
	}
}

func TestLogInterceptorPassesThrough(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	interceptor := UnaryServerLogInterceptor(logger)
	resp, err := interceptor(context.Background(), "in", &grpc.UnaryServerInfo{FullMethod: "/x"}, func(_ context.Context, req any) (any, error) {
		return req, nil
	})
	if err != nil || resp != "in" {
		t.Fatalf("unexpected result %v %v", resp, err)
	}
}
