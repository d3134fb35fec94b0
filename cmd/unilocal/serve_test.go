package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stopRecorder struct {
	stopped chan struct{}
}

func (s *stopRecorder) Stop(context.Context) error {
	close(s.stopped)
	return nil
}

func TestServeUntilDoneDrainsBeforeReturning(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusNoContent)
	})}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	jobs := &stopRecorder{stopped: make(chan struct{})}
	done := make(chan error, 1)
	go func() {
		done <- serveUntilDone(ctx, server, ln, jobs, 5*time.Second, slog.New(slog.DiscardHandler))
	}()

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			status <- 0
			return
		}
		_ = resp.Body.Close()
		status <- resp.StatusCode
	}()

	<-entered
	cancel()
	select {
	case err := <-done:
		t.Fatalf("returned with a request in flight: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, http.StatusNoContent, <-status)
	select {
	case <-jobs.stopped:
	default:
		t.Fatal("housekeeping was not stopped before returning")
	}
}

func TestServeUntilDoneStopsJobsWhenServingFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	jobs := &stopRecorder{stopped: make(chan struct{})}
	err = serveUntilDone(t.Context(), &http.Server{Handler: http.NotFoundHandler()}, ln, jobs, time.Second, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
	select {
	case <-jobs.stopped:
	default:
		t.Fatal("housekeeping was not stopped")
	}
}
