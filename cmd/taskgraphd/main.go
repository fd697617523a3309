// Command taskgraphd is a small demo service wrapping the scheduler
// behind an HTTP API: POST a graph definition, get back the run summary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	artron "github.com/ahmet2mir/go-artron"
	"github.com/ahmet2mir/go-artron/internal/logging"
	"github.com/ahmet2mir/go-artron/internal/otelinit"
)

// graphRequest is the wire format for a POST /v1/run body: a flat list
// of tasks naming a built-in demo operation.
type graphRequest struct {
	Tasks []taskSpec `json:"tasks"`
}

type taskSpec struct {
	Tid     string         `json:"tid"`
	Func    string         `json:"func"`
	Require []string       `json:"require"`
	Inputs  map[string]any `json:"inputs"`
}

// demoRegistry exposes a couple of harmless built-in operations so the
// service is runnable without a caller providing their own executor:
// "echo" returns its inputs back, "sleep" waits for a duration.
func demoRegistry() *artron.Registry {
	reg := artron.NewRegistry()
	reg.Register("echo", func(ctx context.Context, args map[string]any) (any, error) {
		return args, nil
	})
	reg.Register("sleep", func(ctx context.Context, args map[string]any) (any, error) {
		ms, _ := args["ms"].(float64)
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
			return "slept", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	return reg
}

func main() {
	logger := logging.Init("taskgraphd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTrace := otelinit.InitTracer(ctx, "taskgraphd")
	shutdownMetrics, meter := otelinit.InitMetrics(ctx, "taskgraphd")

	registry := demoRegistry()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req graphRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		mgr := artron.NewManager(registry,
			artron.WithMeter(meter),
			artron.WithDeadline(time.Minute),
		)
		for _, spec := range req.Tasks {
			mgr.Add(artron.NewTask(spec.Tid, spec.Inputs, spec.Func, spec.Require))
		}

		summary := mgr.Start(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if summary.ExitCode != 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}
		_ = json.NewEncoder(w).Encode(summary)
	})

	srv := &http.Server{Addr: ":8080", Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	logger.Info("taskgraphd started", "addr", srv.Addr)
	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	otelinit.Flush(shutdownCtx, shutdownTrace)
	otelinit.Flush(shutdownCtx, shutdownMetrics)
	logger.Info("shutdown complete")
}
