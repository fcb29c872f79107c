package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lens-cli/internal/lens"
	"github.com/sells-group/lens-cli/internal/model"
	"github.com/sells-group/lens-cli/internal/task"
)

var servePort int

// taskRunner is the slice of task.Dispatcher the API uses.
type taskRunner interface {
	Start(ctx context.Context, name string, input any) (*task.Run, error)
	Progress(ctx context.Context, workflowID string) (*lens.Progress, error)
	Result(ctx context.Context, workflowID string, out any) error
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the task API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		tc, err := dialTemporal()
		if err != nil {
			return err
		}
		defer tc.Close()

		router := buildRouter(task.NewDispatcher(tc, cfg.Temporal.TaskQueue), cfg.Server.CORSOrigins)
		return startServer(ctx, router, resolvePort(servePort, cfg.Server.Port))
	},
}

func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

func startServer(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

// buildRouter wires the task API:
//
//	GET  /health
//	POST /v1/tasks/{task}                 start a task, body is its input
//	GET  /v1/runs/{workflowID}/progress   progress of a running task
//	GET  /v1/runs/{workflowID}/result     wait for and return the task result
func buildRouter(runner taskRunner, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(rt chi.Router) {
		rt.Post("/tasks/{task}", wrap(func(w http.ResponseWriter, req *http.Request) error {
			name := chi.URLParam(req, "task")
			body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
			if err != nil {
				return model.NewInputError("body", "%v", err)
			}
			if len(body) == 0 {
				body = []byte("{}")
			}
			input, err := task.DecodeInput(name, body)
			if err != nil {
				return err
			}
			run, err := runner.Start(req.Context(), name, input)
			if err != nil {
				return err
			}
			zap.L().Info("task started",
				zap.String("task", name),
				zap.String("workflow_id", run.WorkflowID),
			)
			writeJSON(w, http.StatusAccepted, run)
			return nil
		}))

		rt.Get("/runs/{workflowID}/progress", wrap(func(w http.ResponseWriter, req *http.Request) error {
			p, err := runner.Progress(req.Context(), chi.URLParam(req, "workflowID"))
			if err != nil {
				return err
			}
			writeJSON(w, http.StatusOK, p)
			return nil
		}))

		rt.Get("/runs/{workflowID}/result", wrap(func(w http.ResponseWriter, req *http.Request) error {
			var out json.RawMessage
			if err := runner.Result(req.Context(), chi.URLParam(req, "workflowID"), &out); err != nil {
				return err
			}
			writeJSON(w, http.StatusOK, out)
			return nil
		}))
	})

	return r
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps handler errors to status codes. Input errors, including those
// carried back from a failed workflow, are 400s.
func wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		if model.IsInputError(err) || task.IsInputError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		zap.L().Error("request failed",
			zap.String("path", req.URL.Path),
			zap.String("request_id", middleware.GetReqID(req.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
