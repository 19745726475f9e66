package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/school-cli/internal/model"
	"github.com/sells-group/school-cli/internal/resolve"
)

var servePort int

// schoolResolver is the part of resolve.Resolver the HTTP handlers use.
type schoolResolver interface {
	Resolve(ctx context.Context, affNo string) (*model.EnrichedProfile, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the school lookup HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(env.Resolver, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the HTTP routes. A nil resolver leaves only /health
// functional.
func buildRouter(res schoolResolver, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	school := schoolHandler(res)
	r.Get("/api/school/", school)
	r.Get("/api/school/{affNo}", school)

	return r
}

func schoolHandler(res schoolResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		affNo := strings.TrimSpace(chi.URLParam(r, "affNo"))
		if affNo == "" {
			writeError(w, http.StatusBadRequest, "Affiliation number required")
			return
		}
		if res == nil {
			writeError(w, http.StatusServiceUnavailable, "resolver not configured")
			return
		}

		profile, err := res.Resolve(r.Context(), affNo)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, profile)
		case errors.Is(err, resolve.ErrInvalidID):
			writeError(w, http.StatusBadRequest, "Affiliation number required")
		case errors.Is(err, resolve.ErrNotFound):
			writeError(w, http.StatusNotFound, notFoundMessage)
		default:
			zap.L().Error("school lookup failed",
				zap.String("aff_no", affNo),
				zap.String("request_id", w.Header().Get("X-Request-Id")),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

// requestID tags each request with a UUID and logs its completion.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		zap.L().Debug("http request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
