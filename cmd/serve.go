package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/propsight/scout-cli/internal/comps"
	"github.com/propsight/scout-cli/internal/geomath"
	"github.com/propsight/scout-cli/internal/model"
	"github.com/propsight/scout-cli/internal/resolver"
	"github.com/propsight/scout-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for resolution and comparables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		r, err := buildResolver()
		if err != nil {
			// The API still serves comps when reverse lookup is unconfigured.
			zap.L().Warn("resolve endpoint disabled", zap.Error(err))
		}
		svc := buildCompsService(st)

		router := newRouter(r, svc, st)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type resolveRequest struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Heading   *float64 `json:"heading"`
	DistanceM float64  `json:"distance_m"`
}

type compsRequest struct {
	Subject model.SubjectProperty `json:"subject"`
	Kind    string                `json:"kind"`
	Limit   int                   `json:"limit"`
}

// newRouter builds the chi router. res may be nil when reverse lookup is
// not configured; the resolve endpoint then answers 503.
func newRouter(res *resolver.Resolver, svc *comps.Service, st store.Store) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Post("/v1/resolve", func(w http.ResponseWriter, r *http.Request) {
		if res == nil {
			writeError(w, http.StatusServiceUnavailable, "reverse lookup not configured")
			return
		}

		var req resolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.DistanceM <= 0 {
			req.DistanceM = cfg.Scan.DefaultDistanceM
		}

		start := time.Now()
		origin := geomath.Point{Lat: req.Lat, Lng: req.Lng}
		resolved, err := res.Resolve(r.Context(), origin, req.Heading, req.DistanceM)

		rec := model.ScanRecord{
			Origin:     origin,
			Heading:    req.Heading,
			DistanceM:  req.DistanceM,
			DurationMs: time.Since(start).Milliseconds(),
		}
		switch {
		case err == nil:
			rec.Status = model.ScanStatusResolved
			rec.Resolved = resolved
		case eris.Is(err, resolver.ErrNoPropertyMatched):
			rec.Status = model.ScanStatusNoMatch
			rec.Error = err.Error()
		default:
			rec.Status = model.ScanStatusFailed
			rec.Error = err.Error()
		}
		if _, saveErr := st.SaveScan(r.Context(), rec); saveErr != nil {
			zap.L().Warn("save scan record failed", zap.Error(saveErr))
		}

		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, resolved)
		case eris.Is(err, resolver.ErrHeadingUnavailable),
			eris.Is(err, resolver.ErrLocationUnavailable):
			writeError(w, http.StatusBadRequest, err.Error())
		case eris.Is(err, resolver.ErrNoPropertyMatched):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
	})

	router.Post("/v1/comps", func(w http.ResponseWriter, r *http.Request) {
		var req compsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Subject.ID == "" && req.Subject.Address == "" && req.Subject.URL == "" {
			writeError(w, http.StatusBadRequest, "subject id, address, or url is required")
			return
		}
		if req.Limit <= 0 {
			req.Limit = cfg.Comps.Limit
		}

		switch req.Kind {
		case "sale", "rental":
			result := svc.Fetch(r.Context(), req.Subject, model.CompsKind(req.Kind), req.Limit, 0)
			writeJSON(w, compsStatus(result), result)
		case "", "both":
			sale, rental := svc.FetchBoth(r.Context(), req.Subject, req.Limit)
			status := http.StatusOK
			if !sale.OK && !rental.OK {
				status = http.StatusBadGateway
			}
			writeJSON(w, status, map[string]comps.Result{"sale": sale, "rental": rental})
		default:
			writeError(w, http.StatusBadRequest, "kind must be sale, rental, or both")
		}
	})

	router.Get("/v1/scans", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.ScanFilter{Status: model.ScanStatus(q.Get("status"))}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			filter.Limit = n
		}
		if v := q.Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
				return
			}
			filter.Offset = n
		}

		records, err := st.ListScans(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, records)
	})

	return router
}

func compsStatus(res comps.Result) int {
	if res.OK {
		return http.StatusOK
	}
	switch res.StatusCode {
	case http.StatusNotFound, http.StatusUnauthorized, http.StatusTooManyRequests:
		return res.StatusCode
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
