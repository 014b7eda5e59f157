// Package server exposes the installation store over a read-only JSON API.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solar-cli/internal/aggregate"
	"github.com/sells-group/solar-cli/internal/export"
	"github.com/sells-group/solar-cli/internal/store"
	"github.com/sells-group/solar-cli/pkg/solar"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeGeoJSON = "application/geo+json"

	msgStateNotFound = "No installations found for this state"
)

// Options configures a Server.
type Options struct {
	AllowedOrigins []string
	// Cache is optional; nil disables response caching.
	Cache *ResponseCache
}

// Server serves installation data from a Store.
type Server struct {
	store  store.Store
	cache  *ResponseCache
	router chi.Router
}

// New builds a Server and its routes.
func New(st store.Store, opts Options) *Server {
	s := &Server{store: st, cache: opts.Cache}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/api/solar/stats/", s.handleSummaries)
	r.Get("/api/states", s.handleStates)
	r.Get("/api/state/{code}", s.handleState)
	r.Get("/api/state/{code}/geojson", s.handleStateGeoJSON)
	r.Get("/api/state/{code}/breakdown", s.handleStateBreakdown)
	r.Get("/installations", s.handleInstallations)
	r.Get("/stats", s.handleNationwide)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// PurgeCache drops cached responses, e.g. after the store is reloaded.
func (s *Server) PurgeCache() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// httpError is an error with a status code and a client-facing message.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(msg string) error { return &httpError{status: http.StatusBadRequest, msg: msg} }

func notFound(msg string) error { return &httpError{status: http.StatusNotFound, msg: msg} }

// render writes the body produced by build, serving and filling the cache
// when cacheable is set. Only successful responses are cached.
func (s *Server) render(w http.ResponseWriter, r *http.Request, contentType string, cacheable bool, build func() ([]byte, error)) {
	key := r.URL.RequestURI()
	if cacheable && s.cache != nil {
		if ct, body, ok := s.cache.Get(key); ok {
			w.Header().Set("X-Cache", "hit")
			write(w, http.StatusOK, ct, body)
			return
		}
	}

	body, err := build()
	if err != nil {
		var he *httpError
		if errors.As(err, &he) {
			writeError(w, he.status, he.msg)
			return
		}
		zap.L().Error("server: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if cacheable && s.cache != nil {
		s.cache.Put(key, contentType, body)
		w.Header().Set("X-Cache", "miss")
	}
	write(w, http.StatusOK, contentType, body)
}

func write(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	write(w, status, contentTypeJSON, body)
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "server: encode response")
	}
	return data, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.cache != nil {
		body["cache"] = s.cache.Stats()
	}
	data, _ := json.Marshal(body)
	write(w, http.StatusOK, contentTypeJSON, data)
}

func (s *Server) all(r *http.Request) ([]solar.Installation, error) {
	insts, err := s.store.ListInstallations(r.Context(), store.Filter{})
	if err != nil {
		return nil, eris.Wrap(err, "server: list installations")
	}
	return insts, nil
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, contentTypeJSON, true, func() ([]byte, error) {
		insts, err := s.all(r)
		if err != nil {
			return nil, err
		}
		return marshal(aggregate.Summaries(insts))
	})
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, contentTypeJSON, true, func() ([]byte, error) {
		insts, err := s.all(r)
		if err != nil {
			return nil, err
		}
		return marshal(solar.StatesResponse{States: aggregate.StateInfos(insts)})
	})
}

func (s *Server) handleNationwide(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, contentTypeJSON, true, func() ([]byte, error) {
		insts, err := s.all(r)
		if err != nil {
			return nil, err
		}
		return marshal(aggregate.Nationwide(insts))
	})
}

// stateInstallations returns the installations of the state named in the
// path, or a 404 error when it has none.
func (s *Server) stateInstallations(r *http.Request) ([]solar.Installation, error) {
	code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
	insts, err := s.store.ListInstallations(r.Context(), store.Filter{State: code})
	if err != nil {
		return nil, eris.Wrapf(err, "server: list installations for %s", code)
	}
	if len(insts) == 0 {
		return nil, notFound(msgStateNotFound)
	}
	return insts, nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, contentTypeJSON, true, func() ([]byte, error) {
		insts, err := s.stateInstallations(r)
		if err != nil {
			return nil, err
		}
		detail := solar.StateDetail{Stats: aggregate.StateStats(insts), Installations: insts}
		aggregate.SortByYearDesc(detail.Installations)
		return marshal(detail)
	})
}

func (s *Server) handleStateBreakdown(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, contentTypeJSON, true, func() ([]byte, error) {
		insts, err := s.stateInstallations(r)
		if err != nil {
			return nil, err
		}
		return marshal(aggregate.Breakdown(chi.URLParam(r, "code"), insts))
	})
}

func (s *Server) handleStateGeoJSON(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, contentTypeGeoJSON, true, func() ([]byte, error) {
		insts, err := s.stateInstallations(r)
		if err != nil {
			return nil, err
		}
		return export.InstallationsGeoJSON(insts)
	})
}

func (s *Server) handleInstallations(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, contentTypeJSON, false, func() ([]byte, error) {
		filter, err := parseFilter(r)
		if err != nil {
			return nil, err
		}
		insts, err := s.store.ListInstallations(r.Context(), filter)
		if err != nil {
			return nil, eris.Wrap(err, "server: list installations")
		}
		return marshal(insts)
	})
}

// parseFilter reads state, year, min_capacity, limit and offset from the
// query string.
func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{State: strings.ToUpper(strings.TrimSpace(q.Get("state")))}

	var err error
	if f.Year, err = queryInt(q.Get("year"), "year"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(q.Get("limit"), "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(q.Get("offset"), "offset"); err != nil {
		return f, err
	}
	if f.Offset < 0 {
		return f, badRequest("offset must be >= 0")
	}
	if v := q.Get("min_capacity"); v != "" {
		if f.MinCapacity, err = strconv.ParseFloat(v, 64); err != nil {
			return f, badRequest("invalid min_capacity: " + v)
		}
	}
	return f, nil
}

func queryInt(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("invalid " + name + ": " + v)
	}
	return n, nil
}

// requestLogger logs each request with its status, size and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
