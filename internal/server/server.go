// Package server exposes the dashboard panels over HTTP and the backend
// availability over gRPC health checks.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/internal/metrics"
	"github.com/itss-sierra/islas-calor/internal/panels"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Server struct {
	dash      *panels.Dashboard
	layersDir string
	metrics   *metrics.Collector
	gatherer  prometheus.Gatherer
	log       logrus.FieldLogger
	origins   []string
}

type Option func(*Server)

// WithLayers serves the local backend's PNG layers under /layers/.
func WithLayers(dir string) Option {
	return func(s *Server) { s.layersDir = dir }
}

func WithMetrics(m *metrics.Collector, g prometheus.Gatherer) Option {
	return func(s *Server) { s.metrics, s.gatherer = m, g }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

func New(dash *panels.Dashboard, opts ...Option) *Server {
	s := &Server{
		dash:     dash,
		log:      logrus.StandardLogger(),
		gatherer: prometheus.DefaultGatherer,
		origins:  []string{"http://localhost:*", "http://127.0.0.1:*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes wires middlewares and endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	if s.layersDir != "" {
		r.Handle("/layers/*", http.StripPrefix("/layers/", http.FileServer(http.Dir(s.layersDir))))
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/localities", s.handleLocalities)
		api.Get("/session/default", s.handleDefaultSession)
		api.Get("/info", s.handleInfo)
		api.Post("/reload", s.handleReload)

		api.Route("/panels", func(pr chi.Router) {
			pr.Get("/map", s.handleMap)
			pr.Get("/map/inspect", s.handleInspect)
			pr.Get("/graphics", s.handleGraphics)
			pr.Get("/graphics/annual", s.handleAnnual)
			pr.Get("/graphics/charts/{file}", s.handleChart)
			pr.Get("/comparison", s.handleComparison)
		})

		api.Get("/downloads/{file}", s.handleDownload)
	})
	return r
}

// observe logs and counts every request by its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RecordRequest(route, r.Method, strconv.Itoa(status), time.Since(start))
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"route":      route,
			"status":     status,
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request served")
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (s *Server) sendJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Warn("response not written")
	}
}

func (s *Server) sendError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	s.sendJSON(w, errorResponse{Error: http.StatusText(status), Message: err.Error(), Code: status}, status)
}

// statusOf maps validation failures to 400 and every backend failure to
// 502.
func statusOf(err error) int {
	switch {
	case errors.Is(err, analysis.ErrInvalidSession),
		errors.Is(err, analysis.ErrComparisonSelection),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

var (
	errBadRequest = errors.New("bad request")
	errNotFound   = errors.New("not found")
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, map[string]any{
		"status":    "healthy",
		"backend":   s.dash.Connection().Available(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

func (s *Server) handleLocalities(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, map[string]any{
		"localities": analysis.Localities,
		"default":    analysis.DefaultLocality,
	}, http.StatusOK)
}

func (s *Server) handleDefaultSession(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, analysis.DefaultSession(), http.StatusOK)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, s.dash.Info(), http.StatusOK)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.dash.Connection().Reload()
	s.sendJSON(w, map[string]any{"available": s.dash.Connection().Available()}, http.StatusOK)
}

// render runs a panel for the request's session and writes its view.
func render[V any](s *Server, w http.ResponseWriter, r *http.Request, panel func(analysis.Session) (V, error)) {
	session, err := parseSession(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	view, err := panel(session)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, view, http.StatusOK)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	render(s, w, r, func(session analysis.Session) (*panels.MapView, error) {
		return s.dash.Map(r.Context(), session)
	})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if errLon != nil || errLat != nil {
		s.sendError(w, errors.Join(errBadRequest, errors.New("lon and lat are required numbers")))
		return
	}
	render(s, w, r, func(session analysis.Session) (*panels.InspectView, error) {
		return s.dash.Inspect(r.Context(), session, lon, lat)
	})
}

func (s *Server) handleGraphics(w http.ResponseWriter, r *http.Request) {
	render(s, w, r, func(session analysis.Session) (*panels.GraphicsView, error) {
		return s.dash.Graphics(r.Context(), session)
	})
}

func (s *Server) handleAnnual(w http.ResponseWriter, r *http.Request) {
	render(s, w, r, func(session analysis.Session) (*panels.AnnualView, error) {
		return s.dash.Annual(r.Context(), session)
	})
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	render(s, w, r, func(session analysis.Session) (*panels.ComparisonView, error) {
		return s.dash.Comparison(r.Context(), session)
	})
}

var charts = map[string]bool{
	panels.ChartScatter:          false,
	panels.ChartHistogram:        false,
	panels.ChartSeries:           false,
	panels.ChartAnnual:           false,
	panels.LegendLST:             false,
	panels.LegendNDVI:            false,
	panels.ChartComparisonBars:   true,
	panels.ChartComparisonSeries: true,
}

// handleChart serves a PNG rendered by an earlier panel call. Comparison
// charts live under the pair of cities, the rest under the locality.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	chart, isPNG := strings.CutSuffix(chi.URLParam(r, "file"), ".png")
	comparison, ok := charts[chart]
	if !isPNG || !ok {
		s.sendError(w, errors.Join(errNotFound, errors.New("unknown chart "+chart)))
		return
	}
	session, err := parseSession(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	dir := session.Locality
	if comparison {
		dir = panels.ComparisonDir(session.Compare)
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, s.dash.ChartPath(dir, chart))
}

// handleDownload regenerates the export tables and streams one of them:
// <kind>.csv or puntos_muestreo.geojson.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	key, contentType := strings.TrimSuffix(file, ".csv"), "text/csv; charset=utf-8"
	switch filepath.Ext(file) {
	case ".csv":
	case ".geojson":
		key, contentType = file, "application/geo+json"
	default:
		s.sendError(w, errors.Join(errNotFound, errors.New("unknown download "+file)))
		return
	}

	session, err := parseSession(r)
	if err != nil {
		s.sendError(w, err)
		return
	}
	view, err := s.dash.Downloads(r.Context(), session)
	if err != nil {
		s.sendError(w, err)
		return
	}
	path, ok := view.Files[key]
	if !ok {
		s.sendJSON(w, view, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}
