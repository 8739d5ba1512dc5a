package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/service"
	"github.com/BrandonDHaskell/eventgate/server/internal/eventgate/types"
)

type Dependencies struct {
	Logger            *slog.Logger
	Addr              string
	ValidationService *service.ValidationService
	Notifier          *service.Notifier
	Gatherer          prometheus.Gatherer // nil disables /metrics
	StreamKeepAlive   time.Duration       // default 15s
}

type Server struct {
	httpServer        *http.Server
	logger            *slog.Logger
	router            chi.Router
	validationService *service.ValidationService
	notifier          *service.Notifier
	streamKeepAlive   time.Duration
}

func NewServer(d Dependencies) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	keepAlive := d.StreamKeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(logger))

	s := &Server{
		logger:            logger,
		router:            r,
		validationService: d.ValidationService,
		notifier:          d.Notifier,
		streamKeepAlive:   keepAlive,
	}

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/entries", s.handleScan(types.DirectionEntry))
		r.Post("/exits", s.handleScan(types.DirectionExit))
		r.Get("/presence", s.handlePresence)
		r.Get("/presence/stream", s.handlePresenceStream)
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.notifier.Ready() {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "presence registry is initializing")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScan(dir types.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ScanRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		dec.DisallowUnknownFields()

		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}

		out, err := s.validationService.Decide(r.Context(), dir, req)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidCPF):
				writeError(w, http.StatusBadRequest, "invalid_cpf", err.Error())
			case errors.Is(err, types.ErrInvalidSegment):
				writeError(w, http.StatusBadRequest, "invalid_segment", err.Error())
			case errors.Is(err, service.ErrNotReady):
				writeError(w, http.StatusServiceUnavailable, "not_ready", "presence registry is initializing")
			case errors.Is(err, service.ErrParticipantNotFound):
				writeError(w, http.StatusNotFound, "not_found", "no participant registered for CPF "+req.CPF)
			default:
				s.logger.ErrorContext(r.Context(), "scan failed",
					"direction", dir, "segment", req.Segment,
					"request_id", middleware.GetReqID(r.Context()), "err", err)
				writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			}
			return
		}

		writeJSON(w, http.StatusOK, types.ScanResponse{
			Message:    out.Message,
			Allowed:    out.Allowed,
			Decision:   out.Decision,
			ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	snap, err := s.notifier.InitialSnapshot()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "presence registry is initializing")
		return
	}

	if wantsProtobuf(r) {
		msg, err := snapshotToProto(snap)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "snapshot proto conversion failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}
