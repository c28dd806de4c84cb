package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fastjson"

	"github.com/hupe1980/kvquery"
)

// Status codes follow the gRPC numbering used by lookup clients.
const (
	codeInvalidArgument   = 3
	codeNotFound          = 5
	codeResourceExhausted = 8
	codeInternal          = 13
	codeUnavailable       = 14
)

const defaultMaxBodyBytes = 1 << 20

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGatherer serves /metrics from g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithMaxBodyBytes bounds request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// Server serves queries and lookups.
type Server struct {
	kv           *kvquery.KVQuery
	logger       *slog.Logger
	gatherer     prometheus.Gatherer
	maxBodyBytes int64
	parser       fastjson.ParserPool
	srv          *http.Server
}

// New creates a Server for kv.
func New(kv *kvquery.KVQuery, optFns ...Option) *Server {
	s := &Server{
		kv:           kv,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/query", s.handleQuery)
	mux.HandleFunc("/v1/lookup", s.handleLookup)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("listening", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

type status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error status `json:"error"`
}

func statusOf(err error) (int, int) {
	switch {
	case errors.Is(err, kvquery.ErrInvalidQuery):
		return http.StatusBadRequest, codeInvalidArgument
	case errors.Is(err, kvquery.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, kvquery.ErrOverloaded):
		return http.StatusTooManyRequests, codeResourceExhausted
	case errors.Is(err, kvquery.ErrClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, codeUnavailable
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, httpStatus int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	httpStatus, code := statusOf(err)
	s.writeJSON(w, httpStatus, errorResponse{Error: status{Code: code, Message: err.Error()}})
}

func (s *Server) badRequest(w http.ResponseWriter, format string, args ...any) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: status{
		Code:    codeInvalidArgument,
		Message: fmt.Sprintf(format, args...),
	}})
}

// parseBody reads a JSON object body and hands it to fn while the pooled
// parser is still valid.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request, fn func(v *fastjson.Value)) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		s.badRequest(w, "read body: %v", err)
		return
	}

	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		s.badRequest(w, "invalid JSON: %v", err)
		return
	}
	if v.Type() != fastjson.TypeObject {
		s.badRequest(w, "request body must be a JSON object")
		return
	}

	fn(v)
}

type queryResponse struct {
	Elements any `json:"elements"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.parseBody(w, r, func(v *fastjson.Value) {
		q := string(v.GetStringBytes("query"))
		typ := string(v.GetStringBytes("type"))

		switch typ {
		case "", "string":
			elems, err := s.kv.RunQuery(r.Context(), q)
			if err != nil {
				s.writeError(w, err)
				return
			}
			if elems == nil {
				elems = []string{}
			}
			s.writeJSON(w, http.StatusOK, queryResponse{Elements: elems})

		case "uint32":
			elems, err := s.kv.RunSetQueryInt(r.Context(), q)
			if err != nil {
				s.writeError(w, err)
				return
			}
			if elems == nil {
				elems = []uint32{}
			}
			s.writeJSON(w, http.StatusOK, queryResponse{Elements: elems})

		default:
			s.badRequest(w, "unknown query type %q", typ)
		}
	})
}

type lookupValue struct {
	Value  *string `json:"value,omitempty"`
	Values any     `json:"values,omitempty"`
	Status *status `json:"status,omitempty"`
}

type lookupResponse struct {
	KVPairs map[string]lookupValue `json:"kv_pairs"`
}

func notFound(err error) *status {
	return &status{Code: codeNotFound, Message: err.Error()}
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	s.parseBody(w, r, func(v *fastjson.Value) {
		var keys []string
		for _, k := range v.GetArray("keys") {
			b, err := k.StringBytes()
			if err != nil {
				s.badRequest(w, "keys must be strings")
				return
			}
			keys = append(keys, string(b))
		}
		typ := string(v.GetStringBytes("type"))

		// keys is fully copied out of the parser before any lookup runs.
		resp := lookupResponse{KVPairs: make(map[string]lookupValue, len(keys))}

		switch typ {
		case "", "value":
			res, err := s.kv.GetKeyValues(r.Context(), keys)
			if err != nil {
				s.writeError(w, err)
				return
			}
			for k, lv := range res {
				if lv.Err != nil {
					resp.KVPairs[k] = lookupValue{Status: notFound(lv.Err)}
					continue
				}
				value := lv.Value
				resp.KVPairs[k] = lookupValue{Value: &value}
			}

		case "string":
			res, err := s.kv.GetKeyValueSet(r.Context(), keys)
			if err != nil {
				s.writeError(w, err)
				return
			}
			for k, lv := range res {
				if lv.Err != nil {
					resp.KVPairs[k] = lookupValue{Status: notFound(lv.Err)}
					continue
				}
				resp.KVPairs[k] = lookupValue{Values: lv.Values}
			}

		case "uint32":
			res, err := s.kv.GetUInt32ValueSet(r.Context(), keys)
			if err != nil {
				s.writeError(w, err)
				return
			}
			for k, lv := range res {
				if lv.Err != nil {
					resp.KVPairs[k] = lookupValue{Status: notFound(lv.Err)}
					continue
				}
				resp.KVPairs[k] = lookupValue{Values: lv.Values}
			}

		default:
			s.badRequest(w, "unknown lookup type %q", typ)
			return
		}

		s.writeJSON(w, http.StatusOK, resp)
	})
}
