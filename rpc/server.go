package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// Server is a JSON-RPC 2.0 HTTP server.
type Server struct {
	handler   *Handler
	stream    *Stream
	addr      string
	authToken string // empty → no auth required
	srv       *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	rateLimit int
	stream    *Stream
	origins   []string
}

// WithRateLimit caps RPC calls per client IP per minute. Zero disables it.
func WithRateLimit(perMinute int) ServerOption {
	return func(o *serverOptions) { o.rateLimit = perMinute }
}

// WithCORS allows browser clients from origins to call the endpoint.
func WithCORS(origins []string) ServerOption {
	return func(o *serverOptions) { o.origins = origins }
}

// WithStream mounts the websocket event stream at /ws.
func WithStream(s *Stream) ServerOption {
	return func(o *serverOptions) { o.stream = s }
}

// NewServer creates a Server on addr. If authToken is non-empty, every
// request must carry a matching "Authorization: Bearer <token>" header.
func NewServer(addr string, handler *Handler, authToken string, opts ...ServerOption) *Server {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}
	s := &Server{handler: handler, stream: o.stream, addr: addr, authToken: authToken}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(o),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Router returns the HTTP handler, for tests.
func (s *Server) Router() http.Handler { return s.srv.Handler }

func (s *Server) routes(o serverOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(o.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(s.auth)

	r.Group(func(r chi.Router) {
		if o.rateLimit > 0 {
			r.Use(httprate.LimitByIP(o.rateLimit, time.Minute))
		}
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/", s.serveRPC)
	})
	if s.stream != nil {
		r.Get("/ws", s.stream.ServeHTTP)
	}
	return r
}

// Start binds the port synchronously (so callers know immediately if binding
// fails) then serves requests in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("rpc listening")
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("rpc server")
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting up to 5 seconds for
// in-flight requests to complete.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.stream != nil {
		s.stream.Close()
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) auth(next http.Handler) http.Handler {
	if s.authToken == "" {
		return next
	}
	want := []byte("Bearer " + s.authToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, errResponse(nil, CodeUnauthorized, "unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, errResponse(nil, CodeParseError, err.Error()))
		return
	}
	if req.JSONRPC != Version {
		writeJSON(w, errResponse(req.ID, CodeInvalidRequest, "jsonrpc must be '2.0'"))
		return
	}

	resp := s.handler.Dispatch(req)
	if resp.Error != nil {
		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", req.Method).
			Int("code", resp.Error.Code).
			Msg(resp.Error.Message)
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
