// Package server exposes the session lifecycle over HTTP with live event
// streaming through Server-Sent Events and WebSockets.
//
// Routes:
//
//	GET    /healthz
//	GET    /templates
//	POST   /sessions
//	GET    /sessions?collection=&limit=
//	GET    /sessions/{id}
//	DELETE /sessions/{id}
//	POST   /sessions/{id}/run
//	GET    /sessions/{id}/stream   (SSE)
//	GET    /sessions/{id}/ws       (WebSocket)
//	GET    /ws                     (all run events, WebSocket)
//
// A streamed run is detached from the request: when the client goes away the
// run keeps executing and its result is persisted.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/roundtable"
	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/relay"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Options configures a Server.
type Options struct {
	// HeartbeatInterval for SSE and WebSocket streams.
	HeartbeatInterval time.Duration
	// Publisher additionally receives every run event, e.g. a relay.NATSSink.
	Publisher relay.Sink
	Logger    logging.Logger
}

// Server serves the HTTP API.
type Server struct {
	rt   *roundtable.Roundtable
	opts Options
	hub  *relay.Hub

	runs sync.WaitGroup
}

// New creates a server over rt.
func New(rt *roundtable.Roundtable, optFns ...func(o *Options)) *Server {
	opts := Options{
		HeartbeatInterval: relay.DefaultHeartbeatInterval,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Server{rt: rt, opts: opts, hub: relay.NewHub(opts.Logger)}
}

// Handler returns the routed handler. The broadcast hub only delivers while
// Run or ListenAndServe is active.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /templates", s.handleTemplates)
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /sessions/{id}/run", s.handleRunSession)
	mux.HandleFunc("GET /sessions/{id}/stream", s.handleStream)
	mux.HandleFunc("GET /sessions/{id}/ws", s.handleSessionWebSocket)
	mux.HandleFunc("GET /ws", s.handleFeed)

	return s.withMiddleware(mux)
}

// Run starts the broadcast hub until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.hub.Run(ctx)
}

// ListenAndServe serves on addr until ctx is done, then shuts down and waits
// for detached runs to finish persisting.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	go s.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("server.listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.opts.Logger.Warn("server.shutdown", "error", err.Error())
		}
	}

	s.Wait()

	return nil
}

// Wait blocks until all detached runs have finished.
func (s *Server) Wait() { s.runs.Wait() }

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		start := time.Now()
		next.ServeHTTP(w, r)
		s.opts.Logger.Debug("server.request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// startRun executes the session in the background, publishing its events to
// rel, the hub and the configured publisher. The run does not depend on the
// request context.
func (s *Server) startRun(ctx context.Context, id string, rel *relay.Relay) {
	runCtx := context.WithoutCancel(ctx)

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()

		onEvent := func(ev core.Event) {
			rel.Publish(ev)
			s.publish(runCtx, ev)
		}

		if _, err := s.rt.RunSessionStreaming(runCtx, id, onEvent); err != nil {
			// Dropped by the relay when the run already ended with an error event.
			rel.Publish(core.NewErrorEvent(id, err))
			s.opts.Logger.Warn("server.run.failed", "session_id", id, "error", err.Error())
		}
	}()
}

func (s *Server) publish(ctx context.Context, ev core.Event) {
	_ = s.hub.Send(ctx, ev)

	if s.opts.Publisher == nil {
		return
	}
	if err := s.opts.Publisher.Send(ctx, ev); err != nil {
		s.opts.Logger.Warn("server.publish.failed", "event", string(ev.Type), "error", err.Error())
	}
}

func (s *Server) newRelay() *relay.Relay {
	return relay.New(func(o *relay.Options) {
		o.HeartbeatInterval = s.opts.HeartbeatInterval
		o.Logger = s.opts.Logger
	})
}

func (s *Server) sessionOr404(w http.ResponseWriter, r *http.Request) (*core.Session, bool) {
	sess, err := s.rt.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

// trackingSink remembers the type of the last delivered event.
type trackingSink struct {
	relay.Sink
	last core.EventType
}

func (t *trackingSink) Send(ctx context.Context, ev core.Event) error {
	if err := t.Sink.Send(ctx, ev); err != nil {
		return err
	}
	if ev.Type != core.EventHeartbeat {
		t.last = ev.Type
	}
	return nil
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOr404(w, r)
	if !ok {
		return
	}

	rel := s.newRelay()
	s.startRun(r.Context(), sess.ID, rel)

	sse := relay.NewSSEWriter(w)
	if err := sse.WriteFrame("session_created", map[string]any{
		"session_id": sess.ID,
		"status":     sess.Status,
	}); err != nil {
		rel.Detach()
		return
	}

	sink := &trackingSink{Sink: sse}
	if err := rel.Stream(r.Context(), sink); err != nil {
		s.opts.Logger.Info("server.stream.detached", "session_id", sess.ID, "reason", err.Error())
		return
	}

	if sink.last == core.EventRunComplete {
		_ = sse.WriteFrame("session_complete", map[string]any{"session_id": sess.ID})
	}
}

func (s *Server) handleSessionWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOr404(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.Logger.Error("server.ws.upgrade", "error", err.Error())
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read loop processes control frames and notices a closed client.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	rel := s.newRelay()
	s.startRun(r.Context(), sess.ID, rel)

	sink := relay.NewWebSocketSink(conn)
	if err := rel.Stream(ctx, sink); err != nil {
		s.opts.Logger.Info("server.ws.detached", "session_id", sess.ID, "reason", err.Error())
		return
	}

	_ = sink.Close()
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.Logger.Error("server.ws.upgrade", "error", err.Error())
		return
	}

	s.hub.Register(conn)
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{"templates": s.rt.ListTemplates()})
}

// handleRunSession runs synchronously. The run is detached from the request
// so a dropped client does not fail the session.
func (s *Server) handleRunSession(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	sess, err := s.rt.RunSession(ctx, r.PathValue("id"), func(o *roundtable.SessionRunOptions) {
		o.OnEvent = func(ev core.Event) { s.publish(ctx, ev) }
	})
	if err != nil {
		if sess != nil {
			jsonResponse(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "session": sess})
			return
		}
		writeError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, sess)
}
