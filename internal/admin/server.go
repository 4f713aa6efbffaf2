// Package admin is the HTTP surface of the service: status and queue views,
// typed admin actions, the change-event webhook, metrics and health.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"edgepurge/internal/cdn"
	"edgepurge/internal/content"
	"edgepurge/internal/orchestrator"
	"edgepurge/internal/queue"
	"edgepurge/internal/scheduler"
	"edgepurge/internal/settings"
	"edgepurge/internal/store"
)

const (
	APIPrefix     = "/api/v1"
	EventIDHeader = "X-Event-ID"

	defaultDedupSize      = 4096
	defaultDedupTTL       = 10 * time.Minute
	defaultRequestTimeout = 2 * time.Minute
)

// ZoneAdmin is the part of the CDN client the admin actions need beyond
// plain purging.
type ZoneAdmin interface {
	CheckZone(ctx context.Context) (cdn.ZoneInfo, error)
	PurgeEverything(ctx context.Context) error
}

type Deps struct {
	Settings     *settings.Manager
	Store        store.Store
	Queue        *queue.Queue
	Drainer      *scheduler.Drainer
	Orchestrator *orchestrator.Orchestrator
	Zone         ZoneAdmin
	Gatherer     prometheus.Gatherer

	// Token, when set, is required as a bearer token on the API routes.
	Token string

	DedupSize int
	DedupTTL  time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RequestTimeout bounds the work a single handler starts (drains,
	// purges, store access).
	RequestTimeout time.Duration

	Logger zerolog.Logger
}

type Server struct {
	deps Deps
	log  zerolog.Logger
	seen *expirable.LRU[string, orchestrator.Outcome]
	srv  *fasthttp.Server

	// Handlers derive their contexts from base, never from the
	// *fasthttp.RequestCtx. Shutdown cancels it.
	base   context.Context
	cancel context.CancelFunc
}

func New(d Deps) *Server {
	if d.DedupSize <= 0 {
		d.DedupSize = defaultDedupSize
	}
	if d.DedupTTL <= 0 {
		d.DedupTTL = defaultDedupTTL
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = defaultRequestTimeout
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		deps: d,
		log:  d.Logger,
		seen: expirable.NewLRU[string, orchestrator.Outcome](d.DedupSize, nil, d.DedupTTL),
	}
	s.base, s.cancel = context.WithCancel(context.Background())
	s.srv = &fasthttp.Server{
		Name:         "edgepurge",
		Handler:      s.Handler(),
		ReadTimeout:  d.ReadTimeout,
		WriteTimeout: d.WriteTimeout,
	}
	return s
}

// Handler builds the routed handler.
func (s *Server) Handler() fasthttp.RequestHandler {
	r := router.New()
	r.GET("/healthz", s.healthz)
	r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}),
	))

	api := r.Group(APIPrefix)
	api.GET("/status", s.auth(s.status))
	api.GET("/queue", s.auth(s.queueView))
	api.POST("/actions", s.auth(s.actions))
	api.POST("/events", s.auth(s.events))

	r.NotFound = func(ctx *fasthttp.RequestCtx) {
		s.fail(ctx, fasthttp.StatusNotFound, "not_found", "no such route", nil)
	}
	r.MethodNotAllowed = func(ctx *fasthttp.RequestCtx) {
		s.fail(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	}
	r.PanicHandler = func(ctx *fasthttp.RequestCtx, v any) {
		s.log.Error().Interface("panic", v).Str("path", string(ctx.Path())).Msg("[admin] handler panicked")
		s.fail(ctx, fasthttp.StatusInternalServerError, "internal", "internal error", nil)
	}
	return r.Handler
}

func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("[admin] listening")
	return s.srv.Serve(ln)
}

// Shutdown stops accepting connections, waits for in-flight requests until
// ctx expires and then cancels whatever they still run.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.ShutdownWithContext(ctx)
	s.cancel()
	return err
}

func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.base, s.deps.RequestTimeout)
}

func (s *Server) auth(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	if s.deps.Token == "" {
		return next
	}
	want := []byte("Bearer " + s.deps.Token)
	return func(ctx *fasthttp.RequestCtx) {
		got := ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)
		if subtle.ConstantTimeCompare(got, want) != 1 {
			s.fail(ctx, fasthttp.StatusUnauthorized, "unauthorized", "missing or invalid bearer token", nil)
			return
		}
		next(ctx)
	}
}

func (s *Server) healthz(ctx *fasthttp.RequestCtx) {
	s.ok(ctx, "ok", nil)
}

type statusView struct {
	Scheduler    scheduler.Status       `json:"scheduler"`
	Settings     settings.Settings      `json:"settings"`
	Configured   bool                   `json:"configured"`
	Connectivity *settings.Connectivity `json:"connectivity,omitempty"`
}

func (s *Server) status(ctx *fasthttp.RequestCtx) {
	rctx, cancel := s.requestContext()
	defer cancel()

	st, err := s.deps.Drainer.Status(rctx)
	if err != nil {
		s.fail(ctx, fasthttp.StatusInternalServerError, "queue_unavailable", err.Error(), nil)
		return
	}
	cur := s.deps.Settings.Current()
	view := statusView{Scheduler: st, Settings: cur.Masked(), Configured: cur.Configured()}

	conn, found, err := settings.LoadConnectivity(rctx, s.deps.Store)
	if err != nil {
		s.log.Warn().Err(err).Msg("[admin] connectivity cache unreadable")
	} else if found {
		view.Connectivity = &conn
	}
	s.ok(ctx, "", view)
}

func (s *Server) queueView(ctx *fasthttp.RequestCtx) {
	rctx, cancel := s.requestContext()
	defer cancel()

	items, err := s.deps.Queue.Items(rctx)
	if err != nil {
		s.fail(ctx, fasthttp.StatusInternalServerError, "queue_unavailable", err.Error(), nil)
		return
	}
	total := len(items)
	if raw := ctx.QueryArgs().Peek("limit"); len(raw) > 0 {
		n, err := strconv.Atoi(string(raw))
		if err != nil || n < 0 {
			s.fail(ctx, fasthttp.StatusBadRequest, "bad_request", "limit must be a non-negative integer", nil)
			return
		}
		if n < len(items) {
			items = items[:n]
		}
	}
	s.ok(ctx, "", map[string]any{"total": total, "items": items})
}

type eventReply struct {
	Duplicate bool                 `json:"duplicate"`
	Outcome   orchestrator.Outcome `json:"outcome"`
}

func (s *Server) events(ctx *fasthttp.RequestCtx) {
	id := string(ctx.Request.Header.Peek(EventIDHeader))
	if id != "" {
		if out, ok := s.seen.Get(id); ok {
			s.ok(ctx, "already processed", eventReply{Duplicate: true, Outcome: out})
			return
		}
	}

	var ev content.ChangeEvent
	if err := json.Unmarshal(ctx.PostBody(), &ev); err != nil {
		s.fail(ctx, fasthttp.StatusBadRequest, "bad_request", "invalid event body: "+err.Error(), nil)
		return
	}
	if ev.EntityType != content.EntityPost && ev.EntityType != content.EntityTerm {
		s.fail(ctx, fasthttp.StatusBadRequest, "bad_request", "entity_type must be post or term", nil)
		return
	}

	rctx, cancel := s.requestContext()
	defer cancel()
	out, err := s.deps.Orchestrator.OnChange(rctx, ev)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", id).Msg("[admin] event not persisted")
		s.fail(ctx, fasthttp.StatusServiceUnavailable, "queue_unavailable", err.Error(), out)
		return
	}
	if id != "" {
		s.seen.Add(id, out)
	}
	s.ok(ctx, "", eventReply{Outcome: out})
}

func isNotConfigured(err error) bool {
	return errors.Is(err, cdn.ErrNotConfigured)
}
