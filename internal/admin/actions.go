package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"edgepurge/internal/invalidation"
	"edgepurge/internal/scheduler"
	"edgepurge/internal/settings"
)

type ActionKind string

const (
	ActionSaveSettings    ActionKind = "save_settings"
	ActionCheckConnection ActionKind = "check_connection"
	ActionProcessQueue    ActionKind = "process_queue"
	ActionClearQueue      ActionKind = "clear_queue"
	ActionPurgeURLs       ActionKind = "purge_urls"
	ActionPurgeEverything ActionKind = "purge_everything"
)

// action is one decoded admin request. The set of implementations is closed.
type action interface {
	kind() ActionKind
}

type saveSettings struct {
	Settings settings.Settings `json:"settings"`
}

type checkConnection struct{}

type processQueue struct{}

type clearQueue struct{}

type purgeURLs struct {
	URLs []string          `json:"urls"`
	Type invalidation.Kind `json:"type"`
}

type purgeEverything struct{}

func (saveSettings) kind() ActionKind    { return ActionSaveSettings }
func (checkConnection) kind() ActionKind { return ActionCheckConnection }
func (processQueue) kind() ActionKind    { return ActionProcessQueue }
func (clearQueue) kind() ActionKind      { return ActionClearQueue }
func (purgeURLs) kind() ActionKind       { return ActionPurgeURLs }
func (purgeEverything) kind() ActionKind { return ActionPurgeEverything }

type actionEnvelope struct {
	Action  ActionKind      `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

var errUnknownAction = errors.New("unknown action")

func decodeAction(body []byte) (action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("invalid action body: %w", err)
	}

	var a action
	switch env.Action {
	case ActionSaveSettings:
		var p saveSettings
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		a = p
	case ActionPurgeURLs:
		var p purgeURLs
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		if p.Type == "" {
			p.Type = invalidation.File
		}
		if p.Type != invalidation.File && p.Type != invalidation.Prefix {
			return nil, fmt.Errorf("purge_urls: type must be file or prefix")
		}
		a = p
	case ActionCheckConnection:
		a = checkConnection{}
	case ActionProcessQueue:
		a = processQueue{}
	case ActionClearQueue:
		a = clearQueue{}
	case ActionPurgeEverything:
		a = purgeEverything{}
	default:
		return nil, fmt.Errorf("%w %q", errUnknownAction, env.Action)
	}
	return a, nil
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("payload is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func (s *Server) actions(ctx *fasthttp.RequestCtx) {
	a, err := decodeAction(ctx.PostBody())
	if err != nil {
		s.fail(ctx, fasthttp.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}
	s.log.Debug().Str("action", string(a.kind())).Msg("[admin] action")

	rctx, cancel := s.requestContext()
	defer cancel()

	switch a := a.(type) {
	case saveSettings:
		s.saveSettings(rctx, ctx, a)
	case checkConnection:
		s.checkConnection(rctx, ctx)
	case processQueue:
		s.processQueue(rctx, ctx)
	case clearQueue:
		s.clearQueue(rctx, ctx)
	case purgeURLs:
		s.purgeURLs(rctx, ctx, a)
	case purgeEverything:
		s.purgeEverything(rctx, ctx)
	}
}

func (s *Server) saveSettings(rctx context.Context, ctx *fasthttp.RequestCtx, a saveSettings) {
	in := a.Settings
	cur := s.deps.Settings.Current()
	// The form shows the masked token; echoing it back or leaving it blank
	// keeps the stored one.
	if in.APIToken == "" || in.APIToken == cur.Masked().APIToken {
		in.APIToken = cur.APIToken
	}

	saved, err := s.deps.Settings.Save(rctx, in)
	var ve *settings.ValidationError
	switch {
	case err == nil:
		s.ok(ctx, "settings saved", saved.Masked())
	case errors.As(err, &ve) && !ve.Fatal():
		s.ok(ctx, "settings saved with corrections", map[string]any{
			"settings": saved.Masked(),
			"warnings": ve.Fields,
		})
	case errors.As(err, &ve):
		s.fail(ctx, fasthttp.StatusUnprocessableEntity, "invalid_settings", ve.Error(), ve.Fields)
	default:
		s.fail(ctx, fasthttp.StatusInternalServerError, "store_unavailable", err.Error(), nil)
	}
}

func (s *Server) checkConnection(rctx context.Context, ctx *fasthttp.RequestCtx) {
	zone, err := s.deps.Zone.CheckZone(rctx)
	conn := settings.Connectivity{OK: err == nil, CheckedAt: time.Now().UTC(), ZoneName: zone.Name}
	if err != nil {
		conn.Message = err.Error()
	}
	if isNotConfigured(err) {
		s.fail(ctx, fasthttp.StatusConflict, "not_configured", err.Error(), conn)
		return
	}
	if serr := settings.SaveConnectivity(rctx, s.deps.Store, conn); serr != nil {
		s.log.Warn().Err(serr).Msg("[admin] connectivity cache not saved")
	}
	if err != nil {
		s.fail(ctx, fasthttp.StatusBadGateway, "cdn_unreachable", err.Error(), conn)
		return
	}
	s.ok(ctx, "connected", conn)
}

func (s *Server) processQueue(rctx context.Context, ctx *fasthttp.RequestCtx) {
	rep, err := s.deps.Drainer.Run(rctx)
	if err != nil {
		status := fasthttp.StatusBadGateway
		code := "purge_failed"
		if isNotConfigured(err) {
			status, code = fasthttp.StatusConflict, "not_configured"
		}
		s.fail(ctx, status, code, err.Error(), rep)
		return
	}
	msg := "batch purged"
	if rep.Result == scheduler.ResultEmpty {
		msg = "queue is empty"
	}
	s.ok(ctx, msg, rep)
}

func (s *Server) clearQueue(rctx context.Context, ctx *fasthttp.RequestCtx) {
	if err := s.deps.Queue.Clear(rctx); err != nil {
		s.fail(ctx, fasthttp.StatusInternalServerError, "queue_unavailable", err.Error(), nil)
		return
	}
	s.log.Info().Msg("[admin] queue cleared")
	s.ok(ctx, "queue cleared", nil)
}

func (s *Server) purgeURLs(rctx context.Context, ctx *fasthttp.RequestCtx, a purgeURLs) {
	items := make([]invalidation.Item, 0, len(a.URLs))
	rejected := []string{}
	for _, raw := range a.URLs {
		it, ok := invalidation.Normalize(a.Type, raw)
		if !ok {
			rejected = append(rejected, raw)
			continue
		}
		items = append(items, it)
	}
	items = invalidation.Dedupe(items)
	data := map[string]any{"items": items, "rejected": rejected}
	if len(items) == 0 {
		s.fail(ctx, fasthttp.StatusBadRequest, "bad_request", "no valid urls", data)
		return
	}

	if err := s.deps.Orchestrator.PurgeNow(rctx, items); err != nil {
		status := fasthttp.StatusBadGateway
		if isNotConfigured(err) {
			status = fasthttp.StatusConflict
		}
		s.fail(ctx, status, "purge_failed", err.Error(), data)
		return
	}
	s.ok(ctx, "purged", data)
}

func (s *Server) purgeEverything(rctx context.Context, ctx *fasthttp.RequestCtx) {
	if err := s.deps.Zone.PurgeEverything(rctx); err != nil {
		status := fasthttp.StatusBadGateway
		if isNotConfigured(err) {
			status = fasthttp.StatusConflict
		}
		s.fail(ctx, status, "purge_failed", err.Error(), nil)
		return
	}
	s.log.Warn().Msg("[admin] purged everything")
	s.ok(ctx, "purged everything", nil)
}
