package admin

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

type response struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, body response) {
	body.Status = status
	b, err := json.Marshal(body)
	if err != nil {
		s.log.Error().Err(err).Msg("[admin] failed to encode response")
		ctx.Error(`{"status":500,"error":"internal"}`, fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if _, err := ctx.Write(b); err != nil {
		s.log.Err(err).Msg("[admin] failed to write response")
	}
}

func (s *Server) ok(ctx *fasthttp.RequestCtx, message string, data any) {
	s.writeJSON(ctx, fasthttp.StatusOK, response{Message: message, Data: data})
}

func (s *Server) fail(ctx *fasthttp.RequestCtx, status int, code, message string, data any) {
	s.writeJSON(ctx, status, response{Error: code, Message: message, Data: data})
}
