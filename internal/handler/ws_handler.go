package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/middleware"
	"github.com/stemsi/courseware-backend/internal/realtime"
	"github.com/stemsi/courseware-backend/internal/response"
	"github.com/stemsi/courseware-backend/internal/service"
	ws "github.com/stemsi/courseware-backend/internal/websocket"
)

const pingInterval = 30 * time.Second

// EventSource streams raw event payloads from pub/sub channels.
type EventSource interface {
	Listen(ctx context.Context, channels ...string) (<-chan []byte, func(), error)
}

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the live page stream.
type WSHandler struct {
	events            EventSource
	courseService     *service.CourseService
	authoringService  *service.AuthoringService
	submissionService *service.SubmissionService
	submitLimit       *middleware.RateLimiter
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	events EventSource,
	courseService *service.CourseService,
	authoringService *service.AuthoringService,
	submissionService *service.SubmissionService,
	submitLimit *middleware.RateLimiter,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		events:            events,
		courseService:     courseService,
		authoringService:  authoringService,
		submissionService: submissionService,
		submitLimit:       submitLimit,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
	}
}

// PageStream godoc
// WS /ws/v1/pages/:id/stream?token=
// Streams page and section events and accepts submit, edit_block and
// ping actions.
func (h *WSHandler) PageStream(c *gin.Context) {
	actor, pageID, ok := actorAndID(c)
	if !ok {
		return
	}

	page, err := h.courseService.GetPage(c.Request.Context(), pageID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, stop, err := h.events.Listen(ctx,
		realtime.Channel(realtime.ScopePage, page.ID),
		realtime.Channel(realtime.ScopeSection, page.SectionID),
	)
	if err != nil {
		h.log.Error().Err(err).Msg("Subscribe failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	defer stop()

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close()

	wsLog := h.log.With().
		Str("user_id", actor.ID.String()).
		Str("page_id", pageID.String()).
		Logger()
	wsLog.Info().Msg("Viewer connected")

	go h.forward(ctx, conn, events, wsLog)

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionSubmit:
			h.handleSubmit(ctx, conn, actor, &msg)
		case ws.ActionEditBlock:
			h.handleEdit(ctx, conn, actor, &msg)
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

// forward relays channel events to the client and keeps the connection
// alive with pings.
func (h *WSHandler) forward(ctx context.Context, conn *ws.Conn, events <-chan []byte, log zerolog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteRaw(payload); err != nil {
				log.Debug().Err(err).Msg("Forward failed")
				return
			}
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handleSubmit(ctx context.Context, conn *ws.Conn, actor service.Actor, msg *ws.RequestPayload) {
	if msg.BlockID == uuid.Nil || len(msg.Answer) == 0 {
		h.writeError(conn, msg.BlockID, response.ErrInvalidPayload)
		return
	}
	if !h.submitLimit.Allow(ctx, actor.ID.String()) {
		h.writeError(conn, msg.BlockID, response.ErrRateLimitExceeded)
		return
	}

	sub, err := h.submissionService.Submit(ctx, actor, msg.BlockID, msg.Answer)
	if err != nil {
		h.writeError(conn, msg.BlockID, h.wsCode(err))
		return
	}
	conn.WriteTyped(ws.SubmittedResponse{Event: ws.EventSubmitted, Submission: sub})
}

func (h *WSHandler) handleEdit(ctx context.Context, conn *ws.Conn, actor service.Actor, msg *ws.RequestPayload) {
	if msg.BlockID == uuid.Nil || msg.Edit == nil {
		h.writeError(conn, msg.BlockID, response.ErrInvalidPayload)
		return
	}

	if err := h.authoringService.QueueEdit(ctx, actor, msg.BlockID, *msg.Edit); err != nil {
		h.writeError(conn, msg.BlockID, h.wsCode(err))
		return
	}
	conn.WriteTyped(ws.QueuedResponse{Event: ws.EventQueued, BlockID: msg.BlockID})
}

func (h *WSHandler) writeError(conn *ws.Conn, blockID uuid.UUID, code response.ErrCode) {
	res := ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: response.GetMessage(code)}
	if blockID != uuid.Nil {
		res.BlockID = &blockID
	}
	conn.WriteTyped(res)
}

func (h *WSHandler) wsCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, service.ErrNotAuthorized):
		return response.ErrRoleForbidden
	case errors.Is(err, service.ErrNotFound):
		return response.ErrNotFound
	case errors.Is(err, service.ErrInvalidAnswer):
		return response.ErrInvalidAnswer
	default:
		h.log.Error().Err(err).Msg("Stream action failed")
		return response.ErrInternal
	}
}
