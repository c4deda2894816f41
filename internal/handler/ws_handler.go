package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quiz-overview/internal/middleware"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/response"
	"github.com/stemsi/quiz-overview/internal/service"
	"github.com/stemsi/quiz-overview/internal/validator"
	ws "github.com/stemsi/quiz-overview/internal/websocket"
)

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

// ProgressFeed exposes run records and the live progress channel of a quiz.
type ProgressFeed interface {
	Latest(ctx context.Context, quizID int64) (*model.RegradeRun, error)
	Subscribe(ctx context.Context, quizID int64) *redis.PubSub
}

// WSHandler streams regrade progress to teachers.
type WSHandler struct {
	feed     ProgressFeed
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(feed ProgressFeed, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		feed:     feed,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// RegradeProgressStream godoc
// WS /ws/v1/teacher/quizzes/:id/regrade/progress?token=
// Sends the latest run as a snapshot, then relays every progress step of the quiz.
func (h *WSHandler) RegradeProgressStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := validator.ParamID(c, "id")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int64("teacher_id", claims.UserID).
		Int64("quiz_id", quizID).
		Logger()
	wsLog.Info().Msg("Teacher connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before reading the snapshot so no step falls between the two.
	sub := h.feed.Subscribe(ctx, quizID)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		wsLog.Error().Err(err).Msg("Progress subscription failed")
		ws.WriteError(conn, "progress unavailable")
		return
	}

	run, err := h.feed.Latest(ctx, quizID)
	if err != nil && !errors.Is(err, service.ErrRunNotFound) {
		wsLog.Error().Err(err).Msg("Load latest run failed")
		ws.WriteError(conn, "progress unavailable")
		return
	}
	if err := ws.WriteTyped(conn, ws.SnapshotResponse{Event: ws.EventSnapshot, Run: run}); err != nil {
		return
	}

	// All writes happen on this goroutine's writer; the reader only queues pongs.
	pongs := make(chan struct{}, 1)
	readDone := make(chan struct{})
	go h.readLoop(conn, wsLog, pongs, readDone)

	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()
	messages := sub.Channel()

	for {
		select {
		case <-readDone:
			return
		case <-pongs:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var p model.RegradeProgress
			if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
				wsLog.Warn().Err(err).Msg("Dropping malformed progress message")
				continue
			}
			if err := ws.WriteTyped(conn, ws.ProgressResponse{Event: ws.EventProgress, Progress: p}); err != nil {
				return
			}
		}
	}
}

// readLoop consumes client frames until the connection closes.
func (h *WSHandler) readLoop(conn *websocket.Conn, wsLog zerolog.Logger, pongs chan<- struct{}, done chan<- struct{}) {
	defer close(done)
	ws.KeepAlive(conn)

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			select {
			case pongs <- struct{}{}:
			default:
			}
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		}
	}
}
