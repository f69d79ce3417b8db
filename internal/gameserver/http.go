package gameserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/matryer/way"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/board"
	"github.com/cory-johannsen/gridbrawl/internal/game/event"
	"github.com/cory-johannsen/gridbrawl/internal/game/room"
	"github.com/cory-johannsen/gridbrawl/internal/game/session"
	"github.com/cory-johannsen/gridbrawl/internal/observability"
)

// HTTP routes.
const (
	RoutePlay    = "/play"
	RouteBoards  = "/boards"
	RouteHealthz = "/healthz"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
)

// HTTPServer serves the WebSocket endpoint and the JSON catalogue routes.
type HTTPServer struct {
	router     *way.Router
	upgrader   websocket.Upgrader
	dispatcher *Dispatcher
	boards     board.Provider
	rooms      *room.Manager
	sessions   *session.Manager
	logger     *zap.Logger
}

// NewHTTPServer creates the router.
//
// Precondition: every argument must be non-nil.
func NewHTTPServer(dispatcher *Dispatcher, boards board.Provider, rooms *room.Manager, sessions *session.Manager, logger *zap.Logger) *HTTPServer {
	s := &HTTPServer{
		router: way.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		dispatcher: dispatcher,
		boards:     boards,
		rooms:      rooms,
		sessions:   sessions,
		logger:     logger,
	}
	s.router.HandleFunc(http.MethodGet, RoutePlay, s.handlePlay)
	s.router.HandleFunc(http.MethodGet, RouteBoards, s.handleBoards)
	s.router.HandleFunc(http.MethodGet, RouteBoards+"/:name", s.handleBoard)
	s.router.HandleFunc(http.MethodGet, RouteHealthz, s.handleHealthz)
	return s
}

// ServeHTTP implements http.Handler.
func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *HTTPServer) handleBoards(w http.ResponseWriter, r *http.Request) {
	list, err := s.boards.ListBoards(r.Context())
	if err != nil {
		s.logger.Error("listing boards", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing boards failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": list})
}

func (s *HTTPServer) handleBoard(w http.ResponseWriter, r *http.Request) {
	b, err := s.boards.GetBoard(r.Context(), way.Param(r.Context(), "name"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, board.Summarize(b))
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"rooms":    s.rooms.Len(),
		"sessions": s.sessions.Count(),
	})
}

// handlePlay upgrades to a WebSocket carrying JSON intents in and JSON
// events out.
func (s *HTTPServer) handlePlay(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	uid := uuid.NewString()
	logger := observability.ClientLogger(s.logger, uid, "websocket")
	sess, err := s.dispatcher.Connect(uid)
	if err != nil {
		logger.Warn("registering session", zap.Error(err))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session"))
		return
	}
	defer s.dispatcher.Disconnect(uid)
	logger.Info("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	written := make(chan struct{})
	go func() {
		defer close(written)
		s.writePump(ctx, conn, sess.Outbox, logger)
	}()

	s.readPump(ctx, conn, uid, logger)
	cancel()
	<-written
	logger.Info("client disconnected")
}

func (s *HTTPServer) readPump(ctx context.Context, conn *websocket.Conn, uid string, logger *zap.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		in, err := event.DecodeIntent(payload)
		if err != nil {
			logger.Debug("malformed intent", zap.Error(err))
			s.dispatcher.ReportError(uid, "", err)
			continue
		}
		if in.Type == event.IntentDisconnect {
			return
		}
		in.PlayerID = uid
		s.dispatcher.Dispatch(ctx, in)
	}
}

// writePump is the only writer of conn.
func (s *HTTPServer) writePump(ctx context.Context, conn *websocket.Conn, outbox *session.Outbox, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data, ok := <-outbox.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
