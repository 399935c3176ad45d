package ws

import (
	"encoding/json"
	"errors"
	"net/http"

	"supertictactoe/internal/app"
	"supertictactoe/internal/app/onboarding"
	"supertictactoe/internal/domain"
	"supertictactoe/internal/matchmaking"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server exposes the HTTP surface: game creation and reset, matchmaking,
// and the websocket endpoint.
type Server struct {
	svc      *app.Service
	queue    *matchmaking.Queue
	hub      *Hub
	profiles *onboarding.Service
	log      *zap.Logger
}

// NewServer wires the handlers. queue may be nil to disable matchmaking
// routes; profiles may be nil to skip guest-name provisioning.
func NewServer(svc *app.Service, queue *matchmaking.Queue, hub *Hub, profiles *onboarding.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, queue: queue, hub: hub, profiles: profiles, log: log}
}

// Router builds the route table.
func (s *Server) Router() *httprouter.Router {
	mux := httprouter.New()
	mux.POST("/create-game", s.createGame)
	mux.POST("/reset-game", s.resetGame)
	mux.GET("/ws/connect", s.connect)

	if s.queue != nil {
		mux.POST("/matchmaking/join", s.matchmakingJoin)
		mux.POST("/matchmaking/leave", s.matchmakingLeave)
		mux.GET("/matchmaking/status", s.matchmakingStatus)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

type createGameRequest struct {
	Mode         string `json:"mode"`
	AIDifficulty string `json:"ai_difficulty,omitempty"`
}

func (s *Server) createGame(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode := domain.Mode(req.Mode)
	if mode == "" {
		mode = domain.ModeRemote
	}
	if mode != domain.ModeRemote && mode != domain.ModeAI {
		writeError(w, http.StatusBadRequest, "unknown game mode")
		return
	}

	m, err := s.svc.Registry().Create(mode, domain.Difficulty(req.AIDifficulty))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := map[string]string{
		"game_id": m.ID(),
		"mode":    string(mode),
	}
	if d := m.Snapshot().Difficulty; d != "" {
		out["ai_difficulty"] = string(d)
	}
	writeJSON(w, http.StatusOK, out)
}

type resetGameRequest struct {
	GameID string `json:"game_id"`
	UserID string `json:"user_id"`
}

func (s *Server) resetGame(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req resetGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch err := s.svc.Reset(req.GameID, req.UserID); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Game reset successfully",
		})
	case errors.Is(err, app.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrNotPlayer):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrResetInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type matchmakingRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) matchmakingJoin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req matchmakingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	st, err := s.queue.Join(req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) matchmakingLeave(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req matchmakingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"left": s.queue.Leave(req.UserID)})
}

func (s *Server) matchmakingStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	writeJSON(w, http.StatusOK, s.queue.Status(userID))
}

// connect upgrades the socket and runs the read loop until the client goes
// away. An unknown game still gets an upgrade so the error arrives in-band,
// which is what the frontend expects.
func (s *Server) connect(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	gameID := r.URL.Query().Get("game_id")
	userID := r.URL.Query().Get("user_id")
	if gameID == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "game_id and user_id are required")
		return
	}

	if s.profiles != nil {
		if _, created, err := s.profiles.EnsureProfile(r.Context(), userID); err != nil {
			s.log.Warn("profile provisioning failed",
				zap.String("user_id", userID), zap.Error(err))
		} else if created {
			s.log.Info("guest profile created", zap.String("user_id", userID))
		}
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	if _, ok := s.svc.Registry().Get(gameID); !ok {
		_ = ws.WriteJSON(errFrame("Game not found"))
		_ = ws.Close()
		return
	}

	c, err := s.hub.Attach(gameID, userID, ws)
	if err != nil {
		_ = ws.WriteJSON(errFrame(err.Error()))
		_ = ws.Close()
		return
	}

	s.readLoop(c)
}

// readLoop dispatches client frames for one connection. On exit the socket
// is detached and remaining clients get a fresh watcher count.
func (s *Server) readLoop(c *conn) {
	defer func() {
		if s.hub.Detach(c) > 0 {
			if m, ok := s.svc.Registry().Get(c.gameID); ok {
				snap := m.Snapshot()
				s.hub.Broadcast(c.gameID, watchersUpdateFrame{
					Type:          string(app.EventWatchersUpdate),
					GameID:        c.gameID,
					WatchersCount: snap.Watchers,
				})
			}
		}
	}()

	for {
		var frame clientFrame
		if err := c.ws.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case frameJoinGame:
			if _, _, err := s.svc.Join(c.gameID, c.userID); err != nil {
				s.reply(c, errFrame(err.Error()))
			}

		case frameMakeMove:
			if frame.Move == nil {
				s.reply(c, errFrame("move is required"))
				continue
			}
			mv := domain.Move{
				PlayerID: frame.Move.PlayerID,
				Board:    frame.Move.GlobalBoardIndex,
				Cell:     frame.Move.LocalBoardIndex,
			}
			if mv.PlayerID == "" {
				mv.PlayerID = c.userID
			}
			if _, err := s.svc.MakeMove(c.gameID, mv); err != nil {
				s.reply(c, errFrame(err.Error()))
			}

		case frameResetGame:
			if err := s.svc.Reset(c.gameID, c.userID); err != nil {
				s.reply(c, errFrame(err.Error()))
			}

		case frameLeave:
			userID := frame.UserID
			if userID == "" {
				userID = c.userID
			}
			if err := s.svc.Leave(c.gameID, userID); err != nil {
				s.reply(c, errFrame(err.Error()))
			}

		case framePing:
			s.reply(c, pongFrame{Type: framePong, Timestamp: frame.Timestamp})

		case framePong:
			s.hub.pongReceived(c)

		default:
			s.reply(c, errFrame("Invalid action"))
		}
	}
}

// reply delivers a frame to the originating peer only, through the hub so
// it lands on whichever connection is currently registered for the user.
func (s *Server) reply(c *conn, frame any) {
	s.hub.SendTo(c.gameID, c.userID, frame)
}
