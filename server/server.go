package server

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"

	"github.com/wfunc/whotserver/auth"
	"github.com/wfunc/whotserver/logger"
	"github.com/wfunc/whotserver/monitor"
	"github.com/wfunc/whotserver/network"
	"github.com/wfunc/whotserver/persistence"
	"github.com/wfunc/whotserver/room"
	"github.com/wfunc/whotserver/services"
	"github.com/wfunc/whotserver/session"
	"github.com/wfunc/whotserver/timer"
)

// Options HTTP 服务配置
type Options struct {
	Addr           string
	DevTokens      bool          // expose POST /token
	Heartbeat      time.Duration // 0 disables read deadlines
	IdleTimeout    time.Duration // 心跳之外无操作超过此时长则断开, 0 不限制
	AllowedOrigins []string
}

type GameServer struct {
	opts           Options
	router         *chi.Mux
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	games          *services.GameService
	players        *services.PlayerService
	issuer         *auth.Issuer
	monitor        *monitor.Monitor
	timers         *timer.TimerManager
	reaperID       int64
	shutdownChan   chan struct{}
	shutdownOnce   sync.Once
}

func NewGameServer(
	opts Options,
	rooms *room.Manager,
	sessions *session.Manager,
	games *services.GameService,
	players *services.PlayerService,
	issuer *auth.Issuer,
	mon *monitor.Monitor,
	timers *timer.TimerManager,
) *GameServer {
	s := &GameServer{
		opts:           opts,
		router:         chi.NewRouter(),
		roomManager:    rooms,
		sessionManager: sessions,
		games:          games,
		players:        players,
		issuer:         issuer,
		monitor:        mon,
		timers:         timers,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求, 身份由令牌决定
			},
		},
	}
	s.routes()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	handler := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(s.router),
	)
	if opts.IdleTimeout > 0 {
		every := opts.IdleTimeout / 2
		s.reaperID = timers.AddTimer(every, every, s.reapIdle)
	}

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *GameServer) routes() {
	r := s.router
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	r.Handle("/metrics", s.monitor.Handler())
	r.Handle("/debug/vars", expvar.Handler())

	r.Get("/games", s.handleListGames)
	r.Get("/games/{id}", s.handleGetGame)
	r.Get("/players/{identity}", s.handleGetPlayer)
	if s.opts.DevTokens {
		r.Post("/token", s.handleIssueToken)
	}
	r.Get("/ws", s.handleWebSocket)
}

// Handler 返回完整的 HTTP 处理链
func (s *GameServer) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.opts.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and closes every session.
func (s *GameServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		if s.reaperID != 0 {
			s.timers.RemoveTimer(s.reaperID)
		}
	})
	err := s.httpServer.Shutdown(ctx)
	for _, sess := range s.sessionManager.All() {
		_ = sess.Close()
	}
	return err
}

// reapIdle closes sessions whose player has not acted within IdleTimeout. The read
// loop of each closed session does the cleanup.
func (s *GameServer) reapIdle() {
	now := time.Now()
	for _, sess := range s.sessionManager.All() {
		if sess.IdleFor(now) <= s.opts.IdleTimeout {
			continue
		}
		logger.Log.Infof("Closing idle session %s (%s)", sess.GetID(), sess.Identity)
		_ = sess.Close()
	}
}

// --- HTTP ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// viewer returns the identity of a valid token on r, or "".
func (s *GameServer) viewer(r *http.Request) string {
	tok, err := auth.TokenFromRequest(r)
	if err != nil {
		return ""
	}
	claims, err := s.issuer.Verify(tok)
	if err != nil {
		return ""
	}
	return claims.Subject
}

func (s *GameServer) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.games.ListGames(r.URL.Query().Get("asset")))
}

func (s *GameServer) handleGetGame(w http.ResponseWriter, r *http.Request) {
	view, err := s.games.Game(r.Context(), chi.URLParam(r, "id"), s.viewer(r))
	if errors.Is(err, services.ErrGameNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *GameServer) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	info, err := s.players.GetPlayerWithStats(r.Context(), chi.URLParam(r, "identity"))
	if errors.Is(err, persistence.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type tokenRequest struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleIssueToken 开发环境签发令牌
func (s *GameServer) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identity == "" {
		writeError(w, http.StatusBadRequest, errors.New("identity required"))
		return
	}
	p, err := s.players.Register(r.Context(), req.Identity, req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tok, exp, err := s.issuer.Issue(p.Identity, p.DisplayName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: tok, ExpiresAt: exp})
}

// --- WebSocket ---

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	tok, err := auth.TokenFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	claims, err := s.issuer.Verify(tok)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	profile, err := s.players.Register(r.Context(), claims.Subject, claims.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn, profile.Identity, profile.DisplayName)
}

func (s *GameServer) handleConnection(conn *websocket.Conn, identity, displayName string) {
	wsConn := network.NewWSConnection(conn)
	if s.opts.Heartbeat > 0 {
		wsConn.SetHeartbeat(s.opts.Heartbeat)
	}
	sess := session.NewSession(uuid.New().String(), wsConn, identity, displayName)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, identity %s, session ID: %s", wsConn.RemoteAddr(), identity, sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.unbind(sess)
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}
