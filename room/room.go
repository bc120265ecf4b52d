// room/room.go
package room

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/whotserver/engine"
	"github.com/wfunc/whotserver/models"
	"github.com/wfunc/whotserver/session"
	"github.com/wfunc/whotserver/shuffle"
	"github.com/wfunc/whotserver/state"
)

var (
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomNotFound = errors.New("room not found")
)

// Room hosts one game. It serializes every operation on the game behind gameMutex
// and tracks the sessions watching it.
type Room struct {
	ID           string
	StateMachine state.StateMachine
	CreatedAt    time.Time

	game        *engine.Game
	hasher      shuffle.Hasher
	listener    state.Listener
	broadcaster Broadcaster // Use the interface, not the concrete type
	now         func() time.Time
	gameMutex   sync.Mutex
	playerMutex sync.RWMutex
	sessions    map[string]*session.Session // sessionID -> session
}

type Option func(*Room)

func WithHasher(h shuffle.Hasher) Option { return func(r *Room) { r.hasher = h } }

func WithListener(l state.Listener) Option { return func(r *Room) { r.listener = l } }

func WithClock(now func() time.Time) Option { return func(r *Room) { r.now = now } }

// NewRoom wraps g. The initial state follows the game's phase, so restored games
// resume where they stopped.
func NewRoom(g *engine.Game, broadcaster Broadcaster, opts ...Option) *Room {
	r := &Room{
		ID:          g.ID,
		CreatedAt:   time.Now(),
		game:        g,
		hasher:      shuffle.SHA256,
		listener:    state.NopListener{},
		broadcaster: broadcaster,
		now:         time.Now,
		sessions:    make(map[string]*session.Session),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.gameMutex.Lock()
	defer r.gameMutex.Unlock()

	var initial state.State
	switch {
	case g.Ended():
		initial = state.NewResumedSettledState(r)
	case g.Started():
		initial = state.NewPlayingState(r)
	case g.Full():
		initial = state.NewAwaitingRandomnessState(r)
	default:
		initial = state.NewLobbyState(r)
	}
	sm := state.NewBaseStateMachine(initial)
	r.StateMachine = sm

	// 转换条件
	sm.AddTransition(state.StateAwaitingRandomness, state.StatePlaying, func() bool { return r.game.Started() })
	sm.AddTransition(state.StatePlaying, state.StateSettled, r.game.Ended)
	sm.AddTransition(state.StateLobby, state.StateSettled, r.game.Ended)
	sm.AddTransition(state.StateAwaitingRandomness, state.StateSettled, r.game.Ended)
	return r
}

// --- 实现 state.RoomContext 接口 ---

// GetID 返回房间ID
func (r *Room) GetID() string {
	return r.ID
}

// Game is the live aggregate; only states running under Apply may use it.
func (r *Room) Game() *engine.Game {
	return r.game
}

func (r *Room) Hasher() shuffle.Hasher {
	return r.hasher
}

func (r *Room) Listener() state.Listener {
	return r.listener
}

// ChangeState 改变房间的状态机状态
func (r *Room) ChangeState(newState state.State) error {
	return r.StateMachine.ChangeState(newState)
}

// Broadcast sends a message to all sessions in the room.
func (r *Room) Broadcast(msgID uint16, data []byte) error {
	return r.broadcaster.BroadcastToRoom(r.ID, msgID, data)
}

// SendTo sends a message to every session of one identity in the room.
func (r *Room) SendTo(identity string, msgID uint16, data []byte) error {
	var firstErr error
	for _, s := range r.GetSessions() {
		if s.Identity != identity {
			continue
		}
		if err := s.Send(msgID, data); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// --- 房间核心逻辑 ---

// Apply runs one action against the game under the room lock.
func (r *Room) Apply(action state.Action) (state.Result, error) {
	r.gameMutex.Lock()
	defer r.gameMutex.Unlock()

	if action.Now.IsZero() {
		action.Now = r.now()
	}
	return r.StateMachine.GetCurrentState().HandleAction(action)
}

// Snapshot returns a deep copy of the game.
func (r *Room) Snapshot() *engine.Game {
	r.gameMutex.Lock()
	defer r.gameMutex.Unlock()
	return r.game.Clone()
}

// View projects the game for one viewer.
func (r *Room) View(viewer string) models.GameView {
	r.gameMutex.Lock()
	defer r.gameMutex.Unlock()
	return models.NewGameView(r.game, viewer)
}

// StateID 当前状态
func (r *Room) StateID() string {
	return r.StateMachine.GetCurrentState().GetID()
}

// Open reports whether the room still accepts joins.
func (r *Room) Open() bool {
	r.gameMutex.Lock()
	defer r.gameMutex.Unlock()
	return r.game.Phase == engine.PhaseUnstarted && !r.game.Full()
}

// AddSession 会话进入房间
func (r *Room) AddSession(s *session.Session) {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	r.sessions[s.ID] = s
	s.SetGameID(r.ID)
}

// RemoveSession 会话离开房间
func (r *Room) RemoveSession(sessionID string) {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	if s, exists := r.sessions[sessionID]; exists {
		s.SetGameID("")
		delete(r.sessions, sessionID)
	}
}

// GetSessions returns a slice of all sessions in the room (thread-safe).
func (r *Room) GetSessions() []*session.Session {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	sessions := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// --- 房间管理器 ---

// Manager 管理所有房间
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

// CreateRoom 创建一个新房间并添加到管理器
//
// The room is built outside the manager lock: entering its initial state may
// broadcast, and broadcasting looks rooms up through this manager.
func (m *Manager) CreateRoom(g *engine.Game, broadcaster Broadcaster, opts ...Option) (*Room, error) {
	if _, exists := m.GetRoom(g.ID); exists {
		return nil, ErrRoomExists
	}
	room := NewRoom(g, broadcaster, opts...)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.rooms[g.ID]; exists {
		return nil, ErrRoomExists
	}
	m.rooms[g.ID] = room
	return room, nil
}

// RemoveRoom 从管理器中移除一个房间
func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.rooms, id)
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// List returns every room, oldest first.
func (m *Manager) List() []*Room {
	m.mutex.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mutex.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	return rooms
}

// Count 房间数量
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// FindAvailableRoom 查找一个可加入的房间, 最早创建的优先, 跳过 identity 已在的房间
func (m *Manager) FindAvailableRoom(asset, identity string) *Room {
	for _, r := range m.List() {
		if !r.Open() {
			continue
		}
		g := r.Snapshot()
		if g.StakeAsset != asset {
			continue
		}
		if _, seated := g.Player(engine.Identity(identity)); seated {
			continue
		}
		return r
	}
	return nil
}
