// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/whotserver/network"
)

// Session is one authenticated connection. A player may hold several.
type Session struct {
	ID          string
	Conn        network.Connection
	Identity    string // JWT subject
	DisplayName string
	CreatedAt   time.Time

	mutex      sync.RWMutex
	gameID     string
	lastActive time.Time
}

func NewSession(id string, conn network.Connection, identity, displayName string) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		Conn:        conn,
		Identity:    identity,
		DisplayName: displayName,
		CreatedAt:   now,
		lastActive:  now,
	}
}

func (s *Session) Send(msgID uint16, data []byte) error {
	return s.Conn.Send(msgID, data)
}

// Touch 记录玩家操作时间, 心跳不算
func (s *Session) Touch() {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
}

// IdleFor is how long ago the player last acted through this session.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActive())
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

// GameID is the game this session is bound to, or "".
func (s *Session) GameID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.gameID
}

func (s *Session) SetGameID(id string) {
	s.mutex.Lock()
	s.gameID = id
	s.mutex.Unlock()
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) GetByIdentity(identity string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.Identity == identity {
			result = append(result, session)
		}
	}
	return result
}

// All returns a snapshot of every session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
