package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wfunc/whotserver/engine"
	"github.com/wfunc/whotserver/models"
)

// MemoryStore keeps everything in process. Games are stored encoded so callers
// never share state with the store.
type MemoryStore struct {
	mutex    sync.RWMutex
	profiles map[string]models.Profile
	games    map[string][]byte
	records  map[string]models.GameRecord
	balances map[string]uint64 // identity/asset -> amount
	entries  []LedgerEntry
}

// LedgerEntry 内存账本流水
type LedgerEntry struct {
	Identity string
	Asset    string
	Delta    int64
	Ref      string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]models.Profile),
		games:    make(map[string][]byte),
		records:  make(map[string]models.GameRecord),
		balances: make(map[string]uint64),
	}
}

func (m *MemoryStore) SaveProfile(_ context.Context, p *models.Profile) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.profiles[p.Identity] = *p
	return nil
}

func (m *MemoryStore) LoadProfile(_ context.Context, identity string) (*models.Profile, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	p, ok := m.profiles[identity]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &p, nil
}

func (m *MemoryStore) SaveGame(_ context.Context, g *engine.Game) error {
	data, err := models.EncodeGame(g)
	if err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.games[g.ID] = data
	return nil
}

func (m *MemoryStore) LoadGame(_ context.Context, gameID string) (*engine.Game, error) {
	m.mutex.RLock()
	data, ok := m.games[gameID]
	m.mutex.RUnlock()
	if !ok {
		return nil, ErrRecordNotFound
	}
	return models.DecodeGame(data)
}

func (m *MemoryStore) LoadOpenGames(_ context.Context) ([]*engine.Game, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var games []*engine.Game
	for _, data := range m.games {
		g, err := models.DecodeGame(data)
		if err != nil {
			return nil, err
		}
		if !g.Ended() {
			games = append(games, g)
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].CreatedAt.Before(games[j].CreatedAt) })
	return games, nil
}

// SaveGameRecord keeps the first record per game.
func (m *MemoryStore) SaveGameRecord(_ context.Context, r *models.GameRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.records[r.GameID]; !exists {
		m.records[r.GameID] = *r
	}
	return nil
}

func (m *MemoryStore) GetPlayerStats(_ context.Context, identity string) (*models.PlayerStats, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := &models.PlayerStats{Identity: identity}
	for _, r := range m.records {
		for _, p := range r.Players {
			if p.Identity == identity {
				stats.Add(p.Result)
			}
		}
	}
	return stats, nil
}

func (m *MemoryStore) Close() error { return nil }

// --- Ledger ---

func balanceKey(identity, asset string) string {
	return fmt.Sprintf("%s/%s", identity, asset)
}

func (m *MemoryStore) Balance(_ context.Context, identity, asset string) (uint64, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.balances[balanceKey(identity, asset)], nil
}

func (m *MemoryStore) Debit(_ context.Context, identity, asset string, amount uint64, ref string) error {
	delta, err := signed(amount)
	if err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	key := balanceKey(identity, asset)
	if m.balances[key] < amount {
		return ErrInsufficientFunds
	}
	m.balances[key] -= amount
	m.entries = append(m.entries, LedgerEntry{Identity: identity, Asset: asset, Delta: -delta, Ref: ref})
	return nil
}

func (m *MemoryStore) Credit(_ context.Context, identity, asset string, amount uint64, ref string) error {
	delta, err := signed(amount)
	if err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	key := balanceKey(identity, asset)
	if m.balances[key]+amount < m.balances[key] {
		return ErrAmountOutOfRange
	}
	m.balances[key] += amount
	m.entries = append(m.entries, LedgerEntry{Identity: identity, Asset: asset, Delta: delta, Ref: ref})
	return nil
}

// Entries returns a copy of the ledger history.
func (m *MemoryStore) Entries() []LedgerEntry {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]LedgerEntry(nil), m.entries...)
}
