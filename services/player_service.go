// services/player_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/wfunc/whotserver/logger"
	"github.com/wfunc/whotserver/models"
	"github.com/wfunc/whotserver/persistence"
)

const maxDisplayNameLen = 32

var ErrInvalidDisplayName = errors.New("invalid display name")

// PlayerService 玩家档案与余额
type PlayerService struct {
	db              persistence.Database
	ledger          persistence.Ledger
	assets          []string
	startingBalance uint64
}

// NewPlayerService credits startingBalance of every asset to players seen for the
// first time.
func NewPlayerService(db persistence.Database, ledger persistence.Ledger, assets []string, startingBalance uint64) *PlayerService {
	return &PlayerService{db: db, ledger: ledger, assets: assets, startingBalance: startingBalance}
}

// Register loads the profile of identity, creating it on first sight. A changed
// display name is saved.
func (s *PlayerService) Register(ctx context.Context, identity, displayName string) (*models.Profile, error) {
	name, err := normalizeName(identity, displayName)
	if err != nil {
		return nil, err
	}

	p, err := s.db.LoadProfile(ctx, identity)
	switch {
	case err == nil:
		if p.DisplayName == name {
			return p, nil
		}
		p.DisplayName = name
		return p, s.db.SaveProfile(ctx, p)

	case errors.Is(err, persistence.ErrRecordNotFound):
		p = &models.Profile{Identity: identity, DisplayName: name}
		if err := s.db.SaveProfile(ctx, p); err != nil {
			return nil, err
		}
		if s.startingBalance > 0 {
			for _, asset := range s.assets {
				if err := s.ledger.Credit(ctx, identity, asset, s.startingBalance, "welcome"); err != nil {
					return nil, err
				}
			}
		}
		logger.Log.Infof("新玩家 %s (%s)", identity, name)
		return s.db.LoadProfile(ctx, identity)

	default:
		return nil, err
	}
}

func normalizeName(identity, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = identity
	}
	if len(name) > maxDisplayNameLen {
		return "", ErrInvalidDisplayName
	}
	return name, nil
}

// PlayerInfo 玩家信息和统计
type PlayerInfo struct {
	Profile  *models.Profile     `json:"profile"`
	Stats    *models.PlayerStats `json:"stats"`
	Balances map[string]uint64   `json:"balances"`
}

// GetPlayerWithStats 获取玩家信息和统计
func (s *PlayerService) GetPlayerWithStats(ctx context.Context, identity string) (*PlayerInfo, error) {
	p, err := s.db.LoadProfile(ctx, identity)
	if err != nil {
		return nil, err
	}
	stats, err := s.db.GetPlayerStats(ctx, identity)
	if err != nil {
		return nil, err
	}

	info := &PlayerInfo{Profile: p, Stats: stats, Balances: make(map[string]uint64, len(s.assets))}
	for _, asset := range s.assets {
		bal, err := s.ledger.Balance(ctx, identity, asset)
		if err != nil {
			return nil, err
		}
		info.Balances[asset] = bal
	}
	return info, nil
}

// GetPlayerStats 获取玩家统计
func (s *PlayerService) GetPlayerStats(ctx context.Context, identity string) (*models.PlayerStats, error) {
	return s.db.GetPlayerStats(ctx, identity)
}
