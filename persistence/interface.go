// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"math"

	"github.com/wfunc/whotserver/engine"
	"github.com/wfunc/whotserver/models"
)

// Database 数据库接口
type Database interface {
	SaveProfile(ctx context.Context, p *models.Profile) error
	LoadProfile(ctx context.Context, identity string) (*models.Profile, error)
	SaveGame(ctx context.Context, g *engine.Game) error
	LoadGame(ctx context.Context, gameID string) (*engine.Game, error)
	LoadOpenGames(ctx context.Context) ([]*engine.Game, error)
	SaveGameRecord(ctx context.Context, r *models.GameRecord) error
	GetPlayerStats(ctx context.Context, identity string) (*models.PlayerStats, error)
	Close() error
}

// Ledger 托管账本: 入场押金, 退款, 奖金
type Ledger interface {
	Balance(ctx context.Context, identity, asset string) (uint64, error)
	Debit(ctx context.Context, identity, asset string, amount uint64, ref string) error
	Credit(ctx context.Context, identity, asset string, amount uint64, ref string) error
}

// Store is a database that also keeps the ledger.
type Store interface {
	Database
	Ledger
}

// 错误定义
var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAmountOutOfRange  = errors.New("amount out of range")
)

// signed converts a ledger amount to the database column type.
func signed(amount uint64) (int64, error) {
	if amount > math.MaxInt64 {
		return 0, ErrAmountOutOfRange
	}
	return int64(amount), nil
}
