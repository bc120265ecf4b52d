// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/whotserver/engine"
	"github.com/wfunc/whotserver/models"
)

const queryTimeout = 5 * time.Second

// PostgreSQL 数据库实现, 表结构与 GORM 迁移结果一致
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
        id BIGSERIAL PRIMARY KEY,
        identity TEXT UNIQUE NOT NULL,
        display_name TEXT NOT NULL,
        created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
        deleted_at TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS games (
        id BIGSERIAL PRIMARY KEY,
        game_id TEXT UNIQUE NOT NULL,
        phase TEXT NOT NULL,
        delegated BOOLEAN DEFAULT FALSE,
        snapshot JSONB NOT NULL,
        created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
        deleted_at TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS game_records (
        id BIGSERIAL PRIMARY KEY,
        game_id TEXT UNIQUE NOT NULL,
        stake_asset TEXT NOT NULL,
        entry_stake BIGINT NOT NULL,
        outcome TEXT NOT NULL,
        winner TEXT,
        players JSONB NOT NULL,
        started_at TIMESTAMPTZ,
        ended_at TIMESTAMPTZ,
        created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
        deleted_at TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS player_results (
        id BIGSERIAL PRIMARY KEY,
        game_id TEXT NOT NULL,
        identity TEXT NOT NULL,
        score BIGINT NOT NULL,
        result TEXT NOT NULL,
        ended_at TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS balances (
        id BIGSERIAL PRIMARY KEY,
        identity TEXT NOT NULL,
        asset TEXT NOT NULL,
        amount BIGINT NOT NULL DEFAULT 0,
        updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
    )`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
        id BIGSERIAL PRIMARY KEY,
        identity TEXT NOT NULL,
        asset TEXT NOT NULL,
        delta BIGINT NOT NULL,
        ref TEXT,
        created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
    )`,
	// 索引名与 GORM 生成的一致
	`CREATE INDEX IF NOT EXISTS idx_games_phase ON games(phase)`,
	`CREATE INDEX IF NOT EXISTS idx_player_results_game_id ON player_results(game_id)`,
	`CREATE INDEX IF NOT EXISTS idx_player_results_identity ON player_results(identity)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_balance_owner ON balances(identity, asset)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_identity ON ledger_entries(identity)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_ref ON ledger_entries(ref)`,
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveProfile 保存玩家档案
func (p *PostgreSQL) SaveProfile(ctx context.Context, prof *models.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
        INSERT INTO profiles (identity, display_name)
        VALUES ($1, $2)
        ON CONFLICT (identity)
        DO UPDATE SET display_name = $2, updated_at = CURRENT_TIMESTAMP
    `
	_, err := p.db.ExecContext(ctx, query, prof.Identity, prof.DisplayName)
	return err
}

// LoadProfile 加载玩家档案
func (p *PostgreSQL) LoadProfile(ctx context.Context, identity string) (*models.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	prof := &models.Profile{Identity: identity}
	query := `SELECT display_name, created_at FROM profiles WHERE identity = $1 AND deleted_at IS NULL`
	err := p.db.QueryRowContext(ctx, query, identity).Scan(&prof.DisplayName, &prof.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return prof, nil
}

// SaveGame upserts the game snapshot.
func (p *PostgreSQL) SaveGame(ctx context.Context, g *engine.Game) error {
	data, err := models.EncodeGame(g)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
        INSERT INTO games (game_id, phase, delegated, snapshot)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (game_id)
        DO UPDATE SET phase = $2, delegated = $3, snapshot = $4, updated_at = CURRENT_TIMESTAMP
    `
	_, err = p.db.ExecContext(ctx, query, g.ID, string(g.Phase), g.Delegated, data)
	return err
}

// LoadGame 加载游戏快照
func (p *PostgreSQL) LoadGame(ctx context.Context, gameID string) (*engine.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var data []byte
	query := `SELECT snapshot FROM games WHERE game_id = $1 AND deleted_at IS NULL`
	err := p.db.QueryRowContext(ctx, query, gameID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return models.DecodeGame(data)
}

// LoadOpenGames returns every game that has not ended, oldest first.
func (p *PostgreSQL) LoadOpenGames(ctx context.Context) ([]*engine.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT snapshot FROM games WHERE phase <> $1 AND deleted_at IS NULL ORDER BY created_at`
	rows, err := p.db.QueryContext(ctx, query, string(engine.PhaseEnded))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []*engine.Game
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		g, err := models.DecodeGame(data)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// SaveGameRecord 保存游戏记录, 同一局只写一次
func (p *PostgreSQL) SaveGameRecord(ctx context.Context, r *models.GameRecord) error {
	stake, err := signed(r.EntryStake)
	if err != nil {
		return err
	}
	players, err := json.Marshal(r.Players)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
        INSERT INTO game_records (game_id, stake_asset, entry_stake, outcome, winner, players, started_at, ended_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (game_id) DO NOTHING
    `
	res, err := tx.ExecContext(ctx, query,
		r.GameID, r.StakeAsset, stake, r.Outcome, r.Winner, players, r.StartedAt, r.EndedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return err
	}

	for _, pr := range r.Players {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO player_results (game_id, identity, score, result, ended_at) VALUES ($1, $2, $3, $4, $5)`,
			r.GameID, pr.Identity, int(pr.Score), pr.Result, r.EndedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetPlayerStats 查询玩家统计
func (p *PostgreSQL) GetPlayerStats(ctx context.Context, identity string) (*models.PlayerStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT result, COUNT(*) FROM player_results WHERE identity = $1 GROUP BY result`
	rows, err := p.db.QueryContext(ctx, query, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &models.PlayerStats{Identity: identity}
	for rows.Next() {
		var (
			result string
			n      int
		)
		if err := rows.Scan(&result, &n); err != nil {
			return nil, err
		}
		stats.AddN(result, n)
	}
	return stats, rows.Err()
}

// Balance 查询托管余额
func (p *PostgreSQL) Balance(ctx context.Context, identity, asset string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var amount int64
	query := `SELECT amount FROM balances WHERE identity = $1 AND asset = $2`
	err := p.db.QueryRowContext(ctx, query, identity, asset).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(amount), nil
}

// Debit 扣款, 余额不足时不做任何修改
func (p *PostgreSQL) Debit(ctx context.Context, identity, asset string, amount uint64, ref string) error {
	delta, err := signed(amount)
	if err != nil {
		return err
	}
	if delta == 0 {
		return nil
	}
	return p.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE balances SET amount = amount - $3, updated_at = CURRENT_TIMESTAMP
            WHERE identity = $1 AND asset = $2 AND amount >= $3
        `, identity, asset, delta)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrInsufficientFunds
		}
		return insertEntry(ctx, tx, identity, asset, -delta, ref)
	})
}

// Credit 入账
func (p *PostgreSQL) Credit(ctx context.Context, identity, asset string, amount uint64, ref string) error {
	delta, err := signed(amount)
	if err != nil {
		return err
	}
	return p.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO balances (identity, asset, amount) VALUES ($1, $2, $3)
            ON CONFLICT (identity, asset)
            DO UPDATE SET amount = balances.amount + $3, updated_at = CURRENT_TIMESTAMP
        `, identity, asset, delta)
		if err != nil {
			return err
		}
		return insertEntry(ctx, tx, identity, asset, delta, ref)
	})
}

func insertEntry(ctx context.Context, tx *sql.Tx, identity, asset string, delta int64, ref string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (identity, asset, delta, ref) VALUES ($1, $2, $3, $4)`,
		identity, asset, delta, ref)
	return err
}

func (p *PostgreSQL) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
