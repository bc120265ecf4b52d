// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/whotserver/engine"
	"github.com/wfunc/whotserver/logger"
	"github.com/wfunc/whotserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// zapWriter routes gorm's logger through the global zap logger.
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	logger.Log.Debugf(format, args...)
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := gormlogger.New(zapWriter{}, gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormProfile{},
		&models.GormGame{},
		&models.GormGameRecord{},
		&models.GormPlayerResult{},
		&models.GormBalance{},
		&models.GormLedgerEntry{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

// SaveProfile 保存玩家档案
func (p *GormPostgreSQL) SaveProfile(ctx context.Context, prof *models.Profile) error {
	row := models.GormProfile{Identity: prof.Identity, DisplayName: prof.DisplayName}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "updated_at"}),
	}).Create(&row).Error
}

// LoadProfile 加载玩家档案
func (p *GormPostgreSQL) LoadProfile(ctx context.Context, identity string) (*models.Profile, error) {
	var row models.GormProfile
	if err := p.db.WithContext(ctx).Where("identity = ?", identity).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return &models.Profile{Identity: row.Identity, DisplayName: row.DisplayName, CreatedAt: row.CreatedAt}, nil
}

// SaveGame upserts the game snapshot.
func (p *GormPostgreSQL) SaveGame(ctx context.Context, g *engine.Game) error {
	data, err := models.EncodeGame(g)
	if err != nil {
		return err
	}
	row := models.GormGame{
		GameID:    g.ID,
		Phase:     string(g.Phase),
		Delegated: g.Delegated,
		Snapshot:  string(data),
	}
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"phase", "delegated", "snapshot", "updated_at"}),
	}).Create(&row).Error
}

// LoadGame 加载游戏快照
func (p *GormPostgreSQL) LoadGame(ctx context.Context, gameID string) (*engine.Game, error) {
	var row models.GormGame
	if err := p.db.WithContext(ctx).Where("game_id = ?", gameID).First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return models.DecodeGame([]byte(row.Snapshot))
}

// LoadOpenGames returns every game that has not ended, oldest first.
func (p *GormPostgreSQL) LoadOpenGames(ctx context.Context) ([]*engine.Game, error) {
	var rows []models.GormGame
	err := p.db.WithContext(ctx).
		Where("phase <> ?", string(engine.PhaseEnded)).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	games := make([]*engine.Game, 0, len(rows))
	for _, row := range rows {
		g, err := models.DecodeGame([]byte(row.Snapshot))
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, nil
}

// SaveGameRecord 保存游戏记录, 同一局只写一次
func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, r *models.GameRecord) error {
	stake, err := signed(r.EntryStake)
	if err != nil {
		return err
	}

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.GormGameRecord{
			GameID:     r.GameID,
			StakeAsset: r.StakeAsset,
			EntryStake: stake,
			Outcome:    r.Outcome,
			Winner:     r.Winner,
			Players:    r.Players,
			StartedAt:  r.StartedAt,
			EndedAt:    r.EndedAt,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		results := make([]models.GormPlayerResult, 0, len(r.Players))
		for _, pr := range r.Players {
			results = append(results, models.GormPlayerResult{
				GameID:   r.GameID,
				Identity: pr.Identity,
				Score:    int(pr.Score),
				Result:   pr.Result,
				EndedAt:  r.EndedAt,
			})
		}
		if len(results) == 0 {
			return nil
		}
		return tx.Create(&results).Error
	})
}

// GetPlayerStats 查询玩家统计
func (p *GormPostgreSQL) GetPlayerStats(ctx context.Context, identity string) (*models.PlayerStats, error) {
	var rows []struct {
		Result string
		N      int
	}
	err := p.db.WithContext(ctx).
		Model(&models.GormPlayerResult{}).
		Select("result, COUNT(*) AS n").
		Where("identity = ?", identity).
		Group("result").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &models.PlayerStats{Identity: identity}
	for _, row := range rows {
		stats.AddN(row.Result, row.N)
	}
	return stats, nil
}

// Balance 查询托管余额
func (p *GormPostgreSQL) Balance(ctx context.Context, identity, asset string) (uint64, error) {
	var row models.GormBalance
	err := p.db.WithContext(ctx).Where("identity = ? AND asset = ?", identity, asset).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(row.Amount), nil
}

// Debit 扣款, 余额不足时不做任何修改
func (p *GormPostgreSQL) Debit(ctx context.Context, identity, asset string, amount uint64, ref string) error {
	delta, err := signed(amount)
	if err != nil {
		return err
	}

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.GormBalance{}).
			Where("identity = ? AND asset = ? AND amount >= ?", identity, asset, delta).
			Updates(map[string]interface{}{
				"amount":     gorm.Expr("amount - ?", delta),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if delta == 0 {
				return nil
			}
			return ErrInsufficientFunds
		}
		return tx.Create(&models.GormLedgerEntry{Identity: identity, Asset: asset, Delta: -delta, Ref: ref}).Error
	})
}

// Credit 入账
func (p *GormPostgreSQL) Credit(ctx context.Context, identity, asset string, amount uint64, ref string) error {
	delta, err := signed(amount)
	if err != nil {
		return err
	}

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.GormBalance{Identity: identity, Asset: asset, Amount: delta, UpdatedAt: time.Now()}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "identity"}, {Name: "asset"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"amount":     gorm.Expr("balances.amount + ?", delta),
				"updated_at": time.Now(),
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Create(&models.GormLedgerEntry{Identity: identity, Asset: asset, Delta: delta, Ref: ref}).Error
	})
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
