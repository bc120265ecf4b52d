// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormProfile 玩家档案
type GormProfile struct {
	gorm.Model
	Identity    string `gorm:"uniqueIndex;not null"`
	DisplayName string `gorm:"not null"`
}

func (GormProfile) TableName() string { return "profiles" }

// GormGame 游戏快照, Snapshot 为 engine.Game 的 JSON
type GormGame struct {
	gorm.Model
	GameID    string `gorm:"uniqueIndex;not null"`
	Phase     string `gorm:"index;not null"`
	Delegated bool   `gorm:"default:false"`
	Snapshot  string `gorm:"type:jsonb;not null"`
}

func (GormGame) TableName() string { return "games" }

// GormGameRecord 游戏记录
type GormGameRecord struct {
	gorm.Model
	GameID     string `gorm:"uniqueIndex;not null"`
	StakeAsset string `gorm:"not null"`
	EntryStake int64  `gorm:"not null"`
	Outcome    string `gorm:"not null"`
	Winner     string
	Players    []PlayerResult `gorm:"serializer:json;type:jsonb;not null"`
	StartedAt  time.Time
	EndedAt    time.Time
}

func (GormGameRecord) TableName() string { return "game_records" }

// GormPlayerResult 每个玩家一行, 用于统计
type GormPlayerResult struct {
	ID       uint   `gorm:"primaryKey"`
	GameID   string `gorm:"index;not null"`
	Identity string `gorm:"index;not null"`
	Score    int    `gorm:"not null"`
	Result   string `gorm:"not null"`
	EndedAt  time.Time
}

func (GormPlayerResult) TableName() string { return "player_results" }

// GormBalance 托管余额
type GormBalance struct {
	ID        uint   `gorm:"primaryKey"`
	Identity  string `gorm:"uniqueIndex:idx_balance_owner;not null"`
	Asset     string `gorm:"uniqueIndex:idx_balance_owner;not null"`
	Amount    int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (GormBalance) TableName() string { return "balances" }

// GormLedgerEntry 账本流水
type GormLedgerEntry struct {
	ID        uint   `gorm:"primaryKey"`
	Identity  string `gorm:"index;not null"`
	Asset     string `gorm:"not null"`
	Delta     int64  `gorm:"not null"`
	Ref       string `gorm:"index"`
	CreatedAt time.Time
}

func (GormLedgerEntry) TableName() string { return "ledger_entries" }
