// models/models.go
package models

import (
	"time"

	"github.com/wfunc/whotserver/card"
	"github.com/wfunc/whotserver/engine"
)

// 玩家结果
const (
	ResultWin       = "win"
	ResultLose      = "lose"
	ResultDraw      = "draw"
	ResultCancelled = "cancelled"
)

// Profile 玩家档案
type Profile struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// PlayerView is what one seat looks like to a viewer. Hand is only filled for the
// viewer's own seat.
type PlayerView struct {
	Identity    string      `json:"identity"`
	DisplayName string      `json:"display_name"`
	Seat        int         `json:"seat"`
	HandSize    int         `json:"hand_size"`
	Hand        []card.Card `json:"hand,omitempty"`
	Score       *uint8      `json:"score,omitempty"`
	Claimed     bool        `json:"claimed"`
}

// GameView 对客户端公开的游戏状态
type GameView struct {
	ID                string       `json:"id"`
	Owner             string       `json:"owner"`
	EntryStake        uint64       `json:"entry_stake"`
	StakeAsset        string       `json:"stake_asset"`
	PlayerCount       int          `json:"player_count"`
	Players           []PlayerView `json:"players"`
	CurrentTurn       int          `json:"current_turn"`
	CallCard          *card.Card   `json:"call_card,omitempty"`
	DrawPileSize      int          `json:"draw_pile_size"`
	WaitWindowSeconds int          `json:"wait_window_seconds"`
	Phase             string       `json:"phase"`
	Outcome           string       `json:"outcome"`
	Winner            string       `json:"winner,omitempty"`
	Delegated         bool         `json:"delegated"`
	Deadline          *time.Time   `json:"deadline,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	EndedAt           *time.Time   `json:"ended_at,omitempty"`
}

// NewGameView projects g for viewer. An empty viewer sees no hands.
func NewGameView(g *engine.Game, viewer string) GameView {
	v := GameView{
		ID:                g.ID,
		Owner:             string(g.Owner),
		EntryStake:        g.EntryStake,
		StakeAsset:        g.StakeAsset,
		PlayerCount:       g.PlayerCount,
		Players:           make([]PlayerView, 0, len(g.Players)),
		CurrentTurn:       g.CurrentTurn,
		DrawPileSize:      len(g.DrawPile),
		WaitWindowSeconds: int(g.WaitWindow / time.Second),
		Phase:             string(g.Phase),
		Outcome:           string(g.Outcome.Kind),
		Winner:            string(g.Outcome.Winner),
		Delegated:         g.Delegated,
		CreatedAt:         g.CreatedAt,
	}
	if g.CallCard != nil {
		c := *g.CallCard
		v.CallCard = &c
	}
	if g.Phase == engine.PhaseActive {
		d := g.Deadline()
		v.Deadline = &d
	}
	if !g.EndedAt.IsZero() {
		e := g.EndedAt
		v.EndedAt = &e
	}

	for _, p := range g.Players {
		pv := PlayerView{
			Identity:    string(p.Identity),
			DisplayName: p.DisplayName,
			Seat:        p.Seat,
			HandSize:    len(p.Hand),
			Score:       p.Score,
			Claimed:     p.Claimed,
		}
		// 结束后公开所有手牌
		if g.Ended() || (viewer != "" && string(p.Identity) == viewer) {
			pv.Hand = append([]card.Card(nil), p.Hand...)
		}
		v.Players = append(v.Players, pv)
	}
	return v
}

// PlayerResult 单个玩家在一局中的结果
type PlayerResult struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
	Seat        int    `json:"seat"`
	Score       uint8  `json:"score"`
	Result      string `json:"result"`
}

// GameRecord 游戏记录
type GameRecord struct {
	GameID     string         `json:"game_id"`
	StakeAsset string         `json:"stake_asset"`
	EntryStake uint64         `json:"entry_stake"`
	Outcome    string         `json:"outcome"`
	Winner     string         `json:"winner,omitempty"`
	Players    []PlayerResult `json:"players"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    time.Time      `json:"ended_at"`
}

// NewGameRecord summarises an ended game.
func NewGameRecord(g *engine.Game) GameRecord {
	r := GameRecord{
		GameID:     g.ID,
		StakeAsset: g.StakeAsset,
		EntryStake: g.EntryStake,
		Outcome:    string(g.Outcome.Kind),
		Winner:     string(g.Outcome.Winner),
		StartedAt:  g.StartedAt,
		EndedAt:    g.EndedAt,
	}
	for _, p := range g.Players {
		pr := PlayerResult{
			Identity:    string(p.Identity),
			DisplayName: p.DisplayName,
			Seat:        p.Seat,
		}
		if p.Score != nil {
			pr.Score = *p.Score
		}
		switch g.Outcome.Kind {
		case engine.OutcomeWon:
			pr.Result = ResultLose
			if p.Identity == g.Outcome.Winner {
				pr.Result = ResultWin
			}
		case engine.OutcomeTied:
			pr.Result = ResultDraw
		default:
			pr.Result = ResultCancelled
		}
		r.Players = append(r.Players, pr)
	}
	return r
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	Identity   string `json:"identity"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	Draws      int    `json:"draws"`
}

// Add folds one result into the stats.
func (s *PlayerStats) Add(result string) {
	s.AddN(result, 1)
}

// AddN folds n games with the same result. Cancelled games are not counted.
func (s *PlayerStats) AddN(result string, n int) {
	switch result {
	case ResultWin:
		s.Wins += n
	case ResultLose:
		s.Losses += n
	case ResultDraw:
		s.Draws += n
	default:
		return
	}
	s.TotalGames += n
}
