package network

import "time"

// 消息ID
const (
	MsgTypeHeartbeat = 1
	MsgTypeError     = 2 // server -> client, data is the error text

	MsgTypeCreateGame = 101 // json CreateGameRequest
	MsgTypeJoinGame   = 102 // json JoinGameRequest
	MsgTypeLeaveGame  = 103
	MsgTypeListGames  = 104
	MsgTypeQuickJoin  = 105 // data is the stake asset

	MsgTypePlayCard = 201 // 2 bytes: suit, rank
	MsgTypeDrawCard = 202
	MsgTypePenalize = 203
	MsgTypeClaim    = 204

	MsgTypeGameState   = 301 // public view of a game
	MsgTypeHand        = 302 // private hand of the receiving player
	MsgTypeGameStart   = 303
	MsgTypeGameSync    = 304
	MsgTypeGameEnd     = 305
	MsgTypeTurnOverdue = 306
	MsgTypeClaimResult = 307
	MsgTypeGameList    = 308
	MsgTypeGameOpened  = 309 // public view of a new game, sent to every session
)

// CreateGameRequest is the payload of MsgTypeCreateGame.
type CreateGameRequest struct {
	EntryStake  uint64 `json:"entry_stake"`
	StakeAsset  string `json:"stake_asset"`
	PlayerCount int    `json:"player_count"`
	WaitWindow  int    `json:"wait_window_seconds"` // 0 selects the server default
	Seed        uint64 `json:"seed"`
}

// JoinGameRequest is the payload of MsgTypeJoinGame.
type JoinGameRequest struct {
	GameID string `json:"game_id"`
}

// ClaimResult is the payload of MsgTypeClaimResult.
type ClaimResult struct {
	GameID string `json:"game_id"`
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

// TurnOverdue is the payload of MsgTypeTurnOverdue, sent once the current player's
// wait window has passed and anyone else may penalize them.
type TurnOverdue struct {
	GameID   string    `json:"game_id"`
	Seat     int       `json:"seat"`
	Identity string    `json:"identity"`
	Deadline time.Time `json:"deadline"`
}
