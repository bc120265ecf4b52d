package engine

import "errors"

var (
	ErrInvalidPlayerCount  = errors.New("players must be between 2 and 5")
	ErrInvalidWaitWindow   = errors.New("wait window must be between 30s and 120s")
	ErrInvalidEntryStake   = errors.New("invalid entry stake")
	ErrRosterFull          = errors.New("players are already complete")
	ErrRosterNotFull       = errors.New("players are not complete")
	ErrPlayerAlreadyJoined = errors.New("player already joined")
	ErrInsufficientStake   = errors.New("insufficient funds for entry stake")
	ErrUnknownPlayer       = errors.New("player not found")
	ErrOutOfTurn           = errors.New("not your turn")
	ErrIllegalCard         = errors.New("cannot play this card")
	ErrMissingCallCard     = errors.New("no call card to validate")
	ErrEmptyDrawPile       = errors.New("no draw pile")
	ErrGameNotStarted      = errors.New("game not started")
	ErrGameAlreadyStarted  = errors.New("game already started")
	ErrGameAlreadyEnded    = errors.New("game ended")
	ErrGameNotEnded        = errors.New("game not ended")
	ErrSelfPenalization    = errors.New("cannot penalize yourself")
	ErrAlreadyClaimed      = errors.New("already claimed")
	ErrNotWinner           = errors.New("you are not the winner")
)
