package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wfunc/whotserver/card"
	"github.com/wfunc/whotserver/engine"
)

const SnapshotVersion = 1

var ErrIncompatibleSnapshot = errors.New("incompatible game snapshot")

type snapshot struct {
	Version     int          `json:"v"`
	DeckVersion int          `json:"deck_version"`
	Game        *engine.Game `json:"game"`
}

// EncodeGame serialises the full game state, hands and draw pile included.
func EncodeGame(g *engine.Game) ([]byte, error) {
	return json.Marshal(snapshot{Version: SnapshotVersion, DeckVersion: card.DeckVersion, Game: g})
}

// DecodeGame restores a game written by EncodeGame. Snapshots taken with other deck
// tables are refused.
func DecodeGame(data []byte) (*engine.Game, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Version != SnapshotVersion || s.DeckVersion != card.DeckVersion || s.Game == nil {
		return nil, fmt.Errorf("%w: v%d deck v%d", ErrIncompatibleSnapshot, s.Version, s.DeckVersion)
	}
	return s.Game, nil
}
