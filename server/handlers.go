package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/wfunc/whotserver/card"
	"github.com/wfunc/whotserver/engine"
	"github.com/wfunc/whotserver/logger"
	"github.com/wfunc/whotserver/network"
	"github.com/wfunc/whotserver/services"
	"github.com/wfunc/whotserver/session"
)

// packetTimeout bounds the ledger and store work of one packet.
const packetTimeout = 10 * time.Second

var (
	ErrNotInGame  = errors.New("not in a game")
	ErrBadPayload = errors.New("malformed payload")
)

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	s.monitor.IncMessagesReceived()
	if packet.MsgID != network.MsgTypeHeartbeat {
		sess.Touch()
	}

	ctx, cancel := context.WithTimeout(context.Background(), packetTimeout)
	defer cancel()

	var err error
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		err = sess.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeCreateGame:
		err = s.handleCreateGame(ctx, sess, packet)
	case network.MsgTypeJoinGame:
		err = s.handleJoinGame(ctx, sess, packet)
	case network.MsgTypeQuickJoin:
		err = s.handleQuickJoin(ctx, sess, packet)
	case network.MsgTypeLeaveGame:
		err = s.handleLeaveGame(ctx, sess)
	case network.MsgTypeListGames:
		err = s.sendJSON(sess, network.MsgTypeGameList, s.games.ListGames(string(packet.Data)))
	case network.MsgTypePlayCard:
		err = s.handlePlayCard(ctx, sess, packet)
	case network.MsgTypeDrawCard:
		err = s.inGame(sess, func(gameID string) error {
			_, err := s.games.Draw(ctx, gameID, sess.Identity)
			return err
		})
	case network.MsgTypePenalize:
		err = s.inGame(sess, func(gameID string) error {
			_, err := s.games.Penalize(ctx, gameID, sess.Identity)
			return err
		})
	case network.MsgTypeClaim:
		err = s.handleClaim(ctx, sess)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
		return
	}

	if err != nil {
		s.sendError(sess, err)
	}
}

func (s *GameServer) sendError(sess *session.Session, err error) {
	if sendErr := sess.Send(network.MsgTypeError, []byte(err.Error())); sendErr != nil {
		logger.Log.Debugf("send error to session %s: %v", sess.GetID(), sendErr)
	}
}

func (s *GameServer) sendJSON(sess *session.Session, msgID uint16, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sess.Send(msgID, data)
}

func (s *GameServer) inGame(sess *session.Session, fn func(gameID string) error) error {
	gameID := sess.GameID()
	if gameID == "" {
		return ErrNotInGame
	}
	return fn(gameID)
}

// bind attaches sess to the room of gameID so it receives the game's broadcasts,
// then sends it the current view.
func (s *GameServer) bind(ctx context.Context, sess *session.Session, gameID string) error {
	r, err := s.games.Room(ctx, gameID)
	if err != nil {
		return err
	}
	if sess.GameID() != gameID {
		s.unbind(sess)
		r.AddSession(sess)
	}
	return s.sendJSON(sess, network.MsgTypeGameState, r.View(sess.Identity))
}

func (s *GameServer) unbind(sess *session.Session) {
	gameID := sess.GameID()
	if gameID == "" {
		return
	}
	if r, ok := s.roomManager.GetRoom(gameID); ok {
		r.RemoveSession(sess.GetID())
		return
	}
	sess.SetGameID("")
}

func (s *GameServer) handleCreateGame(ctx context.Context, sess *session.Session, packet *network.Packet) error {
	var req network.CreateGameRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return ErrBadPayload
	}
	r, err := s.games.CreateGame(ctx, sess.Identity, sess.DisplayName, services.CreateParams{
		EntryStake:  req.EntryStake,
		StakeAsset:  req.StakeAsset,
		PlayerCount: req.PlayerCount,
		WaitWindow:  time.Duration(req.WaitWindow) * time.Second,
		Seed:        req.Seed,
	})
	if err != nil {
		return err
	}
	return s.bind(ctx, sess, r.ID)
}

// handleJoinGame seats the player, or re-attaches a session of a player already
// seated.
func (s *GameServer) handleJoinGame(ctx context.Context, sess *session.Session, packet *network.Packet) error {
	var req network.JoinGameRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil || req.GameID == "" {
		return ErrBadPayload
	}
	_, err := s.games.Join(ctx, req.GameID, sess.Identity, sess.DisplayName)
	if err != nil && !s.seated(ctx, req.GameID, sess.Identity) {
		return err
	}
	return s.bind(ctx, sess, req.GameID)
}

// handleQuickJoin seats the player in the oldest open game for the asset in the
// payload.
func (s *GameServer) handleQuickJoin(ctx context.Context, sess *session.Session, packet *network.Packet) error {
	asset := string(packet.Data)
	if asset == "" {
		return ErrBadPayload
	}
	r, _, err := s.games.QuickJoin(ctx, sess.Identity, sess.DisplayName, asset)
	if err != nil {
		return err
	}
	return s.bind(ctx, sess, r.ID)
}

func (s *GameServer) seated(ctx context.Context, gameID, identity string) bool {
	r, err := s.games.Room(ctx, gameID)
	if err != nil {
		return false
	}
	_, ok := r.Snapshot().Player(engine.Identity(identity))
	return ok
}

func (s *GameServer) handleLeaveGame(ctx context.Context, sess *session.Session) error {
	return s.inGame(sess, func(gameID string) error {
		if _, err := s.games.Leave(ctx, gameID, sess.Identity); err != nil {
			return err
		}
		s.unbind(sess)
		return nil
	})
}

func (s *GameServer) handlePlayCard(ctx context.Context, sess *session.Session, packet *network.Packet) error {
	var c card.Card
	if err := c.UnmarshalBinary(packet.Data); err != nil {
		return err
	}
	return s.inGame(sess, func(gameID string) error {
		_, err := s.games.Play(ctx, gameID, sess.Identity, c)
		return err
	})
}

func (s *GameServer) handleClaim(ctx context.Context, sess *session.Session) error {
	return s.inGame(sess, func(gameID string) error {
		res, err := s.games.Claim(ctx, gameID, sess.Identity)
		if err != nil {
			return err
		}
		view, err := s.games.Game(ctx, gameID, sess.Identity)
		if err != nil {
			return err
		}
		return s.sendJSON(sess, network.MsgTypeClaimResult, network.ClaimResult{
			GameID: gameID,
			Asset:  view.StakeAsset,
			Amount: res.Amount,
		})
	})
}
