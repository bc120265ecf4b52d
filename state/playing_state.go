package state

import (
	"github.com/wfunc/whotserver/logger"
	"github.com/wfunc/whotserver/network"
)

// PlayingState 游戏进行中
type PlayingState struct {
	RoomStateBase
}

func NewPlayingState(room RoomContext) *PlayingState {
	return &PlayingState{RoomStateBase{ID: StatePlaying, Room: room}}
}

// OnEnter 发牌完成, 通知所有玩家. From here until the end the game is delegated
// to the live cache.
func (s *PlayingState) OnEnter() {
	g := s.Room.Game()
	g.Delegated = true
	logger.Log.Infof("房间 %s 开始游戏, call card %s, 牌堆 %d", s.Room.GetID(), g.CallCard, len(g.DrawPile))
	syncGame(s.Room, network.MsgTypeGameStart)
	s.Room.Listener().OnGameStarted(g.Clone())
}

func (s *PlayingState) HandleAction(action Action) (Result, error) {
	res, err := s.apply(action)
	if err != nil {
		return res, err
	}
	if s.Room.Game().Ended() {
		s.changeState(NewSettledState(s.Room))
	}
	return res, nil
}

// SettledState 游戏结束, 只接受领奖
type SettledState struct {
	RoomStateBase
	resumed bool
}

func NewSettledState(room RoomContext) *SettledState {
	return &SettledState{RoomStateBase: RoomStateBase{ID: StateSettled, Room: room}}
}

// NewResumedSettledState hosts a game that had already ended before it was loaded.
// Its end was committed and announced then, so entering it notifies nobody.
func NewResumedSettledState(room RoomContext) *SettledState {
	st := NewSettledState(room)
	st.resumed = true
	return st
}

// OnEnter commits the game back from the live cache.
func (s *SettledState) OnEnter() {
	g := s.Room.Game()
	g.Delegated = false
	if s.resumed {
		logger.Log.Debugf("房间 %s 载入已结束的游戏, 等待领奖", s.Room.GetID())
		return
	}
	logger.Log.Infof("房间 %s 游戏结束: %s %s", s.Room.GetID(), g.Outcome.Kind, g.Outcome.Winner)
	syncGame(s.Room, network.MsgTypeGameEnd)
	s.Room.Listener().OnGameEnded(g.Clone())
}
