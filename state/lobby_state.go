package state

import "github.com/wfunc/whotserver/logger"

// LobbyState 等待玩家加入
type LobbyState struct {
	RoomStateBase
}

func NewLobbyState(room RoomContext) *LobbyState {
	return &LobbyState{RoomStateBase{ID: StateLobby, Room: room}}
}

func (s *LobbyState) OnEnter() {
	logger.Log.Infof("房间 %s 等待玩家 (%d/%d)", s.Room.GetID(), len(s.Room.Game().Players), s.Room.Game().PlayerCount)
}

func (s *LobbyState) HandleAction(action Action) (Result, error) {
	res, err := s.apply(action)
	if err != nil {
		return res, err
	}

	g := s.Room.Game()
	switch {
	case g.Ended():
		s.changeState(NewSettledState(s.Room))
	case g.Full():
		s.changeState(NewAwaitingRandomnessState(s.Room))
	}
	return res, nil
}

// AwaitingRandomnessState 人满, 等待随机数
type AwaitingRandomnessState struct {
	RoomStateBase
}

func NewAwaitingRandomnessState(room RoomContext) *AwaitingRandomnessState {
	return &AwaitingRandomnessState{RoomStateBase{ID: StateAwaitingRandomness, Room: room}}
}

func (s *AwaitingRandomnessState) OnEnter() {
	logger.Log.Infof("房间 %s 人数已满, 请求随机数", s.Room.GetID())
	s.Room.Listener().OnRosterFull(s.Room.Game().Clone())
}

func (s *AwaitingRandomnessState) HandleAction(action Action) (Result, error) {
	res, err := s.apply(action)
	if err != nil {
		return res, err
	}

	g := s.Room.Game()
	switch {
	case g.Ended():
		s.changeState(NewSettledState(s.Room))
	case g.Started():
		s.changeState(NewPlayingState(s.Room))
	case !g.Full():
		// someone left before the deal
		s.changeState(NewLobbyState(s.Room))
	}
	return res, nil
}
