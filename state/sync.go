package state

import (
	"encoding/json"

	"github.com/wfunc/whotserver/logger"
	"github.com/wfunc/whotserver/models"
	"github.com/wfunc/whotserver/network"
)

// syncGame broadcasts the public view under msgID and sends each dealt player their
// own hand. Delivery failures are logged; the game has already changed.
func syncGame(room RoomContext, msgID uint16) {
	g := room.Game()
	data, err := json.Marshal(models.NewGameView(g, ""))
	if err != nil {
		logger.Log.Errorf("房间 %s 序列化失败: %v", room.GetID(), err)
		return
	}
	if err := room.Broadcast(msgID, data); err != nil {
		logger.Log.Debugf("broadcast %d to room %s: %v", msgID, room.GetID(), err)
	}

	if g.Ended() {
		return
	}
	for _, p := range g.Players {
		if p.Hand == nil {
			continue
		}
		hand, err := json.Marshal(p.Hand)
		if err != nil {
			continue
		}
		if err := room.SendTo(string(p.Identity), network.MsgTypeHand, hand); err != nil {
			logger.Log.Debugf("send hand to %s: %v", p.Identity, err)
		}
	}
}

func logRefusedTransition(roomID, from, to string, err error) {
	logger.Log.Warnf("房间 %s 状态 %s -> %s 被拒绝: %v", roomID, from, to, err)
}
