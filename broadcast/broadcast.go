// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/whotserver/logger"
	"github.com/wfunc/whotserver/room"
	"github.com/wfunc/whotserver/session"
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
	BroadcastToUsers(identities []string, msgID uint16, data []byte) error
}

// 基于房间的广播器
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	r, exists := b.roomManager.GetRoom(roomID)
	if !exists {
		return room.ErrRoomNotFound
	}
	sendAll(r.GetSessions(), msgID, data)
	return nil
}

func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	sendAll(b.sessionManager.All(), msgID, data)
	return nil
}

func (b *RoomBroadcaster) BroadcastToUsers(identities []string, msgID uint16, data []byte) error {
	for _, identity := range identities {
		sendAll(b.sessionManager.GetByIdentity(identity), msgID, data)
	}
	return nil
}

// sendAll 发送失败只记录, 连接会在读循环中被清理
func sendAll(sessions []*session.Session, msgID uint16, data []byte) {
	for _, s := range sessions {
		if err := s.Send(msgID, data); err != nil {
			logger.Log.Debugf("send %d to session %s: %v", msgID, s.GetID(), err)
		}
	}
}
