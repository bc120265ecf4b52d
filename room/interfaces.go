package room

// Broadcaster fans game packets out to every session bound to a room.
// broadcast.RoomBroadcaster implements it; room does not import broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
}
