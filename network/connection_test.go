package network

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePacket(t *testing.T) {
	raw, err := EncodePacket(MsgTypePlayCard, []byte{3, 14})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xc9, 0x00, 0x02, 3, 14}, raw)

	p, err := DecodePacket(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(MsgTypePlayCard), p.MsgID)
	assert.Equal(t, uint16(2), p.Length)
	assert.Equal(t, []byte{3, 14}, p.Data)
}

func TestDecodePacketShort(t *testing.T) {
	_, err := DecodePacket([]byte{0, 1, 0})
	assert.ErrorIs(t, err, io.ErrShortBuffer)

	_, err = DecodePacket([]byte{0, 1, 0, 5, 1, 2})
	assert.ErrorIs(t, err, io.ErrShortBuffer)
}

func TestEncodePacketTooLarge(t *testing.T) {
	_, err := EncodePacket(1, make([]byte, 70000))
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}

func TestWSConnectionRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws := NewWSConnection(conn)
		defer ws.Close()
		p, err := ws.ReadPacket()
		if err != nil {
			return
		}
		ws.Send(p.MsgID+100, p.Data)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	client := NewWSConnection(conn)
	defer client.Close()
	client.SetHeartbeat(5 * time.Second)

	require.NoError(t, client.Send(MsgTypeDrawCard, []byte("x")))
	p, err := client.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, uint16(MsgTypeDrawCard+100), p.MsgID)
	assert.Equal(t, []byte("x"), p.Data)
}
