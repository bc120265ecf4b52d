package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/wfunc/whotserver/card"
	"github.com/wfunc/whotserver/network"
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet, err := network.EncodePacket(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

// fetchToken asks a server running with dev tokens for a token.
func fetchToken(server, identity, name string) (string, error) {
	body, _ := json.Marshal(map[string]string{"identity": identity, "name": name})
	u := url.URL{Scheme: "http", Host: server, Path: "/token"}
	resp, err := http.Post(u.String(), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: %s", resp.Status)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

var names = map[uint16]string{
	network.MsgTypeHeartbeat:   "heartbeat",
	network.MsgTypeError:       "error",
	network.MsgTypeGameState:   "state",
	network.MsgTypeHand:        "hand",
	network.MsgTypeGameStart:   "start",
	network.MsgTypeGameSync:    "sync",
	network.MsgTypeGameEnd:     "end",
	network.MsgTypeTurnOverdue: "overdue",
	network.MsgTypeClaimResult: "claim",
	network.MsgTypeGameList:    "games",
	network.MsgTypeGameOpened:  "opened",
}

const usage = `commands:
  create <stake> [players] [asset]
  join <game id>
  quick <asset>
  list [asset]
  play <suit> <rank>
  draw | penalize | claim | leave | quit`

// command turns one input line into a packet.
func command(line string) (uint16, []byte, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, nil
	}
	args := fields[1:]
	switch fields[0] {
	case "create":
		if len(args) < 1 {
			return 0, nil, fmt.Errorf("usage: create <stake> [players] [asset]")
		}
		stake, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return 0, nil, err
		}
		req := network.CreateGameRequest{EntryStake: stake, PlayerCount: 2, StakeAsset: "SOL", Seed: uint64(time.Now().UnixNano())}
		if len(args) > 1 {
			if req.PlayerCount, err = strconv.Atoi(args[1]); err != nil {
				return 0, nil, err
			}
		}
		if len(args) > 2 {
			req.StakeAsset = args[2]
		}
		data, err := json.Marshal(req)
		return network.MsgTypeCreateGame, data, err
	case "join":
		if len(args) != 1 {
			return 0, nil, fmt.Errorf("usage: join <game id>")
		}
		data, err := json.Marshal(network.JoinGameRequest{GameID: args[0]})
		return network.MsgTypeJoinGame, data, err
	case "quick":
		if len(args) != 1 {
			return 0, nil, fmt.Errorf("usage: quick <asset>")
		}
		return network.MsgTypeQuickJoin, []byte(args[0]), nil
	case "list":
		return network.MsgTypeListGames, []byte(strings.Join(args, "")), nil
	case "play":
		if len(args) != 2 {
			return 0, nil, fmt.Errorf("usage: play <suit> <rank>")
		}
		suit, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return 0, nil, err
		}
		rank, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			return 0, nil, err
		}
		data, err := card.New(uint8(suit), uint8(rank)).MarshalBinary()
		return network.MsgTypePlayCard, data, err
	case "draw":
		return network.MsgTypeDrawCard, nil, nil
	case "penalize":
		return network.MsgTypePenalize, nil, nil
	case "claim":
		return network.MsgTypeClaim, nil, nil
	case "leave":
		return network.MsgTypeLeaveGame, nil, nil
	}
	return 0, nil, fmt.Errorf("unknown command %q\n%s", fields[0], usage)
}

func main() {
	_ = godotenv.Load()

	server := flag.String("server", envOr("WHOT_SERVER", "localhost:8080"), "server host:port")
	token := flag.String("token", os.Getenv("WHOT_TOKEN"), "bearer token")
	identity := flag.String("identity", os.Getenv("WHOT_IDENTITY"), "identity for a dev token when -token is empty")
	name := flag.String("name", "", "display name for a dev token")
	flag.Parse()

	if *token == "" {
		if *identity == "" {
			log.Fatal("either -token or -identity is required")
		}
		tok, err := fetchToken(*server, *identity, *name)
		if err != nil {
			log.Fatalf("Fetch token failed: %v", err)
		}
		*token = tok
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	header := http.Header{"Authorization": []string{"Bearer " + *token}}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			packet, err := network.DecodePacket(message)
			if err != nil {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			label, ok := names[packet.MsgID]
			if !ok {
				label = strconv.Itoa(int(packet.MsgID))
			}
			log.Printf("<- %s: %s", label, packet.Data)
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	log.Println(usage)

	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	// Write loop
	for {
		select {
		case <-heartbeat.C:
			if err := send(c, network.MsgTypeHeartbeat, nil); err != nil {
				log.Println("Write error:", err)
				return
			}
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			closeConn(c, done)
			return
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "quit" {
				closeConn(c, done)
				return
			}
			msgID, data, err := command(line)
			if err != nil {
				log.Println(err)
				continue
			}
			if msgID == 0 {
				continue
			}
			if err := send(c, msgID, data); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}

func closeConn(c *websocket.Conn, done <-chan struct{}) {
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("Write close error:", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
