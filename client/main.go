package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/blockbattle/models"
	"github.com/wfunc/blockbattle/network"
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, v interface{}) error {
	var data []byte
	if v != nil {
		var err error
		if data, err = json.Marshal(v); err != nil {
			return err
		}
	}
	packet, err := network.Encode(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

// command turns one input line into a message. ok is false for unknown input.
func command(line string) (msgID uint16, payload interface{}, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, nil, false
	}
	switch fields[0] {
	case "ready", "idle":
		return network.MsgTypeSetState, models.StateRequest{State: fields[0]}, true
	case "bot":
		return network.MsgTypeAddBot, nil, true
	case "leave":
		return network.MsgTypeLeaveRoom, nil, true
	case "over":
		return network.MsgTypeGameOver, nil, true
	case "lines":
		n := 1
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v < 1 {
				return 0, nil, false
			}
			n = v
		}
		return network.MsgTypeLines, n, true
	case "special":
		if len(fields) < 3 {
			return 0, nil, false
		}
		// bot ids contain a space, so the target is the rest of the line
		return network.MsgTypeSpecial, models.SpecialRequest{Target: strings.Join(fields[2:], " "), Payload: fields[1]}, true
	}
	return 0, nil, false
}

func main() {
	host := flag.String("addr", "localhost:8080", "server address")
	roomPath := flag.String("room", "lobby", "room path, segments separated by /")
	name := flag.String("name", "", "display name")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
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
			packet, err := network.Decode(message)
			if err != nil {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			log.Printf("<- RECV (ID: %d): %s", packet.MsgID, string(packet.Data))
		}
	}()

	log.Println("Joining room...")
	join := models.JoinRequest{Path: strings.Split(*roomPath, "/"), Name: *name}
	if err := send(c, network.MsgTypeJoinRoom, join); err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Commands: ready, idle, bot, lines [n], special <item> <target>, over, leave")

	lines := make(chan string)
	go func() {
		reader := bufio.NewScanner(os.Stdin)
		for reader.Scan() {
			lines <- reader.Text()
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case text := <-lines:
			msgID, payload, ok := command(strings.TrimSpace(text))
			if !ok {
				log.Printf("unknown command %q", text)
				continue
			}
			if err := send(c, msgID, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT (ID: %d)", msgID)
		}
	}
}
