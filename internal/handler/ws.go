package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/protocol"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/registry"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/relay"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/repository"
)

const (
	writeWait  = 10 * time.Second // deadline for one outbound frame
	pongWait   = 90 * time.Second // how long a silent peer stays considered alive
	pingPeriod = 30 * time.Second // must be below pongWait

	maxFrameBytes = 256 * 1024 // largest accepted inbound frame

	// A device sending this many malformed frames in a row gets cut off;
	// a single bad frame is only dropped and logged.
	maxConsecutiveMalformed = 5

	sendBufferSize = 64 // per-connection outbound queue
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Devices connect from phone networks with no meaningful origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ErrConnClosed is returned by Send once the connection is shutting down.
var ErrConnClosed = errors.New("connection closed")

// WSHandler upgrades /ws requests and runs one read loop per device
// connection, feeding inbound envelopes to the router.
type WSHandler struct {
	Reg      *registry.Registry
	Router   *relay.Router
	Pairings repository.PairingStore
}

// NewWSHandler constructs a WSHandler.
func NewWSHandler(reg *registry.Registry, router *relay.Router, pairings repository.PairingStore) *WSHandler {
	return &WSHandler{Reg: reg, Router: router, Pairings: pairings}
}

// Connect handles GET /ws?deviceId=...&role=elder|guardian. The original
// launcher sends "type" instead of "role"; both are accepted. On successful
// registration the device receives CONNECTION_ACK; the previous connection
// for the same device, if any, is forcibly closed by the registry.
func (h *WSHandler) Connect(c echo.Context) error {
	deviceID := c.QueryParam("deviceId")
	role := c.QueryParam("role")
	if role == "" {
		role = c.QueryParam("type")
	}
	if deviceID == "" || (role != protocol.RoleElder && role != protocol.RoleGuardian) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "deviceId and role=elder|guardian required"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return nil
	}

	conn := newWSConn(deviceID, role, ws)
	go conn.writePump()

	h.Reg.Register(conn)
	log.Printf("ws: %s connected as %s", deviceID, role)

	ack, _ := protocol.NewEnvelope(protocol.TypeConnectionAck, "server", deviceID, protocol.NewRequestID(),
		protocol.ConnectionAckPayload{DeviceID: deviceID, Role: role})
	if err := conn.Send(ack); err != nil {
		conn.Close("ack undeliverable")
	}
	if role == protocol.RoleElder {
		h.syncPairings(conn)
	}

	h.readLoop(conn)

	h.Reg.Unregister(conn)
	h.Router.DropConnection(conn)
	conn.Close("read loop ended")
	log.Printf("ws: %s disconnected", deviceID)
	return nil
}

// syncPairings replays GUARDIAN_PAIRED for every stored pairing right after
// the ack. A code redeemed while the elder was offline is durable in the
// pairing table but its live push was discarded; the replay is how the elder
// learns of it. Pairings it already knows arrive again and are ignored there.
func (h *WSHandler) syncPairings(conn *wsConn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pairings, err := h.Pairings.ListByElder(ctx, conn.DeviceID())
	if err != nil {
		log.Printf("ws: list pairings for %s: %v", conn.DeviceID(), err)
		return
	}
	for _, p := range pairings {
		env, err := protocol.NewEnvelope(protocol.TypeGuardianPaired, "server", p.ElderID, protocol.NewRequestID(),
			protocol.GuardianPairedPayload{GuardianID: p.GuardianID, GuardianName: p.GuardianName})
		if err != nil {
			continue
		}
		if err := conn.Send(env); err != nil {
			return
		}
	}
}

// readLoop processes inbound frames in receipt order until the socket dies.
// Malformed frames are dropped; only a run of them closes the connection.
func (h *WSHandler) readLoop(conn *wsConn) {
	ws := conn.ws
	ws.SetReadLimit(maxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	malformed := 0
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			malformed++
			log.Printf("ws: malformed frame from %s (%d in a row): %v", conn.DeviceID(), malformed, err)
			if malformed >= maxConsecutiveMalformed {
				conn.Close("too many malformed frames")
				return
			}
			continue
		}
		malformed = 0
		// The sender identity comes from the registered connection, not
		// from whatever the frame claims.
		env.From = conn.DeviceID()
		h.Router.Route(env, conn)
	}
}

// wsConn binds one WebSocket to one device and serializes all writes
// through a single pump goroutine.
type wsConn struct {
	id   string
	role string
	ws   *websocket.Conn

	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSConn(id, role string, ws *websocket.Conn) *wsConn {
	return &wsConn{
		id:   id,
		role: role,
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// DeviceID implements registry.Conn.
func (c *wsConn) DeviceID() string { return c.id }

// Role implements registry.Conn.
func (c *wsConn) Role() string { return c.role }

// Send queues an envelope for the write pump. It fails fast when the
// connection is closed or the peer is too slow to drain its queue.
func (c *wsConn) Send(env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return errors.New("outbound buffer full")
	}
}

// Close tears the connection down once; subsequent calls are no-ops.
func (c *wsConn) Close(reason string) {
	c.once.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// writePump is the only goroutine writing to the socket. It drains the send
// queue and keeps the connection alive with periodic pings.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close("write failed")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close("ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}
