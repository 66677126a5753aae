// Package facade implements the outbound WebSocket UI facade: the JSON
// envelope server clients speak to request panel state and issue
// arm/disarm commands, and the broadcast stream of partition/zone updates
// every connected client receives.
//
// Grounded on other_examples' heartbeat-websocket.go: a gorilla/websocket
// connection with a ping/pong keepalive loop and a typed JSON envelope
// (`{"type":...}`) dispatched by a string discriminator: that file is a
// client dialing out, this package is the server side of the same
// wire-shape idiom (an Upgrader accepting connections instead of a Dialer
// making them).
package facade

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pcanto/dscbridge/internal/config"
	"github.com/pcanto/dscbridge/internal/message"
	"github.com/pcanto/dscbridge/internal/panel"
	"github.com/pcanto/dscbridge/internal/state"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

// inbound client->server message types.
const (
	typeGetFullState = "get_full_state"
	typeArmAway      = "arm_away"
	typeArmHome      = "arm_home"
	typeArmNight     = "arm_night"
	typeDisarm       = "disarm"
)

// outbound server->client message types.
const (
	typeFullState       = "full_state"
	typePartitionUpdate = "partition_update"
	typeZoneUpdate      = "zone_update"
	typeError           = "error"
)

// clientRequest is the envelope every inbound message is first parsed into;
// the fields beyond Type are only populated for arm/disarm requests.
type clientRequest struct {
	Type            string `json:"type"`
	SessionID       string `json:"session_id"`
	PartitionNumber uint8  `json:"partition_number"`
	Code            string `json:"code"`
}

// PartitionDto is one partition entry within a SessionDto.
type PartitionDto struct {
	PartitionNumber uint8  `json:"partition_number"`
	Name            string `json:"name"`
	Status          string `json:"status"`
}

// ZoneDto is one zone entry within a SessionDto.
type ZoneDto struct {
	ZoneNumber  uint8   `json:"zone_number"`
	Name        string  `json:"name"`
	DeviceClass string  `json:"device_class"`
	Open        bool    `json:"open"`
	Partitions  []uint8 `json:"partitions"`
}

// SessionDto is one connected panel's full state snapshot.
type SessionDto struct {
	SessionID  string         `json:"session_id"`
	Name       string         `json:"name"`
	Partitions []PartitionDto `json:"partitions"`
	Zones      []ZoneDto      `json:"zones"`
}

type serverMessage struct {
	Type            string       `json:"type"`
	Sessions        []SessionDto `json:"sessions,omitempty"`
	SessionID       string       `json:"session_id,omitempty"`
	PartitionNumber uint8        `json:"partition_number,omitempty"`
	Status          string       `json:"status,omitempty"`
	ZoneNumber      uint8        `json:"zone_number,omitempty"`
	Open            *bool        `json:"open,omitempty"`
	Message         string       `json:"message,omitempty"`
}

// Hub accepts WebSocket clients, serves get_full_state/arm/disarm requests
// against the panel registry and state store, and broadcasts every
// partition/zone change to every connected client.
type Hub struct {
	registry    *panel.Registry
	store       *state.Store
	deviceClass string
	log         *logrus.Entry
	upgrader    websocket.Upgrader
	unsubscribe func()

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan serverMessage
}

// NewHub returns a Hub wired against reg and store. deviceClass is the
// facade-level default every zone reports: zone DeviceClass isn't part of
// the core state model, so the facade supplies a single configured default
// rather than tracking one per zone.
func NewHub(reg *panel.Registry, store *state.Store, deviceClass string, log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if deviceClass == "" {
		deviceClass = config.DefaultZoneDeviceClass
	}
	h := &Hub{
		registry:    reg,
		store:       store,
		deviceClass: deviceClass,
		log:         log,
		upgrader:    websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		clients:     make(map[*client]struct{}),
	}
	h.unsubscribe = store.Subscribe(h.onStateEvent)
	return h
}

// Close stops the Hub's state-store subscription. Existing client
// connections are left to close on their own read/write errors.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and runs the
// client's read/write loops until it disconnects. On connect the server
// does not auto-send state: clients must send get_full_state.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("facade: websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan serverMessage, 32)}
	h.addClient(c)
	defer h.removeClient(c)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
	c.conn.Close()
}

func (h *Hub) readLoop(c *client) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req clientRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			h.deliver(c, serverMessage{Type: typeError, Message: "malformed request"})
			continue
		}
		h.handleRequest(c, req)
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) deliver(c *client, msg serverMessage) {
	select {
	case c.send <- msg:
	default:
		h.log.WithField("type", msg.Type).Warn("facade: client send buffer full, dropping message")
	}
}

func (h *Hub) handleRequest(c *client, req clientRequest) {
	switch req.Type {
	case typeGetFullState:
		h.deliver(c, serverMessage{Type: typeFullState, Sessions: h.fullState()})

	case typeArmAway:
		h.arm(c, req, message.ArmModeAwayArm)
	case typeArmHome:
		h.arm(c, req, message.ArmModeStayArm)
	case typeArmNight:
		h.arm(c, req, message.ArmModeNightArm)
	case typeDisarm:
		h.disarm(c, req)

	default:
		h.deliver(c, serverMessage{Type: typeError, Message: "unknown request type: " + req.Type})
	}
}

func (h *Hub) arm(c *client, req clientRequest, mode message.ArmMode) {
	sess, err := h.registry.Get(req.SessionID)
	if err != nil {
		h.deliver(c, serverMessage{Type: typeError, Message: err.Error()})
		return
	}
	_, err = sess.SendMessage(message.Record{
		Command: message.CmdPartitionArm,
		Name:    "PartitionArm",
		Values: map[string]any{
			"partition_number": req.PartitionNumber,
			"arm_mode":         uint8(mode),
			"access_code":      req.Code,
		},
	})
	if err != nil {
		h.deliver(c, serverMessage{Type: typeError, Message: err.Error()})
	}
}

func (h *Hub) disarm(c *client, req clientRequest) {
	sess, err := h.registry.Get(req.SessionID)
	if err != nil {
		h.deliver(c, serverMessage{Type: typeError, Message: err.Error()})
		return
	}
	_, err = sess.SendMessage(message.Record{
		Command: message.CmdPartitionDisarm,
		Name:    "PartitionDisarm",
		Values: map[string]any{
			"partition_number": req.PartitionNumber,
			"access_code":      req.Code,
		},
	})
	if err != nil {
		h.deliver(c, serverMessage{Type: typeError, Message: err.Error()})
	}
}

// fullState snapshots every registered session's state store entry into the
// SessionDto wire shape.
func (h *Hub) fullState() []SessionDto {
	ids := h.registry.IDs()
	out := make([]SessionDto, 0, len(ids))
	for _, id := range ids {
		out = append(out, h.sessionDto(id))
	}
	return out
}

func (h *Hub) sessionDto(sessionID string) SessionDto {
	dto := SessionDto{SessionID: sessionID, Name: sessionID}

	now := time.Now()
	for _, p := range h.store.Partitions(sessionID) {
		dto.Partitions = append(dto.Partitions, PartitionDto{
			PartitionNumber: p.Number,
			Name:            "",
			Status:          p.EffectiveStatus(now).String(),
		})
	}
	for _, z := range h.store.Zones(sessionID) {
		name := ""
		if z.Name != nil {
			name = *z.Name
		}
		dto.Zones = append(dto.Zones, ZoneDto{
			ZoneNumber:  z.Number,
			Name:        name,
			DeviceClass: h.deviceClass,
			Open:        z.IsOpen,
			Partitions:  z.Partitions,
		})
	}
	return dto
}

// onStateEvent is wired as a state.Store subscriber and broadcasts
// partition_update/zone_update to every connected client.
func (h *Hub) onStateEvent(ev state.Event) {
	switch ev.Kind {
	case state.EventPartitionStateChanged:
		h.broadcast(serverMessage{
			Type:            typePartitionUpdate,
			SessionID:       ev.SessionID,
			PartitionNumber: ev.Partition.Number,
			Status:          ev.Partition.EffectiveStatus(time.Now()).String(),
		})
	case state.EventZoneStateChanged:
		isOpen := ev.Zone.IsOpen
		h.broadcast(serverMessage{
			Type:       typeZoneUpdate,
			SessionID:  ev.SessionID,
			ZoneNumber: ev.Zone.Number,
			Open:       &isOpen,
		})
	case state.EventSessionStateChanged:
		// Session connect/disconnect and clock-sync events have no
		// standalone wire message; clients observe them by re-requesting
		// get_full_state.
	}
}

func (h *Hub) broadcast(msg serverMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.deliver(c, msg)
	}
}
