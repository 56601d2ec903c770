package transport

import (
	"encoding/json"
	"net/http"
	"sync"

	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voiced/pkg/types"
)

// Server accepts satellite websocket connections and shuttles Messages
// between them and the Handler. It also implements the pipeline's
// Answerer: answers are routed to whichever connection last spoke for
// the device.
type Server struct {
	handler  Handler
	log      zerolog.Logger
	upgrader ws.Upgrader

	mu    sync.Mutex
	conns map[string]*conn // device id -> connection
}

type conn struct {
	sock *ws.Conn
	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
}

func NewServer(handler Handler, log zerolog.Logger) *Server {
	return &Server{
		handler: handler,
		log:     log,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1 << 14,
			WriteBufferSize: 1 << 14,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[string]*conn),
	}
}

// ServeHTTP upgrades a satellite connection and reads it until close.
// Frames for one device are handled in arrival order on this goroutine.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &conn{sock: sock}
	devices := make(map[string]struct{})
	defer func() {
		_ = sock.Close()
		s.mu.Lock()
		for d := range devices {
			if s.conns[d] == c {
				delete(s.conns, d)
			}
		}
		s.mu.Unlock()
		// A dropped socket counts as a disconnect for every device it
		// spoke for, clean close message or not.
		for d := range devices {
			s.handler.Disconnected(d)
		}
	}()

	for {
		_, payload, err := sock.ReadMessage()
		if err != nil {
			if !wsIsClosed(err) {
				s.log.Error().Err(err).Msg("websocket read failed")
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.Warn().Err(err).Msg("bad frame from satellite")
			continue
		}
		if msg.DeviceID == "" {
			s.log.Warn().Str("type", string(msg.Type)).Msg("frame without device id")
			continue
		}
		if _, seen := devices[msg.DeviceID]; !seen {
			devices[msg.DeviceID] = struct{}{}
			s.mu.Lock()
			s.conns[msg.DeviceID] = c
			s.mu.Unlock()
		}
		s.route(msg, devices)
	}
}

func (s *Server) route(msg Message, devices map[string]struct{}) {
	switch msg.Type {
	case MsgRequest:
		// Audio requests are marked by a present payload or the final
		// flag; payload length is no discriminator because the closing
		// frame legitimately carries no samples.
		if msg.Audio != nil || msg.IsFinal {
			s.handler.HandleAudio(msg.DeviceID, msg.Audio, msg.IsFinal)
		} else {
			s.handler.HandleText(msg.DeviceID, msg.Text, types.LanguageTag(msg.Lang))
		}
	case MsgEvent:
		s.handler.HandleEvent(msg.DeviceID, msg.Name)
	case MsgNewDevice:
		s.handler.NewDevice(msg.DeviceID, msg.Capabilities)
	case MsgDisconnected:
		delete(devices, msg.DeviceID)
		s.mu.Lock()
		delete(s.conns, msg.DeviceID)
		s.mu.Unlock()
		s.handler.Disconnected(msg.DeviceID)
	default:
		s.log.Warn().Str("type", string(msg.Type)).Msg("unknown frame type")
	}
}

// Answer sends an answer frame to the device's connection.
func (s *Server) Answer(deviceID string, ans types.Answer) error {
	s.mu.Lock()
	c, ok := s.conns[deviceID]
	s.mu.Unlock()
	if !ok {
		return ErrDeviceOffline(deviceID)
	}
	payload, err := json.Marshal(Message{Type: MsgAnswer, DeviceID: deviceID, Answer: &ans})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.WriteMessage(ws.TextMessage, payload)
}

func wsIsClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
