package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/hub"
	"github.com/google/uuid"
)

const (
	clientBufferSize = 256
	wsWriteTimeout   = 5 * time.Second
	wsPingInterval   = 30 * time.Second
)

// WSHub is the client registry behind /ws.
type WSHub interface {
	Register(client *hub.Client)
	Unregister(client *hub.Client)
	Send(client *hub.Client, msgType string, payload any)
	SpeechDone(id string)
	SetVoices(voices []domain.Voice)
}

// PositionUpdater accepts positions reported by a client.
type PositionUpdater interface {
	Update(c domain.Coordinate) bool
}

// Client message types.
const (
	msgPing       = "ping"
	msgSpeechDone = "speech_done"
	msgVoices     = "voices"
	msgPosition   = "position"
)

// WSMessage is the envelope of every client-to-server frame.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type speechDonePayload struct {
	ID string `json:"id"`
}

type voicesPayload struct {
	Voices []domain.Voice `json:"voices"`
}

type positionPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}

	client := hub.NewClient(uuid.New().String(), clientBufferSize)
	s.deps.Hub.Register(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.writeLoop(ctx, conn, client)
	s.readLoop(ctx, conn, client)
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-client.Send:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "") //nolint:errcheck // best effort
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				s.logger.Debug("websocket write failed", "client_id", client.ID, "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				s.logger.Debug("websocket ping failed", "client_id", client.ID, "error", err)
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		s.deps.Hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "") //nolint:errcheck // best effort
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("invalid websocket message", "client_id", client.ID, "error", err)
			continue
		}
		s.handleClientMessage(client, msg)
	}
}

func (s *Server) handleClientMessage(client *hub.Client, msg WSMessage) {
	switch msg.Type {
	case msgPing:
		s.deps.Hub.Send(client, hub.TypePong, nil)

	case msgSpeechDone:
		var p speechDonePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.ID == "" {
			return
		}
		s.deps.Hub.SpeechDone(p.ID)

	case msgVoices:
		var p voicesPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		s.deps.Hub.SetVoices(p.Voices)

	case msgPosition:
		if s.deps.Positions == nil {
			return
		}
		var p positionPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		c := domain.Coordinate{Lat: p.Lat, Lng: p.Lng}
		if !c.Valid() {
			return
		}
		s.deps.Positions.Update(c)

	default:
		s.logger.Debug("unknown websocket message", "client_id", client.ID, "type", msg.Type)
	}
}
