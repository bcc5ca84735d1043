package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/lvglgen/internal/events"
	"github.com/aristath/lvglgen/internal/utils"
	"github.com/aristath/lvglgen/pkg/logger"
)

const (
	eventBuffer       = 64
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 10 * time.Second
)

// EventsHandler streams bus events to websocket clients.
type EventsHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsHandler creates the /api/events handler.
func NewEventsHandler(bus *events.Bus, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		bus: bus,
		log: logger.Component(log, "events_ws"),
	}
}

// streamMessage is one frame sent to clients.
type streamMessage struct {
	Type      string                 `json:"type"`
	Module    string                 `json:"module,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// ServeHTTP upgrades GET /api/events to a websocket. ?types=A,B limits the
// stream to the named event types. Slow clients drop events rather than
// block emitters.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	types := events.AllTypes()
	if filter := r.URL.Query().Get("types"); filter != "" {
		types = types[:0:0]
		for _, t := range utils.ParseCSV(filter) {
			types = append(types, events.EventType(t))
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	// we never read; CloseRead handles control frames and cancels on close
	ctx := conn.CloseRead(r.Context())

	eventChan := make(chan *events.Event, eventBuffer)
	handler := func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	ids := make([]events.SubscriptionID, 0, len(types))
	for _, t := range types {
		ids = append(ids, h.bus.Subscribe(t, handler))
	}
	defer func() {
		for _, id := range ids {
			h.bus.Unsubscribe(id)
		}
	}()

	h.log.Info().Int("types", len(types)).Msg("Client connected to event stream")

	if err := h.send(ctx, conn, streamMessage{Type: "connected"}); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			msg := streamMessage{
				Type:      string(event.Type),
				Module:    event.Module,
				Timestamp: event.Timestamp.Format(time.RFC3339),
				Data:      event.Data,
			}
			if err := h.send(ctx, conn, msg); err != nil {
				return
			}

		case <-heartbeat.C:
			if err := h.send(ctx, conn, streamMessage{Type: "heartbeat"}); err != nil {
				return
			}
		}
	}
}

func (h *EventsHandler) send(ctx context.Context, conn *websocket.Conn, msg streamMessage) error {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().Format(time.RFC3339)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode event")
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write to event stream")
		return err
	}
	return nil
}
