package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"

	"estately/internal/app/realtime"
	"estately/internal/infra/broker/kafka"
)

const originHeader = "origin-instance"

// BusRelay mirrors hub publishes onto a kafka topic and replays events
// produced by other instances into the local hub. It closes the gap left
// by process-local room membership when several servers run behind a load
// balancer. Delivery stays fire-and-forget end to end: a relay failure is
// logged and the local fanout is unaffected.
type BusRelay struct {
	Producer   *kafka.Producer
	Hub        *Hub
	Topic      string
	InstanceID string
	Logger     *slog.Logger
}

type relayEnvelope struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Except  string          `json:"except,omitempty"`
}

// Forward mirrors one published event to the bus.
func (r *BusRelay) Forward(room, event string, payload any, except realtime.ConnID) {
	if r.Producer == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Error("relay payload marshal failed", "event", event, "error", err)
		}
		return
	}
	envelope, err := json.Marshal(relayEnvelope{
		Room:    room,
		Event:   event,
		Payload: body,
		Except:  string(except),
	})
	if err != nil {
		return
	}
	headers := map[string]string{originHeader: r.InstanceID}
	if err := r.Producer.Publish(context.Background(), r.Topic, room, envelope, headers); err != nil && r.Logger != nil {
		r.Logger.Error("relay publish failed", "topic", r.Topic, "room", room, "error", err)
	}
}

// Handle replays a bus event into the local hub, skipping events this
// instance produced itself.
func (r *BusRelay) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	for _, header := range msg.Headers {
		if string(header.Key) == originHeader && string(header.Value) == r.InstanceID {
			return nil
		}
	}
	var envelope relayEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		if r.Logger != nil {
			r.Logger.Warn("relay frame malformed", "topic", msg.Topic, "error", err)
		}
		return nil
	}
	r.Hub.DeliverLocal(envelope.Room, envelope.Event, envelope.Payload, realtime.ConnID(envelope.Except))
	return nil
}

var _ Relay = (*BusRelay)(nil)
var _ kafka.MessageHandler = (*BusRelay)(nil)
