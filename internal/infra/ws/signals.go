package ws

import (
	"context"
	"log/slog"

	"github.com/IBM/sarama"

	notifyservice "estately/internal/app/services/notify"
	"estately/internal/infra/broker/kafka"
)

// StatsSignalHandler reacts to back-office CRUD events (client and listing
// management) by broadcasting a fresh statistics snapshot to the global
// stats room. The event body is irrelevant; the signal alone means counts
// changed.
type StatsSignalHandler struct {
	Stats  *notifyservice.StatsService
	Logger *slog.Logger
}

func (h *StatsSignalHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if h.Stats == nil {
		return nil
	}
	if err := h.Stats.Broadcast(ctx); err != nil && h.Logger != nil {
		h.Logger.Error("stats broadcast on signal failed", "topic", msg.Topic, "error", err)
	}
	return nil
}

var _ kafka.MessageHandler = (*StatsSignalHandler)(nil)
