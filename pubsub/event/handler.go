package event

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"raillink/entity"
)

type OpsReadModel interface {
	OnTicketBooked(ctx context.Context, event *entity.TicketBooked_v1) error
	OnTicketCancelled(ctx context.Context, event *entity.TicketCancelled_v1) error
	OnTicketCompleted(ctx context.Context, event *entity.TicketCompleted_v1) error
	OnPaymentRecorded(ctx context.Context, event *entity.PaymentRecorded_v1) error
	OnPaymentStatusUpdated(ctx context.Context, event *entity.PaymentStatusUpdated_v1) error
}

type Handler struct {
	opsReadModel OpsReadModel
}

func NewHandler(opsReadModel OpsReadModel) Handler {
	if opsReadModel == nil {
		panic("missing opsReadModel")
	}

	return Handler{opsReadModel: opsReadModel}
}

// Handlers returns every event handler of the service. Handler names are
// part of the consumer group name, so renaming one replays its topic.
func (h Handler) Handlers() []cqrs.EventHandler {
	return []cqrs.EventHandler{
		cqrs.NewEventHandler(
			"ops_read_model.OnTicketBooked",
			h.opsReadModel.OnTicketBooked,
		),
		cqrs.NewEventHandler(
			"ops_read_model.OnTicketCancelled",
			h.opsReadModel.OnTicketCancelled,
		),
		cqrs.NewEventHandler(
			"ops_read_model.OnTicketCompleted",
			h.opsReadModel.OnTicketCompleted,
		),
		cqrs.NewEventHandler(
			"ops_read_model.OnPaymentRecorded",
			h.opsReadModel.OnPaymentRecorded,
		),
		cqrs.NewEventHandler(
			"ops_read_model.OnPaymentStatusUpdated",
			h.opsReadModel.OnPaymentStatusUpdated,
		),
	}
}
