package command

import (
	"context"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"raillink/entity"
)

func (h Handler) SyncTicketStatusesHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"SyncTicketStatusesHandler",
		func(ctx context.Context, cmd *entity.SyncTicketStatuses) error {
			var (
				completed int
				err       error
			)
			if cmd.UserID == "" {
				completed, err = h.synchronizer.Run(ctx)
			} else {
				completed, err = h.synchronizer.SyncUser(ctx, cmd.UserID)
			}
			if err != nil {
				if entity.IsBusinessError(err) {
					// a malformed command won't get better on redelivery
					log.FromContext(ctx).WithError(err).Warn("Dropping invalid SyncTicketStatuses command")
					return nil
				}
				return err
			}

			log.FromContext(ctx).WithField("completed", completed).Info("Ticket statuses synchronized")

			return nil
		},
	)
}
