package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"raillink/entity"
)

type postOpsSyncRequest struct {
	UserID string `json:"user_id"`
}

func (s Server) GetOpsTickets(c echo.Context) error {
	status := entity.TicketStatus(c.QueryParam("status"))

	switch status {
	case "", entity.TicketStatusBooked, entity.TicketStatusCancelled, entity.TicketStatusCompleted:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "status must be Booked, Cancelled or Completed")
	}

	tickets, err := s.opsReadModel.AllTickets(c.Request().Context(), status)
	if err != nil {
		return fmt.Errorf("could not get ops tickets: %w", err)
	}

	return c.JSON(http.StatusOK, tickets)
}

func (s Server) GetOpsTicket(c echo.Context) error {
	ticketID := c.Param("ticket_id")
	if err := entity.ValidateID("ticket id", ticketID); err != nil {
		return err
	}

	ticket, err := s.opsReadModel.TicketReadModel(c.Request().Context(), ticketID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ticket)
}

// PostOpsSync asks for a synchronizer pass. The pass runs asynchronously in
// the command handler.
func (s Server) PostOpsSync(c echo.Context) error {
	var request postOpsSyncRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&request); err != nil {
			return err
		}
	}

	if request.UserID != "" {
		if err := entity.ValidateID("user id", request.UserID); err != nil {
			return err
		}
	}

	err := s.commandBus.Send(c.Request().Context(), &entity.SyncTicketStatuses{
		Header: entity.NewEventHeader(),
		UserID: request.UserID,
	})
	if err != nil {
		return fmt.Errorf("could not send SyncTicketStatuses command: %w", err)
	}

	return c.NoContent(http.StatusAccepted)
}
