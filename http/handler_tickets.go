package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"raillink/entity"
)

type postTicketRequest struct {
	UserID     string `json:"user_id"`
	ScheduleID string `json:"schedule_id"`
	Class      string `json:"class"`
}

type ticketStatusResponse struct {
	TicketID string              `json:"ticket_id"`
	Status   entity.TicketStatus `json:"status"`
}

func (s Server) PostTickets(c echo.Context) error {
	var request postTicketRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	class, err := entity.ParseFareClass(request.Class)
	if err != nil {
		return err
	}

	ticket, err := s.tickets.Book(c.Request().Context(), entity.BookTicket{
		UserID:     request.UserID,
		ScheduleID: request.ScheduleID,
		Class:      class,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, ticketStatusResponse{
		TicketID: ticket.ID,
		Status:   ticket.Status,
	})
}

func (s Server) GetTicket(c echo.Context) error {
	ticket, err := s.tickets.Get(c.Request().Context(), c.Param("ticket_id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ticket)
}

func (s Server) PutTicketCancel(c echo.Context) error {
	ticket, err := s.tickets.Cancel(c.Request().Context(), c.Param("ticket_id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ticketStatusResponse{
		TicketID: ticket.ID,
		Status:   ticket.Status,
	})
}

func (s Server) GetUserTickets(c echo.Context) error {
	tickets, err := s.tickets.ListUserTickets(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tickets)
}
