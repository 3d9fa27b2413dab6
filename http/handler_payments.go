package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"raillink/entity"
)

type postPaymentRequest struct {
	TicketID string `json:"ticket_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type putPaymentRequest struct {
	Status string `json:"status"`
}

func (s Server) PostPayments(c echo.Context) error {
	var request postPaymentRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	payment, err := s.payments.Record(c.Request().Context(), entity.RecordPayment{
		TicketID: request.TicketID,
		Amount: entity.Money{
			Amount:   request.Amount,
			Currency: request.Currency,
		},
		Status: entity.PaymentStatus(request.Status),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, payment)
}

func (s Server) PutPayment(c echo.Context) error {
	var request putPaymentRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	payment, err := s.payments.UpdateStatus(c.Request().Context(), c.Param("payment_id"), request.Status)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, payment)
}

func (s Server) GetPayment(c echo.Context) error {
	payment, err := s.payments.Get(c.Request().Context(), c.Param("payment_id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, payment)
}
