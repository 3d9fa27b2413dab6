package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	echoHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"raillink/entity"
)

type TicketService interface {
	Book(ctx context.Context, cmd entity.BookTicket) (entity.Ticket, error)
	Cancel(ctx context.Context, ticketID string) (entity.Ticket, error)
	Get(ctx context.Context, ticketID string) (entity.Ticket, error)
	ListUserTickets(ctx context.Context, userID string) ([]entity.TicketDetails, error)
}

type PaymentService interface {
	Record(ctx context.Context, cmd entity.RecordPayment) (entity.Payment, error)
	UpdateStatus(ctx context.Context, paymentID string, status string) (entity.Payment, error)
	Get(ctx context.Context, paymentID string) (entity.Payment, error)
}

type UsersRepository interface {
	Store(ctx context.Context, user entity.User) error
}

type SchedulesRepository interface {
	Store(ctx context.Context, schedule entity.Schedule) error
	Get(ctx context.Context, scheduleID string) (entity.Schedule, error)
	Search(ctx context.Context, query entity.ScheduleQuery) ([]entity.Schedule, error)
	UpdateStatus(
		ctx context.Context,
		scheduleID string,
		status entity.ScheduleStatus,
		departureTime time.Time,
		arrivalTime time.Time,
	) error
}

type OpsTicketReadModel interface {
	AllTickets(ctx context.Context, statusFilter entity.TicketStatus) ([]entity.OpsTicket, error)
	TicketReadModel(ctx context.Context, ticketID string) (entity.OpsTicket, error)
}

type CommandBus interface {
	Send(ctx context.Context, cmd any) error
}

type Server struct {
	addr         string
	e            *echo.Echo
	tickets      TicketService
	payments     PaymentService
	usersRepo    UsersRepository
	schedules    SchedulesRepository
	opsReadModel OpsTicketReadModel
	commandBus   CommandBus
}

func NewServer(
	addr string,
	tickets TicketService,
	payments PaymentService,
	usersRepo UsersRepository,
	schedules SchedulesRepository,
	opsReadModel OpsTicketReadModel,
	commandBus CommandBus,
) *Server {
	e := echoHTTP.NewEcho()
	e.Use(otelecho.Middleware("raillink"))
	e.HTTPErrorHandler = handleError

	server := &Server{
		addr:         addr,
		e:            e,
		tickets:      tickets,
		payments:     payments,
		usersRepo:    usersRepo,
		schedules:    schedules,
		opsReadModel: opsReadModel,
		commandBus:   commandBus,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/tickets", server.PostTickets)
	e.GET("/tickets/:ticket_id", server.GetTicket)
	e.PUT("/tickets/:ticket_id/cancel", server.PutTicketCancel)
	e.GET("/users/:user_id/tickets", server.GetUserTickets)

	e.POST("/payments", server.PostPayments)
	e.GET("/payments/:payment_id", server.GetPayment)
	e.PUT("/payments/:payment_id", server.PutPayment)

	e.POST("/users", server.PostUsers)
	e.POST("/schedules", server.PostSchedules)
	e.GET("/schedules", server.GetSchedules)
	e.GET("/schedules/:schedule_id", server.GetSchedule)
	e.PATCH("/schedules/:schedule_id/status", server.PatchScheduleStatus)

	e.GET("/ops/tickets", server.GetOpsTickets)
	e.GET("/ops/tickets/:ticket_id", server.GetOpsTicket)
	e.POST("/ops/sync", server.PostOpsSync)

	return server
}

func (s Server) Handler() http.Handler {
	return s.e
}

func (s Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		err := s.e.Shutdown(context.Background())
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to shutdown HTTP server")
		}
	}()
	log.FromContext(ctx).WithField("addr", s.addr).Info("[HTTP] server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
