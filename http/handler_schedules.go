package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"raillink/entity"
)

type postScheduleRequest struct {
	ScheduleID         string    `json:"schedule_id"`
	TrainID            string    `json:"train_id"`
	DepartureStationID string    `json:"departure_station_id"`
	ArrivalStationID   string    `json:"arrival_station_id"`
	DepartureTime      time.Time `json:"departure_time"`
	ArrivalTime        time.Time `json:"arrival_time"`
	Status             string    `json:"status"`

	Seats []scheduleSeatsRequest `json:"seats"`
}

type scheduleSeatsRequest struct {
	Class    string       `json:"class"`
	Price    entity.Money `json:"price"`
	Capacity int          `json:"capacity"`
}

type patchScheduleStatusRequest struct {
	Status        string    `json:"status"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
}

func (s Server) PostSchedules(c echo.Context) error {
	var request postScheduleRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	schedule, err := request.toSchedule()
	if err != nil {
		return err
	}

	ctx := c.Request().Context()

	if err := s.schedules.Store(ctx, schedule); err != nil {
		return err
	}

	stored, err := s.schedules.Get(ctx, schedule.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, stored)
}

// GetSchedules searches schedules by route and departure day. Every filter is
// optional; date is a UTC day in YYYY-MM-DD form.
func (s Server) GetSchedules(c echo.Context) error {
	query := entity.ScheduleQuery{
		DepartureStationID: c.QueryParam("departure_station_id"),
		ArrivalStationID:   c.QueryParam("arrival_station_id"),
	}

	if date := c.QueryParam("date"); date != "" {
		parsed, err := entity.ParseScheduleDate(date)
		if err != nil {
			return err
		}
		query.Date = parsed
	}

	schedules, err := s.schedules.Search(c.Request().Context(), query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, schedules)
}

func (r postScheduleRequest) toSchedule() (entity.Schedule, error) {
	schedule := entity.Schedule{
		ID:                 r.ScheduleID,
		TrainID:            r.TrainID,
		DepartureStationID: r.DepartureStationID,
		ArrivalStationID:   r.ArrivalStationID,
		DepartureTime:      r.DepartureTime.UTC(),
		ArrivalTime:        r.ArrivalTime.UTC(),
		Status:             entity.ScheduleStatusOnTime,
		Seats:              make(map[entity.FareClass]entity.SeatInventory, len(r.Seats)),
	}
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if err := entity.ValidateID("schedule id", schedule.ID); err != nil {
		return entity.Schedule{}, err
	}

	if r.Status != "" {
		status, err := entity.ParseScheduleStatus(r.Status)
		if err != nil {
			return entity.Schedule{}, err
		}
		schedule.Status = status
	}

	for _, seats := range r.Seats {
		class, err := entity.ParseFareClass(seats.Class)
		if err != nil {
			return entity.Schedule{}, err
		}
		if _, ok := schedule.Seats[class]; ok {
			return entity.Schedule{}, fmt.Errorf("%w: duplicated seat inventory for %s", entity.ErrValidation, class)
		}

		schedule.Seats[class] = entity.SeatInventory{
			Class:     class,
			Price:     seats.Price,
			Capacity:  seats.Capacity,
			SeatsLeft: seats.Capacity,
		}
	}

	return schedule, schedule.Validate()
}

func (s Server) GetSchedule(c echo.Context) error {
	scheduleID := c.Param("schedule_id")
	if err := entity.ValidateID("schedule id", scheduleID); err != nil {
		return err
	}

	schedule, err := s.schedules.Get(c.Request().Context(), scheduleID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, schedule)
}

// PatchScheduleStatus changes the operational status. Departure and arrival
// times are only updated when given.
func (s Server) PatchScheduleStatus(c echo.Context) error {
	scheduleID := c.Param("schedule_id")
	if err := entity.ValidateID("schedule id", scheduleID); err != nil {
		return err
	}

	var request patchScheduleStatusRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	status, err := entity.ParseScheduleStatus(request.Status)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()

	err = s.schedules.UpdateStatus(ctx, scheduleID, status, request.DepartureTime.UTC(), request.ArrivalTime.UTC())
	if err != nil {
		return err
	}

	schedule, err := s.schedules.Get(ctx, scheduleID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, schedule)
}
