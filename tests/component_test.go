package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/lithammer/shortuuid/v3"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/goleak"

	"raillink/app"
	"raillink/entity"
	"raillink/tracing"
)

const (
	httpAddress = "localhost:8080"
	baseURL     = "http://" + httpAddress
)

var httpClient = &http.Client{
	Transport: otelhttp.NewTransport(http.DefaultTransport),
	Timeout:   5 * time.Second,
}

func TestComponent(t *testing.T) {
	defer goleak.VerifyNone(
		t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("github.com/testcontainers/testcontainers-go.(*Reaper).Connect.func1"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
	defer httpClient.CloseIdleConnections()

	ctx, cancel := context.WithCancel(context.Background())

	dbconn, err := sqlx.Open("postgres", postgresURL)
	require.NoError(t, err)
	defer dbconn.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer redisClient.Close()

	traceProvider, err := tracing.ConfigureTraceProvider("")
	require.NoError(t, err)

	a, err := app.New(
		app.Config{HTTPAddr: httpAddress, SyncInterval: time.Hour},
		dbconn,
		redisClient,
		traceProvider,
	)
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		assert.NoError(t, a.Run(ctx))
	}()
	defer func() {
		cancel()
		<-finished
	}()

	waitForHttpServer(t)

	bookSeededSchedule(t)

	user := createUser(t)
	schedule := createSchedule(t, time.Now().Add(2*time.Hour), 2)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		responses []bookResponse
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			resp := bookTicket(t, user.ID, schedule.ID, "Economy")

			mu.Lock()
			defer mu.Unlock()
			responses = append(responses, resp)
		}()
	}
	wg.Wait()

	booked := lo.Filter(responses, func(r bookResponse, _ int) bool { return r.StatusCode == http.StatusCreated })
	require.Len(t, booked, 2, "only as many bookings as seats")
	assert.Equal(t, 3, lo.CountBy(responses, func(r bookResponse) bool { return r.StatusCode == http.StatusConflict }))

	cancelled := booked[0].TicketID
	kept := booked[1].TicketID

	assert.Equal(t, http.StatusOK, do(t, http.MethodPut, "/tickets/"+cancelled+"/cancel", nil, nil))
	assert.Equal(t, http.StatusConflict, do(t, http.MethodPut, "/tickets/"+cancelled+"/cancel", nil, nil))

	var payment entity.Payment
	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, "/payments", map[string]string{"ticket_id": kept}, &payment))
	assert.Equal(t, entity.Money{Amount: "19.99", Currency: "EUR"}, payment.Amount)

	assertOpsTicket(t, cancelled, func(t *assert.CollectT, ticket entity.OpsTicket) {
		assert.Equal(t, entity.TicketStatusCancelled, ticket.Status)
	})
	assertOpsTicket(t, kept, func(t *assert.CollectT, ticket entity.OpsTicket) {
		assert.Equal(t, entity.TicketStatusBooked, ticket.Status)
		assert.Contains(t, ticket.Payments, payment.ID)
	})

	assertEventsInDataLake(t, dbconn, "TicketBooked_v1", 2)
	assertEventsInDataLake(t, dbconn, "TicketCancelled_v1", 1)

	// departure passes: the sync command completes the remaining ticket
	departed := time.Now().Add(-time.Minute).UTC()
	require.Equal(t, http.StatusOK, do(t, http.MethodPatch, "/schedules/"+schedule.ID+"/status", map[string]any{
		"status":         "Delayed",
		"departure_time": departed,
		"arrival_time":   departed.Add(2 * time.Hour),
	}, nil))
	require.Equal(t, http.StatusAccepted, do(t, http.MethodPost, "/ops/sync", map[string]string{"user_id": user.ID}, nil))

	require.EventuallyWithT(t, func(t *assert.CollectT) {
		var ticket entity.Ticket
		if !assert.Equal(t, http.StatusOK, doCollect(t, http.MethodGet, "/tickets/"+kept, &ticket)) {
			return
		}
		assert.Equal(t, entity.TicketStatusCompleted, ticket.Status)
	}, 10*time.Second, 100*time.Millisecond)

	var ticket entity.Ticket
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, "/tickets/"+cancelled, nil, &ticket))
	assert.Equal(t, entity.TicketStatusCancelled, ticket.Status, "synchronizer never touches cancelled tickets")

	assertOpsTicket(t, kept, func(t *assert.CollectT, ticket entity.OpsTicket) {
		assert.Equal(t, entity.TicketStatusCompleted, ticket.Status)
	})
}

func bookSeededSchedule(t *testing.T) {
	t.Helper()

	search := "/schedules?departure_station_id=" + seededSchedule.DepartureStationID +
		"&arrival_station_id=" + seededSchedule.ArrivalStationID +
		"&date=" + seededSchedule.DepartureTime.Format(time.DateOnly)

	var found []entity.Schedule
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, search, nil, &found))
	require.Len(t, found, 1)
	require.Equal(t, seededSchedule.ID, found[0].ID)

	before := found[0].Seats[entity.FareClassEconomy]
	assert.Equal(t, entity.Money{Amount: "89.00", Currency: "PLN"}, before.Price)

	resp := bookTicket(t, seededUser.ID, seededSchedule.ID, "Economy")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var schedule entity.Schedule
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, "/schedules/"+seededSchedule.ID, nil, &schedule))
	assert.Equal(t, before.SeatsLeft-1, schedule.Seats[entity.FareClassEconomy].SeatsLeft)
}

type bookResponse struct {
	StatusCode int
	TicketID   string `json:"ticket_id"`
}

func createUser(t *testing.T) entity.User {
	t.Helper()

	var user entity.User
	status := do(t, http.MethodPost, "/users", map[string]string{"email": shortuuid.New() + "@raillink.test"}, &user)
	require.Equal(t, http.StatusCreated, status)

	return user
}

func createSchedule(t *testing.T, departure time.Time, economyCapacity int) entity.Schedule {
	t.Helper()

	var schedule entity.Schedule
	status := do(t, http.MethodPost, "/schedules", map[string]any{
		"train_id":             "EIP-1",
		"departure_station_id": "WAW",
		"arrival_station_id":   "KRK",
		"departure_time":       departure.UTC(),
		"arrival_time":         departure.Add(150 * time.Minute).UTC(),
		"seats": []map[string]any{
			{"class": "Economy", "price": entity.Money{Amount: "19.99", Currency: "EUR"}, "capacity": economyCapacity},
			{"class": "Business", "price": entity.Money{Amount: "49.99", Currency: "EUR"}, "capacity": 4},
			{"class": "VIP", "price": entity.Money{Amount: "99.99", Currency: "EUR"}, "capacity": 1},
		},
	}, &schedule)
	require.Equal(t, http.StatusCreated, status)

	return schedule
}

func bookTicket(t *testing.T, userID, scheduleID, class string) bookResponse {
	var resp bookResponse
	resp.StatusCode = do(t, http.MethodPost, "/tickets", map[string]string{
		"user_id":     userID,
		"schedule_id": scheduleID,
		"class":       class,
	}, &resp)

	return resp
}

func assertOpsTicket(t *testing.T, ticketID string, check func(t *assert.CollectT, ticket entity.OpsTicket)) {
	t.Helper()

	assert.EventuallyWithT(t, func(t *assert.CollectT) {
		var ticket entity.OpsTicket
		if !assert.Equal(t, http.StatusOK, doCollect(t, http.MethodGet, "/ops/tickets/"+ticketID, &ticket)) {
			return
		}
		check(t, ticket)
	}, 10*time.Second, 100*time.Millisecond)
}

func assertEventsInDataLake(t *testing.T, db *sqlx.DB, eventName string, atLeast int) {
	t.Helper()

	assert.EventuallyWithT(t, func(t *assert.CollectT) {
		var count int
		err := db.Get(&count, `SELECT COUNT(*) FROM events WHERE event_name = $1`, eventName)
		if !assert.NoError(t, err) {
			return
		}
		assert.GreaterOrEqual(t, count, atLeast)
	}, 10*time.Second, 100*time.Millisecond)
}

func do(t *testing.T, method, path string, body any, response any) int {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, baseURL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Correlation-ID", shortuuid.New())

	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if response != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(response))
	} else if response != nil {
		_ = json.NewDecoder(resp.Body).Decode(response)
	}

	return resp.StatusCode
}

func doCollect(t *assert.CollectT, method, path string, response any) int {
	req, err := http.NewRequest(method, baseURL+path, nil)
	if !assert.NoError(t, err) {
		return 0
	}

	resp, err := httpClient.Do(req)
	if !assert.NoError(t, err) {
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(response))
	}

	return resp.StatusCode
}

func waitForHttpServer(t *testing.T) {
	t.Helper()

	require.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			resp, err := httpClient.Get(baseURL + "/health")
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			assert.Less(t, resp.StatusCode, 300, "API not ready, http status: %d", resp.StatusCode)
		},
		time.Second*10,
		time.Millisecond*50,
	)
}
