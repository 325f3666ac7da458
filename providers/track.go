package providers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v5"
	"github.com/sirupsen/logrus"
	"github.com/trilive/trilive-api/trimet"
)

const (
	trackPollInterval    = 30 * time.Second
	arrivalThresholdFeet = 10
)

// SessionState is the terminal state of a tracking session.
type SessionState string

const (
	SessionArrived      SessionState = "arrived"
	SessionLost         SessionState = "lost"
	SessionDisconnected SessionState = "disconnected"
	SessionErrored      SessionState = "errored"
)

// Subscriber receives the session's messages in poll order.
type Subscriber interface {
	Send(v any) error
}

type PositionsFunc func(ctx context.Context, stopID int) ([]trimet.BlockPosition, error)

// Tracker runs live tracking sessions: one polling loop per subscriber,
// following a single route's reported distance from a stop. The wait
// function is injectable so tests can simulate the 30-second ticks.
type Tracker struct {
	positions PositionsFunc
	interval  time.Duration
	wait      func(ctx context.Context, d time.Duration) error
}

func NewTracker(positions PositionsFunc) *Tracker {
	return &Tracker{
		positions: positions,
		interval:  trackPollInterval,
		wait:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func findRoutePosition(positions []trimet.BlockPosition, routeID int) (trimet.BlockPosition, bool) {
	for _, position := range positions {
		if position.RouteNumber == routeID {
			return position, true
		}
	}
	return trimet.BlockPosition{}, false
}

// Track runs one session until the vehicle arrives, the route drops out of
// the feed, upstream becomes unreachable, or the subscriber disconnects.
// Cancelling ctx is the subscriber going away; nothing more is sent after
// that.
func (t *Tracker) Track(ctx context.Context, sub Subscriber, stopID, routeID int) SessionState {
	positions, err := t.positions(ctx, stopID)
	if err != nil {
		if ctx.Err() != nil {
			return SessionDisconnected
		}
		sub.Send(echo.Map{"error": "upstream unavailable"})
		return SessionErrored
	}

	if _, found := findRoutePosition(positions, routeID); !found {
		sub.Send(echo.Map{"error": "route not available within the next hour"})
		return SessionLost
	}

	for {
		if ctx.Err() != nil {
			return SessionDisconnected
		}

		positions, err := t.positions(ctx, stopID)
		if err != nil {
			if ctx.Err() != nil {
				return SessionDisconnected
			}
			sub.Send(echo.Map{"error": "upstream unavailable"})
			return SessionErrored
		}

		position, found := findRoutePosition(positions, routeID)
		if !found {
			sub.Send(echo.Map{"error": "route lost"})
			return SessionLost
		}

		if err := sub.Send(echo.Map{"distance": position.Feet}); err != nil {
			return SessionDisconnected
		}

		if position.Feet <= arrivalThresholdFeet {
			sub.Send(echo.Map{"message": "arrived"})
			return SessionArrived
		}

		if err := t.wait(ctx, t.interval); err != nil {
			return SessionDisconnected
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsSubscriber struct {
	conn *websocket.Conn
}

func (s wsSubscriber) Send(v any) error {
	return s.conn.WriteJSON(v)
}

func setupTrackRoutes(primaryRouter *echo.Group, tracker *Tracker) {

	//Streams live vehicle distance updates for a route at a stop
	primaryRouter.GET("/track/:stopId/:routeId", func(c echo.Context) error {
		stopID, err := strconv.Atoi(c.PathParam("stopId"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid stop id"})
		}
		routeID, err := strconv.Atoi(c.PathParam("routeId"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid route id"})
		}

		conn, err := upgrader.Upgrade(c.Response().Writer, c.Request(), nil)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request().Context())
		defer cancel()

		// The session never reads payloads; this only notices the client
		// going away.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		state := tracker.Track(ctx, wsSubscriber{conn: conn}, stopID, routeID)

		logrus.WithFields(logrus.Fields{
			"stop_id":  stopID,
			"route_id": routeID,
			"state":    state,
		}).Info("Tracking session closed")

		return nil
	})
}
