package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/trilive/trilive-api/providers/caches"
	"github.com/trilive/trilive-api/trimet"
)

const (
	statusEstimated = "estimated"
	statusScheduled = "scheduled"
)

func arrivalsCacheKey(stopID int) string {
	return fmt.Sprintf("stop:%d:arrivals", stopID)
}

// NormalizeArrivals maps raw arrivals onto the canonical Route projection,
// keyed "<route_id>:<eta_ms>" so the same route arriving at different times
// stays distinct. Only arrivals that will actually occur survive; delayed,
// canceled and departed records are dropped silently. Identical keys are
// last-write-wins.
func NormalizeArrivals(stopID int, arrivals []trimet.Arrival, localTimeZone *time.Location) map[string]Route {
	result := make(map[string]Route)
	for _, arrival := range arrivals {
		if arrival.Status != statusEstimated && arrival.Status != statusScheduled {
			continue
		}

		// Prefer the live estimate over the schedule when both are present.
		eta := arrival.Scheduled
		if arrival.Estimated != nil {
			eta = arrival.Estimated
		}
		if eta == nil {
			continue
		}

		name := arrival.FullSign
		if name == "" {
			name = arrival.ShortSign
		}

		key := strconv.Itoa(arrival.Route) + ":" + strconv.FormatInt(*eta, 10)
		result[key] = Route{
			StopID:     stopID,
			RouteID:    arrival.Route,
			RouteName:  name,
			Status:     arrival.Status,
			Eta:        formatETA(*eta, localTimeZone),
			RouteColor: arrival.RouteColor,
		}
	}
	return result
}

// formatETA renders epoch milliseconds as local wall-clock time with no
// leading zero on the hour, e.g. "7:45 PM".
func formatETA(ms int64, localTimeZone *time.Location) string {
	return time.UnixMilli(ms).In(localTimeZone).Format("3:04 PM")
}

func setupArrivalsRoutes(primaryRouter *echo.Group, upstream *trimet.Client, arrivalCache *caches.ReadThrough, localTimeZone *time.Location) {

	//Returns the upcoming arrivals for a stop, keyed "<route_id>:<eta_ms>"
	primaryRouter.GET("/arrivals/:stopId", func(c echo.Context) error {
		stopID, err := strconv.Atoi(c.PathParam("stopId"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid stop id"})
		}

		payload, err := arrivalCache.GetOrFetch(c.Request().Context(), arrivalsCacheKey(stopID), func(ctx context.Context) ([]byte, error) {
			arrivals, err := upstream.Arrivals(ctx, stopID)
			if err != nil {
				return nil, err
			}
			return json.Marshal(NormalizeArrivals(stopID, arrivals, localTimeZone))
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}

		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, payload)
	})
}
