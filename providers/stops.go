package providers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"
	"github.com/trilive/trilive-api/trimet"
)

// Roughly 3 miles, matching the radius the mobile clients expect.
const closestStopRadiusMeters = 4800

func setupStopsRoutes(primaryRouter *echo.Group, upstream *trimet.Client, catalog *StopCatalog, reconciler *Reconciler) {

	//Returns the full local stop catalog
	primaryRouter.GET("/stops", func(c echo.Context) error {
		stops, err := catalog.List(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, stops)
	})

	//Returns the closest stop to a given lat,lon
	primaryRouter.GET("/stops/closest/:latitude/:longitude", func(c echo.Context) error {
		lat, err := strconv.ParseFloat(c.PathParam("latitude"), 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lat"})
		}
		lon, err := strconv.ParseFloat(c.PathParam("longitude"), 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lon"})
		}

		location, err := upstream.NearestStop(c.Request().Context(), lat, lon, closestStopRadiusMeters)
		if errors.Is(err, trimet.ErrStopNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no stop found within radius"})
		}
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}

		return c.JSON(http.StatusOK, stationFromLocation(location))
	})

	//Triggers an out-of-band catalog sync
	primaryRouter.PUT("/sync_stops", func(c echo.Context) error {
		if err := reconciler.Run(c.Request().Context()); err != nil {
			if errors.Is(err, ErrSyncInProgress) {
				return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "Stops successfully synced"})
	})
}
