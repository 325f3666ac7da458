package providers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/trilive/trilive-api/providers/caches"
	"github.com/trilive/trilive-api/trimet"
)

var gzipConfig = middleware.GzipConfig{
	Level: 5,
	// Tracking sessions upgrade to WebSocket and must not be wrapped.
	Skipper: func(c echo.Context) bool {
		return strings.HasPrefix(c.Request().URL.Path, "/track/")
	},
}

// SetupProvider registers every route of the aggregator on the given group.
// All collaborators are constructed by the caller; nothing here owns
// lifecycle.
func SetupProvider(primaryRouter *echo.Group, upstream *trimet.Client, arrivalCache *caches.ReadThrough, catalog *StopCatalog, reconciler *Reconciler, tracker *Tracker, localTimeZone *time.Location) {
	primaryRouter.Use(middleware.GzipWithConfig(gzipConfig))

	primaryRouter.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"message": "Welcome to TriLive!"})
	})

	setupArrivalsRoutes(primaryRouter, upstream, arrivalCache, localTimeZone)
	setupStopsRoutes(primaryRouter, upstream, catalog, reconciler)
	setupTrackRoutes(primaryRouter, tracker)
}
