package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/trilive/trilive-api/config"
	"github.com/trilive/trilive-api/providers"
	"github.com/trilive/trilive-api/providers/caches"
	"github.com/trilive/trilive-api/trimet"
)

const (
	arrivalsCacheTTL = 60 * time.Second
	syncRunTimeout   = 10 * time.Minute
)

// Monthly, midnight on the 1st, in the transit system's local zone.
const stopSyncSchedule = "0 0 1 * *"

var rateLimiterConfig = middleware.RateLimiterConfig{
	Skipper: middleware.DefaultSkipper,
	Store: middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{Rate: 10, Burst: 30, ExpiresIn: 3 * time.Minute},
	),
	IdentifierExtractor: func(ctx echo.Context) (string, error) {
		id := ctx.RealIP()
		return id, nil
	},
	ErrorHandler: func(context echo.Context, err error) error {
		return context.JSON(http.StatusForbidden, nil)
	},
	DenyHandler: func(context echo.Context, identifier string, err error) error {
		return context.JSON(http.StatusTooManyRequests, nil)
	},
}

func main() {
	//Loads a .env file in the current dir
	if err := godotenv.Load(); err != nil {
		fmt.Println("Error loading .env file")
	}

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	localTimeZone, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		log.Fatal(err)
	}

	upstream := trimet.NewClient(cfg.TrimetAppID, cfg.TrimetAPIURL)

	cacheStore, err := caches.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatal(err)
	}
	defer cacheStore.Close()
	arrivalCache := caches.NewReadThrough(cacheStore, arrivalsCacheTTL)

	catalog, err := providers.NewStopCatalog(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer catalog.Close()

	reconciler := providers.NewReconciler(upstream.StopsInBBox, catalog, cfg.BBox)
	tracker := providers.NewTracker(upstream.VehiclePositions)

	scheduler := cron.New(cron.WithLocation(localTimeZone))
	if _, err := scheduler.AddFunc(stopSyncSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncRunTimeout)
		defer cancel()
		if err := reconciler.Run(ctx); err != nil {
			logrus.WithError(err).Error("Monthly stop sync failed")
		}
	}); err != nil {
		log.Fatal(err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	e := echo.New()

	//Enables rate limiter middleware for the following routes
	e.Use(middleware.RateLimiterWithConfig(rateLimiterConfig))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "PUT", "OPTIONS"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.Use(TraceIDMiddleware())
	e.Use(RequestLoggerMiddleware())

	e.GET("/logs", GetLogsHandler)

	providers.SetupProvider(e.Group(""), upstream, arrivalCache, catalog, reconciler, tracker, localTimeZone)

	var httpAddr string
	flag.StringVar(&httpAddr, "http", "0.0.0.0:8090", "HTTP server address (IP:Port)")

	// Parse command line flags
	flag.Parse()

	// Split the address into IP and port
	httpParts := strings.Split(httpAddr, ":")
	if len(httpParts) != 2 {
		log.Fatal("Invalid --http address format. Use IP:PORT")
	}

	var port = httpParts[1]

	ip := httpParts[0] // Extract the IP address

	portEnv, found := os.LookupEnv("port")
	if found {
		port = portEnv
	}

	// Start server using the extracted IP and port
	if err := e.Start(fmt.Sprintf("%s:%s", ip, port)); err != nil {
		log.Fatal(err)
	}
}
