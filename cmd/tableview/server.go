package main

import (
	"context"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/goliatone/go-router"

	exportmetrics "github.com/goliatone/go-tableview/adapters/metrics"
	exportrouter "github.com/goliatone/go-tableview/adapters/router"
)

func buildServer(app *App) router.Server[*fiber.App] {
	srv := router.NewFiberAdapter(fiberAppInitializer(app))
	exportrouter.NewHandler(app.ViewerConfig()).RegisterRoutes(srv.Router())
	return srv
}

func fiberAppInitializer(app *App) func(*fiber.App) *fiber.App {
	return func(*fiber.App) *fiber.App {
		fiberApp := fiber.New(fiber.Config{
			AppName:               "JSON API Table Viewer",
			DisableStartupMessage: true,
		})

		fiberApp.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
			Output: app.Log.Out,
		}))
		fiberApp.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Content-Type",
		}))

		if app.Registry != nil {
			fiberApp.Get(app.Config.Metrics.Path, adaptor.HTTPHandler(exportmetrics.Handler(app.Registry)))
		}
		return fiberApp
	}
}

// serve runs the viewer until ctx is done, then shuts the server down.
func serve(ctx context.Context, app *App) error {
	srv := buildServer(app)
	app.Sessions.Start()

	stopSweep, err := startSessionSweep(ctx, app)
	if err != nil {
		return err
	}
	defer stopSweep()

	addr := net.JoinHostPort(app.Config.Server.Host, app.Config.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		app.Log.Infof("serving table viewer on http://%s%s", addr, app.ViewerConfig().BasePath)
		errCh <- srv.Serve(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.Log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
