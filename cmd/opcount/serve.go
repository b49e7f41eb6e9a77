package main

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/opcount/internal/api"
	"github.com/samcharles93/opcount/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		jobs        int
		storeSize   int
		maxElems    int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the profiling REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.IntFlag{
				Name:        "jobs",
				Aliases:     []string{"j"},
				Usage:       "maximum number of profiles running at once",
				Value:       runtime.GOMAXPROCS(0),
				Destination: &jobs,
			},
			&cli.IntFlag{
				Name:        "store-size",
				Usage:       "number of profiles kept in memory",
				Value:       256,
				Destination: &storeSize,
			},
			&cli.Int64Flag{
				Name:        "max-materialized",
				Usage:       "largest input plus parameter element count a materialized request may allocate",
				Value:       api.DefaultMaxMaterialized,
				Destination: &maxElems,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, LoadConfig(), &addr, &jobs, &storeSize)

			store := api.NewProfileStore(storeSize)
			service := api.NewService(jobs, log)
			service.MaxMaterialized = maxElems
			server := api.NewServer(store, service)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "jobs", jobs)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
