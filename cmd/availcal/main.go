package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"availcal/internal/calendar"
	"availcal/internal/config"
	"availcal/internal/ics"
	appLog "availcal/internal/log"
	"availcal/internal/model"
	"availcal/internal/scheduler"
	"availcal/internal/view"
	"availcal/internal/web"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "availcal",
		Usage:   "merge ICS feeds into one availability calendar",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "/etc/availcal/config.yaml",
				Usage:   "path to config file",
				Sources: cli.EnvVars("AVAILCAL_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "HTTP listen address (overrides config if set)",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "run one aggregation cycle, print events as JSON and exit",
			},
		},
		Action: run,
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		appLog.Error("availcal failed", err)
		_ = appLog.Close()
		os.Exit(1)
	}
	_ = appLog.Close()
}

func run(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	conf, err := config.Load(afero.NewOsFs(), configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if l := cmd.String("listen"); l != "" {
		conf.Listen = l
	}

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if conf.LogFile != "" {
		appLog.SetFile(conf.LogFile)
	}
	appLog.Info("availcal starting", "version", version)

	sources, err := config.ResolveSources(config.EnvFromOS(os.Environ()), conf.EnvPrefix, conf.DefaultColor)
	if err != nil {
		if !errors.Is(err, config.ErrNoSources) {
			return err
		}
		appLog.Warn("no calendar sources in environment", "prefix", conf.EnvPrefix)
	}

	loc := conf.Location()
	appLog.Info("effective config",
		"config_path", configPath,
		"listen", conf.Listen,
		"timezone", loc.String(),
		"locale", conf.Locale,
		"refresh", conf.RefreshCron,
		"fetch_timeout", conf.FetchTimeout,
		"horizon_days", conf.HorizonDays,
		"backfill_days", conf.BackfillDays,
		"sources", len(sources),
	)

	loader := calendar.NewFeedLoader(ics.NewFetcher(conf.FetchTimeout), loc, conf.BackfillDays, conf.HorizonDays)
	ctrl := calendar.NewController(loader, sources)

	if cmd.Bool("once") {
		return runOnce(ctx, ctrl)
	}
	return serve(ctx, conf, ctrl)
}

func runOnce(ctx context.Context, ctrl *calendar.Controller) error {
	ctrl.Start(ctx)

	out := struct {
		Sources []model.CalendarSource `json:"sources"`
		Events  []model.CalendarEvent  `json:"events"`
	}{ctrl.Sources(), ctrl.Events()}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func serve(ctx context.Context, conf *config.Config, ctrl *calendar.Controller) error {
	loc := conf.Location()

	viewport := view.NewViewport()
	nav := view.NewNavigator(view.Options{
		Location:   loc,
		Breakpoint: conf.Breakpoint,
		View:       conf.DefaultView,
	})
	nav.Observe(viewport)
	defer nav.Close()

	// First snapshot is published before the listener comes up.
	ctrl.Start(ctx)

	sched, err := scheduler.New(conf.RefreshCron, loc, ctrl)
	if err != nil {
		return err
	}
	if sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
	} else {
		appLog.Info("periodic refresh disabled")
	}

	srv := web.NewServer(web.Deps{
		Config:     conf,
		Controller: ctrl,
		Navigator:  nav,
		Viewport:   viewport,
	})
	httpServer := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown failed", err)
	}
	ctrl.Wait()
	appLog.Info("availcal exiting")
	return nil
}
