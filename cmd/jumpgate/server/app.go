package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec
	"time"

	"github.com/imkarrer/jumpgate/internal/api"
	"github.com/imkarrer/jumpgate/internal/config"
	"github.com/imkarrer/jumpgate/internal/storageclass"
	"github.com/imkarrer/jumpgate/internal/volume"
	"github.com/imkarrer/jumpgate/pkg/logging"
	"github.com/imkarrer/jumpgate/pkg/softlayer"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

type Config struct {
	// Built binary version.
	Version   string
	GitCommit string
	GitRef    string

	// Logging configuration.
	LogLevel        string
	LogRateInterval time.Duration
	LogRateBurst    int

	// HTTPListenPort is the OpenStack-facing API server listen port.
	HTTPListenPort        int
	MetricsHTTPListenPort int
	PprofPort             int

	SoftLayer softlayer.Config
	Volume    config.Volume
}

func New(cfg Config) *App {
	return &App{cfg: cfg}
}

type App struct {
	cfg Config
}

func (a *App) Run(ctx context.Context) error {
	cfg := a.cfg

	log := logging.New(&logging.Config{
		AddSource: true,
		Level:     logging.MustParseLevel(cfg.LogLevel),
		RateLimiter: logging.RateLimiterConfig{
			Limit:  rate.Every(cfg.LogRateInterval),
			Burst:  cfg.LogRateBurst,
			Inform: true,
		},
	})

	log.Infof("running jumpgate server, endpoint=%s, version=%s, commit=%s, ref=%s",
		cfg.SoftLayer.Endpoint, cfg.Version, cfg.GitCommit, cfg.GitRef)

	slClient := softlayer.NewClient(fmt.Sprintf("jumpgate/%s", cfg.Version), cfg.SoftLayer, log)
	classes := storageclass.NewRegistry(cfg.Volume.Types, log)
	volumes := volume.NewService(volume.Config{
		NamePrefix:  cfg.Volume.NamePrefix,
		DefaultZone: cfg.Volume.DefaultZone,
		RetryCount:  cfg.Volume.RetryCount,
		WaitTime:    cfg.Volume.WaitTime,
	}, slClient, classes, log)

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		return a.runAPIServer(ctx, log, volumes, classes)
	})
	if cfg.MetricsHTTPListenPort != 0 {
		errg.Go(func() error {
			return a.runMetricsHTTPServer(ctx, log)
		})
	}
	if cfg.PprofPort != 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.PprofPort)
			log.Infof("starting pprof server on %s", addr)
			if err := http.ListenAndServe(addr, http.DefaultServeMux); err != nil { //nolint:gosec
				log.Errorf("pprof server: %v", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return waitWithTimeout(errg, 60*time.Second)
	}
}

func waitWithTimeout(errg *errgroup.Group, timeout time.Duration) error {
	errc := make(chan error, 1)
	go func() {
		errc <- errg.Wait()
	}()
	select {
	case <-time.After(timeout):
		return errors.New("timeout waiting for shutdown")
	case err := <-errc:
		return err
	}
}

func (a *App) runAPIServer(ctx context.Context, log *logging.Logger, volumes *volume.Service, classes *storageclass.Registry) error {
	e := echo.New()
	e.HideBanner = true
	e.Debug = false

	e.Use(middleware.Recover())
	e.GET("/healthz", func(c echo.Context) error {
		type res struct {
			Msg string `json:"msg"`
		}
		return c.JSON(http.StatusOK, res{Msg: "Ok"})
	})

	volumesHandler := api.NewVolumesHandler(volumes, classes, log)
	volumesHandler.RegisterHandlers(e)

	srv := http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.HTTPListenPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 1 * time.Minute,
	}
	go func() {
		<-ctx.Done()
		log.Info("shutting down http server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error(err.Error())
		}
	}()
	log.Infof("running http server, port=%d", a.cfg.HTTPListenPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) runMetricsHTTPServer(ctx context.Context, log *logging.Logger) error {
	e := echo.New()
	e.HideBanner = true
	e.Debug = false

	e.Use(middleware.Recover())
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/debug/pprof/*item", echo.WrapHandler(http.DefaultServeMux))
	srv := http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.MetricsHTTPListenPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 1 * time.Minute,
	}
	go func() {
		<-ctx.Done()
		log.Info("shutting down metrics http server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error(err.Error())
		}
	}()
	log.Infof("running metrics server, port=%d", a.cfg.MetricsHTTPListenPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
