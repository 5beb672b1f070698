package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/otpmd/otpmd/internal/broadcast"
	"github.com/otpmd/otpmd/internal/clock"
	"github.com/otpmd/otpmd/internal/config"
	"github.com/otpmd/otpmd/internal/credentials"
	"github.com/otpmd/otpmd/internal/gateway"
	"github.com/otpmd/otpmd/internal/infra"
	"github.com/otpmd/otpmd/internal/logging"
	"github.com/otpmd/otpmd/internal/notification"
	"github.com/otpmd/otpmd/internal/otp"
	"github.com/otpmd/otpmd/internal/routes"
	"github.com/otpmd/otpmd/internal/server"
	"github.com/otpmd/otpmd/internal/session"
	"github.com/otpmd/otpmd/internal/whatsapp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppName)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	backends, err := infra.Open(runCtx, cfg.DatabaseURL, cfg.RedisURL, logger)
	if err != nil {
		logger.Error("open backends", logging.Err(err))
		os.Exit(1)
	}
	defer backends.Close()

	clk := clock.New()
	var store otp.Store
	if backends.Cache != nil {
		store = otp.NewRedisStore(backends.Cache, cfg.OTPTTL)
	} else {
		mem := otp.NewMemoryStore(cfg.OTPTTL, clk)
		go mem.Run(runCtx, cfg.OTPSweepInterval)
		store = mem
	}

	creds, err := credentials.NewFileStore(cfg.SessionDir)
	if err != nil {
		logger.Error("open session dir", logging.Err(err))
		os.Exit(1)
	}
	if creds.Exists() {
		logger.Info("session data found, resuming", "path", creds.Path())
	} else {
		logger.Info("no session data, pairing required", "path", creds.Path())
	}

	var devices *whatsapp.DeviceStore
	if backends.DB != nil {
		devices, err = whatsapp.OpenPostgres(runCtx, backends.DB, logger)
	} else {
		devices, err = whatsapp.OpenSQLite(runCtx, cfg.SessionDir, logger)
	}
	if err != nil {
		logger.Error("open device store", logging.Err(err))
		os.Exit(1)
	}
	defer devices.Close()

	manager := session.NewManager(whatsapp.NewDialer(devices, cfg.DeviceName, logger), logger)
	observers := broadcast.NewHub[gateway.Notice](32)

	tmpl := notification.DefaultOTPTemplate(cfg.SiteURL)
	if cfg.OTPSubtitle != "" {
		tmpl.Subtitle = cfg.OTPSubtitle
	}
	if cfg.OTPFooter != "" {
		tmpl.Footer = cfg.OTPFooter
	}
	var qrOut io.Writer
	if cfg.PrintQR {
		qrOut = os.Stdout
	}
	gw := gateway.New(store, manager, observers, clk, logger, gateway.Options{
		AdminRecipient: cfg.AdminRecipient,
		AdminMessage:   cfg.AdminMessage,
		ReconnectDelay: cfg.ReconnectDelay,
		Template:       tmpl,
		QRWriter:       qrOut,
	})

	go gw.Run(runCtx, manager.Subscribe(runCtx))
	go credentials.NewPersister(creds, logger).Run(runCtx, manager.Subscribe(runCtx))

	if err := manager.Start(runCtx); err != nil {
		logger.Error("start messaging session, retrying in background", logging.Err(err))
	}

	srv, err := server.New(routes.Deps{
		Cfg:     cfg,
		DB:      backends.DB,
		Cache:   backends.Cache,
		Logger:  logger,
		Gateway: gateway.NewHandler(gw, logger),
		Session: manager,
	})
	if err != nil {
		logger.Error("build server", logging.Err(err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Address())
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", logging.Err(err))
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	// Observers hold streaming responses open, so end them before draining the server.
	observers.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", logging.Err(err))
		exitCode = 1
	}
	stop()
	gw.Stop()
	manager.Close()

	if exitCode != 0 {
		backends.Close()
		devices.Close()
		os.Exit(exitCode)
	}
	logger.Info("server exited cleanly")
}
