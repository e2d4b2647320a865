package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/hapticlink/internal/ble"
	"github.com/chaz8081/hapticlink/internal/config"
	"github.com/chaz8081/hapticlink/internal/driver"
	"github.com/chaz8081/hapticlink/internal/eventlog"
	"github.com/chaz8081/hapticlink/internal/ipc"
	"github.com/chaz8081/hapticlink/internal/store"
)

func runDaemon(cfg *config.Config) error {
	printBanner(cfg)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	addresses := store.NewAddressStore(store.NewFileStore(cfg.StorePath))

	opts := cfg.DriverOptions(logger)
	opts.Radio = ble.DefaultRadio()
	drv, err := driver.New(ble.NewTinyGoAdapter(), addresses, opts)
	if err != nil {
		return err
	}

	srv := ipc.NewServer(drv, addresses, logger)
	listeners := []driver.Listener{srv.Listen}

	if cfg.EventLog != "" {
		rec, err := eventlog.NewRecorder(cfg.EventLog)
		if err != nil {
			return fmt.Errorf("opening event log: %w", err)
		}
		defer rec.Close()
		listeners = append(listeners, rec.Listen)
		log.Printf("Recording events to %s", cfg.EventLog)
	}

	drv.RegisterListener(func(ev driver.Event) {
		for _, l := range listeners {
			l(ev)
		}
	})

	sock := cfg.Socket()
	ln, err := ipc.Listen(sock)
	if err != nil {
		return err
	}
	defer os.Remove(sock)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := drv.Start(); err != nil {
		ln.Close()
		return err
	}
	log.Println("Ready! Ctrl+C to quit.")

	err = srv.Serve(ctx, ln)
	log.Println("Shutting down...")
	drv.Close()
	log.Println("Goodbye!")
	return err
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== hapticlink ===")
	fmt.Printf("  Device:   %s (protocol %s)\n", cfg.Device.Name, cfg.Device.Protocol)
	fmt.Printf("  Scan:     %s timeout\n", cfg.Device.ScanTimeout)
	fmt.Printf("  State:    %s\n", cfg.StorePath)
	fmt.Printf("  Socket:   %s\n", cfg.Socket())
	if cfg.EventLog != "" {
		fmt.Printf("  Events:   %s\n", cfg.EventLog)
	}
	fmt.Printf("  Log:      %s\n", cfg.LogLevel)
	fmt.Println("==================")
}
