package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/chaz8081/hapticlink/internal/config"
	"github.com/chaz8081/hapticlink/internal/eventlog"
	"github.com/chaz8081/hapticlink/internal/ipc"
)

func printJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func runSimple(cfg *config.Config, command string) error {
	resp, err := ipc.NewClient(cfg.Socket()).Call(ipc.Request{Command: command})
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, resp)
}

func runConnect(cfg *config.Config, address string) error {
	resp, err := ipc.NewClient(cfg.Socket()).Call(ipc.Request{Command: ipc.CmdConnect, Address: address})
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, resp)
}

func motorRequest(name, intensity string) (ipc.Request, error) {
	n, err := strconv.Atoi(intensity)
	if err != nil {
		return ipc.Request{}, fmt.Errorf("invalid intensity %q", intensity)
	}
	return ipc.Request{Command: ipc.CmdSetMotor, Motor: name, Intensity: &n}, nil
}

func runMotor(cfg *config.Config, name, intensity string) error {
	req, err := motorRequest(name, intensity)
	if err != nil {
		return err
	}
	resp, err := ipc.NewClient(cfg.Socket()).Call(req)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, resp)
}

func runWatch(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return ipc.NewClient(cfg.Socket()).Subscribe(ctx,
		func(status ipc.Response) {
			fmt.Printf("state: %s\n", status.State)
		},
		func(rec eventlog.Record) {
			fmt.Println(rec.String())
		})
}

func runEvents(path string) error {
	records, err := eventlog.ReadAll(path)
	for _, rec := range records {
		fmt.Println(rec.String())
	}
	return err
}
