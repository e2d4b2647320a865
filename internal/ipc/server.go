package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/chaz8081/hapticlink/internal/driver"
	"github.com/chaz8081/hapticlink/internal/eventlog"
	"github.com/chaz8081/hapticlink/internal/motor"
)

// Driver is the subset of *driver.Driver the daemon exposes.
type Driver interface {
	Search()
	ConnectKnown(address string)
	Disconnect()
	Forget()
	SetMotor(motorID, intensity uint8)
	State() driver.State
	Profile() (driver.Profile, bool)
}

// AddressLoader resolves the saved address for a bare connect request.
type AddressLoader interface {
	LoadAddress() (string, error)
}

// subscriberBuffer bounds events queued for a slow subscriber.
const subscriberBuffer = 64

type subscriber struct {
	events chan eventlog.Record
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Server answers requests for one driver. At most one subscriber receives
// events; a new subscription replaces the previous one.
type Server struct {
	drv   Driver
	store AddressLoader
	log   *slog.Logger

	mu  sync.Mutex
	sub *subscriber
	wg  sync.WaitGroup
}

// NewServer creates a server for drv. store may be nil.
func NewServer(drv Driver, store AddressLoader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{drv: drv, store: store, log: logger.With("tag", "ipc")}
}

// Listen opens the unix socket at path, replacing a stale one.
func Listen(path string) (net.Listener, error) {
	os.Remove(path) // remove stale socket
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0700); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return ln, nil
}

// Serve accepts connections until ctx is done, then closes ln and waits for
// open connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
		s.mu.Lock()
		if s.sub != nil {
			s.sub.stop()
		}
		s.mu.Unlock()
	}()

	s.log.Info("listening", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Listen forwards ev to the current subscriber. It has the driver.Listener
// signature. Events are dropped when the subscriber falls behind.
func (s *Server) Listen(ev driver.Event) {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub == nil {
		return
	}
	select {
	case sub.events <- eventlog.FromEvent(ev, time.Now()):
	default:
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	enc := json.NewEncoder(conn)
	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		enc.Encode(Response{Error: "invalid request: " + err.Error()})
		return
	}
	s.log.Debug("request", "command", req.Command)

	if req.Command == CmdSubscribe {
		s.subscribe(ctx, conn, enc)
		return
	}
	if err := enc.Encode(s.handleRequest(req)); err != nil {
		s.log.Debug("write response", "error", err)
	}
}

func (s *Server) handleRequest(req Request) Response {
	switch req.Command {
	case CmdState:
		return s.status()
	case CmdSearch:
		s.drv.Search()
		return s.status()
	case CmdConnect:
		addr := req.Address
		if addr == "" && s.store != nil {
			saved, err := s.store.LoadAddress()
			if err != nil {
				return Response{Error: err.Error()}
			}
			addr = saved
		}
		if addr == "" {
			return Response{Error: "device address is required (no saved device)"}
		}
		s.drv.ConnectKnown(addr)
		resp := s.status()
		resp.Address = addr
		return resp
	case CmdDisconnect:
		s.drv.Disconnect()
		return s.status()
	case CmdForget:
		s.drv.Forget()
		return s.status()
	case CmdSetMotor:
		return s.setMotor(req)
	default:
		return Response{Error: fmt.Sprintf("unknown command: %q", req.Command)}
	}
}

func (s *Server) status() Response {
	resp := Response{State: s.drv.State().String()}
	if p, ok := s.drv.Profile(); ok {
		resp.DeviceType = p.Type.String()
		resp.Address = p.Address
	}
	return resp
}

func (s *Server) setMotor(req Request) Response {
	if req.Intensity == nil {
		return Response{Error: "intensity is required"}
	}
	intensity := *req.Intensity
	if intensity < 0 || intensity > 255 {
		return Response{Error: fmt.Sprintf("intensity %d out of range", intensity)}
	}
	id, err := s.motorID(req.Motor)
	if err != nil {
		return Response{Error: err.Error()}
	}

	s.drv.SetMotor(id, uint8(intensity))
	resp := s.status()
	mid := int(id)
	resp.MotorID = &mid
	return resp
}

// motorID accepts a raw motor id or a location name translated for the
// connected device type.
func (s *Server) motorID(name string) (uint8, error) {
	if name == "" {
		return 0, fmt.Errorf("motor is required")
	}
	if n, err := strconv.ParseUint(name, 0, 8); err == nil {
		return uint8(n), nil
	}
	loc, err := motor.ParseLocation(name)
	if err != nil {
		return 0, err
	}
	p, ok := s.drv.Profile()
	if !ok {
		return 0, fmt.Errorf("not connected: cannot map %s to a motor id", loc)
	}
	return motor.ID(p.Type, loc)
}

func (s *Server) subscribe(ctx context.Context, conn net.Conn, enc *json.Encoder) {
	sub := &subscriber{
		events: make(chan eventlog.Record, subscriberBuffer),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	prev := s.sub
	s.sub = sub
	s.mu.Unlock()
	if prev != nil {
		prev.stop()
	}
	defer func() {
		s.mu.Lock()
		if s.sub == sub {
			s.sub = nil
		}
		s.mu.Unlock()
	}()

	if err := enc.Encode(s.status()); err != nil {
		return
	}
	s.log.Info("subscriber attached")

	// The client sends nothing more; a read returning means it hung up.
	go func() {
		var buf [1]byte
		conn.Read(buf[:])
		sub.stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			s.log.Info("subscriber detached")
			return
		case rec := <-sub.events:
			if err := enc.Encode(rec); err != nil {
				return
			}
		}
	}
}
