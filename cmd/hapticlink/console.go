package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/chaz8081/hapticlink/internal/ble/protocol"
	"github.com/chaz8081/hapticlink/internal/config"
	"github.com/chaz8081/hapticlink/internal/eventlog"
	"github.com/chaz8081/hapticlink/internal/ipc"
	"github.com/chaz8081/hapticlink/internal/motor"
)

// console is an interactive prompt against a running daemon.
type console struct {
	client *ipc.Client
	rl     *readline.Instance
}

func runConsole(cfg *config.Config) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "hapticlink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	c := &console{client: ipc.NewClient(cfg.Socket()), rl: rl}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.watch(ctx)

	c.run(ctx, cancel)
	return nil
}

// watch prints daemon events above the prompt.
func (c *console) watch(ctx context.Context) {
	err := c.client.Subscribe(ctx, nil, func(rec eventlog.Record) {
		fmt.Fprintln(c.rl.Stdout(), rec.String())
	})
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(c.rl.Stderr(), "event stream closed: %v\n", err)
	}
}

func (c *console) run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()
		case "status", "s":
			c.call(ipc.Request{Command: ipc.CmdState})
		case "search":
			c.call(ipc.Request{Command: ipc.CmdSearch})
		case "connect", "c":
			req := ipc.Request{Command: ipc.CmdConnect}
			if len(args) > 0 {
				req.Address = args[0]
			}
			c.call(req)
		case "disconnect", "d":
			c.call(ipc.Request{Command: ipc.CmdDisconnect})
		case "forget":
			c.call(ipc.Request{Command: ipc.CmdForget})
		case "motor", "m":
			c.cmdMotor(args)
		case "off":
			c.cmdOff(args)
		case "locations", "l":
			c.cmdLocations()
		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *console) printHelp() {
	printConsoleHelp(c.rl.Stdout())
}

func printConsoleHelp(w io.Writer) {
	fmt.Fprint(w, `
Commands:
  status, s                        Show connection state
  search                           Scan for the device
  connect, c [address]             Connect to address or the saved device
  disconnect, d                    Close the link
  forget                           Clear the saved device
  motor, m <location|id> <0-100>   Drive one motor
  off <location|id>                Stop one motor
  locations, l                     List motor locations for the connected device
  quit, q                          Exit

`)
}

func (c *console) call(req ipc.Request) (ipc.Response, bool) {
	resp, err := c.client.Call(req)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return resp, false
	}
	printJSON(c.rl.Stdout(), resp)
	return resp, true
}

func (c *console) cmdMotor(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: motor <location|id> <intensity>")
		fmt.Fprintln(c.rl.Stdout(), "  Example: motor front-left 100")
		return
	}
	req, err := motorRequest(args[0], args[1])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	c.call(req)
}

func (c *console) cmdOff(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: off <location|id>")
		return
	}
	off := int(motor.Off)
	c.call(ipc.Request{Command: ipc.CmdSetMotor, Motor: args[0], Intensity: &off})
}

func (c *console) cmdLocations() {
	resp, err := c.client.Call(ipc.Request{Command: ipc.CmdState})
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	t, err := protocol.ParseDeviceType(resp.DeviceType)
	if err != nil {
		fmt.Fprintln(c.rl.Stdout(), "Not connected")
		return
	}
	printLocations(c.rl.Stdout(), t)
}

func printLocations(w io.Writer, t protocol.DeviceType) {
	fmt.Fprintf(w, "%s motors:\n", t)
	for _, loc := range motor.Locations(t) {
		id, _ := motor.ID(t, loc)
		fmt.Fprintf(w, "  %-12s id %#02x\n", loc, id)
	}
}
