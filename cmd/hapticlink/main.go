package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/chaz8081/hapticlink/internal/config"
)

const usage = `usage: hapticlink [-config path] <command> [args]

commands:
  daemon                          run the driver and serve the control socket
  status                          print the connection state
  search                          scan for the device and connect to it
  connect [address]               connect to address, or to the saved device
  disconnect                      close the link or stop a scan
  forget                          clear the saved device address
  motor <location|id> <intensity> drive one motor (intensity 0-100, 0 is off)
  watch                           stream driver events
  console                         interactive prompt
  events <file>                   print a recorded event log
  init-config                     write the default config file`

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/hapticlink/config.yaml)")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	if args[0] == "init-config" {
		if err := runInitConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if args[0] == "events" {
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: hapticlink events <file>")
			os.Exit(1)
		}
		if err := runEvents(args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(*configPath, args[0] == "daemon")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	switch args[0] {
	case "daemon":
		err = runDaemon(cfg)
	case "status":
		err = runSimple(cfg, "state")
	case "search", "disconnect", "forget":
		err = runSimple(cfg, args[0])
	case "connect":
		address := ""
		if len(args) > 1 {
			address = args[1]
		}
		err = runConnect(cfg, address)
	case "motor":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: hapticlink motor <location|id> <intensity>")
			os.Exit(1)
		}
		err = runMotor(cfg, args[1], args[2])
	case "watch":
		err = runWatch(cfg)
	case "console":
		err = runConsole(cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string, verbose bool) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		if verbose {
			log.Printf("Config loaded from %s", defaultPath)
		}
		return cfg, nil
	}

	// No config file, use defaults
	if verbose {
		log.Println("No config file found, using defaults")
	}
	return config.Default(), nil
}

func runInitConfig() error {
	path, err := config.WriteDefault()
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
		return nil
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}
