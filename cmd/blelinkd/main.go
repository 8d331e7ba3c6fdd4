// Command blelinkd runs a line-framed NUS peripheral: it advertises under
// the configured name, echoes structured {"op":"echo"} messages, answers
// raw PING with PONG and pushes a periodic status document while a central
// is connected.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PeterHeick/BleLink/internal/config"
	"github.com/PeterHeick/BleLink/internal/link"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/blelink/config.yaml)")
	name := flag.String("name", "", "override the advertised device name")
	writeConfig := flag.Bool("write-config", false, "write a default config file and exit")
	flag.Parse()

	if *writeConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("write config: %v", err)
		}
		log.Printf("wrote %s", path)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *name != "" {
		cfg.DeviceName = *name
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}
	setupLogging(cfg.LogLevel)

	stack := link.NewNUSStack()
	l := link.New(stack, cfg.DeviceName, link.Options{
		FragmentSize:   cfg.Link.FragmentSize,
		FragmentDelay:  time.Duration(cfg.Link.FragmentDelayMs) * time.Millisecond,
		DebounceWindow: time.Duration(cfg.Link.DebounceMs) * time.Millisecond,
	})

	start := time.Now()

	l.OnReceiveJSON(func(doc link.Document) {
		slog.Info("[App] received document", "doc", doc)
		op, _ := doc["op"].(string)
		if op != "echo" {
			return
		}
		msg, _ := doc["msg"].(string)
		reply := link.Document{"from": cfg.DeviceName, "echo": msg}
		if err := l.SendJSON(reply); err != nil {
			slog.Error("[App] echo reply failed", "error", err)
		}
	})
	l.OnReceiveRaw(func(line string) {
		slog.Info("[App] received raw line", "line", line)
		if line == "PING" {
			if err := l.SendRaw("PONG"); err != nil {
				slog.Error("[App] pong failed", "error", err)
			}
		}
	})

	if err := l.Setup(); err != nil {
		log.Fatalf("link setup: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	pollTick := time.NewTicker(cfg.PollInterval())
	defer pollTick.Stop()
	statusTick := time.NewTicker(cfg.StatusInterval())
	defer statusTick.Stop()

	for {
		select {
		case <-sigCh:
			slog.Info("[App] shutting down")
			return
		case <-pollTick.C:
			if err := l.Poll(); err != nil {
				log.Fatalf("link poll: %v", err)
			}
		case <-statusTick.C:
			if !l.Connected() {
				continue
			}
			status := link.Document{
				"from":      cfg.DeviceName,
				"event":     "status",
				"uptime_ms": time.Since(start).Milliseconds(),
			}
			if err := l.SendJSON(status); err != nil {
				slog.Warn("[App] status send failed", "error", err)
			}
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	defPath := config.DefaultConfigPath()
	if _, err := os.Stat(defPath); err == nil {
		return config.Load(defPath)
	}
	return config.Default(), nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
