// Command button-sensor classifies button gestures from GPIO inputs and
// publishes them to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/engine"
	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/status"
	"github.com/sweeney/button-sensor/internal/web"
)

// statusInterval is how often the status tracker and heartbeat are refreshed.
const statusInterval = time.Second

func main() {
	configPath := flag.String("config", "", "YAML config file (built-in defaults and BUTTON_SENSOR_* env vars apply)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	heartbeat := flag.Duration("heartbeat", 0, "Heartbeat interval, 0 disables (overrides config)")
	httpAddr := flag.String("http", "", "HTTP status address, empty disables (overrides config)")
	wsBroker := flag.String("ws-broker", "", `MQTT websocket URL for live UI ("=broker" derives from the broker, "off" disables)`)
	printState := flag.Bool("print-state", false, "Print current button levels and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	// Only flags given on the command line override the config.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "broker":
			cfg.Broker = *broker
		case "heartbeat":
			cfg.Heartbeat = *heartbeat
		case "http":
			cfg.HTTP = *httpAddr
		case "ws-broker":
			cfg.WSBroker = *wsBroker
		}
	})

	ws := resolveWSBroker(cfg.WSBroker, cfg.Broker)
	if err := run(cfg, ws, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, wsBroker string, printState bool) error {
	eng := engine.New(cfg.EngineConfig())

	// In edge mode the kernel delivers edges to the engine queue; they wait
	// there until Run starts, after every button is registered.
	var post gpio.PostFunc
	if cfg.Mode == config.ModeEdge && !printState {
		post = eng.PostEdge
	}
	src, err := gpio.NewRealSource(cfg.Chip, cfg.Lines(), post)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer src.Close()

	buttons := cfg.ButtonConfigs()

	if printState {
		for _, b := range buttons {
			level, err := src.Level(b.ID)
			if err != nil {
				return fmt.Errorf("read gpio: %w", err)
			}
			fmt.Printf("%s (%d): %s\n", b.Name, b.ID, pressedString(b.Pressed(level)))
		}
		return nil
	}

	if err := register(eng, src, buttons, cfg); err != nil {
		return err
	}

	names := cfg.Names()
	publisher := mqtt.NewRealPublisher(cfg.Broker, func(id logic.ButtonID) string { return names[id] })
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		Chip:        cfg.Chip,
		Mode:        cfg.Mode,
		PollMs:      cfg.Poll.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTP,
		WSBroker:    wsBroker,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.Update(eng.Buttons(), eng.Pairs(), logic.EventCounts{}, eng.Stats())

	// Startup goes out retained with a full status snapshot. It is buffered
	// if the broker is not reachable yet.
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := eng.Run(ctx); err != nil {
			log.Printf("engine stopped: %v", err)
		}
	}()
	if cfg.Mode == config.ModePoll {
		ids := make([]logic.ButtonID, len(buttons))
		for i, b := range buttons {
			ids[i] = b.ID
		}
		go gpio.Poll(ctx, src, ids, cfg.Poll, time.Now, eng.PostEdge)
	}

	log.Printf("started: mode=%s chip=%s buttons=%d broker=%s heartbeat=%v",
		cfg.Mode, cfg.Chip, len(buttons), cfg.Broker, cfg.Heartbeat)

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(eng, publisher, publisher, tracker, cfg.Heartbeat, time.Now, ticker.C, sigCh)
}

// register adds every button, reading its current level so a button held at
// startup is not reported as a fresh press, then every pair.
func register(eng *engine.Engine, src gpio.Source, buttons []logic.ButtonConfig, cfg *config.Config) error {
	for _, b := range buttons {
		level, err := src.Level(b.ID)
		if err != nil {
			return fmt.Errorf("read initial level of %s: %w", b.Name, err)
		}
		if _, err := eng.RegisterButton(b, level); err != nil {
			return fmt.Errorf("register %s: %w", b.Name, err)
		}
	}

	pairs, err := cfg.PairConfigs()
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if _, err := eng.RegisterPair(p); err != nil {
			return fmt.Errorf("register pair: %w", err)
		}
	}
	return nil
}

// runLoop drains the engine's event FIFO into MQTT and the status tracker,
// publishes heartbeats on tick, and publishes SHUTDOWN on a signal.
func runLoop(eng *engine.Engine, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	hb := logic.NewHeartbeat(now())
	var counts logic.EventCounts
	events := eng.Events()

	publish := func(ev logic.Event) {
		counts.Add(ev.Kind)
		if ev.Partner != logic.NoButton {
			log.Printf("event: %s (%d+%d)", ev.Kind, ev.Button, ev.Partner)
		} else {
			log.Printf("event: %s (%d)", ev.Kind, ev.Button)
		}
		if err := publisher.Publish(ev); err != nil {
			// Don't crash on publish failure
			log.Printf("publish error: %v", err)
		}
	}

	refresh := func() {
		tracker.Update(eng.Buttons(), eng.Pairs(), counts, eng.Stats())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)

			// Events already classified still go out before SHUTDOWN.
		drain:
			for {
				select {
				case ev := <-events:
					publish(ev)
				default:
					break drain
				}
			}

			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			refresh()
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case ev := <-events:
			publish(ev)
			refresh()

		case <-tick:
			t := now()
			if hbData := hb.Check(t, heartbeat, counts); hbData != nil {
				st := eng.Stats()
				log.Printf("heartbeat: uptime=%v events=%d dropped_events=%d dropped_edges=%d",
					hbData.Uptime, hbData.Counts.Total(), st.DroppedEvents, st.DroppedEdges)

				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				refresh()
				snap := tracker.Snapshot()
				hbEvent := mqtt.SystemEvent{
					Timestamp:  hbData.Timestamp,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
			refresh()
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func pressedString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}

// resolveWSBroker converts the ws-broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" and
// empty disable.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" || ws == "" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
