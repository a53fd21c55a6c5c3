package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"scanbridge/engine"
	"scanbridge/eventpipe"
	"scanbridge/hostchannel"
	"scanbridge/indicator"
	"scanbridge/keyinput"
	"scanbridge/metrics"
	"scanbridge/mqtt"
	"scanbridge/scanner"
	"scanbridge/shell"
)

var myBuild string

// App holds the application state and dependencies.
type App struct {
	cfg       *Config
	mqtt      *mqtt.Client
	channel   *hostchannel.Channel
	scanner   *scanner.Manager
	shell     *shell.Shell
	keys      keyinput.Source
	pipe      *eventpipe.EventPipe
	indicator indicator.Indicator
	metrics   *metrics.Metrics
	ctx       context.Context
	cancel    context.CancelFunc

	idleMu    sync.Mutex
	idleTimer *time.Timer
}

func main() {
	fmt.Printf("scanbridge build %s\n", myBuild)

	cfgfile := flag.String("cfg", "scanbridge.cfg", "Config file")
	listPorts := flag.Bool("list-ports", false, "List serial ports and exit")
	flag.Parse()

	if *listPorts {
		ports, err := engine.ListPorts()
		if err != nil {
			log.Fatalf("List ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := loadConfig(*cfgfile)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	// Create application context
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		metrics: metrics.New(),
	}

	// Initialize indicator (LEDs, neopixels, display)
	app.indicator, err = indicator.New(cfg.Indicator)
	if err != nil {
		log.Fatalf("Init indicator: %v", err)
	}
	app.indicator.ConnectionLost() // Start with connection lost state

	// Host channel
	registry := hostchannel.NewRegistry()
	app.channel = hostchannel.New(cfg.Channel, registry)
	if cfg.Metrics {
		app.channel.Handle("/metrics", app.metrics.Handler())
	}

	// Initialize MQTT
	app.mqtt, err = mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{
		OnConnect:    app.onMQTTConnect,
		OnDisconnect: app.onMQTTDisconnect,
		OnMessage:    app.onMQTTMessage,
	})
	if err != nil {
		log.Fatalf("Init MQTT: %v", err)
	}

	// Scan engine and adapter
	eng, err := engine.New(cfg.Engine)
	if err != nil {
		log.Fatalf("Init engine: %v", err)
	}
	app.scanner, err = scanner.New(eng, scanner.Notifiers{app.channel, app.mqtt}, cfg.Scanner, scanner.Handlers{
		OnStart:  app.onScanStart,
		OnResult: app.onScanResult,
	})
	if err != nil {
		log.Fatalf("Init scanner: %v", err)
	}
	app.shell = shell.New(app.scanner, cfg.Shell, app.onOtherKey)

	if err := registerMethods(registry, app.scanner, app.channel.Clients); err != nil {
		log.Fatalf("Register methods: %v", err)
	}

	// Key sources
	app.keys, err = keyinput.New(cfg.Keys)
	if err != nil {
		log.Fatalf("Init key input: %v", err)
	}
	app.pipe, err = eventpipe.New(cfg.EventPipe, app.onPipeCommand)
	if err != nil {
		log.Fatalf("Init event pipe: %v", err)
	}

	if err := app.channel.Start(); err != nil {
		log.Fatalf("Start host channel: %v", err)
	}

	// Start background goroutines
	go func() {
		if err := app.shell.OnEngineReady(ctx); err != nil {
			log.Printf("Engine setup: %v", err)
		}
	}()
	go func() {
		if err := app.mqtt.Connect(); err != nil {
			log.Printf("MQTT connect: %v", err)
		}
	}()
	if app.keys != nil {
		go app.keyListener()
	}
	if app.pipe != nil {
		go app.pipe.Start()
	}
	go app.pingSender()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	cancel()

	// Cleanup
	if app.keys != nil {
		app.keys.Close()
	}
	if app.pipe != nil {
		app.pipe.Close()
	}
	app.channel.Stop()
	app.mqtt.Disconnect()
	if err := app.scanner.Close(); err != nil {
		log.Printf("Close scanner: %v", err)
	}
	app.indicator.Shutdown()
	app.indicator.Release()

	fmt.Println("Shutdown complete")
}

func (app *App) onMQTTConnect() {
	// Subscribe to node-specific scan command
	if err := app.mqtt.Subscribe(app.mqtt.ControlTopic("scan")); err != nil {
		log.Printf("Subscribe error: %v", err)
	}
	app.indicator.Idle()
}

func (app *App) onMQTTDisconnect() {
	app.indicator.ConnectionLost()
}

func (app *App) onMQTTMessage(topic string, payload []byte) {
	if topic == app.mqtt.ControlTopic("scan") {
		app.handleScanRequest(payload)
	}
}

func (app *App) handleScanRequest(payload []byte) {
	var req ScanRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Printf("Decode scan request: %v", err)
		return
	}
	if err := verifyScanRequest(app.cfg.RemoteSecret, app.cfg.ClientID, req, time.Now()); err != nil {
		log.Printf("Rejected scan request from %q: %v", req.Requester, err)
		return
	}

	fmt.Printf("Remote scan request from %s\n", req.Requester)
	app.shell.OnKeyDown(app.shell.ScanKey())
}

func (app *App) keyListener() {
	for {
		ev, err := app.keys.ReadKey(app.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, keyinput.ErrClosed) {
				return
			}
			log.Printf("Read key: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if !ev.Down {
			continue
		}
		app.shell.OnKeyDown(ev.Code)
	}
}

func (app *App) onOtherKey(code int) bool {
	log.Printf("Key %d ignored", code)
	return false
}

func (app *App) onPipeCommand(cmd eventpipe.Command) {
	switch cmd.Type {
	case eventpipe.CommandKey:
		app.shell.OnKeyDown(cmd.Code)
	case eventpipe.CommandScan:
		app.shell.OnKeyDown(app.shell.ScanKey())
	case eventpipe.CommandStop:
		if err := app.scanner.StopScan(); err != nil {
			log.Printf("Stop scan: %v", err)
		}
	case eventpipe.CommandTrigger:
		if err := app.scanner.SetTriggerEnabled(cmd.Enabled); err != nil {
			log.Printf("Set trigger: %v", err)
		}
	}
}

func (app *App) onScanStart(s *scanner.Session) {
	app.metrics.ScanStarted(s)
	app.stopIdleTimer()
	app.indicator.Scanning()
}

func (app *App) onScanResult(res scanner.ScanResult) {
	app.metrics.Observe(res)

	switch res.Outcome {
	case scanner.OutcomeDecoded:
		fmt.Printf("Scan %s: %s\n", res.SessionID, res.Text)
		app.indicator.Decoded(res.Text)
	case scanner.OutcomeSuperseded:
		// The superseding scan owns the indicator.
		return
	case scanner.OutcomeCancelled:
		app.indicator.Idle()
		return
	default:
		app.indicator.Failed(res.Outcome.String())
	}
	app.idleAfter(time.Duration(app.cfg.HoldSecs) * time.Second)
}

// idleAfter returns the indicator to idle once d has passed without a new scan.
func (app *App) idleAfter(d time.Duration) {
	app.idleMu.Lock()
	defer app.idleMu.Unlock()

	if app.idleTimer != nil {
		app.idleTimer.Stop()
	}
	app.idleTimer = time.AfterFunc(d, app.indicator.Idle)
}

func (app *App) stopIdleTimer() {
	app.idleMu.Lock()
	defer app.idleMu.Unlock()

	if app.idleTimer != nil {
		app.idleTimer.Stop()
		app.idleTimer = nil
	}
}

func (app *App) pingSender() {
	ticker := time.NewTicker(120 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			status := "ok"
			if !app.scanner.Ready() {
				status = "engine_not_ready"
			}
			app.mqtt.Publish(app.mqtt.StatusTopic("ping"), fmt.Sprintf(`{"status":"%s","hosts":%d}`, status, app.channel.Clients()))
		}
	}
}
