// Command cadence-clicker runs a two-channel auto-clicker that injects
// pointer and key events through a virtual uinput device. Channels are
// toggled by global hotkeys, an optional GPIO foot pedal, MQTT or HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/cadence-clicker/internal/engine"
	"github.com/sweeney/cadence-clicker/internal/gpio"
	"github.com/sweeney/cadence-clicker/internal/inject"
	"github.com/sweeney/cadence-clicker/internal/keycode"
	"github.com/sweeney/cadence-clicker/internal/mqtt"
	"github.com/sweeney/cadence-clicker/internal/settings"
	"github.com/sweeney/cadence-clicker/internal/status"
	"github.com/sweeney/cadence-clicker/internal/timing"
	"github.com/sweeney/cadence-clicker/internal/trigger"
	"github.com/sweeney/cadence-clicker/internal/web"
)

const (
	// enginePriority is the nice value requested for the engine thread.
	enginePriority = -10
	// shutdownGrace bounds the wait for the engine to release held keys.
	shutdownGrace = 2 * time.Second
	refreshPeriod = time.Second
)

type options struct {
	configPath    string
	broker        string
	topic         string
	httpAddr      string
	heartbeat     time.Duration
	deviceName    string
	pedalChip     string
	pedalLine     int
	pedalCode     int
	pedalDebounce time.Duration
	listDevices   bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", settings.DefaultPath(), "Settings file")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address (empty to disable)")
	flag.StringVar(&o.topic, "topic", mqtt.DefaultPrefix, "MQTT topic prefix")
	flag.StringVar(&o.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.deviceName, "device-name", inject.DefaultDeviceName, "Virtual device name, ignored by the trigger listener")
	flag.StringVar(&o.pedalChip, "pedal-chip", gpio.DefaultChip, "GPIO chip for a foot pedal")
	flag.IntVar(&o.pedalLine, "pedal-line", -1, "GPIO line for a foot pedal (negative to disable)")
	flag.IntVar(&o.pedalCode, "pedal-code", -1, "Key code the pedal reports (negative for the primary trigger)")
	flag.DurationVar(&o.pedalDebounce, "pedal-debounce", gpio.DefaultDebounce, "Pedal debounce period")
	flag.BoolVar(&o.listDevices, "list-devices", false, "Print input devices and exit")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	if o.listDevices {
		return listDevices(os.Stdout, trigger.EvdevEnumerator{Exclude: o.deviceName})
	}

	s, err := settings.Load(o.configPath)
	if err != nil {
		log.Printf("settings: %v, using defaults", err)
	}

	sink, err := inject.NewRealSink(o.deviceName)
	if errors.Is(err, inject.ErrPermissionDenied) {
		return fmt.Errorf("root or uinput access required: %w", err)
	}
	if err != nil {
		return fmt.Errorf("init virtual device: %w", err)
	}

	pedal, hasPedal := pedalConfig(o, s)
	pedalDesc := ""
	if hasPedal {
		pedalDesc = fmt.Sprintf("%s:%d", pedal.Chip, pedal.Line)
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		HeartbeatMs:  o.heartbeat.Milliseconds(),
		Broker:       o.broker,
		Topic:        o.topic,
		HTTPAddr:     o.httpAddr,
		DeviceName:   o.deviceName,
		SettingsPath: o.configPath,
		Pedal:        pedalDesc,
	})

	commands := make(chan engine.Command, 64)
	configs := make(chan engine.ConfigDelta, 16)
	configs <- s.Delta()

	path := o.configPath
	ctl := newController(commands, configs, s, func(s settings.Settings) error {
		return settings.Save(path, s)
	}, time.Now)

	enum := trigger.MultiEnumerator{trigger.EvdevEnumerator{Exclude: o.deviceName}}
	if hasPedal {
		enum = append(enum, gpio.Enumerator{Config: pedal})
	}
	listener := trigger.NewListener(enum, ctl, trigger.NewResolver(s.Bindings(), s.TriggerStyle, s.Mode))
	ctl.listener = listener
	tracker.UpdateListener(listener.Snapshot())

	// Initialize MQTT
	var publisher mqtt.Publisher = discardPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if o.broker != "" {
		client := mqtt.NewRealClient(o.broker, clientID(), mqtt.NewTopics(o.topic), ctl)
		publisher, mqttStatus = client, client
	}
	defer publisher.Close()
	ctl.setPublisher(publisher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Engine
	eng := engine.New(sink,
		timing.NewClock(timing.NewSleeper(rand.New(rand.NewSource(time.Now().UnixNano())))),
		rand.New(rand.NewSource(time.Now().UnixNano()+1)))
	eng.Status = tracker
	engineDone := make(chan error, 1)
	engineExited := make(chan struct{})
	go func() {
		defer close(engineExited)
		if err := timing.RaisePriority(enginePriority); err != nil {
			log.Printf("engine: priority unchanged: %v", err)
		}
		engineDone <- eng.Run(ctx, commands, configs)
	}()

	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("listener: %v", err)
		}
	}()

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else if o.broker != "" {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker, ctl)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	log.Printf("started: device=%q mode=%s style=%s broker=%q heartbeat=%v", o.deviceName, s.Mode, s.TriggerStyle, o.broker, o.heartbeat)

	ticker := time.NewTicker(refreshPeriod)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	loopErr := runLoop(publisher, mqttStatus, tracker, listener, o.heartbeat, time.Now, ticker.C, sigCh, engineDone)

	cancel()
	select {
	case <-engineExited:
	case <-time.After(shutdownGrace):
		log.Printf("engine: did not stop within %v", shutdownGrace)
	}
	return loopErr
}

// snapshotter reports listener state for the status tracker.
type snapshotter interface {
	Snapshot() trigger.Snapshot
}

func runLoop(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, listener snapshotter, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, engineDone <-chan error) error {
	lastBeat := now()

	refresh := func() {
		if tracker == nil {
			return
		}
		if listener != nil {
			tracker.UpdateListener(listener.Snapshot())
		}
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	shutdown := func(reason string) {
		event := mqtt.SystemEvent{
			Timestamp: now(),
			Event:     "SHUTDOWN",
			Reason:    reason,
			Retained:  true,
		}
		if tracker != nil {
			refresh()
			snap := tracker.Snapshot()
			event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", reason)
		}
		if err := publisher.PublishSystem(event); err != nil {
			log.Printf("failed to publish shutdown event: %v", err)
		} else {
			log.Printf("published shutdown event")
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			shutdown(signalName)
			return nil

		case err := <-engineDone:
			if err == nil {
				log.Printf("engine stopped, shutting down")
				shutdown("ENGINE_STOPPED")
				return nil
			}
			log.Printf("engine failed: %v", err)
			shutdown("ENGINE_FAULT")
			return fmt.Errorf("engine: %w", err)

		case <-tick:
			t := now()
			refresh()

			if heartbeat <= 0 || t.Sub(lastBeat) < heartbeat {
				continue
			}
			lastBeat = t
			hbEvent := mqtt.SystemEvent{
				Timestamp: t,
				Event:     "HEARTBEAT",
			}
			if tracker != nil {
				snap := tracker.Snapshot()
				log.Printf("heartbeat: uptime=%v presses=%d", snap.Uptime().Truncate(time.Second), snap.Engine.Presses)
				hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

// pedalConfig returns the pedal configuration, or false when no pedal line
// is set. A negative code means the pedal acts as the primary trigger.
func pedalConfig(o options, s settings.Settings) (gpio.Config, bool) {
	if o.pedalLine < 0 {
		return gpio.Config{}, false
	}
	code := keycode.Code(o.pedalCode)
	if o.pedalCode < 0 {
		code = s.TriggerPrimary
	}
	return gpio.Config{
		Chip:     o.pedalChip,
		Line:     o.pedalLine,
		Code:     code,
		Debounce: o.pedalDebounce,
	}, true
}

// deviceLister is implemented by trigger.EvdevEnumerator.
type deviceLister interface {
	List() ([]trigger.DeviceInfo, error)
}

func listDevices(w io.Writer, l deviceLister) error {
	devs, err := l.List()
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devs {
		mark := ""
		if d.Excluded {
			mark = " (excluded)"
		}
		fmt.Fprintf(w, "%s\t%s%s\n", d.Path, d.Name, mark)
	}
	return nil
}

func clientID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return mqtt.DefaultPrefix
	}
	return mqtt.DefaultPrefix + "-" + host
}

// discardPublisher stands in for MQTT when no broker is configured.
type discardPublisher struct{}

func (discardPublisher) Publish(mqtt.ChannelEvent) error      { return nil }
func (discardPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (discardPublisher) Close() error                         { return nil }
