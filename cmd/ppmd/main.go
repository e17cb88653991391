//go:build linux && !tinygo

// Command ppmd runs the PPM encoder, decoder and bridge on Linux GPIO lines.
// Channel updates arrive as command lines on a serial port or stdin.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.bug.st/serial"

	"github.com/ystepanoff/ppmlink/config"
	"github.com/ystepanoff/ppmlink/driver/cdev"
	"github.com/ystepanoff/ppmlink/metrics"
	"github.com/ystepanoff/ppmlink/telemetry"
	"github.com/ystepanoff/ppmlink/transport"
)

const pumpInterval = 5 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults when empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("[ppmd] %v", err)
		}
	} else if err := cfg.Validate(); err != nil {
		log.Fatalf("[ppmd] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("[ppmd] %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	guard := cdev.NewGuard()
	store, err := transport.NewStore(cfg.PPM.Channels, guard)
	if err != nil {
		return err
	}

	direct := cfg.PPM.Channels
	if cfg.Bridge.Enabled {
		direct = cfg.Bridge.DirectChannels
	}
	var handler *transport.CommandHandler
	if direct > 0 {
		port, err := store.Port(0, direct)
		if err != nil {
			return err
		}
		handler = transport.NewCommandHandler(port)
	}

	var (
		enc    *transport.Encoder
		dec    *transport.Decoder
		bridge *transport.Bridge
	)

	if cfg.Output.Enabled {
		out := cdev.NewPulseDriver(cfg.Output.Chip, cfg.Output.Offset, cfg.PPM.TicksPerUS)
		defer out.Close()
		enc = transport.NewEncoderWithDriver(store, out, transport.EncoderConfig{
			Timing:     cfg.Timing(),
			TicksPerUS: cfg.PPM.TicksPerUS,
		})
		if err := enc.Start(); err != nil {
			return err
		}
		log.Printf("[ppmd] encoding %d channels on %s:%d\r\n", store.Len(), cfg.Output.Chip, cfg.Output.Offset)
	}

	if cfg.Input.Enabled {
		capture := transport.NewCapture(guard)
		in := cdev.NewEdgeDriver(cfg.Input.Chip, cfg.Input.Offset)
		defer in.Close()

		dcfg := transport.DefaultDecoderConfig()
		dcfg.Edge = cfg.Edge()
		dec = transport.NewDecoderWithDriver(capture, in, dcfg)
		if err := dec.Start(); err != nil {
			return err
		}
		log.Printf("[ppmd] decoding %s edges on %s:%d\r\n", dcfg.Edge, cfg.Input.Chip, cfg.Input.Offset)

		if cfg.Bridge.Enabled {
			if bridge, err = transport.NewBridge(store, capture, cfg.Routes()); err != nil {
				return err
			}
		}
	}

	if handler != nil {
		rw, closeFn, err := openCommand(cfg.Command)
		if err != nil {
			return err
		}
		defer closeFn()
		go func() {
			if err := handler.Serve(rw, rw); err != nil {
				log.Printf("[Command] %v\r\n", err)
			}
		}()
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics.NewCollector(metrics.Sources{Encoder: enc, Decoder: dec, Store: store, Bridge: bridge}))
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[ppmd] metrics: %v\r\n", err)
			}
		}()
		defer srv.Close()
		log.Printf("[ppmd] metrics on %s/metrics\r\n", cfg.Metrics.Listen)
	}

	staleUS := uint32(cfg.StaleAfter() / time.Microsecond)
	if cfg.MQTT.Enabled {
		pub, err := telemetry.NewPublisher(cfg.MQTT)
		if err != nil {
			return err
		}
		defer pub.Close()
		src := telemetry.Sources{Store: store, Encoder: enc, Decoder: dec, Bridge: bridge}
		go pub.Run(ctx, cfg.MQTTInterval(), func() telemetry.Report {
			return telemetry.Snapshot(src, cdev.NowUS(), staleUS)
		})
	}

	return loop(ctx, cfg, bridge, staleUS)
}

// loop pumps the bridge and reports status until ctx is done.
func loop(ctx context.Context, cfg *config.Config, bridge *transport.Bridge, staleUS uint32) error {
	pump := time.NewTicker(pumpInterval)
	defer pump.Stop()
	status := time.NewTicker(cfg.StatusInterval())
	defer status.Stop()

	stale := true
	for {
		select {
		case <-ctx.Done():
			log.Printf("[ppmd] shutting down\r\n")
			return nil

		case <-pump.C:
			if bridge == nil {
				continue
			}
			bridge.Pump()
			if now := bridge.Stale(cdev.NowUS(), staleUS); now != stale {
				stale = now
				if stale {
					log.Printf("[Bridge] input lost, holding last values\r\n")
				} else {
					log.Printf("[Bridge] input acquired\r\n")
				}
			}

		case <-status.C:
			if bridge != nil {
				log.Printf("[Bridge] %s\r\n", bridge.Status())
			}
		}
	}
}

// openCommand returns the command channel: a serial port when one is
// configured, stdin/stdout otherwise.
func openCommand(cfg config.CommandConfig) (io.ReadWriter, func() error, error) {
	if cfg.Port == "" {
		return struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout}, func() error { return nil }, nil
	}

	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[Command] listening on %s at %d baud\r\n", cfg.Port, cfg.Baud)
	return port, port.Close, nil
}
