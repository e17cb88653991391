//go:build !tinygo

// Command ppmsend edits a channel vector from stdin and streams it to a
// PPM encoder over a serial port, sending only when the vector changes.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.bug.st/serial"

	proto "github.com/ystepanoff/ppmlink/protocol"
)

// Pending changes are flushed at 50 Hz.
const flushInterval = 20 * time.Millisecond

func main() {
	portName := flag.String("port", "", "serial port (auto-detected when empty)")
	baud := flag.Int("baud", 115200, "baud rate")
	channels := flag.Int("channels", proto.DefaultChannels, "number of channels")
	unguarded := flag.Bool("unguarded", false, "hold channels 4-6 without a preceding arm")
	var overrides []string
	flag.Func("preset", "hold preset ch=value, repeatable (overrides the defaults)", func(v string) error {
		overrides = append(overrides, v)
		return nil
	})
	flag.Parse()

	if *channels < 1 || *channels > proto.MaxChannels {
		log.Fatalf("[ppmsend] %v", proto.ErrChannelCount)
	}
	presets := DefaultPresets(*channels)
	for _, o := range overrides {
		if err := presets.Set(o); err != nil {
			log.Fatalf("[ppmsend] -preset %q: %v", o, err)
		}
	}
	if *unguarded {
		presets.Guarded = 0
	}

	if *portName == "" {
		ports, err := serial.GetPortsList()
		if err != nil {
			log.Fatalf("[ppmsend] list ports: %v", err)
		}
		if *portName = pickPort(ports); *portName == "" {
			log.Fatalf("[ppmsend] no serial adapter found among %v; pass -port", ports)
		}
	}

	port, err := serial.Open(*portName, &serial.Mode{
		BaudRate: *baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		log.Fatalf("[ppmsend] open %s: %v", *portName, err)
	}
	defer port.Close()
	log.Printf("[ppmsend] connected to %s at %d baud\r\n", *portName, *baud)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender := NewSender(port, *channels)
	sender.SetPresets(presets)
	log.Printf("[ppmsend] presets %s\r\n", presets.String())

	// Echo acknowledgments from the encoder.
	go func() {
		sc := bufio.NewScanner(port)
		for sc.Scan() {
			log.Printf("[ppmsend] <- %s\r\n", sc.Text())
		}
	}()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				// Stdin closed: send what is pending and stop.
				if _, err := sender.Flush(); err != nil {
					log.Printf("[ppmsend] write: %v\r\n", err)
				}
				return
			}
			if err := sender.Apply(line); err != nil {
				if errors.Is(err, proto.ErrNoValues) {
					err = errBadInput
				}
				log.Printf("[ppmsend] %q: %v\r\n", line, err)
			}
		case <-ticker.C:
			sent, err := sender.Flush()
			if err != nil {
				log.Printf("[ppmsend] write: %v\r\n", err)
				continue
			}
			if sent {
				log.Printf("[ppmsend] -> %v\r\n", sender.Channels())
			}
		}
	}
}
