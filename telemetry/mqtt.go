//go:build !tinygo

// Package telemetry publishes periodic status reports over MQTT.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/ystepanoff/ppmlink/config"
	"github.com/ystepanoff/ppmlink/transport"
)

const publishTimeout = 5 * time.Second

// client is the part of mqtt.Client the Publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Report is the JSON document published on every interval.
type Report struct {
	Timestamp     int64    `json:"timestamp"`
	ClientID      string   `json:"client_id"`
	Channels      []uint16 `json:"channels"`
	Status        string   `json:"status,omitempty"`
	Decoded       int      `json:"decoded"`
	Smoothed      []uint16 `json:"smoothed,omitempty"`
	Stale         bool     `json:"stale"`
	EncoderFrames uint32   `json:"encoder_frames"`
	DecoderFrames uint32   `json:"decoder_frames"`
	Resyncs       uint32   `json:"resyncs"`
}

// Sources feed Snapshot. Any of them may be nil.
type Sources struct {
	Store   *transport.Store
	Encoder *transport.Encoder
	Decoder *transport.Decoder
	Bridge  *transport.Bridge
}

// Snapshot assembles a Report from live state. nowUS and staleUS are on the
// decoder's edge timestamp clock.
func Snapshot(src Sources, nowUS, staleUS uint32) Report {
	r := Report{Timestamp: time.Now().UnixMilli()}
	if src.Store != nil {
		snap := src.Store.Snapshot()
		r.Channels = snap.Values()
	}
	if src.Encoder != nil {
		r.EncoderFrames = src.Encoder.Stats().Frames
	}
	if src.Decoder != nil {
		s := src.Decoder.Stats()
		r.DecoderFrames = s.Frames
		r.Resyncs = s.Resyncs
	}
	if b := src.Bridge; b != nil {
		r.Status = b.Status()
		r.Decoded = b.LastCount()
		r.Smoothed = b.Smoothed()
		r.Stale = b.Stale(nowUS, staleUS)
	}
	return r
}

// Publisher sends Reports to a single topic.
type Publisher struct {
	client   client
	cfg      config.MQTTConfig
	clientID string
}

// NewPublisher connects to the configured broker.
func NewPublisher(cfg config.MQTTConfig) (*Publisher, error) {
	clientID := "ppmlink_" + uuid.NewString()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Printf("[Telemetry] connected to %s\r\n", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("[Telemetry] connection lost: %v\r\n", err)
	})

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return newPublisher(c, cfg, clientID), nil
}

func newPublisher(c client, cfg config.MQTTConfig, clientID string) *Publisher {
	return &Publisher{client: c, cfg: cfg, clientID: clientID}
}

// Publish sends r, stamped with the publisher's client ID.
func (p *Publisher) Publish(r Report) error {
	r.ClientID = p.clientID
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, p.cfg.Retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timed out", p.cfg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.cfg.Topic, err)
	}
	return nil
}

// Run publishes next() every interval until ctx is done.
func (p *Publisher) Run(ctx context.Context, interval time.Duration, next func() Report) {
	if interval <= 0 {
		log.Printf("[Telemetry] interval %v is not positive, not publishing\r\n", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Publish(next()); err != nil {
				log.Printf("[Telemetry] %v\r\n", err)
			}
		}
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if c, ok := p.client.(mqtt.Client); ok {
		c.Disconnect(250)
	}
}
