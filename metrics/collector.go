//go:build !tinygo

// Package metrics exposes encoder, decoder and store state to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ystepanoff/ppmlink/transport"
)

const namespace = "ppmlink"

// Sources are the components the Collector reads on every scrape. Any of
// them may be nil.
type Sources struct {
	Encoder *transport.Encoder
	Decoder *transport.Decoder
	Store   *transport.Store
	Bridge  *transport.Bridge
}

// Collector is a prometheus.Collector over live transport state. Values are
// read at scrape time, so nothing needs updating from the hot path.
type Collector struct {
	src Sources

	encoderFrames  *prometheus.Desc
	encoderSyncGap *prometheus.Desc
	decoderFrames  *prometheus.Desc
	decoderResyncs *prometheus.Desc
	decoderDropped *prometheus.Desc
	storeWrites    *prometheus.Desc
	channel        *prometheus.Desc
	bridgeDecoded  *prometheus.Desc
	bridgeFrames   *prometheus.Desc
	bridgeSmoothed *prometheus.Desc
}

func NewCollector(src Sources) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		src:            src,
		encoderFrames:  desc("encoder_frames_total", "Frames emitted by the encoder."),
		encoderSyncGap: desc("encoder_sync_gap_microseconds", "Sync gap of the latest emitted frame."),
		decoderFrames:  desc("decoder_frames_total", "Frames published by the decoder."),
		decoderResyncs: desc("decoder_resyncs_total", "Partial frames discarded on an out-of-window interval."),
		decoderDropped: desc("decoder_overwrites_total", "Decoded frames replaced before they were consumed."),
		storeWrites:    desc("store_writes_total", "Writes accepted by the channel store."),
		channel:        desc("channel_microseconds", "Stored channel value.", "channel"),
		bridgeDecoded:  desc("bridge_decoded_channels", "Channel count of the latest consumed frame."),
		bridgeFrames:   desc("bridge_frames_total", "Frames consumed by the bridge."),
		bridgeSmoothed: desc("bridge_smoothed_microseconds", "Smoothed value of a routed channel.", "channel"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.encoderFrames
	ch <- c.encoderSyncGap
	ch <- c.decoderFrames
	ch <- c.decoderResyncs
	ch <- c.decoderDropped
	ch <- c.storeWrites
	ch <- c.channel
	ch <- c.bridgeDecoded
	ch <- c.bridgeFrames
	ch <- c.bridgeSmoothed
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if enc := c.src.Encoder; enc != nil {
		s := enc.Stats()
		ch <- prometheus.MustNewConstMetric(c.encoderFrames, prometheus.CounterValue, float64(s.Frames))
		ch <- prometheus.MustNewConstMetric(c.encoderSyncGap, prometheus.GaugeValue, float64(s.SyncGapUS))
	}

	if dec := c.src.Decoder; dec != nil {
		s := dec.Stats()
		ch <- prometheus.MustNewConstMetric(c.decoderFrames, prometheus.CounterValue, float64(s.Frames))
		ch <- prometheus.MustNewConstMetric(c.decoderResyncs, prometheus.CounterValue, float64(s.Resyncs))
		ch <- prometheus.MustNewConstMetric(c.decoderDropped, prometheus.CounterValue, float64(s.Overwrites))
	}

	if store := c.src.Store; store != nil {
		writes, _ := store.LastWrite()
		ch <- prometheus.MustNewConstMetric(c.storeWrites, prometheus.CounterValue, float64(writes))
		snap := store.Snapshot()
		for i, v := range snap.Values() {
			ch <- prometheus.MustNewConstMetric(c.channel, prometheus.GaugeValue, float64(v), channelLabel(i))
		}
	}

	if b := c.src.Bridge; b != nil {
		ch <- prometheus.MustNewConstMetric(c.bridgeDecoded, prometheus.GaugeValue, float64(b.LastCount()))
		ch <- prometheus.MustNewConstMetric(c.bridgeFrames, prometheus.CounterValue, float64(b.Frames()))
		smoothed := b.Smoothed()
		for i, r := range b.Routes() {
			ch <- prometheus.MustNewConstMetric(c.bridgeSmoothed, prometheus.GaugeValue, float64(smoothed[i]), channelLabel(r.Channel))
		}
	}
}

// channelLabel renders a 0-based index as the 1-based channel number
// pilots use.
func channelLabel(i int) string { return strconv.Itoa(i + 1) }
