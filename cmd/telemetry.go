package cmd

import (
	"time"

	"github.com/armon/go-metrics"
)

// setupTelemetry wires the process-wide armon/go-metrics global sink, the
// same library cosmos-sdk's telemetry package wraps, used directly here
// since the Cosmos chain types it otherwise pulls in are not needed.
func setupTelemetry(serviceName string) *metrics.InmemSink {
	sink := metrics.NewInmemSink(10*time.Second, time.Minute)
	conf := metrics.DefaultConfig(serviceName)
	conf.EnableHostname = false
	if _, err := metrics.NewGlobal(conf, sink); err != nil {
		panic(err) // only fails on a malformed static config; a real error is a programmer error
	}
	return sink
}

// inmemSnapshotter adapts an InmemSink's rolling interval data into the flat
// counter view the status API's /metrics endpoint serves.
type inmemSnapshotter struct {
	sink *metrics.InmemSink
}

func (s inmemSnapshotter) Snapshot() map[string]float64 {
	out := map[string]float64{}
	data := s.sink.Data()
	if len(data) == 0 {
		return out
	}
	latest := data[len(data)-1]
	for name, v := range latest.Counters {
		out[name] = v.Sum
	}
	for name, v := range latest.Gauges {
		out[name] = float64(v.Value)
	}
	return out
}
