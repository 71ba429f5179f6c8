package statsd

import "time"

// MultiSink fans every metric out to each of its sinks.
type MultiSink []Sink

var _ Sink = MultiSink(nil)

// Multi combines sinks, dropping nil entries. It returns nil when no sink remains
// so callers can keep treating a nil Sink as "metrics disabled".
func Multi(sinks ...Sink) Sink {
	out := make(MultiSink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if c, ok := s.(*Client); ok && c == nil {
			continue
		}
		out = append(out, s)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

// Count increments a counter on every sink.
func (m MultiSink) Count(name string, value int64, tags map[string]string) {
	for _, s := range m {
		s.Count(name, value, tags)
	}
}

// Gauge records a gauge on every sink.
func (m MultiSink) Gauge(name string, value float64, tags map[string]string) {
	for _, s := range m {
		s.Gauge(name, value, tags)
	}
}

// Timing records a timing on every sink.
func (m MultiSink) Timing(name string, value time.Duration, tags map[string]string) {
	for _, s := range m {
		s.Timing(name, value, tags)
	}
}
