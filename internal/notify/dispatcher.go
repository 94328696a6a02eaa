package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/argus-video/argus/internal/config"
	"github.com/argus-video/argus/internal/logger"
)

// Dispatcher fans events out to every registered sink concurrently.
// Delivery is best effort: a failing sink is logged and never blocks
// the others, and there are no retries.
type Dispatcher struct {
	log   *logger.Logger
	sinks []sinkEntry
	sem   chan struct{}
	wg    sync.WaitGroup
}

type sinkEntry struct {
	sink    Sink
	timeout time.Duration
}

// NewDispatcher builds an empty dispatcher. maxConcurrency bounds the
// number of in-flight deliveries across all sinks.
func NewDispatcher(maxConcurrency int, log *logger.Logger) *Dispatcher {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	return &Dispatcher{
		log: log,
		sem: make(chan struct{}, maxConcurrency),
	}
}

// Add registers a sink with its delivery timeout.
func (d *Dispatcher) Add(sink Sink, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d.sinks = append(d.sinks, sinkEntry{sink: sink, timeout: timeout})
}

// Sinks reports the number of registered sinks.
func (d *Dispatcher) Sinks() int { return len(d.sinks) }

// Dispatch sends the event to all sinks and returns immediately.
func (d *Dispatcher) Dispatch(ev Event) {
	for _, e := range d.sinks {
		e := e
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.sem <- struct{}{}
			defer func() { <-d.sem }()

			ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
			defer cancel()

			start := time.Now()
			if err := e.sink.Send(ctx, ev); err != nil {
				d.log.Warn("notification delivery failed",
					"sink", e.sink.Name(), "alert_id", ev.AlertID,
					"elapsed", time.Since(start), "error", err)
				return
			}
			d.log.Debug("notification delivered",
				"sink", e.sink.Name(), "alert_id", ev.AlertID,
				"elapsed", time.Since(start))
		}()
	}
}

// Close waits for in-flight deliveries and closes every sink.
func (d *Dispatcher) Close() {
	d.wg.Wait()
	for _, e := range d.sinks {
		if err := e.sink.Close(); err != nil {
			d.log.Warn("sink close failed", "sink", e.sink.Name(), "error", err)
		}
	}
}

// FromConfig builds a dispatcher with one sink per configured entry.
// An unreachable broker fails startup so misconfigurations surface
// immediately.
func FromConfig(cfg config.NotifyConfig, log *logger.Logger) (*Dispatcher, error) {
	d := NewDispatcher(cfg.MaxConcurrency, log)
	for _, sc := range cfg.Sinks {
		timeout := sc.Timeout
		switch sc.Type {
		case config.SinkWebhook:
			d.Add(NewWebhookSink(sc.Name, sc.URL, timeout), timeout)
		case config.SinkMQTT:
			sink, err := NewMQTTSink(MQTTOptions{
				Name:     sc.Name,
				Broker:   sc.Broker,
				Topic:    sc.Topic,
				ClientID: sc.ClientID,
				Username: sc.Username,
				Password: sc.Password,
				Timeout:  timeout,
			})
			if err != nil {
				return nil, fmt.Errorf("sink %s: %w", sc.Name, err)
			}
			d.Add(sink, timeout)
		case config.SinkKafka:
			sink, err := NewKafkaSink(KafkaOptions{
				Name:    sc.Name,
				Brokers: sc.Brokers,
				Topic:   sc.Topic,
				Timeout: timeout,
			})
			if err != nil {
				return nil, fmt.Errorf("sink %s: %w", sc.Name, err)
			}
			d.Add(sink, timeout)
		default:
			return nil, fmt.Errorf("sink %s: unknown type %q", sc.Name, sc.Type)
		}
	}
	return d, nil
}
