package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher queues events in memory and ships them from Run.
// When the queue is full the event is dropped and counted.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	queue    chan Event

	dropped   atomic.Int64
	closeOnce sync.Once
}

func NewAMQPPublisher(url, exchange string, buffer int) (*AMQPPublisher, error) {
	log.Info().Str("module", "events.amqp").Str("exchange", exchange).Msg("connecting to broker")
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := newPublisher(ch, exchange, buffer)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, buffer int) *AMQPPublisher {
	if buffer <= 0 {
		buffer = 1
	}
	return &AMQPPublisher{
		ch:       ch,
		exchange: exchange,
		queue:    make(chan Event, buffer),
	}
}

func (p *AMQPPublisher) Publish(_ context.Context, ev Event) {
	select {
	case p.queue <- ev:
	default:
		n := p.dropped.Add(1)
		log.Warn().Str("module", "events.amqp").Str("event", ev.Type).Int64("dropped", n).Msg("event queue full")
	}
}

// Dropped reports how many events never reached the queue.
func (p *AMQPPublisher) Dropped() int64 { return p.dropped.Load() }

// Run drains the queue until ctx is done, then flushes what is left.
func (p *AMQPPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-p.queue:
					p.send(ev)
				default:
					return
				}
			}
		case ev := <-p.queue:
			p.send(ev)
		}
	}
}

func (p *AMQPPublisher) send(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "events.amqp").Str("event", ev.Type).Msg("marshal event")
		return
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.At,
		Body:         body,
	}
	if err := p.ch.Publish(p.exchange, ev.Type, false, false, msg); err != nil {
		log.Error().Err(err).Str("module", "events.amqp").Str("event", ev.Type).Str("session", string(ev.Session)).Msg("publish failed")
	}
}

func (p *AMQPPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if p.ch != nil {
			if cerr := p.ch.Close(); cerr != nil {
				err = fmt.Errorf("close amqp channel: %w", cerr)
			}
		}
		if p.conn != nil {
			if cerr := p.conn.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close amqp connection: %w", cerr)
			}
		}
		log.Info().Str("module", "events.amqp").Msg("publisher closed")
	})
	return err
}
