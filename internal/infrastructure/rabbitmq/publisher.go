package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "city.events"
	appID           = "booking-service"

	confirmWait = 600 * time.Millisecond
)

var ErrNoRoute = errors.New("rabbitmq: message returned (no route)")

// Message is one outbox row on its way to the broker.
type Message struct {
	MessageID  string
	TraceID    string
	RoutingKey string
	Body       []byte
}

// Publisher publishes to a topic exchange with mandatory + publisher confirms.
// Publish calls are serialized so each confirm matches its publish.
type Publisher struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	p := &Publisher{
		url:      url,
		exchange: exchange,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.conn = conn
	p.ch = ch
	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}

// Publish sends m and waits for the broker confirm. MessageID must be stable
// across retries so consumers can dedupe.
func (p *Publisher) Publish(ctx context.Context, m Message) error {
	if m.RoutingKey == "" {
		return errors.New("missing routingKey")
	}
	if strings.TrimSpace(m.MessageID) == "" {
		return errors.New("missing messageID")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		_ = p.reconnectLocked()
		if p.ch == nil {
			return errors.New("publisher channel not ready")
		}
	}

	// drain stale notifications from a previous timed-out publish
	for drained := false; !drained; {
		select {
		case <-p.returnCh:
		case <-p.confirmCh:
		default:
			drained = true
		}
	}

	err := p.ch.PublishWithContext(ctx, p.exchange, m.RoutingKey,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			Body:          m.Body,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now().UTC(),
			MessageId:     m.MessageID,
			CorrelationId: m.TraceID,
			AppId:         appID,
		},
	)
	if err != nil {
		return err
	}

	// A Return, when it happens, arrives before the Confirm.
	timeout := time.NewTimer(confirmWait)
	defer timeout.Stop()
	var returned bool
	for {
		select {
		case <-p.returnCh:
			returned = true
		case conf := <-p.confirmCh:
			if returned {
				return fmt.Errorf("%w: %s", ErrNoRoute, m.RoutingKey)
			}
			if !conf.Ack {
				return fmt.Errorf("publish nack: delivery_tag=%d", conf.DeliveryTag)
			}
			return nil
		case <-timeout.C:
			return errors.New("confirm timeout")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Publisher) reconnectLocked() error {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return p.connect()
}
