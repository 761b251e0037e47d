package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Event types published for plans.
const (
	TypeGroupDone     = "plan.group.done"
	TypePlanCompleted = "plan.completed"
)

// Event is the message body sent to subscribers.
type Event struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	PlanID string `json:"planId"`
	TS     string `json:"ts"`
	Data   any    `json:"data"`
}

// NewEvent stamps an event with an id and the current time.
func NewEvent(typ, planID string, data any) Event {
	return Event{ID: "evt_" + uuid.NewString(), Type: typ, PlanID: planID, TS: time.Now().UTC().Format(time.RFC3339), Data: data}
}

// Publisher delivers one event.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops events. It is used when AMQP_URL is unset.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// AMQP publishes events to a topic exchange with the event type as the
// routing key. Bodies are signed with SignHMAC when Secret is set.
type AMQP struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	mu       sync.Mutex
	Exchange string
	Secret   string
}

func DialAMQP(url, exchange, secret string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQP{conn: conn, ch: ch, Exchange: exchange, Secret: secret}, nil
}

func (a *AMQP) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pub := amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		Body:          body,
		MessageId:     e.ID,
		CorrelationId: e.PlanID,
		Timestamp:     time.Now().UTC(),
		Type:          e.Type,
		Headers:       amqp.Table{"x-source": "routeplan"},
	}
	if a.Secret != "" {
		pub.Headers["x-signature"] = SignHMAC(a.Secret, body)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ch.PublishWithContext(ctx, a.Exchange, e.Type, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (a *AMQP) Close() error {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
