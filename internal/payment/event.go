package payment

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Типы событий, которые шлёт провайдер. Обрабатывается только успешная оплата,
// остальные валидные события подтверждаются без побочных эффектов.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// Event — событие вебхука платёжного провайдера.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	Object IntentObject `json:"object"`
}

// IntentObject — платёжное намерение внутри события.
type IntentObject struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// ParseEvent разбирает полезную нагрузку вебхука.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook event: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("webhook event has no type")
	}
	return &event, nil
}
