package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventTransactionCreated = "transaction.created"

// TransactionEvent announces a new ledger entry. It carries enough for a
// consumer to locate the affected month and category; consumers reload the
// rest from the store.
type TransactionEvent struct {
	Type           string          `json:"type"`
	TransactionID  uuid.UUID       `json:"transaction_id"`
	Name           string          `json:"name"`
	Kind           core.Kind       `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	Month          string          `json:"month"`
	CategoryID     *uuid.UUID      `json:"category_id,omitempty"`
	SubscriptionID *uuid.UUID      `json:"subscription_id,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

func NewTransactionEvent(t core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Type:           EventTransactionCreated,
		TransactionID:  t.ID,
		Name:           t.Name,
		Kind:           t.Kind,
		Amount:         t.Amount,
		Date:           t.Date,
		Month:          core.MonthOf(t.Date).String(),
		CategoryID:     t.CategoryID,
		SubscriptionID: t.SubscriptionID,
		Timestamp:      time.Now(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes an event and rejects unknown types.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type != EventTransactionCreated {
		return nil, fmt.Errorf("unexpected event type %q", msg.Type)
	}
	return &msg, nil
}
