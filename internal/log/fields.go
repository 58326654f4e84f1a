package log

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldError          = "error"
	FieldOperation      = "operation"
	FieldDuration       = "duration_ms"
	FieldMonth          = "month"
	FieldAmount         = "amount"
	FieldKind           = "kind"
	FieldName           = "name"
	FieldTransactionID  = "transaction_id"
	FieldCategoryID     = "category_id"
	FieldSubscriptionID = "subscription_id"
	FieldFrequency      = "frequency"
	FieldNextDue        = "next_due"
	FieldUsagePercent   = "usage_percent"
	FieldCount          = "count"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentLedger    = "ledger"
	ComponentRecurring = "recurring"
	ComponentBudget    = "budget"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentBackend   = "backend"
	ComponentCLI       = "cli"
	ComponentHTTP      = "http"
)

// Operations defines standard operation names
const (
	OpCreate      = "create"
	OpList        = "list"
	OpDelete      = "delete"
	OpRecategory  = "recategorize"
	OpToggle      = "toggle"
	OpMaterialize = "materialize"
	OpSaveBudget  = "save_budget"
	OpPublish     = "publish"
	OpConsume     = "consume"
	OpStartup     = "startup"
	OpShutdown    = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithDuration(d time.Duration) LogFields {
	f[FieldDuration] = d.Milliseconds()
	return f
}

// WithTransaction adds the identifying fields of a ledger entry.
func (f LogFields) WithTransaction(id uuid.UUID, name string, amount decimal.Decimal, kind string) LogFields {
	f[FieldTransactionID] = id.String()
	f[FieldName] = name
	f[FieldAmount] = amount.String()
	f[FieldKind] = kind
	return f
}

func (f LogFields) WithSubscription(id uuid.UUID, frequency string, nextDue time.Time) LogFields {
	f[FieldSubscriptionID] = id.String()
	f[FieldFrequency] = frequency
	f[FieldNextDue] = nextDue.Format(time.DateOnly)
	return f
}

func (f LogFields) WithCategory(id uuid.UUID) LogFields {
	f[FieldCategoryID] = id.String()
	return f
}

func (f LogFields) WithMonth(month string) LogFields {
	f[FieldMonth] = month
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
