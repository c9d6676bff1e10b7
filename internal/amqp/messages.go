package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Message types carried on the shared queue.
const (
	MessageTypeExpenseBackup = "expense.backup"
	MessageTypeBudgetAlert   = "budget.alert"
)

// ErrMalformedPayload marks payloads that can never be decoded, so the
// consumer drops them instead of requeueing.
var ErrMalformedPayload = errors.New("malformed payload")

// Envelope wraps every message with a type tag so one queue can carry
// backup requests and budget alerts.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ExpenseBackupMessage asks the worker to back up one expense. Only the id
// travels; the worker reads the current row from the database.
type ExpenseBackupMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// BudgetAlertMessage carries a budget threshold crossing to the notifier.
type BudgetAlertMessage struct {
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	Month       string    `json:"month"`
	SpentCents  int64     `json:"spent_cents"`
	BudgetCents int64     `json:"budget_cents"`
	Level       string    `json:"level"`
	Timestamp   time.Time `json:"timestamp"`
}

func newEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

func NewExpenseBackupEnvelope(id int64) ([]byte, error) {
	return newEnvelope(MessageTypeExpenseBackup, ExpenseBackupMessage{
		ID:        id,
		Timestamp: time.Now(),
	})
}

func NewBudgetAlertEnvelope(alert BudgetAlertMessage) ([]byte, error) {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	return newEnvelope(MessageTypeBudgetAlert, alert)
}

func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type")
	}
	return &env, nil
}

// ExpenseBackup decodes the payload as a backup request.
func (e *Envelope) ExpenseBackup() (*ExpenseBackupMessage, error) {
	var msg ExpenseBackupMessage
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return nil, fmt.Errorf("decode expense backup payload: %w", ErrMalformedPayload)
	}
	return &msg, nil
}

// BudgetAlert decodes the payload as a budget alert.
func (e *Envelope) BudgetAlert() (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return nil, fmt.Errorf("decode budget alert payload: %w", ErrMalformedPayload)
	}
	return &msg, nil
}
