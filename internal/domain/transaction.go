package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionState is the lifecycle state of a payment transaction
type TransactionState string

const (
	TransactionStateDraft      TransactionState = "draft"
	TransactionStatePending    TransactionState = "pending"
	TransactionStateAuthorized TransactionState = "authorized"
	TransactionStateDone       TransactionState = "done"
	TransactionStateCancel     TransactionState = "cancel"
	TransactionStateError      TransactionState = "error"
)

// IsValid returns true for the six known states
func (s TransactionState) IsValid() bool {
	switch s {
	case TransactionStateDraft, TransactionStatePending, TransactionStateAuthorized,
		TransactionStateDone, TransactionStateCancel, TransactionStateError:
		return true
	}
	return false
}

// Operation is the flow that created the transaction
type Operation string

const (
	OperationOnlineRedirect Operation = "online_redirect"
	OperationOnlineDirect   Operation = "online_direct"
	OperationOnlineToken    Operation = "online_token"
	OperationValidation     Operation = "validation"
	OperationOffline        Operation = "offline"
	OperationRefund         Operation = "refund"
)

// PartnerSnapshot is a copy of the partner identity taken when the transaction is created.
// Later edits of the partner never alter it.
type PartnerSnapshot struct {
	Name     string `json:"partner_name"`
	Email    string `json:"partner_email"`
	Address  string `json:"partner_address"`
	Zip      string `json:"partner_zip"`
	City     string `json:"partner_city"`
	Phone    string `json:"partner_phone"`
	Language string `json:"partner_lang"`
	Country  string `json:"partner_country"`
}

// CallbackDescriptor identifies the business-document hook to run once the outcome is known
type CallbackDescriptor struct {
	Model    string `json:"callback_model"`
	RecordID int64  `json:"callback_record_id"`
	Method   string `json:"callback_method"`
	Hash     string `json:"callback_hash"`
	IsDone   bool   `json:"callback_is_done"`
}

// IsComplete reports whether model, record and method are all set
func (c CallbackDescriptor) IsComplete() bool {
	return c.Model != "" && c.RecordID != 0 && c.Method != ""
}

// Transaction is a single payment attempt
type Transaction struct {
	CreatedAt           time.Time          `json:"created_at"`
	LastStateChange     time.Time          `json:"last_state_change"`
	Amount              decimal.Decimal    `json:"amount"`
	Fees                decimal.Decimal    `json:"fees"`
	TokenID             *int64             `json:"token_id"`
	SourceTransactionID *int64             `json:"source_transaction_id"`
	PaymentID           *int64             `json:"payment_id"`
	Callback            CallbackDescriptor `json:"callback"`
	Partner             PartnerSnapshot    `json:"partner"`
	InvoiceIDs          []int64            `json:"invoice_ids"`
	Reference           string             `json:"reference"`
	AcquirerReference   string             `json:"acquirer_reference"`
	Provider            string             `json:"provider"`
	CurrencyCode        string             `json:"currency"`
	StateMessage        string             `json:"state_message"`
	LandingRoute        string             `json:"landing_route"`
	Operation           Operation          `json:"operation"`
	State               TransactionState   `json:"state"`
	ID                  int64              `json:"id"`
	AcquirerID          int64              `json:"acquirer_id"`
	PartnerID           int64              `json:"partner_id"`
	IsPostProcessed     bool               `json:"is_post_processed"`
	Tokenize            bool               `json:"tokenize"`
}

// IsRefund returns true for refund transactions
func (t *Transaction) IsRefund() bool {
	return t.Operation == OperationRefund
}

// CanBeCaptured returns true if a capture request may be sent
func (t *Transaction) CanBeCaptured() bool {
	return t.State == TransactionStateAuthorized
}

// CanBeVoided returns true if a void request may be sent
func (t *Transaction) CanBeVoided() bool {
	return t.State == TransactionStateAuthorized
}

// CanBeRefunded returns true if the transaction holds confirmed money that can be returned
func (t *Transaction) CanBeRefunded() bool {
	return t.State == TransactionStateDone &&
		t.Operation != OperationValidation &&
		t.Operation != OperationRefund
}

// HasLinkedInvoices returns true if the transaction pays at least one invoice
func (t *Transaction) HasLinkedInvoices() bool {
	return len(t.InvoiceIDs) > 0
}

// Clone returns a deep copy of the transaction
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.InvoiceIDs != nil {
		c.InvoiceIDs = append([]int64(nil), t.InvoiceIDs...)
	}
	c.TokenID = cloneID(t.TokenID)
	c.SourceTransactionID = cloneID(t.SourceTransactionID)
	c.PaymentID = cloneID(t.PaymentID)
	return &c
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// ProcessingValues are returned to the client to continue the payment flow
type ProcessingValues struct {
	AcquirerID       int64             `json:"acquirer_id"`
	Provider         string            `json:"provider"`
	Reference        string            `json:"reference"`
	Amount           decimal.Decimal   `json:"amount"`
	CurrencyCode     string            `json:"currency"`
	PartnerID        int64             `json:"partner_id"`
	RedirectFormHTML string            `json:"redirect_form_html,omitempty"`
	ReturnToken      string            `json:"return_token,omitempty"`
	Specific         map[string]string `json:"specific,omitempty"`
}

// PostProcessingValues describe a transaction to the status polling client
type PostProcessingValues struct {
	Provider        string           `json:"provider"`
	Reference       string           `json:"reference"`
	Amount          decimal.Decimal  `json:"amount"`
	CurrencyCode    string           `json:"currency_code"`
	State           TransactionState `json:"state"`
	StateMessage    string           `json:"state_message"`
	Operation       Operation        `json:"operation"`
	IsPostProcessed bool             `json:"is_post_processed"`
	LandingRoute    string           `json:"landing_route"`
}

// PostProcessingValues builds the polling payload for the transaction
func (t *Transaction) PostProcessingValues() PostProcessingValues {
	return PostProcessingValues{
		Provider:        t.Provider,
		Reference:       t.Reference,
		Amount:          t.Amount,
		CurrencyCode:    t.CurrencyCode,
		State:           t.State,
		StateMessage:    t.StateMessage,
		Operation:       t.Operation,
		IsPostProcessed: t.IsPostProcessed,
		LandingRoute:    t.LandingRoute,
	}
}

// FeedbackData is the opaque payload received from an acquirer
type FeedbackData map[string]interface{}

// String returns the value for key rendered as a string, or "" when absent
func (d FeedbackData) String(key string) string {
	v, ok := d[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case interface{ String() string }:
		return val.String()
	default:
		return decimalString(val)
	}
}

// Map returns the nested object stored under key
func (d FeedbackData) Map(key string) FeedbackData {
	switch v := d[key].(type) {
	case map[string]interface{}:
		return FeedbackData(v)
	case FeedbackData:
		return v
	}
	return FeedbackData{}
}

// Has reports whether key is present
func (d FeedbackData) Has(key string) bool {
	_, ok := d[key]
	return ok
}

func decimalString(v interface{}) string {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n).String()
	case int:
		return decimal.NewFromInt(int64(n)).String()
	case int64:
		return decimal.NewFromInt(n).String()
	}
	return ""
}
