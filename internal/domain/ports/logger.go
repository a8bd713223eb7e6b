package ports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Logger is the structured logger the payment service writes to
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
}

// Field is a key/value pair attached to a log entry
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err attaches err under the "error" key
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Reference tags the entry with a transaction reference, the key every
// lifecycle log line is searched by
func Reference(reference string) Field {
	return Field{Key: "reference", Value: reference}
}

// Provider tags the entry with the acquirer provider code
func Provider(provider string) Field {
	return Field{Key: "provider", Value: provider}
}

// Amount logs a monetary amount in its exact decimal form
func Amount(amount decimal.Decimal) Field {
	return Field{Key: "amount", Value: amount.String()}
}
