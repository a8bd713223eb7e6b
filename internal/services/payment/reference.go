package payment

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kevin07696/payment-transactions/internal/domain/ports"
	"github.com/kevin07696/payment-transactions/internal/util"
)

// DefaultReferenceSeparator separates a reference prefix from its sequence number
const DefaultReferenceSeparator = "-"

// ReferenceParams drives reference computation
type ReferenceParams struct {
	// Prefix is used as is after transliteration to ASCII
	Prefix string
	// Separator defaults to "-"
	Separator string
	// InvoiceIDs derive the prefix from the invoice names when no Prefix is given
	InvoiceIDs []int64
}

// ComputeReference returns a reference not used by any transaction at the time of the call.
// The first reference for a prefix is the bare prefix, the next ones are prefix-1, prefix-2...
// Uniqueness is advisory: the unique index on references catches concurrent claims.
func (s *Service) ComputeReference(ctx context.Context, provider string, params ReferenceParams) (string, error) {
	return s.computeReference(ctx, s.store, provider, params)
}

func (s *Service) computeReference(ctx context.Context, store ports.Store, provider string, params ReferenceParams) (string, error) {
	separator := params.Separator
	if separator == "" {
		separator = DefaultReferenceSeparator
	}

	prefix := util.ToASCII(params.Prefix)
	if prefix == "" && len(params.InvoiceIDs) > 0 {
		derived, err := invoicePrefix(ctx, store, params.InvoiceIDs, separator)
		if err != nil {
			return "", err
		}
		prefix = derived
	}
	if prefix == "" {
		prefix = singularizeReferencePrefix(s.now(), separator)
	}

	exists, err := store.Transactions().ReferenceExists(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("check reference %s: %w", prefix, err)
	}
	if !exists {
		return prefix, nil
	}

	candidates, err := store.Transactions().ListReferencesWithPrefix(ctx, prefix+separator)
	if err != nil {
		return "", fmt.Errorf("list references for %s: %w", prefix, err)
	}

	reference := prefix + separator + strconv.FormatInt(maxSequence(candidates, prefix, separator)+1, 10)
	s.logger.Debug("computed sequenced reference",
		ports.Provider(provider),
		ports.Reference(reference))
	return reference, nil
}

// maxSequence returns the highest numeric suffix among references of the form prefix+separator+digits.
// References with a non numeric suffix share the prefix by accident and are ignored.
func maxSequence(references []string, prefix, separator string) int64 {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix+separator) + `(\d+)$`)
	var max int64
	for _, ref := range references {
		m := pattern.FindStringSubmatch(ref)
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max
}

func invoicePrefix(ctx context.Context, store ports.Store, invoiceIDs []int64, separator string) (string, error) {
	invoices, err := store.Accounting().ListInvoices(ctx, invoiceIDs)
	if err != nil {
		return "", fmt.Errorf("load invoices for reference: %w", err)
	}
	if len(invoices) != len(invoiceIDs) {
		return "", nil
	}
	names := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		names = append(names, inv.Name)
	}
	return util.ToASCII(strings.Join(names, separator)), nil
}

// singularizeReferencePrefix returns a prefix unlikely to be shared, e.g. "tx-20240131154502"
func singularizeReferencePrefix(now time.Time, separator string) string {
	return "tx" + separator + now.Format("20060102150405")
}
