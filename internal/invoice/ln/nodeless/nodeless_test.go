package nodeless

import (
	"testing"

	"github.com/nodeless-io/go-nodeless"
	"github.com/stretchr/testify/assert"

	"github.com/stemstr/paywall/internal/invoice"
)

func TestStatusFromName(t *testing.T) {
	var tests = []struct {
		name     string
		expected invoice.Status
	}{
		{"paid", invoice.StatusPaid},
		{"PAID", invoice.StatusPaid},
		{"overpaid", invoice.StatusPaid},
		{"new", invoice.StatusUnpaid},
		{"pending_confirmation", invoice.StatusProcessing},
		{"in_flight", invoice.StatusProcessing},
		{"expired", invoice.StatusUnknown},
		{"underpaid", invoice.StatusUnknown},
		{string(nodeless.InvoiceStatusPaid), invoice.StatusPaid},
		{string(nodeless.InvoiceStatusNew), invoice.StatusUnpaid},
		{string(nodeless.InvoiceStatusExpired), invoice.StatusUnknown},
		{string(nodeless.InvoiceStatusUnknown), invoice.StatusUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusFromName(tt.name), tt.name)
	}
}
