package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeRefund(t *testing.T) {
	tests := []struct {
		name     string
		price    Money
		discount Money
		refund   Money
	}{
		{"hundred dollars", 10000, 500, 9500},
		{"odd cents round half up", 1010, 51, 959},
		{"below one cent discount", 9, 0, 9},
		{"zero", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ComputeRefund(tt.price)
			assert.Equal(t, tt.price, r.Original)
			assert.Equal(t, tt.discount, r.Discount)
			assert.Equal(t, tt.refund, r.Amount)
			assert.Equal(t, r.Original, r.Discount+r.Amount)
		})
	}
}

func TestFullRefund(t *testing.T) {
	r := FullRefund(10000)
	assert.Equal(t, Money(0), r.Discount)
	assert.Equal(t, Money(10000), r.Amount)
}

// The clinic must cover the full original price even though only the
// discounted amount leaves its wallet.
func TestCanRefund_ChecksOriginalPrice(t *testing.T) {
	assert.True(t, CanRefund(10000, 10000))
	assert.False(t, CanRefund(9500, 10000))
	assert.False(t, CanRefund(9999, 10000))
}
