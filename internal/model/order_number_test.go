package model

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderNumber_Format(t *testing.T) {
	g := NewOrderNumberGenerator()
	g.now = func() time.Time { return time.UnixMilli(1_718_123_456_789) }

	n := g.Next()
	assert.Regexp(t, regexp.MustCompile(`^HW\d{12}$`), n)
	assert.Equal(t, "HW23456789", n[:10])
}

func TestOrderNumber_NoCollisionAcross10000(t *testing.T) {
	g := NewOrderNumberGenerator()
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		n := g.Next()
		if _, dup := seen[n]; dup {
			t.Fatalf("duplicate order number %s after %d generations", n, i)
		}
		seen[n] = struct{}{}
	}
}

func TestOrderNumber_ConcurrentNoCollision(t *testing.T) {
	const workers, per = 10, 1000
	out := make(chan string, workers*per)
	done := make(chan struct{})
	for w := 0; w < workers; w++ {
		go func() {
			for i := 0; i < per; i++ {
				out <- NewOrderNumber()
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	close(out)

	seen := make(map[string]struct{}, workers*per)
	for n := range out {
		_, dup := seen[n]
		assert.False(t, dup, "duplicate %s", n)
		seen[n] = struct{}{}
	}
	assert.Len(t, seen, workers*per)
}

func TestFallbackOrderNumber(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^HW-FB\d{13,}$`), FallbackOrderNumber())
}

func TestOrder_ComputeFinal(t *testing.T) {
	o := Order{Items: []OrderItem{
		{Price: mustDec("5000"), Quantity: 2},
		{Price: mustDec("1250.50"), Quantity: 1},
	}}
	o.TotalAmount = o.Subtotal()
	o.ShippingFee = mustDec("0")
	o.TaxAmount = mustDec("100")
	o.DiscountAmount = mustDec("50.50")

	assert.Equal(t, "11250.5", o.TotalAmount.String())
	assert.Equal(t, "11300", o.ComputeFinal().String())
}

func mustDec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
