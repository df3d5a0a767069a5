package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateBreakdown(t *testing.T) {
	b := Calculate(1000, 200, 500, 3)
	require.InDelta(t, 3000.0, b.Subtotal, 0.001)
	require.InDelta(t, 300.0, b.ServiceFee, 0.001)
	require.InDelta(t, 200.0, b.CleaningFee, 0.001)
	require.InDelta(t, 3500.0, b.Total, 0.001)
	require.InDelta(t, 500.0, b.SecurityDeposit, 0.001)
}

func TestCalculateRoundsServiceFee(t *testing.T) {
	// 3 nights at 33.33 -> subtotal 99.99, 10% = 9.999 rounds to 10.00.
	b := Calculate(33.33, 0, 0, 3)
	require.InDelta(t, 99.99, b.Subtotal, 0.0001)
	require.InDelta(t, 10.00, b.ServiceFee, 0.0001)
	require.InDelta(t, 109.99, b.Total, 0.0001)
}

func TestCalculateLongStayDiscount(t *testing.T) {
	// 7 nights at 100: subtotal 700, service fee 70, 5% weekly discount 35.
	week := Calculate(100, 50, 0, 7)
	require.InDelta(t, 35.0, week.Discount, 0.001)
	require.InDelta(t, 785.0, week.Total, 0.001)

	// 30 nights at 100: subtotal 3000, service fee 300, 10% monthly discount 300.
	month := Calculate(100, 50, 0, 30)
	require.InDelta(t, 300.0, month.Discount, 0.001)
	require.InDelta(t, 3050.0, month.Total, 0.001)

	short := Calculate(100, 50, 0, 6)
	require.InDelta(t, 0.0, short.Discount, 0.001)
}

func TestCalculateIsDeterministic(t *testing.T) {
	a := Calculate(149.99, 75, 300, 7)
	b := Calculate(149.99, 75, 300, 7)
	require.Equal(t, a, b)
}

func TestRound2(t *testing.T) {
	require.InDelta(t, 0.13, Round2(0.125), 0.0001)
	require.InDelta(t, 10.0, Round2(10.004), 0.0001)
	require.InDelta(t, 10.01, Round2(10.006), 0.0001)
}
