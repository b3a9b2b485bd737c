package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsuranceAndFreight(t *testing.T) {
	s := testSettings()

	assert.InDelta(t, 3, Insurance(300, s), 1e-9)   // 300 * 1%
	assert.InDelta(t, 30, Freight(6, s), 1e-9)      // 6 кг * 5
	assert.Equal(t, 0.0, Insurance(0, s))
	assert.Equal(t, 0.0, Freight(0, s))
}

func TestDuties(t *testing.T) {
	s := testSettings()
	s.CustomsRate = ptrFloat(750)

	d, ok := Duties(300, 0, 6, s)
	require.True(t, ok)

	assert.InDelta(t, 3, d.Insurance, 1e-9)
	assert.InDelta(t, 30, d.Freight, 1e-9)
	assert.InDelta(t, 333, d.CIFUSD, 1e-9)
	assert.InDelta(t, 249750, d.CIFCLP, 1e-9)
	assert.InDelta(t, 14985, d.Tariff, 1e-9)                 // 249750 * 6%
	assert.InDelta(t, 50299.65, d.ImportVAT, 1e-6)           // (249750 + 14985) * 19%
	assert.InDelta(t, 65284.65, d.FinalTotalCLP, 1e-6)       // 0 + 14985 + 50299.65
}

func TestDuties_AddsToOrderCLPTotal(t *testing.T) {
	s := testSettings()
	s.CustomsRate = ptrFloat(750)

	d, ok := Duties(300, 258750, 6, s)
	require.True(t, ok)

	assert.InDelta(t, 258750+14985+50299.65, d.FinalTotalCLP, 1e-6)
}

func TestDuties_NoCustomsRate(t *testing.T) {
	// Без таможенного курса расчёт пошлин не выполняется.
	d, ok := Duties(300, 0, 6, testSettings())
	assert.False(t, ok)
	assert.Equal(t, DutyBreakdown{}, d)
}

func TestDuties_EmptyOrder(t *testing.T) {
	s := testSettings()
	s.CustomsRate = ptrFloat(750)

	d, ok := Duties(0, 0, 0, s)
	require.True(t, ok)
	assert.Equal(t, 0.0, d.FinalTotalCLP)
}
