package sync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRecord_PrimaryFields(t *testing.T) {
	raw := json.RawMessage(`{
		"saleId": "V-1001",
		"saleDate": "2025-03-10T14:22:00-03:00",
		"totalValue": "149.90",
		"operator": "caixa-2"
	}`)

	sale, ok := NormalizeRecord(raw, "S1", uuid.New())
	require.True(t, ok)
	assert.Equal(t, "V-1001", sale.ExternalID)
	assert.Equal(t, "S1", sale.StoreID)
	assert.True(t, sale.TotalAmount.Equal(decimal.RequireFromString("149.90")))
	assert.Equal(t, time.UTC, sale.SaleDate.Location())
	assert.JSONEq(t, string(raw), sale.RawData)
}

func TestNormalizeRecord_AlternateFieldNames(t *testing.T) {
	// A record exposing only the alternate names still normalizes.
	raw := json.RawMessage(`{
		"id": 98765,
		"openedAt": "2025-03-09 20:15:00",
		"grossValue": "1.234,56"
	}`)

	sale, ok := NormalizeRecord(raw, "S1", uuid.New())
	require.True(t, ok)
	assert.Equal(t, "98765", sale.ExternalID)
	assert.True(t, sale.TotalAmount.Equal(decimal.RequireFromString("1234.56")))

	wantDate := time.Date(2025, 3, 9, 20, 15, 0, 0, BusinessLocation())
	assert.True(t, sale.SaleDate.Equal(wantDate))
}

func TestNormalizeRecord_SequenceFallback(t *testing.T) {
	raw := json.RawMessage(`{
		"sequence": 42,
		"shiftDate": "2025-03-10",
		"total": 50
	}`)

	sale, ok := NormalizeRecord(raw, "S7", uuid.New())
	require.True(t, ok)
	assert.Equal(t, "S7-42", sale.ExternalID)
}

func TestNormalizeRecord_AuthoritativeIDWinsOverSequence(t *testing.T) {
	raw := json.RawMessage(`{
		"saleId": "V-9",
		"sequence": 42,
		"date": "2025-03-10"
	}`)

	sale, ok := NormalizeRecord(raw, "S7", uuid.New())
	require.True(t, ok)
	assert.Equal(t, "V-9", sale.ExternalID)
}

func TestNormalizeRecord_DroppedSilently(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing identifier", `{"saleDate": "2025-03-10", "total": 10}`},
		{"missing date", `{"saleId": "V-1", "total": 10}`},
		{"not an object", `[1, 2, 3]`},
		{"invalid json", `{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := NormalizeRecord(json.RawMessage(tt.raw), "S1", uuid.New())
			assert.False(t, ok)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"149.90", "149.9", true},
		{"149,90", "149.9", true},
		{"1.234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"12.345.678,99", "12345678.99", true},
		{"1,234,567.89", "1234567.89", true},
		{"1234.567", "1234.57", true},
		{"0", "0", true},
		{"", "", false},
		{"abc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			d, ok := ParseAmount(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, d.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", d, tt.want)
			}
		})
	}
}

func TestParseSaleDate(t *testing.T) {
	loc := BusinessLocation()

	t.Run("rfc3339 keeps its own zone", func(t *testing.T) {
		got, ok := ParseSaleDate("2025-03-10T14:22:00-03:00")
		require.True(t, ok)
		assert.True(t, got.Equal(time.Date(2025, 3, 10, 17, 22, 0, 0, time.UTC)))
	})

	t.Run("zoneless interpreted in business timezone", func(t *testing.T) {
		got, ok := ParseSaleDate("2025-03-10 08:00:00")
		require.True(t, ok)
		assert.True(t, got.Equal(time.Date(2025, 3, 10, 8, 0, 0, 0, loc)))
	})

	t.Run("date only", func(t *testing.T) {
		got, ok := ParseSaleDate("2025-03-10")
		require.True(t, ok)
		assert.True(t, got.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, loc)))
	})

	t.Run("brazilian layout", func(t *testing.T) {
		got, ok := ParseSaleDate("10/03/2025 08:00:00")
		require.True(t, ok)
		assert.True(t, got.Equal(time.Date(2025, 3, 10, 8, 0, 0, 0, loc)))
	})

	t.Run("garbage", func(t *testing.T) {
		_, ok := ParseSaleDate("not-a-date")
		assert.False(t, ok)
	})
}

func TestNormalizePage_WindowRefilter(t *testing.T) {
	loc := BusinessLocation()
	window := Window{
		Start: time.Date(2025, 3, 10, 0, 0, 0, 0, loc),
		End:   time.Date(2025, 3, 10, 23, 59, 59, 0, loc),
	}

	items := []json.RawMessage{
		json.RawMessage(`{"saleId": "a", "saleDate": "2025-03-10 10:00:00", "total": 1}`),
		// Upstream leaked a record outside the requested day; dropped by the
		// re-filter but still counted pre-filter.
		json.RawMessage(`{"saleId": "b", "saleDate": "2025-03-09 10:00:00", "total": 2}`),
		// Unmappable record, not counted at all.
		json.RawMessage(`{"total": 3}`),
	}

	sales, mapped := NormalizePage(items, "S1", uuid.New(), window)
	assert.Equal(t, 2, mapped)
	require.Len(t, sales, 1)
	assert.Equal(t, "a", sales[0].ExternalID)
}
