package sync

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The Everest API has gone through several payload revisions and different
// store configurations still emit different field names for the same logical
// attribute. Extraction is an explicit ordered list of candidates per
// attribute so the contract stays auditable; reflective probing is
// deliberately avoided.

// saleIDFields are authoritative external identifiers, in preference order.
var saleIDFields = []string{"saleId", "id"}

// sequenceFields are per-store sequence numbers, used only to build a
// composite fallback identifier when no authoritative id is present.
var sequenceFields = []string{"sequence", "saleNumber"}

// saleDateFields are date-ish attributes, in preference order.
var saleDateFields = []string{"shiftDate", "saleDate", "createdAt", "date", "openedAt"}

// amountFields are amount-ish attributes, in preference order.
var amountFields = []string{"totalValue", "total", "amount", "grossValue"}

// saleDateLayouts are the wire formats observed for zoneless timestamps;
// those are interpreted in the business timezone.
var saleDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// ---------------------------------------------------------------------------
// Field extraction
// ---------------------------------------------------------------------------

// stringField returns the first present, non-empty candidate as a string.
// Numbers are rendered without an exponent so numeric ids survive.
func stringField(rec map[string]any, candidates []string) (string, bool) {
	for _, name := range candidates {
		v, ok := rec[name]
		if !ok || v == nil {
			continue
		}
		switch value := v.(type) {
		case string:
			if s := strings.TrimSpace(value); s != "" {
				return s, true
			}
		case json.Number:
			return value.String(), true
		case float64:
			return decimal.NewFromFloat(value).String(), true
		}
	}
	return "", false
}

// ExtractExternalID returns the provider identifier for a record: the first
// authoritative sale id, else storeID + "-" + sequence. The composite form is
// strictly a fallback; it is never preferred over an authoritative id.
func ExtractExternalID(rec map[string]any, storeID string) (string, bool) {
	if id, ok := stringField(rec, saleIDFields); ok {
		return id, true
	}
	if seq, ok := stringField(rec, sequenceFields); ok && storeID != "" {
		return storeID + "-" + seq, true
	}
	return "", false
}

// HasExternalID reports whether a record carries any recognizable identifier,
// authoritative or sequence-based. The integrity guard uses this without
// caring about the composite form.
func HasExternalID(rec map[string]any) bool {
	if _, ok := stringField(rec, saleIDFields); ok {
		return true
	}
	_, ok := stringField(rec, sequenceFields)
	return ok
}

// ExtractSaleDate returns the sale instant for a record, trying each
// candidate field and each known layout. Zoneless values are interpreted in
// the business timezone.
func ExtractSaleDate(rec map[string]any) (time.Time, bool) {
	raw, ok := stringField(rec, saleDateFields)
	if !ok {
		return time.Time{}, false
	}
	return ParseSaleDate(raw)
}

// ParseSaleDate parses one date-ish wire value.
func ParseSaleDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	for _, layout := range saleDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, businessLocation); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ExtractTotalAmount returns the sale total as a two-digit fixed-point
// decimal, tolerating both "." and "," as decimal separator.
func ExtractTotalAmount(rec map[string]any) (decimal.Decimal, bool) {
	for _, name := range amountFields {
		v, ok := rec[name]
		if !ok || v == nil {
			continue
		}
		switch value := v.(type) {
		case float64:
			return decimal.NewFromFloat(value).Round(2), true
		case json.Number:
			if d, err := decimal.NewFromString(value.String()); err == nil {
				return d.Round(2), true
			}
		case string:
			if d, ok := ParseAmount(value); ok {
				return d, true
			}
		}
	}
	return decimal.Zero, false
}

// ParseAmount parses one amount-ish wire value. The decimal separator is
// whichever of "," and "." occurs last; the other is treated as grouping.
// "1.234,56", "1,234.56" and "1234.56" all yield 1234.56.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}
	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	if comma > dot {
		head := strings.NewReplacer(".", "", ",", "").Replace(s[:comma])
		s = head + "." + s[comma+1:]
	} else if comma >= 0 {
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Round(2), true
}

// ---------------------------------------------------------------------------
// Record normalization
// ---------------------------------------------------------------------------

// NormalizeRecord maps one raw provider record into a canonical Sale.
// Records missing either an external identifier or a sale date are dropped
// silently (second return false): they represent upstream data sparsity, not
// faults, and are not counted as errors.
func NormalizeRecord(raw json.RawMessage, storeID string, tenantID uuid.UUID) (*Sale, bool) {
	rec, ok := DecodeRecord(raw)
	if !ok {
		return nil, false
	}

	externalID, ok := ExtractExternalID(rec, storeID)
	if !ok {
		return nil, false
	}
	saleDate, ok := ExtractSaleDate(rec)
	if !ok {
		return nil, false
	}
	amount, _ := ExtractTotalAmount(rec)

	return &Sale{
		ID:          uuid.New(),
		ExternalID:  externalID,
		StoreID:     storeID,
		TenantID:    tenantID,
		SaleDate:    saleDate.UTC(),
		TotalAmount: amount,
		RawData:     string(raw),
	}, true
}

// NormalizePage maps every record of a page and re-filters the survivors by
// the requested window. It returns the filtered sales and the pre-filter
// count of successfully mapped records.
func NormalizePage(items []json.RawMessage, storeID string, tenantID uuid.UUID, window Window) ([]*Sale, int) {
	mapped := 0
	sales := make([]*Sale, 0, len(items))
	for _, item := range items {
		sale, ok := NormalizeRecord(item, storeID, tenantID)
		if !ok {
			continue
		}
		mapped++
		if window.ContainsDay(sale.SaleDate) {
			sales = append(sales, sale)
		}
	}
	return sales, mapped
}

// DecodeRecord unmarshals one raw record into a generic map, using
// json.Number so large numeric ids are not mangled by float64 rounding.
func DecodeRecord(raw json.RawMessage) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var rec map[string]any
	if err := dec.Decode(&rec); err != nil || rec == nil {
		return nil, false
	}
	return rec, true
}

// normalizeDebug is a convenience for error messages; it renders the first
// candidate hit per attribute.
func normalizeDebug(rec map[string]any) string {
	id, _ := stringField(rec, saleIDFields)
	date, _ := stringField(rec, saleDateFields)
	return fmt.Sprintf("id=%q date=%q keys=%d", id, date, len(rec))
}
