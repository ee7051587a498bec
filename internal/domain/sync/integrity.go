package sync

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// degenerateKeyLimit is the most fields an object can have and still count as
// a placeholder. Real sales payloads carry dozens of fields.
const degenerateKeyLimit = 2

// LooksSuspicious inspects a non-empty page for signs of synthetic, mocked or
// corrupted upstream data before it is trusted. Any single heuristic triggers
// rejection:
//
//   - no item carries a recognizable external identifier,
//   - every item is a degenerate object of at most two fields,
//   - all items serialize to byte-identical representations.
//
// The returned reason describes the first offending item for the error
// ledger. A suspicious page aborts the whole run: a poisoned page is more
// dangerous than an incomplete sync.
func LooksSuspicious(items []json.RawMessage) (bool, string) {
	if len(items) == 0 {
		return false, ""
	}

	anyWithID := false
	allDegenerate := true
	allIdentical := len(items) > 1

	first := bytes.TrimSpace(items[0])
	for i, item := range items {
		rec, ok := DecodeRecord(item)
		if ok {
			if HasExternalID(rec) {
				anyWithID = true
			}
			if len(rec) > degenerateKeyLimit {
				allDegenerate = false
			}
		}
		if i > 0 && !bytes.Equal(bytes.TrimSpace(item), first) {
			allIdentical = false
		}
	}

	switch {
	case !anyWithID:
		return true, fmt.Sprintf("no item in page carries a sale identifier; first item: %s", firstItemSummary(items))
	case allDegenerate:
		return true, fmt.Sprintf("every item is a degenerate object (<= %d fields); first item: %s", degenerateKeyLimit, firstItemSummary(items))
	case allIdentical:
		return true, fmt.Sprintf("all %d items are byte-identical; first item: %s", len(items), firstItemSummary(items))
	}
	return false, ""
}

func firstItemSummary(items []json.RawMessage) string {
	if rec, ok := DecodeRecord(items[0]); ok {
		return normalizeDebug(rec)
	}
	return "not a JSON object"
}
