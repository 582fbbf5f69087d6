package hyperliquid

import (
	"testing"
	"time"
)

func basket(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func TestParseMids(t *testing.T) {
	raw := []byte(`{"channel":"allMids","data":{"mids":{"BTC":"65000.5","ETH":"3200.25","DOGE":"0.15"}}}`)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	ticks := parseMids(raw, basket("BTC", "ETH"), now)
	if len(ticks) != 2 {
		t.Fatalf("ticks = %d, want 2 (DOGE not in basket)", len(ticks))
	}
	byID := make(map[string]float64, len(ticks))
	for _, tk := range ticks {
		if !tk.ObservedAt.Equal(now) {
			t.Fatalf("observed_at = %v", tk.ObservedAt)
		}
		byID[tk.Instrument] = tk.Price
	}
	if byID["BTC"] != 65000.5 || byID["ETH"] != 3200.25 {
		t.Fatalf("prices = %v", byID)
	}
}

func TestParseMidsWrongChannel(t *testing.T) {
	raw := []byte(`{"channel":"trades","data":{"mids":{"BTC":"65000"}}}`)
	if ticks := parseMids(raw, basket("BTC"), time.Now()); ticks != nil {
		t.Fatalf("unexpected ticks from non-mids channel: %v", ticks)
	}
}

func TestParseMidsMalformed(t *testing.T) {
	if ticks := parseMids([]byte(`{not json`), basket("BTC"), time.Now()); ticks != nil {
		t.Fatalf("unexpected ticks from malformed payload")
	}
}

func TestParseMidsBadPriceSkipped(t *testing.T) {
	raw := []byte(`{"channel":"allMids","data":{"mids":{"BTC":"not-a-number","ETH":"3200"}}}`)
	ticks := parseMids(raw, basket("BTC", "ETH"), time.Now())
	if len(ticks) != 1 || ticks[0].Instrument != "ETH" {
		t.Fatalf("ticks = %+v", ticks)
	}
}
