package correlation

import (
	"math"
	"testing"
)

func TestEngineUpdateLegOrder(t *testing.T) {
	e := NewEngine(50)
	// Alternate the argument order; the canonical key must keep the legs
	// aligned so the series accumulates consistently.
	for i := 0; i < 20; i++ {
		x := float64(i)
		if i%2 == 0 {
			e.Update("BTC", "ETH", x, 2*x)
		} else {
			e.Update("ETH", "BTC", 2*x, x)
		}
	}
	res := e.Corr("ETH", "BTC")
	if !res.Defined {
		t.Fatalf("expected defined correlation")
	}
	if res.Samples != 20 {
		t.Fatalf("samples = %d", res.Samples)
	}
	if math.Abs(res.Coeff-1) > 1e-9 {
		t.Fatalf("coeff = %v, want 1", res.Coeff)
	}
}

func TestEngineCorrUnknownPair(t *testing.T) {
	e := NewEngine(50)
	res := e.Corr("BTC", "SOL")
	if res.Defined {
		t.Fatalf("unknown pair must be undefined")
	}
	if res.Pair.String() != "BTC/SOL" {
		t.Fatalf("pair = %v", res.Pair)
	}
}

func TestEngineMatrix(t *testing.T) {
	e := NewEngine(50)
	for i := 0; i < 20; i++ {
		x := float64(i)
		e.Update("BTC", "ETH", x, 3*x+7)
		e.Update("BTC", "SOL", x, -x)
	}
	// AVAX never updated: its off-diagonal cells must be absent.
	m := e.Matrix([]string{"BTC", "ETH", "SOL", "AVAX"})

	for _, id := range []string{"BTC", "ETH", "SOL", "AVAX"} {
		if m[id][id] != 1.0 {
			t.Fatalf("diagonal for %s = %v, want exactly 1.0", id, m[id][id])
		}
	}
	if math.Abs(m["BTC"]["ETH"]-1) > 1e-9 {
		t.Fatalf("BTC/ETH = %v", m["BTC"]["ETH"])
	}
	if m["BTC"]["ETH"] != m["ETH"]["BTC"] {
		t.Fatalf("matrix not mirrored")
	}
	if math.Abs(m["BTC"]["SOL"]+1) > 1e-9 {
		t.Fatalf("BTC/SOL = %v", m["BTC"]["SOL"])
	}
	if _, ok := m["AVAX"]["BTC"]; ok {
		t.Fatalf("undefined pair must be absent from matrix")
	}
	if _, ok := m["ETH"]["SOL"]; ok {
		t.Fatalf("never-updated pair must be absent from matrix")
	}
}

func TestEngineResetInstrument(t *testing.T) {
	e := NewEngine(50)
	for i := 0; i < 10; i++ {
		x := float64(i)
		e.Update("BTC", "ETH", x, x)
		e.Update("BTC", "SOL", x, x)
		e.Update("ETH", "SOL", x, x)
	}
	affected := e.ResetInstrument("BTC")
	if len(affected) != 2 {
		t.Fatalf("affected pairs = %v", affected)
	}
	for _, key := range affected {
		if !key.Contains("BTC") {
			t.Fatalf("unexpected pair %v", key)
		}
	}
	if res := e.Corr("BTC", "ETH"); res.Defined || res.Samples != 0 {
		t.Fatalf("BTC/ETH not reset: %+v", res)
	}
	if res := e.Corr("ETH", "SOL"); !res.Defined {
		t.Fatalf("ETH/SOL must survive a BTC reset")
	}
}
