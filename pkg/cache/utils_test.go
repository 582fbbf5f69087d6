package cache

import "testing"

func TestGenerateKey(t *testing.T) {
	if got := GenerateKey("signals", "BTC/ETH"); got != "signals:BTC/ETH" {
		t.Fatalf("key = %q", got)
	}
}

func TestGenerateKeyWithParams(t *testing.T) {
	got := GenerateKeyWithParams("history", "BTC/ETH", 100, true)
	if got != "history:BTC/ETH:100:true" {
		t.Fatalf("key = %q", got)
	}
	if GenerateKeyWithParams("p") != "p" {
		t.Fatalf("prefix-only key changed")
	}
}

func TestHashKeyStable(t *testing.T) {
	a := HashKey("history:BTC/ETH:100")
	b := HashKey("history:BTC/ETH:100")
	if a != b {
		t.Fatalf("hash not deterministic")
	}
	if len(a) != 32 {
		t.Fatalf("hash length = %d", len(a))
	}
	if a == HashKey("history:BTC/ETH:101") {
		t.Fatalf("distinct keys collided")
	}
}

func TestBuildPattern(t *testing.T) {
	if got := BuildPattern("pairscout:"); got != "pairscout:*" {
		t.Fatalf("pattern = %q", got)
	}
}
