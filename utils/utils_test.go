package utils

import "testing"

func TestItoa(t *testing.T) {
	cases := map[int]string{
		0:     "0",
		7:     "7",
		42:    "42",
		-1:    "-1",
		-9876: "-9876",
	}
	for in, want := range cases {
		if got := Itoa(in); got != want {
			t.Fatalf("Itoa(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestUtoa64(t *testing.T) {
	if got := Utoa64(0); got != "0" {
		t.Fatalf("Utoa64(0) = %q", got)
	}
	if got := Utoa64(18446744073709551615); got != "18446744073709551615" {
		t.Fatalf("Utoa64(max) = %q", got)
	}
}

func TestMix64Avalanche(t *testing.T) {
	// neighboring inputs must land far apart
	a, b := Mix64(1), Mix64(2)
	if a == b {
		t.Fatal("Mix64 collided on neighbors")
	}
	if Mix64(1) != a {
		t.Fatal("Mix64 must be deterministic")
	}
}

func TestFnv1a64KnownValues(t *testing.T) {
	// offset basis for the empty string
	if got := Fnv1a64(""); got != 0xcbf29ce484222325 {
		t.Fatalf("Fnv1a64(\"\") = %#x", got)
	}
	// published FNV-1a test vector
	if got := Fnv1a64("a"); got != 0xaf63dc4c8601ec8c {
		t.Fatalf("Fnv1a64(\"a\") = %#x", got)
	}
	if Fnv1a64("Bid") == Fnv1a64("Ask") {
		t.Fatal("distinct names must not collide")
	}
}

func TestLoad64(t *testing.T) {
	b := []byte{1, 0, 0, 0, 0, 0, 0, 0, 2}
	if got := Load64(b); got != 1 {
		t.Fatalf("Load64 = %d, want 1 (little-endian)", got)
	}
	if got := Load64At(b, 1); got != 2<<56 {
		t.Fatalf("Load64At(1) = %#x", got)
	}
}

func TestB2s(t *testing.T) {
	if B2s(nil) != "" {
		t.Fatal("B2s(nil) must be empty")
	}
	if got := B2s([]byte("ring")); got != "ring" {
		t.Fatalf("B2s = %q", got)
	}
}
