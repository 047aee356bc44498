package id

import (
	"encoding/base32"
	"strings"
	"testing"
)

func TestNewIDFormat(t *testing.T) {
	id, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	if len(id) != 26 {
		t.Fatalf("expected 26-character id, got %d", len(id))
	}
	if strings.Contains(id, "=") {
		t.Fatal("expected no padding")
	}
	for _, r := range id {
		if (r < 'a' || r > 'z') && (r < '2' || r > '7') {
			t.Fatalf("unexpected character %q in id", r)
		}
	}

	decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(id))
	if err != nil {
		t.Fatalf("decode id: %v", err)
	}
	if len(decoded) != 16 {
		t.Fatalf("expected 16 decoded bytes, got %d", len(decoded))
	}
	if decoded[6]>>4 != 4 {
		t.Fatalf("expected uuid version 4, got %d", decoded[6]>>4)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		id, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestNewCodeUsesAlphabet(t *testing.T) {
	for _, length := range []int{1, DefaultCodeLength, 20, 40} {
		code, err := NewCode(length)
		if err != nil {
			t.Fatalf("new code: %v", err)
		}
		if len(code) != length {
			t.Fatalf("len(code) = %d, want %d", len(code), length)
		}
		for _, r := range code {
			if !strings.ContainsRune(CodeAlphabet, r) {
				t.Fatalf("unexpected character %q in code %q", r, code)
			}
		}
	}
}

func TestNewCodeRejectsNonPositiveLength(t *testing.T) {
	if _, err := NewCode(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}
