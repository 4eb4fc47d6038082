package postgres

import (
	"errors"
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	orig := Cursor{
		Timestamp: time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC),
		MID:       42,
	}

	s, err := EncodeCursor(orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeCursor(s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got == nil {
		t.Fatal("decode returned nil")
	}
	if !got.Timestamp.Equal(orig.Timestamp) || got.MID != orig.MID {
		t.Fatalf("roundtrip mismatch: %+v vs %+v", got, orig)
	}
}

func TestDecodeCursorEmpty(t *testing.T) {
	got, err := DecodeCursor("")
	if err != nil {
		t.Fatalf("empty cursor: %v", err)
	}
	if got != nil {
		t.Fatalf("empty cursor should decode to nil, got %+v", got)
	}
}

func TestDecodeCursorInvalid(t *testing.T) {
	for _, s := range []string{"not-base64!!!", "bm90LWpzb24"} {
		_, err := DecodeCursor(s)
		if !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("%q: expected ErrInvalidCursor, got %v", s, err)
		}
	}
}
