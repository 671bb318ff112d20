package utils

import (
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 45, 123456000, time.UTC)
	cur := EncodeCursor(at, "msg-1")

	gotAt, gotID, err := DecodeCursor(cur)
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if !gotAt.Equal(at) || gotID != "msg-1" {
		t.Fatalf("round-trip mismatch: %v %q", gotAt, gotID)
	}
}

func TestDecodeCursor_Malformed(t *testing.T) {
	for _, s := range []string{
		"",
		"not-base64!!!",
		"aGVsbG8",       // no separator
		"fDEyMw",        // "|123": empty timestamp
		"MTIzfA",        // "123|": empty id
		"YWJjfG1zZy0x", // "abc|msg-1": non-numeric timestamp
	} {
		if _, _, err := DecodeCursor(s); err != ErrBadCursor {
			t.Fatalf("DecodeCursor(%q) = %v, want ErrBadCursor", s, err)
		}
	}
}
