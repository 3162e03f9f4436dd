package entropy

import (
	"errors"
	"testing"
)

func TestFillForwardsEveryByteInOrder(t *testing.T) {
	var calls int
	src := NewSource(func() byte {
		calls++
		return byte(calls)
	})

	buf := make([]byte, 16)
	if err := src.Fill(buf); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if calls != 16 {
		t.Fatalf("channel invoked %d times for a 16-byte buffer", calls)
	}
	for i, b := range buf {
		if b != byte(i+1) {
			t.Errorf("buf[%d] = %d, want %d", i, b, i+1)
		}
	}
}

func TestFillEmptyBufferMakesNoCalls(t *testing.T) {
	var calls int
	src := NewSource(func() byte {
		calls++
		return 0
	})
	if err := src.Fill(nil); err != nil {
		t.Fatalf("Fill(nil): %v", err)
	}
	if calls != 0 {
		t.Errorf("channel invoked %d times for an empty buffer", calls)
	}
}

func TestFillWithoutChannel(t *testing.T) {
	src := NewSource(nil)
	buf := []byte{7, 7, 7}
	err := src.Fill(buf)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Fill without channel: got %v, want ErrUnavailable", err)
	}
	// No fabricated or zeroed substitute bytes.
	for i, b := range buf {
		if b != 7 {
			t.Errorf("buf[%d] was written despite the missing channel", i)
		}
	}
}
