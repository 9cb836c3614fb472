package coupon

import (
	"errors"
	"math/big"
	"testing"
)

func TestSanitize(t *testing.T) {
	publicKey := newTestAddress(0x11)

	if _, err := Sanitize(nil); err == nil {
		t.Fatalf("expected error for nil coupon")
	}
	if _, err := Sanitize(&Coupon{PublicKey: publicKey, Amount: big.NewInt(0)}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := Sanitize(&Coupon{PublicKey: publicKey, Amount: big.NewInt(-5)}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := Sanitize(&Coupon{PublicKey: publicKey, Amount: big.NewInt(1), Status: Status(9)}); err == nil {
		t.Fatalf("expected error for invalid status")
	}

	original := &Coupon{PublicKey: publicKey, Amount: big.NewInt(10), Status: StatusActive}
	sanitized, err := Sanitize(original)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	sanitized.Amount.SetInt64(99)
	if original.Amount.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("sanitize must not alias the original amount")
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := &Coupon{PublicKey: newTestAddress(0x12), Amount: big.NewInt(7), Status: StatusActive}
	clone := original.Clone()
	clone.Amount.SetInt64(42)
	clone.Status = StatusBurned
	if original.Amount.Cmp(big.NewInt(7)) != 0 || original.Status != StatusActive {
		t.Fatalf("clone mutated the original: %+v", original)
	}
}

func TestStatusStringAndValid(t *testing.T) {
	cases := []struct {
		status Status
		valid  bool
		text   string
	}{
		{StatusActive, true, "active"},
		{StatusBurned, true, "burned"},
		{Status(7), false, "unknown"},
	}
	for _, tc := range cases {
		if tc.status.Valid() != tc.valid {
			t.Fatalf("Valid(%d) = %v, want %v", tc.status, tc.status.Valid(), tc.valid)
		}
		if tc.status.String() != tc.text {
			t.Fatalf("String(%d) = %q, want %q", tc.status, tc.status.String(), tc.text)
		}
	}
}
