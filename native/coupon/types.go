package coupon

import (
	"fmt"
	"math/big"
)

// Status represents the lifecycle states of a coupon. The only legal
// transition is Active to Burned; burned coupons are kept forever so a
// spent public key can never be registered or redeemed again.
type Status uint8

const (
	StatusActive Status = iota
	StatusBurned
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusBurned:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusBurned:
		return "burned"
	default:
		return "unknown"
	}
}

// Coupon is a registered claim on a fixed amount of reserved vault funds,
// identified by the sr25519 public key whose secret half redeems it. The
// amount is immutable after registration; only the status moves.
type Coupon struct {
	PublicKey [32]byte
	Amount    *big.Int
	Status    Status
	CreatedAt int64
	BurnedAt  int64
}

// Clone returns a deep copy of the coupon so callers can safely mutate the
// copy without affecting the stored instance.
func (c *Coupon) Clone() *Coupon {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Amount != nil {
		clone.Amount = new(big.Int).Set(c.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Sanitize validates the supplied coupon record and returns a cloned
// instance with a non-nil, positive amount. The function does not mutate
// the original value.
func Sanitize(c *Coupon) (*Coupon, error) {
	if c == nil {
		return nil, fmt.Errorf("nil coupon")
	}
	clone := c.Clone()
	if clone.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid coupon status: %d", clone.Status)
	}
	return clone, nil
}

// Spec is a registration request entry: a coupon public key paired with the
// amount to reserve for it.
type Spec struct {
	PublicKey [32]byte
	Amount    *big.Int
}
