package coupon

import (
	"encoding/hex"
	"math/big"

	"ocex/crypto"
)

const (
	EventTypeCouponAdded          = "coupon.added"
	EventTypeCouponActivated      = "coupon.activated"
	EventTypeCouponBurned         = "coupon.burned"
	EventTypeOwnershipTransferred = "coupon.ownership_transferred"
	EventTypeWithdrawal           = "coupon.withdrawal"
)

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func formatAddress(addr [32]byte) string {
	return crypto.NewAddress(crypto.OcexPrefix, addr[:]).String()
}

// Added is emitted for every coupon stored by a registration call.
type Added struct {
	PublicKey [32]byte
	Amount    *big.Int
	Reserved  *big.Int
}

func (Added) EventType() string { return EventTypeCouponAdded }

func (e Added) Attributes() map[string]string {
	return map[string]string{
		"publicKey": hex.EncodeToString(e.PublicKey[:]),
		"amount":    formatAmount(e.Amount),
		"reserved":  formatAmount(e.Reserved),
	}
}

// Activated is emitted when a coupon is redeemed and paid out.
type Activated struct {
	PublicKey [32]byte
	Receiver  [32]byte
	Amount    *big.Int
}

func (Activated) EventType() string { return EventTypeCouponActivated }

func (e Activated) Attributes() map[string]string {
	return map[string]string{
		"publicKey": hex.EncodeToString(e.PublicKey[:]),
		"receiver":  formatAddress(e.Receiver),
		"amount":    formatAmount(e.Amount),
	}
}

// Burned is emitted when the owner disables an unredeemed coupon, releasing
// its reservation.
type Burned struct {
	PublicKey [32]byte
	Amount    *big.Int
}

func (Burned) EventType() string { return EventTypeCouponBurned }

func (e Burned) Attributes() map[string]string {
	return map[string]string{
		"publicKey": hex.EncodeToString(e.PublicKey[:]),
		"amount":    formatAmount(e.Amount),
	}
}

// OwnershipTransferred is emitted when the vault owner changes.
type OwnershipTransferred struct {
	Previous [32]byte
	Next     [32]byte
}

func (OwnershipTransferred) EventType() string { return EventTypeOwnershipTransferred }

func (e OwnershipTransferred) Attributes() map[string]string {
	return map[string]string{
		"previous": formatAddress(e.Previous),
		"next":     formatAddress(e.Next),
	}
}

// Withdrawal is emitted when the owner withdraws free funds.
type Withdrawal struct {
	To     [32]byte
	Amount *big.Int
}

func (Withdrawal) EventType() string { return EventTypeWithdrawal }

func (e Withdrawal) Attributes() map[string]string {
	return map[string]string{
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
	}
}
