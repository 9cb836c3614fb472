package coupon

import (
	"errors"
	"math/big"
	"time"

	"ocex/core/events"
)

var errNilState = errors.New("coupon engine: state not configured")

// engineState is the narrow slice of vault state the engine operates on. The
// production implementation stages every mutation in a per-call transaction,
// so a failed operation leaves no trace; the engine still orders each
// operation so that validation fully precedes mutation.
type engineState interface {
	CouponPut(*Coupon) error
	CouponGet(publicKey [32]byte) (*Coupon, bool, error)
	Owner() ([32]byte, error)
	SetOwner(addr [32]byte) error
	Reserved() (*big.Int, error)
	SetReserved(amount *big.Int) error
	Custodied() (*big.Int, error)
	// Transfer moves amount out of the vault's custody to the receiver.
	Transfer(to [32]byte, amount *big.Int) error
	InstanceID() ([32]byte, error)
}

// Engine orchestrates the coupon lifecycle: registration against reserved
// liquidity, signature-gated activation, owner burns and free-balance
// withdrawals.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a coupon engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Owner returns the current vault owner address.
func (e *Engine) Owner() ([32]byte, error) {
	if e == nil || e.state == nil {
		return [32]byte{}, errNilState
	}
	return e.state.Owner()
}

func (e *Engine) requireOwner(caller [32]byte) error {
	owner, err := e.Owner()
	if err != nil {
		return err
	}
	if caller != owner {
		return ErrUnauthorized
	}
	return nil
}

// TransferOwnership replaces the vault owner. Only the current owner may
// call it; coupons and balances are untouched.
func (e *Engine) TransferOwnership(caller, next [32]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := e.state.SetOwner(next); err != nil {
		return err
	}
	e.emit(OwnershipTransferred{Previous: caller, Next: next})
	return nil
}

// AddCoupon registers a single coupon, reserving its amount out of the free
// balance. Owner only.
func (e *Engine) AddCoupon(caller [32]byte, publicKey [32]byte, amount *big.Int) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	return e.addCoupon(publicKey, amount)
}

// AddCoupons registers a batch of coupons with all-or-nothing semantics:
// a duplicate key, invalid amount, or a cumulative total exceeding the
// pre-batch free balance rejects the entire batch before any coupon is
// stored.
func (e *Engine) AddCoupons(caller [32]byte, specs []Spec) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	free, err := e.freeBalance()
	if err != nil {
		return err
	}
	total := big.NewInt(0)
	seen := make(map[[32]byte]struct{}, len(specs))
	for _, spec := range specs {
		amt := cloneBigInt(spec.Amount)
		if amt.Sign() <= 0 {
			return ErrInvalidAmount
		}
		if _, dup := seen[spec.PublicKey]; dup {
			return ErrDuplicateCoupon
		}
		seen[spec.PublicKey] = struct{}{}
		if _, ok, err := e.state.CouponGet(spec.PublicKey); err != nil {
			return err
		} else if ok {
			return ErrDuplicateCoupon
		}
		total.Add(total, amt)
	}
	if total.Cmp(free) > 0 {
		return ErrInsufficientLiquidity
	}
	for _, spec := range specs {
		if err := e.addCoupon(spec.PublicKey, spec.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) addCoupon(publicKey [32]byte, amount *big.Int) error {
	if e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, ok, err := e.state.CouponGet(publicKey); err != nil {
		return err
	} else if ok {
		return ErrDuplicateCoupon
	}
	reserved, err := e.reserve(amt)
	if err != nil {
		return err
	}
	record := &Coupon{
		PublicKey: publicKey,
		Amount:    amt,
		Status:    StatusActive,
		CreatedAt: e.now(),
	}
	if err := e.state.CouponPut(record); err != nil {
		return err
	}
	e.emit(Added{PublicKey: publicKey, Amount: amt, Reserved: reserved})
	return nil
}

// CheckCoupon reports whether a coupon is still redeemable and its amount.
// Burned coupons report inactive but keep their amount visible; unknown
// keys fail ErrCouponNotFound.
func (e *Engine) CheckCoupon(publicKey [32]byte) (bool, *big.Int, error) {
	if e == nil || e.state == nil {
		return false, nil, errNilState
	}
	record, ok, err := e.state.CouponGet(publicKey)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, ErrCouponNotFound
	}
	return record.Status == StatusActive, cloneBigInt(record.Amount), nil
}

// Activate redeems a coupon: the signature must prove possession of the
// coupon secret key over the receiver address in this vault's signing
// context. On success the coupon amount is paid to the receiver and the
// coupon is burned, atomically. The burned check gates before any payment,
// so a second activation of the same coupon can never pay twice.
func (e *Engine) Activate(receiver [32]byte, publicKey [32]byte, sig [64]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	record, ok, err := e.state.CouponGet(publicKey)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCouponNotFound
	}
	if record.Status == StatusBurned {
		return ErrAlreadyRedeemed
	}
	instanceID, err := e.state.InstanceID()
	if err != nil {
		return err
	}
	if err := VerifyRedemption(instanceID, publicKey, receiver, sig); err != nil {
		return err
	}
	amount := cloneBigInt(record.Amount)
	if err := e.releaseAndPay(amount, receiver); err != nil {
		return err
	}
	record.Status = StatusBurned
	record.BurnedAt = e.now()
	if err := e.state.CouponPut(record); err != nil {
		return err
	}
	e.emit(Activated{PublicKey: publicKey, Receiver: receiver, Amount: amount})
	return nil
}

// Burn disables a registered but unredeemed coupon and releases its
// reservation back to the free balance. Burning an already burned coupon is
// an error, not a no-op: a retried request must not release funds twice.
func (e *Engine) Burn(caller [32]byte, publicKey [32]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	return e.burnCoupon(publicKey)
}

// BurnCoupons burns a batch of coupons with all-or-nothing semantics: an
// unknown or already burned key rejects the whole batch.
func (e *Engine) BurnCoupons(caller [32]byte, publicKeys [][32]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	for _, publicKey := range publicKeys {
		record, ok, err := e.state.CouponGet(publicKey)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCouponNotFound
		}
		if record.Status == StatusBurned {
			return ErrAlreadyBurned
		}
	}
	for _, publicKey := range publicKeys {
		if err := e.burnCoupon(publicKey); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) burnCoupon(publicKey [32]byte) error {
	if e.state == nil {
		return errNilState
	}
	record, ok, err := e.state.CouponGet(publicKey)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCouponNotFound
	}
	if record.Status == StatusBurned {
		return ErrAlreadyBurned
	}
	amount := cloneBigInt(record.Amount)
	if err := e.release(amount); err != nil {
		return err
	}
	record.Status = StatusBurned
	record.BurnedAt = e.now()
	if err := e.state.CouponPut(record); err != nil {
		return err
	}
	e.emit(Burned{PublicKey: publicKey, Amount: amount})
	return nil
}
