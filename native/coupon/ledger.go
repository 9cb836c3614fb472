package coupon

import "math/big"

// Reserved-balance accounting. The invariant maintained here is
// reserved <= custodied at all times: every registration reserves before the
// coupon record is stored, and every payout or burn releases exactly the
// coupon amount.

func (e *Engine) freeBalance() (*big.Int, error) {
	custodied, err := e.state.Custodied()
	if err != nil {
		return nil, err
	}
	reserved, err := e.state.Reserved()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(cloneBigInt(custodied), cloneBigInt(reserved)), nil
}

// reserve earmarks amount for a new coupon and returns the updated reserved
// total. Fails ErrInsufficientLiquidity when the free balance cannot cover
// it, leaving the ledger untouched.
func (e *Engine) reserve(amount *big.Int) (*big.Int, error) {
	free, err := e.freeBalance()
	if err != nil {
		return nil, err
	}
	if amount.Cmp(free) > 0 {
		return nil, ErrInsufficientLiquidity
	}
	reserved, err := e.state.Reserved()
	if err != nil {
		return nil, err
	}
	updated := new(big.Int).Add(cloneBigInt(reserved), amount)
	if err := e.state.SetReserved(updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// release returns a coupon's reservation to the free balance without paying
// anyone. Used when the owner burns an unredeemed coupon.
func (e *Engine) release(amount *big.Int) error {
	reserved, err := e.state.Reserved()
	if err != nil {
		return err
	}
	updated := new(big.Int).Sub(cloneBigInt(reserved), amount)
	if updated.Sign() < 0 {
		// Reserved accounting can never go negative; a coupon releases at
		// most what registration reserved for it.
		updated = big.NewInt(0)
	}
	return e.state.SetReserved(updated)
}

// releaseAndPay releases amount from the reserve and transfers it to the
// receiver. The transfer runs first so a host-level payment failure leaves
// the reservation held and the coupon redeemable.
func (e *Engine) releaseAndPay(amount *big.Int, receiver [32]byte) error {
	if err := e.state.Transfer(receiver, amount); err != nil {
		return ErrTransferFailed
	}
	return e.release(amount)
}

// FreeBalance reports custodied minus reserved funds. Owner only: the free
// balance reveals the vault's unallocated liquidity.
func (e *Engine) FreeBalance(caller [32]byte) (*big.Int, error) {
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	return e.freeBalance()
}

// WithdrawFree transfers part of the free balance out of the vault. Owner
// only; fails ErrInsufficientFreeFunds when amount exceeds the free balance.
func (e *Engine) WithdrawFree(caller [32]byte, amount *big.Int, to [32]byte) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	free, err := e.freeBalance()
	if err != nil {
		return err
	}
	if amt.Cmp(free) > 0 {
		return ErrInsufficientFreeFunds
	}
	if err := e.state.Transfer(to, amt); err != nil {
		return ErrTransferFailed
	}
	e.emit(Withdrawal{To: to, Amount: amt})
	return nil
}

// WithdrawAll sweeps the entire free balance to the owner and returns the
// amount moved. A zero free balance is a no-op, not an error.
func (e *Engine) WithdrawAll(caller [32]byte) (*big.Int, error) {
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	free, err := e.freeBalance()
	if err != nil {
		return nil, err
	}
	if free.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := e.state.Transfer(caller, free); err != nil {
		return nil, ErrTransferFailed
	}
	e.emit(Withdrawal{To: caller, Amount: free})
	return free, nil
}
