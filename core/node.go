package core

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"ocex/core/events"
	"ocex/native/coupon"
	"ocex/storage"
)

// maxRetainedEvents bounds the in-memory event feed exposed over RPC.
const maxRetainedEvents = 1024

// Node owns the vault state and serialises every public operation. Each
// operation runs against a fresh state transaction and commits only on full
// success, so no call can leave partial effects behind: a coupon is never
// stored without its reservation, and a coupon is never burned without its
// payout.
type Node struct {
	mu     sync.Mutex
	state  *Manager
	engine *coupon.Engine
	events []events.Event
}

// NewNode initialises the vault on top of the database. On first boot the
// configured owner is persisted and a random 32-byte instance id is
// generated; on later boots the stored owner wins, since ownership may have
// been transferred at runtime.
func NewNode(db storage.Database, owner [32]byte) (*Node, error) {
	n := &Node{
		state:  NewManager(db),
		engine: coupon.NewEngine(),
	}
	txn := n.state.Transaction()
	hasOwner, err := txn.HasOwner()
	if err != nil {
		return nil, err
	}
	if !hasOwner {
		if owner == ([32]byte{}) {
			return nil, fmt.Errorf("core: vault owner not configured")
		}
		if err := txn.SetOwner(owner); err != nil {
			return nil, err
		}
	}
	hasInstance, err := txn.HasInstanceID()
	if err != nil {
		return nil, err
	}
	if !hasInstance {
		var id [32]byte
		if _, err := rand.Read(id[:]); err != nil {
			return nil, fmt.Errorf("core: generate instance id: %w", err)
		}
		if err := txn.SetInstanceID(id); err != nil {
			return nil, err
		}
	}
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	return n, nil
}

// SetNowFunc overrides the engine time source. Intended for tests.
func (n *Node) SetNowFunc(now func() int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.engine.SetNowFunc(now)
}

func (n *Node) withTransaction(fn func(*coupon.Engine) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	txn := n.state.Transaction()
	collector := &events.MemoryEmitter{}
	n.engine.SetState(txn)
	n.engine.SetEmitter(collector)
	if err := fn(n.engine); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	n.retain(collector.Events())
	return nil
}

func (n *Node) readTransaction() *Transaction {
	return n.state.Transaction()
}

func (n *Node) retain(emitted []events.Event) {
	n.events = append(n.events, emitted...)
	if excess := len(n.events) - maxRetainedEvents; excess > 0 {
		n.events = append([]events.Event(nil), n.events[excess:]...)
	}
}

// Events returns the retained event feed, oldest first.
func (n *Node) Events() []events.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]events.Event(nil), n.events...)
}

// AddCoupon registers a coupon for the caller, reserving its amount.
func (n *Node) AddCoupon(caller [32]byte, publicKey [32]byte, amount *big.Int) error {
	return n.withTransaction(func(e *coupon.Engine) error {
		return e.AddCoupon(caller, publicKey, amount)
	})
}

// AddCoupons registers a batch of coupons with all-or-nothing semantics.
func (n *Node) AddCoupons(caller [32]byte, specs []coupon.Spec) error {
	return n.withTransaction(func(e *coupon.Engine) error {
		return e.AddCoupons(caller, specs)
	})
}

// Activate redeems a coupon against a redemption signature, paying the
// receiver and burning the coupon.
func (n *Node) Activate(receiver [32]byte, publicKey [32]byte, sig [64]byte) error {
	return n.withTransaction(func(e *coupon.Engine) error {
		return e.Activate(receiver, publicKey, sig)
	})
}

// BurnCoupons disables unredeemed coupons, releasing their reservations.
func (n *Node) BurnCoupons(caller [32]byte, publicKeys [][32]byte) error {
	return n.withTransaction(func(e *coupon.Engine) error {
		return e.BurnCoupons(caller, publicKeys)
	})
}

// WithdrawFree moves part of the free balance out of the vault.
func (n *Node) WithdrawFree(caller [32]byte, amount *big.Int, to [32]byte) error {
	return n.withTransaction(func(e *coupon.Engine) error {
		return e.WithdrawFree(caller, amount, to)
	})
}

// WithdrawAll sweeps the whole free balance to the owner.
func (n *Node) WithdrawAll(caller [32]byte) (*big.Int, error) {
	var swept *big.Int
	err := n.withTransaction(func(e *coupon.Engine) error {
		var err error
		swept, err = e.WithdrawAll(caller)
		return err
	})
	if err != nil {
		return nil, err
	}
	return swept, nil
}

// TransferOwnership hands the vault to a new owner.
func (n *Node) TransferOwnership(caller, next [32]byte) error {
	return n.withTransaction(func(e *coupon.Engine) error {
		return e.TransferOwnership(caller, next)
	})
}

// Deposit credits the vault's custodied pool.
func (n *Node) Deposit(amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	txn := n.state.Transaction()
	if err := txn.Deposit(amount); err != nil {
		return err
	}
	return txn.Commit()
}

// CheckCoupon reports a coupon's redeemability and amount.
func (n *Node) CheckCoupon(publicKey [32]byte) (bool, *big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.engine.SetState(n.readTransaction())
	n.engine.SetEmitter(nil)
	return n.engine.CheckCoupon(publicKey)
}

// FreeBalance reports custodied minus reserved funds. Owner only.
func (n *Node) FreeBalance(caller [32]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.engine.SetState(n.readTransaction())
	n.engine.SetEmitter(nil)
	return n.engine.FreeBalance(caller)
}

// Owner returns the current vault owner address.
func (n *Node) Owner() ([32]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readTransaction().Owner()
}

// InstanceID returns the vault's deployment identifier used to scope
// redemption signatures.
func (n *Node) InstanceID() ([32]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readTransaction().InstanceID()
}

// BalanceOf reports the funds paid out to an account so far.
func (n *Node) BalanceOf(addr [32]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readTransaction().BalanceOf(addr)
}

// Custodied reports the vault's total held funds.
func (n *Node) Custodied() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readTransaction().Custodied()
}
