package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"ocex/native/coupon"
	"ocex/storage"
)

var (
	ownerKey      = []byte("vault/owner")
	reservedKey   = []byte("vault/reserved")
	custodiedKey  = []byte("vault/custodied")
	instanceKey   = []byte("vault/instance")
	couponPrefix  = []byte("vault/coupon/")
	accountPrefix = []byte("vault/account/")
)

// ErrInsufficientCustody is returned when a transfer would move more funds
// than the vault currently holds.
var ErrInsufficientCustody = errors.New("state: transfer exceeds custodied funds")

// storedCoupon is the rlp wire form of a coupon record. Timestamps are
// widened to uint64 because rlp has no signed integer encoding.
type storedCoupon struct {
	Amount    *big.Int
	Status    uint8
	CreatedAt uint64
	BurnedAt  uint64
}

// Manager owns the vault's persistent state. All reads and writes go through
// per-call transactions so that a failed operation commits nothing.
type Manager struct {
	db storage.Database
}

// NewManager constructs a state manager bound to the given database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Transaction opens a copy-on-write overlay over the database. Reads fall
// through to committed state, writes stage in memory until Commit flushes
// them in a single atomic batch.
func (m *Manager) Transaction() *Transaction {
	return &Transaction{
		db:     m.db,
		writes: make(map[string][]byte),
		order:  nil,
	}
}

// Transaction is a staged view of vault state. It satisfies the coupon
// engine's state interface; discarding it (by never calling Commit) undoes
// every mutation of the enclosing operation.
type Transaction struct {
	db     storage.Database
	writes map[string][]byte
	order  []string
}

func (t *Transaction) get(key []byte) ([]byte, bool, error) {
	if staged, ok := t.writes[string(key)]; ok {
		return staged, staged != nil, nil
	}
	value, err := t.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *Transaction) put(key []byte, value []byte) {
	k := string(key)
	if _, seen := t.writes[k]; !seen {
		t.order = append(t.order, k)
	}
	t.writes[k] = value
}

// Commit flushes all staged writes atomically.
func (t *Transaction) Commit() error {
	if len(t.writes) == 0 {
		return nil
	}
	entries := make([]storage.BatchEntry, 0, len(t.writes))
	for _, key := range t.order {
		entries = append(entries, storage.BatchEntry{Key: []byte(key), Value: t.writes[key]})
	}
	return t.db.WriteBatch(entries)
}

func couponKey(publicKey [32]byte) []byte {
	return append(append([]byte(nil), couponPrefix...), publicKey[:]...)
}

func accountKey(addr [32]byte) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

// CouponPut persists a sanitized coupon record.
func (t *Transaction) CouponPut(c *coupon.Coupon) error {
	sanitized, err := coupon.Sanitize(c)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(&storedCoupon{
		Amount:    sanitized.Amount,
		Status:    uint8(sanitized.Status),
		CreatedAt: uint64(sanitized.CreatedAt),
		BurnedAt:  uint64(sanitized.BurnedAt),
	})
	if err != nil {
		return err
	}
	t.put(couponKey(sanitized.PublicKey), encoded)
	return nil
}

// CouponGet loads a coupon record by public key.
func (t *Transaction) CouponGet(publicKey [32]byte) (*coupon.Coupon, bool, error) {
	raw, ok, err := t.get(couponKey(publicKey))
	if err != nil || !ok {
		return nil, false, err
	}
	var stored storedCoupon
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("state: corrupt coupon record: %w", err)
	}
	return &coupon.Coupon{
		PublicKey: publicKey,
		Amount:    stored.Amount,
		Status:    coupon.Status(stored.Status),
		CreatedAt: int64(stored.CreatedAt),
		BurnedAt:  int64(stored.BurnedAt),
	}, true, nil
}

func (t *Transaction) getAddress(key []byte) ([32]byte, bool, error) {
	raw, ok, err := t.get(key)
	if err != nil || !ok {
		return [32]byte{}, false, err
	}
	if len(raw) != 32 {
		return [32]byte{}, false, fmt.Errorf("state: corrupt address record under %q", key)
	}
	var addr [32]byte
	copy(addr[:], raw)
	return addr, true, nil
}

func (t *Transaction) getAmount(key []byte) (*big.Int, error) {
	raw, ok, err := t.get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(raw, amount); err != nil {
		return nil, fmt.Errorf("state: corrupt amount record under %q: %w", key, err)
	}
	return amount, nil
}

func (t *Transaction) putAmount(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: amount must be non-negative")
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	t.put(key, encoded)
	return nil
}

// Owner returns the vault owner address.
func (t *Transaction) Owner() ([32]byte, error) {
	owner, ok, err := t.getAddress(ownerKey)
	if err != nil {
		return [32]byte{}, err
	}
	if !ok {
		return [32]byte{}, errors.New("state: owner not initialised")
	}
	return owner, nil
}

// SetOwner replaces the vault owner address.
func (t *Transaction) SetOwner(addr [32]byte) error {
	t.put(ownerKey, addr[:])
	return nil
}

// HasOwner reports whether an owner has been persisted yet.
func (t *Transaction) HasOwner() (bool, error) {
	_, ok, err := t.getAddress(ownerKey)
	return ok, err
}

// Reserved returns the total amount reserved for active coupons.
func (t *Transaction) Reserved() (*big.Int, error) {
	return t.getAmount(reservedKey)
}

// SetReserved replaces the reserved total.
func (t *Transaction) SetReserved(amount *big.Int) error {
	return t.putAmount(reservedKey, amount)
}

// Custodied returns the total funds held by the vault.
func (t *Transaction) Custodied() (*big.Int, error) {
	return t.getAmount(custodiedKey)
}

// Deposit credits the vault's custodied pool.
func (t *Transaction) Deposit(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return coupon.ErrInvalidAmount
	}
	custodied, err := t.Custodied()
	if err != nil {
		return err
	}
	return t.putAmount(custodiedKey, new(big.Int).Add(custodied, amount))
}

// Transfer moves amount from the vault's custody to the receiver's account.
func (t *Transaction) Transfer(to [32]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return coupon.ErrInvalidAmount
	}
	custodied, err := t.Custodied()
	if err != nil {
		return err
	}
	if custodied.Cmp(amount) < 0 {
		return ErrInsufficientCustody
	}
	balance, err := t.getAmount(accountKey(to))
	if err != nil {
		return err
	}
	if err := t.putAmount(custodiedKey, new(big.Int).Sub(custodied, amount)); err != nil {
		return err
	}
	return t.putAmount(accountKey(to), new(big.Int).Add(balance, amount))
}

// BalanceOf returns the funds paid out to an account so far.
func (t *Transaction) BalanceOf(addr [32]byte) (*big.Int, error) {
	return t.getAmount(accountKey(addr))
}

// InstanceID returns the vault's persistent 32-byte deployment identifier.
func (t *Transaction) InstanceID() ([32]byte, error) {
	id, ok, err := t.getAddress(instanceKey)
	if err != nil {
		return [32]byte{}, err
	}
	if !ok {
		return [32]byte{}, errors.New("state: instance id not initialised")
	}
	return id, nil
}

// SetInstanceID persists the deployment identifier. Written once at first
// boot and never changed afterwards.
func (t *Transaction) SetInstanceID(id [32]byte) error {
	t.put(instanceKey, id[:])
	return nil
}

// HasInstanceID reports whether a deployment identifier exists yet.
func (t *Transaction) HasInstanceID() (bool, error) {
	_, ok, err := t.getAddress(instanceKey)
	return ok, err
}
