package core

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"ocex/native/coupon"
	"ocex/storage"
)

func testKey32(fill byte) [32]byte {
	var key [32]byte
	copy(key[:], bytes.Repeat([]byte{fill}, 32))
	return key
}

func TestTransactionStagesUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	txn := manager.Transaction()
	if err := txn.SetOwner(testKey32(0x01)); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	if err := txn.Deposit(big.NewInt(500)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// Nothing visible to a fresh transaction before commit.
	fresh := manager.Transaction()
	if ok, err := fresh.HasOwner(); err != nil || ok {
		t.Fatalf("uncommitted owner leaked: ok=%v err=%v", ok, err)
	}
	custodied, err := fresh.Custodied()
	if err != nil || custodied.Sign() != 0 {
		t.Fatalf("uncommitted deposit leaked: %s, %v", custodied, err)
	}

	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	fresh = manager.Transaction()
	owner, err := fresh.Owner()
	if err != nil {
		t.Fatalf("owner after commit: %v", err)
	}
	if owner != testKey32(0x01) {
		t.Fatalf("owner = %x, want repeated 0x01", owner)
	}
	custodied, err = fresh.Custodied()
	if err != nil || custodied.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("custodied = %s, want 500", custodied)
	}
}

func TestCouponRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	txn := manager.Transaction()

	publicKey := testKey32(0x22)
	record := &coupon.Coupon{
		PublicKey: publicKey,
		Amount:    big.NewInt(1234),
		Status:    coupon.StatusActive,
		CreatedAt: 1700000000,
	}
	if err := txn.CouponPut(record); err != nil {
		t.Fatalf("coupon put: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	loaded, ok, err := manager.Transaction().CouponGet(publicKey)
	if err != nil || !ok {
		t.Fatalf("coupon get: ok=%v err=%v", ok, err)
	}
	if loaded.Amount.Cmp(big.NewInt(1234)) != 0 || loaded.Status != coupon.StatusActive || loaded.CreatedAt != 1700000000 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}

	if _, ok, err := manager.Transaction().CouponGet(testKey32(0x23)); err != nil || ok {
		t.Fatalf("unknown coupon: ok=%v err=%v", ok, err)
	}
}

func TestTransferMovesCustodyToAccount(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	txn := manager.Transaction()
	receiver := testKey32(0x0E)

	if err := txn.Deposit(big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := txn.Transfer(receiver, big.NewInt(150)); !errors.Is(err, ErrInsufficientCustody) {
		t.Fatalf("expected ErrInsufficientCustody, got %v", err)
	}
	if err := txn.Transfer(receiver, big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	custodied, err := txn.Custodied()
	if err != nil || custodied.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("custodied = %s, want 40", custodied)
	}
	balance, err := txn.BalanceOf(receiver)
	if err != nil || balance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("receiver balance = %s, want 60", balance)
	}
}

func TestInstanceIDPersists(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	txn := manager.Transaction()
	id := testKey32(0x5A)
	if err := txn.SetInstanceID(id); err != nil {
		t.Fatalf("set instance id: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	loaded, err := NewManager(db).Transaction().InstanceID()
	if err != nil {
		t.Fatalf("instance id: %v", err)
	}
	if loaded != id {
		t.Fatalf("instance id = %x, want %x", loaded, id)
	}
}
