package core

import (
	"errors"
	"math/big"
	"testing"

	"ocex/crypto"
	"ocex/native/coupon"
	"ocex/storage"
)

func newTestNode(t *testing.T, funded int64) (*Node, [32]byte) {
	t.Helper()
	db := storage.NewMemDB()
	owner := testKey32(0x01)
	node, err := NewNode(db, owner)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	if funded > 0 {
		if err := node.Deposit(big.NewInt(funded)); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	return node, owner
}

func newNodeCoupon(t *testing.T) ([32]byte, *crypto.PrivateKey) {
	t.Helper()
	secret, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate coupon secret: %v", err)
	}
	var publicKey [32]byte
	copy(publicKey[:], secret.PubKey().Bytes())
	return publicKey, secret
}

func TestNodeInitPersistsOwnerAndInstance(t *testing.T) {
	db := storage.NewMemDB()
	owner := testKey32(0x01)
	node, err := NewNode(db, owner)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	id, err := node.InstanceID()
	if err != nil {
		t.Fatalf("instance id: %v", err)
	}
	if id == ([32]byte{}) {
		t.Fatalf("instance id must be generated at first boot")
	}

	// A restart with a different configured owner keeps the stored one, and
	// the instance id survives unchanged.
	restarted, err := NewNode(db, testKey32(0x09))
	if err != nil {
		t.Fatalf("restart node: %v", err)
	}
	storedOwner, err := restarted.Owner()
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if storedOwner != owner {
		t.Fatalf("owner = %x, want the originally stored owner", storedOwner)
	}
	restartedID, err := restarted.InstanceID()
	if err != nil {
		t.Fatalf("instance id: %v", err)
	}
	if restartedID != id {
		t.Fatalf("instance id changed across restarts")
	}
}

func TestNodeRequiresOwnerOnFirstBoot(t *testing.T) {
	if _, err := NewNode(storage.NewMemDB(), [32]byte{}); err == nil {
		t.Fatalf("expected error for unset owner")
	}
}

func TestNodeFullLifecycle(t *testing.T) {
	node, owner := newTestNode(t, 1000)
	publicKey, secret := newNodeCoupon(t)
	receiver := testKey32(0x0E)

	if err := node.AddCoupon(owner, publicKey, big.NewInt(300)); err != nil {
		t.Fatalf("add coupon: %v", err)
	}
	free, err := node.FreeBalance(owner)
	if err != nil || free.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("free balance = %s, want 700", free)
	}

	id, err := node.InstanceID()
	if err != nil {
		t.Fatalf("instance id: %v", err)
	}
	sig, err := coupon.SignRedemption(id, secret, receiver)
	if err != nil {
		t.Fatalf("sign redemption: %v", err)
	}
	if err := node.Activate(receiver, publicKey, sig); err != nil {
		t.Fatalf("activate: %v", err)
	}

	balance, err := node.BalanceOf(receiver)
	if err != nil || balance.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("receiver balance = %s, want 300", balance)
	}
	active, amount, err := node.CheckCoupon(publicKey)
	if err != nil {
		t.Fatalf("check coupon: %v", err)
	}
	if active || amount.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("check coupon = (%v, %s), want (false, 300)", active, amount)
	}
	free, err = node.FreeBalance(owner)
	if err != nil || free.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("free balance = %s, want unchanged 700", free)
	}

	if err := node.Activate(receiver, publicKey, sig); !errors.Is(err, coupon.ErrAlreadyRedeemed) {
		t.Fatalf("expected ErrAlreadyRedeemed, got %v", err)
	}

	evts := node.Events()
	if len(evts) != 2 {
		t.Fatalf("expected 2 retained events, got %d", len(evts))
	}
}

func TestNodeFailedBatchCommitsNothing(t *testing.T) {
	node, owner := newTestNode(t, 500)
	first, _ := newNodeCoupon(t)
	second, _ := newNodeCoupon(t)

	specs := []coupon.Spec{
		{PublicKey: first, Amount: big.NewInt(300)},
		{PublicKey: second, Amount: big.NewInt(300)},
	}
	if err := node.AddCoupons(owner, specs); !errors.Is(err, coupon.ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if _, _, err := node.CheckCoupon(first); !errors.Is(err, coupon.ErrCouponNotFound) {
		t.Fatalf("rejected batch leaked coupon: %v", err)
	}
	free, err := node.FreeBalance(owner)
	if err != nil || free.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("free balance = %s, want 500", free)
	}

	if err := node.AddCoupons(owner, specs[:1]); err != nil {
		t.Fatalf("add coupons: %v", err)
	}
	active, _, err := node.CheckCoupon(first)
	if err != nil || !active {
		t.Fatalf("committed batch coupon missing: %v", err)
	}
	if len(node.Events()) != 1 {
		t.Fatalf("expected 1 retained event, got %d", len(node.Events()))
	}
}

func TestNodeOwnershipAndWithdrawals(t *testing.T) {
	node, owner := newTestNode(t, 1000)
	publicKey, _ := newNodeCoupon(t)
	next := testKey32(0x03)

	if err := node.AddCoupon(owner, publicKey, big.NewInt(600)); err != nil {
		t.Fatalf("add coupon: %v", err)
	}
	if err := node.TransferOwnership(owner, next); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	if _, err := node.FreeBalance(owner); !errors.Is(err, coupon.ErrUnauthorized) {
		t.Fatalf("previous owner retained access: %v", err)
	}
	if err := node.BurnCoupons(next, [][32]byte{publicKey}); err != nil {
		t.Fatalf("burn coupons: %v", err)
	}
	swept, err := node.WithdrawAll(next)
	if err != nil {
		t.Fatalf("withdraw all: %v", err)
	}
	if swept.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("swept = %s, want 1000", swept)
	}
	balance, err := node.BalanceOf(next)
	if err != nil || balance.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("owner balance = %s, want 1000", balance)
	}
	custodied, err := node.Custodied()
	if err != nil || custodied.Sign() != 0 {
		t.Fatalf("custodied = %s, want 0", custodied)
	}
}

func TestNodeDepositValidation(t *testing.T) {
	node, _ := newTestNode(t, 0)
	if err := node.Deposit(big.NewInt(0)); !errors.Is(err, coupon.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := node.Deposit(big.NewInt(-5)); !errors.Is(err, coupon.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := node.Deposit(big.NewInt(42)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	custodied, err := node.Custodied()
	if err != nil || custodied.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("custodied = %s, want 42", custodied)
	}
}
