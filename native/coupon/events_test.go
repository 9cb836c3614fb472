package coupon

import (
	"math/big"
	"testing"

	"ocex/core/events"
)

func TestLifecycleEventsEmitted(t *testing.T) {
	engine, state, owner := newTestEngine(t, 1000)
	emitter := &events.MemoryEmitter{}
	engine.SetEmitter(emitter)

	publicKey, secret := newTestCoupon(t)
	receiver := newTestAddress(0x0E)

	if err := engine.AddCoupon(owner, publicKey, big.NewInt(250)); err != nil {
		t.Fatalf("add coupon: %v", err)
	}
	sig, err := SignRedemption(state.instance, secret, receiver)
	if err != nil {
		t.Fatalf("sign redemption: %v", err)
	}
	if err := engine.Activate(receiver, publicKey, sig); err != nil {
		t.Fatalf("activate: %v", err)
	}

	emitted := emitter.Events()
	if len(emitted) != 2 {
		t.Fatalf("expected 2 events, got %d", len(emitted))
	}
	if emitted[0].EventType() != EventTypeCouponAdded {
		t.Fatalf("event[0] = %s, want %s", emitted[0].EventType(), EventTypeCouponAdded)
	}
	if emitted[1].EventType() != EventTypeCouponActivated {
		t.Fatalf("event[1] = %s, want %s", emitted[1].EventType(), EventTypeCouponActivated)
	}
	attrs := emitted[1].Attributes()
	if attrs["amount"] != "250" {
		t.Fatalf("activated amount attribute = %q, want %q", attrs["amount"], "250")
	}
}

func TestFailedOperationsEmitNothing(t *testing.T) {
	engine, _, owner := newTestEngine(t, 100)
	emitter := &events.MemoryEmitter{}
	engine.SetEmitter(emitter)

	publicKey, _ := newTestCoupon(t)
	if err := engine.AddCoupon(owner, publicKey, big.NewInt(500)); err == nil {
		t.Fatalf("expected over-reservation to fail")
	}
	if got := len(emitter.Events()); got != 0 {
		t.Fatalf("failed operation emitted %d events", got)
	}
}
