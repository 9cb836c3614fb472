package coupon

import (
	"ocex/crypto"
)

// Redemption signatures are schnorrkel signatures over the receiver address
// bytes, produced in a signing context keyed by the vault instance id. The
// instance scoping ties a signature to one deployment: a capture replayed
// against another vault holding the same coupon key verifies against a
// different transcript and fails.

// SignRedemption produces the detached signature a coupon holder submits to
// redeem. Used by the offline signer tool and by tests.
func SignRedemption(instanceID [32]byte, secret *crypto.PrivateKey, receiver [32]byte) ([64]byte, error) {
	return secret.Sign(instanceID[:], receiver[:])
}

// VerifyRedemption checks a redemption signature for the coupon public key.
// Any parse or verification failure collapses to ErrInvalidSignature; the
// caller cannot distinguish a malformed point from a wrong key.
func VerifyRedemption(instanceID [32]byte, publicKey [32]byte, receiver [32]byte, sig [64]byte) error {
	pub, err := crypto.PublicKeyFromBytes(publicKey[:])
	if err != nil {
		return ErrInvalidSignature
	}
	ok, err := pub.Verify(instanceID[:], receiver[:], sig)
	if err != nil || !ok {
		return ErrInvalidSignature
	}
	return nil
}
