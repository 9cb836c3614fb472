package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix defines the human-readable prefix used for account addresses.
type AddressPrefix string

const (
	// OcexPrefix is the prefix for vault account addresses.
	OcexPrefix AddressPrefix = "ocex"
)

// AddressLength is the size of a raw account identifier. Accounts are
// identified by 32-byte values, matching the sr25519 public key size.
const AddressLength = 32

// Address represents a 32-byte account address with a bech32 prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != AddressLength {
		panic("address must be 32 bytes long")
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return append([]byte(nil), a.bytes...)
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("invalid address length: %d", len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// --- Key Management ---

// PrivateKey wraps an sr25519 mini secret key. Coupon secrets and account
// keys are both plain sr25519 keys in the Ristretto group.
type PrivateKey struct {
	raw  [32]byte
	mini *schnorrkel.MiniSecretKey
}

// PublicKey wraps an sr25519 public key.
type PublicKey struct {
	pub *schnorrkel.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return nil, err
	}
	return privateKeyFromRaw(raw)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes long")
	}
	var raw [32]byte
	copy(raw[:], b)
	return privateKeyFromRaw(raw)
}

func privateKeyFromRaw(raw [32]byte) (*PrivateKey, error) {
	mini, err := schnorrkel.NewMiniSecretKeyFromRaw(raw)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{raw: raw, mini: mini}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return append([]byte(nil), k.raw[:]...)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{pub: k.mini.Public()}
}

// Sign produces a 64-byte detached schnorrkel signature over msg in the
// given signing context.
func (k *PrivateKey) Sign(context, msg []byte) ([64]byte, error) {
	secret := k.mini.ExpandEd25519()
	transcript := schnorrkel.NewSigningContext(context, msg)
	sig, err := secret.Sign(transcript)
	if err != nil {
		return [64]byte{}, err
	}
	return sig.Encode(), nil
}

func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("public key must be 32 bytes long")
	}
	var raw [32]byte
	copy(raw[:], b)
	pub := new(schnorrkel.PublicKey)
	if err := pub.Decode(raw); err != nil {
		return nil, err
	}
	return &PublicKey{pub: pub}, nil
}

// Bytes returns the compressed Ristretto point for the public key.
func (k *PublicKey) Bytes() []byte {
	raw := k.pub.Encode()
	return raw[:]
}

// Verify checks a 64-byte detached signature over msg in the given signing
// context. A malformed signature yields an error, a well-formed but
// mismatched one yields false.
func (k *PublicKey) Verify(context, msg []byte, sigBytes [64]byte) (bool, error) {
	sig := new(schnorrkel.Signature)
	if err := sig.Decode(sigBytes); err != nil {
		return false, err
	}
	transcript := schnorrkel.NewSigningContext(context, msg)
	return k.pub.Verify(sig, transcript)
}

// Address derives the account address for this public key.
func (k *PublicKey) Address() Address {
	return NewAddress(OcexPrefix, k.Bytes())
}
