package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"ocex/crypto"
	"ocex/native/coupon"
)

// ocex-sign produces redemption signatures offline. The coupon secret never
// has to touch the vault host: the issuer hands out the secret, the receiver
// runs this tool against the vault instance id and their own address.
func main() {
	instanceFlag := flag.String("instance", "", "Vault instance id (0x-prefixed hex, 32 bytes)")
	couponFlag := flag.String("coupon", "", "Coupon secret key (0x-prefixed hex, 32 bytes)")
	receiverFlag := flag.String("receiver", "", "Receiver address (bech32, ocex1...)")
	shortFlag := flag.Bool("short", false, "Output only the hex signature")
	keygenFlag := flag.Bool("keygen", false, "Generate a fresh coupon keypair and exit")
	flag.Parse()

	if *keygenFlag {
		if err := runKeygen(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runSign(*instanceFlag, *couponFlag, *receiverFlag, *shortFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runKeygen() error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	fmt.Printf("Secret Key: 0x%s\n", hex.EncodeToString(key.Bytes()))
	fmt.Printf("Public Key: 0x%s\n", hex.EncodeToString(key.PubKey().Bytes()))
	fmt.Printf("Address: %s\n", key.PubKey().Address().String())
	return nil
}

func runSign(instanceHex, couponHex, receiverStr string, short bool) error {
	instance, err := parse32(instanceHex)
	if err != nil {
		return fmt.Errorf("invalid --instance: %w", err)
	}

	secretBytes, err := parse32(couponHex)
	if err != nil {
		return fmt.Errorf("invalid --coupon: %w", err)
	}
	secret, err := crypto.PrivateKeyFromBytes(secretBytes[:])
	if err != nil {
		return fmt.Errorf("invalid --coupon: %w", err)
	}

	receiverAddr, err := crypto.DecodeAddress(strings.TrimSpace(receiverStr))
	if err != nil {
		return fmt.Errorf("invalid --receiver: %w", err)
	}
	var receiver [32]byte
	copy(receiver[:], receiverAddr.Bytes())

	sig, err := coupon.SignRedemption(instance, secret, receiver)
	if err != nil {
		return err
	}
	hexSig := hex.EncodeToString(sig[:])

	if short {
		fmt.Printf("0x%s\n", hexSig)
		return nil
	}
	fmt.Println("---------------------------------------")
	fmt.Printf("Vault Instance: 0x%s\n", hex.EncodeToString(instance[:]))
	fmt.Printf("Payout Receiver: %s\n", receiverAddr.String())
	fmt.Printf("Coupon Public Key: 0x%s\n", hex.EncodeToString(secret.PubKey().Bytes()))
	fmt.Printf("Signature: 0x%s\n", hexSig)
	return nil
}

func parse32(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return out, fmt.Errorf("value required")
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, err
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("expected %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
