package crypto

import (
	"bytes"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	context := []byte("test-context")
	msg := []byte("payload")

	sig, err := key.Sign(context, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := key.PubKey().Verify(context, msg, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyRejectsWrongContext(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	msg := []byte("payload")
	sig, err := key.Sign([]byte("context-a"), msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if ok, _ := key.PubKey().Verify([]byte("context-b"), msg, sig); ok {
		t.Fatal("signature verified under the wrong context")
	}
	if ok, _ := key.PubKey().Verify([]byte("context-a"), []byte("other"), sig); ok {
		t.Fatal("signature verified for the wrong message")
	}
}

func TestPrivateKeyBytesRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore key: %v", err)
	}
	if !bytes.Equal(restored.PubKey().Bytes(), key.PubKey().Bytes()) {
		t.Fatal("restored key derives a different public key")
	}
}

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), addr.Bytes()) {
		t.Fatal("decoded address differs from original")
	}
	if _, err := DecodeAddress("ocex1invalid"); err == nil {
		t.Fatal("expected malformed address to fail")
	}
}
