package lioness

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, RawKeySize)
	if _, err := rand.Read(k); err != nil {
		t.Fatalf("read random key: %v", err)
	}
	return k
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := randomKey(t)
	plain := make([]byte, 1024)
	if _, err := rand.Read(plain); err != nil {
		t.Fatalf("read random plaintext: %v", err)
	}

	c, err := New(key)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	buf := append([]byte(nil), plain...)
	if err := c.Encrypt(buf); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(buf, plain) {
		t.Fatal("ciphertext equals plaintext")
	}

	c2, err := New(key)
	if err != nil {
		t.Fatalf("new cipher for decrypt: %v", err)
	}
	if err := c2.Decrypt(buf); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(buf, plain) {
		t.Fatal("decrypt did not recover original plaintext")
	}
}

func TestAvalanche(t *testing.T) {
	key := randomKey(t)
	plain := make([]byte, 1024)

	c1, err := New(key)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	out1 := append([]byte(nil), plain...)
	if err := c1.Encrypt(out1); err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	flipped := append([]byte(nil), plain...)
	flipped[0] ^= 0x01

	c2, err := New(key)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	out2 := append([]byte(nil), flipped...)
	if err := c2.Encrypt(out2); err != nil {
		t.Fatalf("encrypt flipped: %v", err)
	}

	diff := 0
	for i := range out1 {
		if out1[i] != out2[i] {
			diff++
		}
	}
	// A single flipped input bit should cascade through essentially the
	// whole block; demand at least a third of bytes differ as a coarse
	// avalanche sanity check (not a statistical proof).
	if diff < len(out1)/3 {
		t.Fatalf("too few bytes changed after 1-bit input flip: %d/%d", diff, len(out1))
	}
}

func TestKeyTooShort(t *testing.T) {
	_, err := New(make([]byte, RawKeySize-1))
	if err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestBlockTooShort(t *testing.T) {
	key := randomKey(t)
	c, err := New(key)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	if err := c.Encrypt(make([]byte, hashSize)); err != ErrBlockTooShort {
		t.Fatalf("expected ErrBlockTooShort, got %v", err)
	}
}
