package keyschedule

import (
	"bytes"
	"testing"

	"github.com/sphinxmix/onion/internal/xcrypto"
)

func TestDeriveDeterministic(t *testing.T) {
	var shared xcrypto.GroupElement
	copy(shared[:], bytes.Repeat([]byte{0x42}, xcrypto.ScalarSize))

	a, err := Derive(shared)
	if err != nil {
		t.Fatalf("derive 1: %v", err)
	}
	b, err := Derive(shared)
	if err != nil {
		t.Fatalf("derive 2: %v", err)
	}

	if a.StreamCipherKey != b.StreamCipherKey {
		t.Fatal("stream cipher key not deterministic")
	}
	if !bytes.Equal(a.HeaderMACKey, b.HeaderMACKey) {
		t.Fatal("header mac key not deterministic")
	}
	if !bytes.Equal(a.PayloadKey, b.PayloadKey) {
		t.Fatal("payload key not deterministic")
	}
	if a.BlindingFactor != b.BlindingFactor {
		t.Fatal("blinding factor not deterministic")
	}
}

func TestDeriveKeysAreIndependent(t *testing.T) {
	var shared xcrypto.GroupElement
	copy(shared[:], bytes.Repeat([]byte{0x7a}, xcrypto.ScalarSize))

	ks, err := Derive(shared)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	if bytes.Equal(ks.StreamCipherKey[:], ks.HeaderMACKey[:xcrypto.StreamCipherKeySize]) {
		t.Fatal("stream cipher key collides with header mac key prefix")
	}
	if bytes.Equal(ks.HeaderMACKey, ks.PayloadKey[:len(ks.HeaderMACKey)]) {
		t.Fatal("header mac key collides with payload key prefix")
	}
	if ks.BlindingFactor == (xcrypto.Scalar{}) {
		t.Fatal("blinding factor is zero")
	}
}

func TestDeriveDiffersPerSecret(t *testing.T) {
	var s1, s2 xcrypto.GroupElement
	copy(s1[:], bytes.Repeat([]byte{0x01}, xcrypto.ScalarSize))
	copy(s2[:], bytes.Repeat([]byte{0x02}, xcrypto.ScalarSize))

	a, err := Derive(s1)
	if err != nil {
		t.Fatalf("derive 1: %v", err)
	}
	b, err := Derive(s2)
	if err != nil {
		t.Fatalf("derive 2: %v", err)
	}

	if a.StreamCipherKey == b.StreamCipherKey {
		t.Fatal("different shared secrets produced the same stream cipher key")
	}
}

func TestZero(t *testing.T) {
	var shared xcrypto.GroupElement
	copy(shared[:], bytes.Repeat([]byte{0x9}, xcrypto.ScalarSize))

	ks, err := Derive(shared)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	ks.Zero()

	var zeroStream [xcrypto.StreamCipherKeySize]byte
	if ks.StreamCipherKey != zeroStream {
		t.Fatal("stream cipher key not zeroed")
	}
	for _, b := range ks.HeaderMACKey {
		if b != 0 {
			t.Fatal("header mac key not zeroed")
		}
	}
	for _, b := range ks.PayloadKey {
		if b != 0 {
			t.Fatal("payload key not zeroed")
		}
	}
	if ks.BlindingFactor != (xcrypto.Scalar{}) {
		t.Fatal("blinding factor not zeroed")
	}
}
