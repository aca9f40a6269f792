// Package xcrypto provides the primitive building blocks the onion core is
// assembled from: Curve25519 group operations, an AES-128-CTR keystream,
// an HMAC-SHA256 keyed PRF, and constant-time comparison. Nothing here
// understands headers, payloads, or hops.
package xcrypto

import (
	"crypto/rand"
	"fmt"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
)

// ScalarSize is the byte width of a scalar in the Curve25519 prime-order
// subgroup, and of a Montgomery u-coordinate group element.
const ScalarSize = 32

// Scalar is a 32-byte scalar reduced modulo the group order. Unlike
// golang.org/x/crypto/curve25519.X25519 and crypto/ecdh's X25519 curve,
// ScalarMult in this package never clamps: the blinding-factor chain needs
// plain scalar-multiplication associativity, which RFC7748 clamping does
// not preserve across repeated calls. Neither standard entry point exposes
// an unclamped ladder (crypto/ecdh's x25519ScalarMult clamps unconditionally
// before the first field operation), so ScalarMult runs its own ladder,
// built from the same field.Element arithmetic crypto/ecdh's internal
// ladder uses, with the clamping step omitted.
type Scalar [ScalarSize]byte

// GroupElement is a 32-byte Montgomery u-coordinate.
type GroupElement [ScalarSize]byte

// basepoint is the X25519 base point (u = 9).
var basepoint = GroupElement{9}

// GenerateScalar draws a scalar uniformly from the prime-order subgroup
// using a cryptographically strong entropy source.
func GenerateScalar() (Scalar, error) {
	var wide [64]byte
	if _, err := rand.Read(wide[:]); err != nil {
		return Scalar{}, fmt.Errorf("xcrypto: read random scalar: %w", err)
	}
	s, err := edwards25519.NewScalar().SetUniformBytes(wide[:])
	if err != nil {
		return Scalar{}, fmt.Errorf("xcrypto: reduce random scalar: %w", err)
	}
	var out Scalar
	copy(out[:], s.Bytes())
	clearBytes(wide[:])
	return out, nil
}

// ScalarFromWideBytes reduces 64 bytes of key-derivation output into a
// uniformly distributed scalar mod the group order. Used by the key
// schedule to turn HMAC/HKDF output into a blinding factor.
func ScalarFromWideBytes(wide []byte) (Scalar, error) {
	s, err := edwards25519.NewScalar().SetUniformBytes(wide)
	if err != nil {
		return Scalar{}, fmt.Errorf("xcrypto: reduce wide bytes into scalar: %w", err)
	}
	var out Scalar
	copy(out[:], s.Bytes())
	return out, nil
}

// ScalarBaseMult computes scalar*G, the X25519 base point.
func ScalarBaseMult(scalar Scalar) GroupElement {
	return ScalarMult(scalar, basepoint)
}

// ScalarMult computes scalar*point using the raw, unclamped Montgomery
// ladder (RFC 7748 §5's x25519 function, minus the decodeScalar25519
// clamping step). The caller is responsible for the group being used
// consistently (see the package doc comment).
func ScalarMult(scalar Scalar, point GroupElement) GroupElement {
	var x1, x2, z2, x3, z3, tmp0, tmp1 field.Element
	if _, err := x1.SetBytes(point[:]); err != nil {
		// point is a fixed-size [32]byte; SetBytes only rejects wrong
		// lengths, which cannot occur here.
		panic("xcrypto: group element decode: " + err.Error())
	}
	x2.One()
	x3.Set(&x1)
	z3.One()

	swap := 0
	for pos := 254; pos >= 0; pos-- {
		b := scalar[pos/8] >> uint(pos&7)
		b &= 1
		swap ^= int(b)
		x2.Swap(&x3, swap)
		z2.Swap(&z3, swap)
		swap = int(b)

		tmp0.Subtract(&x3, &z3)
		tmp1.Subtract(&x2, &z2)
		x2.Add(&x2, &z2)
		z2.Add(&x3, &z3)
		z3.Multiply(&tmp0, &x2)
		z2.Multiply(&z2, &tmp1)
		tmp0.Square(&tmp1)
		tmp1.Square(&x2)
		x3.Add(&z3, &z2)
		z2.Subtract(&z3, &z2)
		x2.Multiply(&tmp1, &tmp0)
		tmp1.Subtract(&tmp1, &tmp0)
		z2.Square(&z2)

		z3.Mult32(&tmp1, 121666)
		x3.Square(&x3)
		tmp0.Add(&tmp0, &z3)
		z3.Multiply(&x1, &z2)
		z2.Multiply(&tmp1, &tmp0)
	}

	x2.Swap(&x3, swap)
	z2.Swap(&z3, swap)

	z2.Invert(&z2)
	x2.Multiply(&x2, &z2)

	var dst GroupElement
	copy(dst[:], x2.Bytes())
	return dst
}

// MultiplyScalars composes two scalars modulo the group order. Chaining
// this across hops lets the sender derive the same accumulated exponent
// that each relay can recompute with a single ScalarMult against its own
// identity scalar.
func MultiplyScalars(a, b Scalar) (Scalar, error) {
	sa, err := edwards25519.NewScalar().SetCanonicalBytes(a[:])
	if err != nil {
		return Scalar{}, fmt.Errorf("xcrypto: scalar a not canonical: %w", err)
	}
	sb, err := edwards25519.NewScalar().SetCanonicalBytes(b[:])
	if err != nil {
		return Scalar{}, fmt.Errorf("xcrypto: scalar b not canonical: %w", err)
	}
	product := edwards25519.NewScalar().Multiply(sa, sb)
	var out Scalar
	copy(out[:], product.Bytes())
	return out, nil
}

// Zero overwrites the scalar's backing bytes. Call via defer immediately
// after a Scalar is no longer needed.
func (s *Scalar) Zero() {
	clearBytes(s[:])
}

// Zero overwrites the group element's backing bytes.
func (g *GroupElement) Zero() {
	clearBytes(g[:])
}
