// Package header builds and peels the Sphinx routing header: the nested,
// fixed-size records that tell each hop where to forward next without
// revealing the rest of the route. Every layer is the same
// params.RoutingInfoSize() width; a relay peeling its own layer recovers
// the next layer's encrypted bytes byte-for-byte, including the bytes its
// predecessor's truncation dropped, via the zero-pad/keystream-cancellation
// trick in Peel. That reconstruction only produces the true inner
// ciphertext because Build seeds the innermost layer's tail with a
// precomputed filler (see buildFiller) rather than leaving it zero; without
// it, every hop but the last would recover arbitrary keystream bytes
// instead of the next layer's real EncryptedRoutingInfo.
package header

import (
	"errors"
	"fmt"

	"github.com/sphinxmix/onion/internal/keyschedule"
	"github.com/sphinxmix/onion/internal/xcrypto"
	"github.com/sphinxmix/onion/params"
)

// ErrNotAForwardHop is returned when a route element tagged Final appears
// anywhere but the last position of a route: only the terminal hop may be
// a non-forwarding entry.
var ErrNotAForwardHop = errors.New("header: non-forward route element is not last in route")

// ErrRouteTooLong is returned when the caller supplies more hops than the
// deployment's RouteLen allows.
var ErrRouteTooLong = errors.New("header: route longer than configured route length")

// RouteElement is one hop in an ordered route: either a forward relay
// (carrying the σ-byte address the previous hop routes to) or, only at the
// last position, the Final marker closing the route.
type RouteElement struct {
	// Final marks the route's terminal hop. A Final hop still receives
	// routing keys (it decrypts one header layer and one payload layer
	// like any other hop) but its own innermost record carries the
	// reserved sentinel instead of a forwarding address.
	Final bool
	// Address is this hop's σ-byte network address, used by the
	// previous hop's record to name it as next_node_address. The Final
	// hop's Address is used the same way; the first hop's Address is
	// not written into the header.
	Address []byte
	// PublicKey is this hop's long-term (or per-circuit) Curve25519
	// public key, used to derive the per-hop shared secret.
	PublicKey xcrypto.GroupElement
}

// EncryptedRoutingInfo is one layer of onion-encrypted routing data, always
// exactly params.RoutingInfoSize() bytes.
type EncryptedRoutingInfo []byte

// Header is the wire-format routing header: the sender's current group
// element, the current (outermost) encrypted routing info, and its MAC.
type Header struct {
	Alpha         xcrypto.GroupElement
	EncryptedInfo EncryptedRoutingInfo
	MAC           []byte
}

// finalSentinel is the reserved all-zero address pattern that marks a
// layer as terminal. A real node address must never collide with it; the
// deployment is responsible for never allocating the all-zero address.
func finalSentinel(sigma int) []byte {
	return make([]byte, sigma)
}

// Build constructs a routing header for route, working from the innermost
// (last) hop outward, and returns the per-hop RoutingKeys sender-side so
// the caller can use PayloadKey/StreamCipherKey for the matching payload
// and keystream-determinism operations. sessionKey is the sender's
// ephemeral scalar x0; route must have at most p.RouteLen elements and the
// Final element, if any, must be last.
func Build(p params.Params, route []RouteElement, sessionKey xcrypto.Scalar) (Header, []keyschedule.RoutingKeys, error) {
	n := len(route)
	if n == 0 {
		return Header{}, nil, errors.New("header: empty route")
	}
	if n > p.RouteLen {
		return Header{}, nil, ErrRouteTooLong
	}
	for i := 0; i < n-1; i++ {
		if route[i].Final {
			return Header{}, nil, ErrNotAForwardHop
		}
	}

	sigma := p.Sigma
	infoSize := p.RoutingInfoSize()
	truncSize := p.TruncatedRoutingInfoSize()

	alpha0 := xcrypto.ScalarBaseMult(sessionKey)
	keysSet := make([]keyschedule.RoutingKeys, n)

	current := sessionKey
	for i := 0; i < n; i++ {
		shared := xcrypto.ScalarMult(current, route[i].PublicKey)
		ks, err := keyschedule.Derive(shared)
		shared.Zero()
		if err != nil {
			current.Zero()
			zeroAll(keysSet[:i])
			return Header{}, nil, fmt.Errorf("header: derive routing keys for hop %d: %w", i, err)
		}
		keysSet[i] = ks

		if i == n-1 {
			current.Zero()
			break
		}
		next, err := xcrypto.MultiplyScalars(current, ks.BlindingFactor)
		current.Zero()
		if err != nil {
			zeroAll(keysSet[:i+1])
			return Header{}, nil, fmt.Errorf("header: compose blinding factor at hop %d: %w", i, err)
		}
		current = next
	}

	filler, err := buildFiller(p, keysSet)
	if err != nil {
		zeroAll(keysSet)
		return Header{}, nil, err
	}

	// Innermost layer: an all-zero buffer (the reserved final sentinel
	// occupies its leading σ bytes; the rest is deployment-constant
	// zero padding), encrypted and MACed under the last hop's keys. The
	// filler then overwrites its tail so that every outer hop's Peel
	// call reconstructs the true inner ciphertext instead of arbitrary
	// keystream bytes at the positions its own truncation dropped.
	innerPlain := make([]byte, infoSize)
	encInner, err := encryptLayer(keysSet[n-1].StreamCipherKey, innerPlain)
	if err != nil {
		zeroAll(keysSet)
		return Header{}, nil, fmt.Errorf("header: encrypt innermost layer: %w", err)
	}
	if len(filler) > 0 {
		copy(encInner[infoSize-len(filler):], filler)
	}
	macInner := xcrypto.Tag(keysSet[n-1].HeaderMACKey, encInner)[:sigma]

	curEnc, curMAC := encInner, macInner
	for i := n - 2; i >= 0; i-- {
		record := make([]byte, infoSize)
		copy(record[0:sigma], route[i+1].Address)
		copy(record[sigma:2*sigma], curMAC)
		// bytes [2σ:3σ) left as the reserved zero gap.
		copy(record[3*sigma:], curEnc[:truncSize])

		enc, err := encryptLayer(keysSet[i].StreamCipherKey, record)
		if err != nil {
			zeroAll(keysSet)
			return Header{}, nil, fmt.Errorf("header: encrypt layer for hop %d: %w", i, err)
		}
		mac := xcrypto.Tag(keysSet[i].HeaderMACKey, enc)[:sigma]
		curEnc, curMAC = enc, mac
	}

	return Header{Alpha: alpha0, EncryptedInfo: curEnc, MAC: curMAC}, keysSet, nil
}

// PeeledLayer is the plaintext content of one routing record after Peel.
type PeeledLayer struct {
	// Final reports whether NextAddress matched the reserved sentinel,
	// i.e. this hop is the end of the route.
	Final bool
	// NextAddress is the σ-byte address of the hop to forward to. Only
	// meaningful when Final is false.
	NextAddress []byte
	// NextMAC is the σ-byte MAC the next hop's Header.MAC must carry.
	NextMAC []byte
	// NextEncryptedInfo is the next layer's EncryptedRoutingInfo,
	// reconstructed in full despite this layer's truncation.
	NextEncryptedInfo EncryptedRoutingInfo
}

// VerifyMAC reports, in constant time, whether mac is the correct header
// MAC for encInfo under macKey. sigma is the deployment's MAC size, taken
// explicitly rather than inferred from len(mac): a mac that isn't exactly
// sigma bytes is rejected outright instead of being compared against a
// truncated or out-of-range prefix of the recomputed tag. Callers MUST
// check this before Peel.
func VerifyMAC(sigma int, macKey []byte, encInfo EncryptedRoutingInfo, mac []byte) bool {
	if len(mac) != sigma {
		return false
	}
	want := xcrypto.Tag(macKey, encInfo)
	if sigma > len(want) {
		return false
	}
	return xcrypto.ConstantTimeEqual(want[:sigma], mac)
}

// Peel decrypts one routing layer under streamKey. encInfo must be exactly
// p.RoutingInfoSize() bytes; the result's NextEncryptedInfo is exactly
// p.RoutingInfoSize() bytes too, with the bytes this layer's builder
// truncated restored by keystream cancellation against the zero pad.
func Peel(p params.Params, streamKey [xcrypto.StreamCipherKeySize]byte, encInfo EncryptedRoutingInfo) (PeeledLayer, error) {
	sigma := p.Sigma
	infoSize := p.RoutingInfoSize()
	if len(encInfo) != infoSize {
		return PeeledLayer{}, fmt.Errorf("header: encrypted routing info must be %d bytes, got %d", infoSize, len(encInfo))
	}

	padded := make([]byte, infoSize+3*sigma)
	copy(padded, encInfo)

	keystream, err := xcrypto.Keystream(streamKey, len(padded))
	if err != nil {
		return PeeledLayer{}, fmt.Errorf("header: generate peel keystream: %w", err)
	}
	decrypted := make([]byte, len(padded))
	xcrypto.XOR(decrypted, padded, keystream)

	addr := decrypted[0:sigma]
	mac := decrypted[sigma : 2*sigma]
	nextEnc := EncryptedRoutingInfo(decrypted[3*sigma:])

	final := xcrypto.ConstantTimeEqual(addr, finalSentinel(sigma))
	return PeeledLayer{
		Final:             final,
		NextAddress:       addr,
		NextMAC:           mac,
		NextEncryptedInfo: nextEnc,
	}, nil
}

// encryptLayer XORs buf (exactly p.RoutingInfoSize() bytes, checked by the
// caller) with the first len(buf) bytes of the keystream under key.
func encryptLayer(key [xcrypto.StreamCipherKeySize]byte, buf []byte) (EncryptedRoutingInfo, error) {
	keystream, err := xcrypto.Keystream(key, len(buf))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(buf))
	xcrypto.XOR(out, buf, keystream)
	return out, nil
}

// buildFiller computes the Sphinx filler: the bytes that must occupy the
// tail of the innermost layer's ciphertext so that each forwarding hop's
// zero-pad/keystream-cancellation trick in Peel reconstructs the next
// layer's true EncryptedRoutingInfo, not just unrelated keystream bytes at
// the position its own 3σ truncation dropped. Every hop but the last
// contributes a slice of its own stream-cipher keystream into a widening
// window, the same sliding-window construction the teacher uses in
// generateFiller/rightShift, adapted to this package's fixed-width records
// (every hop truncates exactly 3σ bytes, where the teacher's hop records
// vary in size).
func buildFiller(p params.Params, keysSet []keyschedule.RoutingKeys) ([]byte, error) {
	n := len(keysSet)
	infoSize := p.RoutingInfoSize()
	d := 3 * p.Sigma
	fillerLen := (n - 1) * d
	if fillerLen == 0 {
		return nil, nil
	}
	// The filler must leave the innermost layer's leading σ bytes (the
	// final sentinel) untouched.
	if fillerLen > infoSize-p.Sigma {
		return nil, fmt.Errorf("header: route of %d hops needs a %d-byte filler, exceeds the %d bytes of routing info after the final sentinel", n, fillerLen, infoSize-p.Sigma)
	}

	filler := make([]byte, fillerLen)
	for i := 0; i < n-1; i++ {
		start := infoSize - i*d
		end := infoSize + d
		ks, err := xcrypto.Keystream(keysSet[i].StreamCipherKey, end)
		if err != nil {
			return nil, fmt.Errorf("header: generate filler keystream for hop %d: %w", i, err)
		}
		xcrypto.XOR(filler[:end-start], filler[:end-start], ks[start:end])
	}
	return filler, nil
}

func zeroAll(ks []keyschedule.RoutingKeys) {
	for i := range ks {
		ks[i].Zero()
	}
}
