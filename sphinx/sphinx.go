// Package sphinx is the top-level façade: it wires internal/xcrypto,
// internal/keyschedule, header and payload together into the two
// operations a caller actually needs — BuildPacket, which onion-encrypts a
// message for an entire route in one call, and ProcessHop, the Unwrap
// Engine a relay runs against an incoming packet with nothing but its own
// identity key.
package sphinx

import (
	"errors"
	"fmt"

	"github.com/sphinxmix/onion/header"
	"github.com/sphinxmix/onion/internal/keyschedule"
	"github.com/sphinxmix/onion/internal/xcrypto"
	"github.com/sphinxmix/onion/payload"
	"github.com/sphinxmix/onion/params"
)

// Params is re-exported so callers depend only on this package for the
// common path; params.Params is identical.
type Params = params.Params

// DefaultParams is the frozen deployment configuration: σ=16, a 5-hop
// route, 1024-byte payloads.
var DefaultParams = params.Default

// RouteElement is re-exported from header for callers building routes.
type RouteElement = header.RouteElement

var (
	// ErrHeaderIntegrity is returned when a packet's HeaderMAC does not
	// verify against its EncryptedInfo under the recomputed key.
	ErrHeaderIntegrity = errors.New("sphinx: header mac verification failed")
	// ErrPayloadIntegrity is returned when the final hop's fully
	// unwrapped payload does not carry a zeroed integrity beacon.
	ErrPayloadIntegrity = errors.New("sphinx: payload integrity beacon mismatch")
)

// Packet is a complete onion: the sender's current ephemeral group
// element, the current routing header layer and its MAC, and the current
// payload layer. Every hop replaces all four fields with the next layer.
type Packet struct {
	Alpha         xcrypto.GroupElement
	EncryptedInfo header.EncryptedRoutingInfo
	HeaderMAC     []byte
	Payload       payload.Payload
}

// Serialize writes pkt to the wire format: alpha(32) ‖ EncryptedInfo
// (RoutingInfoSize) ‖ HeaderMAC(σ) ‖ Payload(PayloadSize).
func (pkt Packet) Serialize(p Params) []byte {
	out := make([]byte, 0, xcrypto.ScalarSize+p.RoutingInfoSize()+p.Sigma+p.PayloadSize)
	out = append(out, pkt.Alpha[:]...)
	out = append(out, pkt.EncryptedInfo...)
	out = append(out, pkt.HeaderMAC...)
	out = append(out, pkt.Payload...)
	return out
}

// ParsePacket reverses Serialize, validating the total length exactly.
func ParsePacket(p Params, b []byte) (Packet, error) {
	want := xcrypto.ScalarSize + p.RoutingInfoSize() + p.Sigma + p.PayloadSize
	if len(b) != want {
		return Packet{}, fmt.Errorf("sphinx: packet must be exactly %d bytes, got %d", want, len(b))
	}
	var pkt Packet
	off := 0
	copy(pkt.Alpha[:], b[off:off+xcrypto.ScalarSize])
	off += xcrypto.ScalarSize
	pkt.EncryptedInfo = append(header.EncryptedRoutingInfo(nil), b[off:off+p.RoutingInfoSize()]...)
	off += p.RoutingInfoSize()
	pkt.HeaderMAC = append([]byte(nil), b[off:off+p.Sigma]...)
	off += p.Sigma
	pl, err := payload.FromBytes(p, b[off:off+p.PayloadSize])
	if err != nil {
		return Packet{}, fmt.Errorf("sphinx: parse payload: %w", err)
	}
	pkt.Payload = pl
	return pkt, nil
}

// BuildPacket onion-encrypts message for destination along route, drawing
// a fresh ephemeral session key. route must name every relay's address and
// public key in order; the header's innermost layer (the last route
// element) need not set Final — finality is signalled purely by the
// reserved sentinel the builder writes, independent of any caller flag.
func BuildPacket(p params.Params, route []RouteElement, message, destination []byte) (Packet, error) {
	sessionKey, err := xcrypto.GenerateScalar()
	if err != nil {
		return Packet{}, fmt.Errorf("sphinx: generate session key: %w", err)
	}
	defer sessionKey.Zero()

	hdr, keys, err := header.Build(p, route, sessionKey)
	if err != nil {
		return Packet{}, fmt.Errorf("sphinx: build header: %w", err)
	}
	defer func() {
		for i := range keys {
			keys[i].Zero()
		}
	}()

	payloadKeys := make([][]byte, len(keys))
	for i, k := range keys {
		payloadKeys[i] = k.PayloadKey
	}
	pl, err := payload.Build(p, message, destination, payloadKeys)
	if err != nil {
		return Packet{}, fmt.Errorf("sphinx: build payload: %w", err)
	}

	return Packet{
		Alpha:         hdr.Alpha,
		EncryptedInfo: hdr.EncryptedInfo,
		HeaderMAC:     hdr.MAC,
		Payload:       pl,
	}, nil
}

// HopResult is what ProcessHop recovers from one packet, one layer peeled.
type HopResult struct {
	// Final reports whether this hop is the end of the route.
	Final bool
	// NextAddress is where to forward NextPacket. Set only if !Final.
	NextAddress []byte
	// NextPacket is the packet to forward on to NextAddress. Set only
	// if !Final.
	NextPacket *Packet
	// Destination and Message are the recovered final delivery address
	// and plaintext. Set only if Final.
	Destination []byte
	Message     []byte
}

// ProcessHop runs the Unwrap Engine: given a relay's identity scalar and
// an incoming packet, it re-derives the hop's routing keys, verifies the
// header MAC, peels one header layer and one payload layer, and either
// returns the next packet to forward or, at the final hop, the recovered
// destination and message. A degenerate (e.g. all-zero) alpha is not
// special-cased: it re-derives to routing keys the sender never used, so
// it fails the same header MAC check below and surfaces as
// ErrHeaderIntegrity, indistinguishable from any other forged packet.
func ProcessHop(p params.Params, identity xcrypto.Scalar, pkt Packet) (HopResult, error) {
	shared := xcrypto.ScalarMult(identity, pkt.Alpha)
	ks, err := keyschedule.Derive(shared)
	shared.Zero()
	if err != nil {
		return HopResult{}, fmt.Errorf("sphinx: derive routing keys: %w", err)
	}
	defer ks.Zero()

	if !header.VerifyMAC(p.Sigma, ks.HeaderMACKey, pkt.EncryptedInfo, pkt.HeaderMAC) {
		return HopResult{}, ErrHeaderIntegrity
	}

	peeled, err := header.Peel(p, ks.StreamCipherKey, pkt.EncryptedInfo)
	if err != nil {
		return HopResult{}, fmt.Errorf("sphinx: peel header: %w", err)
	}

	nextPayload, err := payload.Unwrap(ks.PayloadKey, pkt.Payload)
	if err != nil {
		return HopResult{}, fmt.Errorf("sphinx: unwrap payload: %w", err)
	}

	if peeled.Final {
		if !payload.IsFinal(p, nextPayload) {
			return HopResult{}, ErrPayloadIntegrity
		}
		destination, message := payload.SplitFinal(p, nextPayload)
		return HopResult{Final: true, Destination: destination, Message: message}, nil
	}

	nextAlpha := xcrypto.ScalarMult(ks.BlindingFactor, pkt.Alpha)
	nextPkt := &Packet{
		Alpha:         nextAlpha,
		EncryptedInfo: peeled.NextEncryptedInfo,
		HeaderMAC:     peeled.NextMAC,
		Payload:       nextPayload,
	}
	return HopResult{Final: false, NextAddress: peeled.NextAddress, NextPacket: nextPkt}, nil
}

// EncodeAddress packs a human identifier into a fixed σ-byte node address,
// right-padding with zero bytes, for use as a RouteElement.Address or
// BuildPacket destination. It is a convenience for callers (and the CLI)
// that think in short ASCII names rather than raw bytes; the all-zero
// address is reserved and EncodeAddress refuses to produce it.
func EncodeAddress(sigma int, name string) ([]byte, error) {
	if len(name) > sigma {
		return nil, fmt.Errorf("sphinx: address %q longer than %d bytes", name, sigma)
	}
	out := make([]byte, sigma)
	copy(out, name)
	if allZero(out) {
		return nil, errors.New("sphinx: address encodes to the reserved all-zero sentinel")
	}
	return out, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
