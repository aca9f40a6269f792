// Package payload builds and peels the layered wide-block payload onion:
// the message body, wrapped once per hop with the Lioness cipher keyed by
// that hop's PayloadKey. Unlike the routing header, every hop's transform
// is length-preserving and full-block (no truncation dance) — Lioness's
// avalanche is what lets a single intermediate bit-flip be caught purely
// by an all-zero integrity beacon check at the end of the chain.
package payload

import (
	"errors"
	"fmt"

	"github.com/sphinxmix/onion/internal/lioness"
	"github.com/sphinxmix/onion/params"
)

// ErrPayloadTooLarge is returned when a message plus destination plus the
// integrity beacon would not fit in the deployment's PayloadSize.
var ErrPayloadTooLarge = errors.New("payload: message and destination exceed payload size")

// ErrInvalidPayloadLength is returned by FromBytes when the supplied bytes
// are not exactly p.PayloadSize long. Unlike the original implementation
// this was distilled from (which only enforced a minimum), this is an
// exact-length check: a short or long buffer can never be a valid wire
// payload.
var ErrInvalidPayloadLength = errors.New("payload: must be exactly the configured payload size")

// Payload is an opaque, fixed-size onion-encrypted payload blob.
type Payload []byte

// FromBytes validates that b is exactly p.PayloadSize bytes and returns it
// as a Payload, copying so the caller's buffer can be reused safely.
func FromBytes(p params.Params, b []byte) (Payload, error) {
	if len(b) != p.PayloadSize {
		return nil, ErrInvalidPayloadLength
	}
	out := make(Payload, len(b))
	copy(out, b)
	return out, nil
}

// Build constructs the innermost payload plaintext for message m and
// destination d — zero_pad(σ) ‖ d ‖ m ‖ zero_pad(rest) — then wraps it once
// per key in payloadKeys, innermost key last in the slice order matching
// header.Build's per-hop keyschedule output (payloadKeys[len-1] is applied
// first, payloadKeys[0] last, so the packet's outermost payload layer is
// the one the first hop peels).
func Build(p params.Params, message, destination []byte, payloadKeys [][]byte) (Payload, error) {
	sigma := p.Sigma
	if len(destination) != sigma {
		return nil, fmt.Errorf("payload: destination must be %d bytes, got %d", sigma, len(destination))
	}
	used := sigma + len(destination) + len(message)
	if used > p.PayloadSize {
		return nil, ErrPayloadTooLarge
	}

	buf := make([]byte, p.PayloadSize)
	// buf[0:sigma) is already zero: the integrity beacon.
	copy(buf[sigma:sigma+len(destination)], destination)
	copy(buf[sigma+len(destination):used], message)
	// remainder already zero-padded.

	for i := len(payloadKeys) - 1; i >= 0; i-- {
		c, err := lioness.New(payloadKeys[i])
		if err != nil {
			return nil, fmt.Errorf("payload: build lioness cipher for hop %d: %w", i, err)
		}
		if err := c.Encrypt(buf); err != nil {
			return nil, fmt.Errorf("payload: encrypt layer for hop %d: %w", i, err)
		}
	}
	return Payload(buf), nil
}

// Unwrap peels one Lioness layer under payloadKey, in place conceptually
// but returning a fresh buffer so the caller's Payload stays untouched on
// error.
func Unwrap(payloadKey []byte, p Payload) (Payload, error) {
	c, err := lioness.New(payloadKey)
	if err != nil {
		return nil, fmt.Errorf("payload: build lioness cipher: %w", err)
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	if err := c.Decrypt(buf); err != nil {
		return nil, fmt.Errorf("payload: decrypt layer: %w", err)
	}
	return Payload(buf), nil
}

// IsFinal reports whether p's leading σ bytes are the all-zero integrity
// beacon: the signal that every layer peeled so far was untampered and
// this is the fully-unwrapped plaintext.
func IsFinal(p params.Params, pl Payload) bool {
	sigma := p.Sigma
	if len(pl) < sigma {
		return false
	}
	for _, b := range pl[:sigma] {
		if b != 0 {
			return false
		}
	}
	return true
}

// SplitFinal extracts the destination and message from a fully-unwrapped
// payload whose IsFinal has already been confirmed true by the caller.
// The message is everything after the destination, trailing zero padding
// included: the padding is NOT trimmed automatically, so callers that
// encoded a length-prefixed or self-delimiting message must parse m
// themselves; this only strips the fixed-width beacon and destination.
func SplitFinal(p params.Params, pl Payload) (destination, message []byte) {
	sigma := p.Sigma
	destination = pl[sigma : 2*sigma]
	message = pl[2*sigma:]
	return destination, message
}
