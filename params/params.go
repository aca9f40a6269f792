// Package params collects the fixed-size deployment constants every other
// package in this module is parameterised by: the security parameter
// sigma, the maximum route length, and the plaintext payload size. None of
// these are negotiated on the wire — sender and every relay must be
// configured with the same Params or the header MAC will never verify.
package params

import "fmt"

// Params is a frozen deployment configuration.
type Params struct {
	// Sigma is the security parameter in bytes: the width of node
	// addresses, destination addresses, and the header MAC/truncation
	// unit. spec.md ties ADDR_SIZE, DEST_ADDR_SIZE and MAC_SIZE to this
	// single constant.
	Sigma int
	// RouteLen is r, the maximum number of hops header.Build accepts for
	// a route, and the value RoutingInfoSize is sized from.
	RouteLen int
	// PayloadSize is the fixed plaintext payload width in bytes, handed
	// to the Lioness wide-block cipher as its block size.
	PayloadSize int
}

// Default mirrors the frozen Open Question resolution: sigma=16 (128-bit
// security), a 5-hop route, and a 1024-byte payload.
var Default = Params{Sigma: 16, RouteLen: 5, PayloadSize: 1024}

// Validate reports whether p describes a usable configuration.
func (p Params) Validate() error {
	if p.Sigma <= 0 {
		return fmt.Errorf("params: sigma must be positive, got %d", p.Sigma)
	}
	if p.RouteLen <= 0 {
		return fmt.Errorf("params: route length must be positive, got %d", p.RouteLen)
	}
	if p.PayloadSize <= 0 {
		return fmt.Errorf("params: payload size must be positive, got %d", p.PayloadSize)
	}
	return nil
}

// AddrSize is the width of a routable node address: sigma.
func (p Params) AddrSize() int { return p.Sigma }

// MACSize is the width of a header MAC: sigma.
func (p Params) MACSize() int { return p.Sigma }

// DestAddrSize is the width of a final destination address: sigma.
func (p Params) DestAddrSize() int { return p.Sigma }

// RoutingInfoSize is (2*RouteLen+1)*sigma, the fixed size of the encrypted
// routing-info blob carried in every header, independent of how many of
// the RouteLen hops a given header actually uses.
func (p Params) RoutingInfoSize() int {
	return (2*p.RouteLen + 1) * p.Sigma
}

// TruncatedRoutingInfoSize is RoutingInfoSize minus the 3*sigma a relay's
// own routing record consumes (address, mac, and a reserved zero gap); the
// inner layer's last 3*sigma bytes are dropped and later reconstructed by
// the peeling hop's keystream.
func (p Params) TruncatedRoutingInfoSize() int {
	return p.RoutingInfoSize() - 3*p.Sigma
}

// StreamCipherOutputLength is the number of keystream bytes a single hop's
// header-peel step draws (encryption uses only its first RoutingInfoSize
// bytes): enough to cover RoutingInfoSize plus
// the 3*sigma of zero padding appended before decrypting, so the zero pad
// cancels against the tail of the keystream and reconstructs the bytes the
// previous hop's truncation discarded.
func (p Params) StreamCipherOutputLength() int {
	return p.RoutingInfoSize() + 3*p.Sigma
}
