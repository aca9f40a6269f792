package sphinx

import (
	"bytes"
	"testing"

	"github.com/sphinxmix/onion/internal/xcrypto"
)

type testHop struct {
	identity xcrypto.Scalar
	element  RouteElement
}

func buildThreeHopRoute(t *testing.T, p Params) []testHop {
	t.Helper()
	names := []string{"bob", "charlie", "dave"}
	hops := make([]testHop, len(names))
	for i, name := range names {
		id, err := xcrypto.GenerateScalar()
		if err != nil {
			t.Fatalf("generate identity for %s: %v", name, err)
		}
		addr, err := EncodeAddress(p.Sigma, name)
		if err != nil {
			t.Fatalf("encode address for %s: %v", name, err)
		}
		hops[i] = testHop{
			identity: id,
			element:  RouteElement{Address: addr, PublicKey: xcrypto.ScalarBaseMult(id)},
		}
	}
	hops[len(hops)-1].element.Final = true
	return hops
}

func routeElements(hops []testHop) []RouteElement {
	out := make([]RouteElement, len(hops))
	for i, h := range hops {
		out[i] = h.element
	}
	return out
}

func TestEndToEndThreeHopRoute(t *testing.T) {
	p := DefaultParams
	hops := buildThreeHopRoute(t, p)
	destination, err := EncodeAddress(p.Sigma, "final-dest")
	if err != nil {
		t.Fatalf("encode destination: %v", err)
	}
	message := []byte("this is a secret message for dave")

	pkt, err := BuildPacket(p, routeElements(hops), message, destination)
	if err != nil {
		t.Fatalf("build packet: %v", err)
	}

	for i, hop := range hops {
		result, err := ProcessHop(p, hop.identity, pkt)
		if err != nil {
			t.Fatalf("process hop %d: %v", i, err)
		}

		if i < len(hops)-1 {
			if result.Final {
				t.Fatalf("hop %d: unexpectedly final", i)
			}
			wantAddr, _ := EncodeAddress(p.Sigma, []string{"charlie", "dave"}[i])
			if !bytes.Equal(result.NextAddress, wantAddr) {
				t.Fatalf("hop %d: next address = %x, want %x", i, result.NextAddress, wantAddr)
			}
			pkt = *result.NextPacket
		} else {
			if !result.Final {
				t.Fatalf("hop %d: expected final hop", i)
			}
			if !bytes.Equal(result.Destination, destination) {
				t.Fatalf("destination mismatch: %x != %x", result.Destination, destination)
			}
			if !bytes.HasPrefix(result.Message, message) {
				t.Fatalf("message mismatch: got %q, want prefix %q", result.Message, message)
			}
		}
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	p := DefaultParams
	hops := buildThreeHopRoute(t, p)
	destination, _ := EncodeAddress(p.Sigma, "final-dest")

	pkt, err := BuildPacket(p, routeElements(hops), []byte("hi"), destination)
	if err != nil {
		t.Fatalf("build packet: %v", err)
	}

	wire := pkt.Serialize(p)
	parsed, err := ParsePacket(p, wire)
	if err != nil {
		t.Fatalf("parse packet: %v", err)
	}

	if parsed.Alpha != pkt.Alpha {
		t.Fatal("alpha mismatch after round trip")
	}
	if !bytes.Equal(parsed.EncryptedInfo, pkt.EncryptedInfo) {
		t.Fatal("encrypted info mismatch after round trip")
	}
	if !bytes.Equal(parsed.HeaderMAC, pkt.HeaderMAC) {
		t.Fatal("header mac mismatch after round trip")
	}
	if !bytes.Equal(parsed.Payload, pkt.Payload) {
		t.Fatal("payload mismatch after round trip")
	}
}

func TestParsePacketWrongLength(t *testing.T) {
	p := DefaultParams
	if _, err := ParsePacket(p, make([]byte, 10)); err == nil {
		t.Fatal("expected error for wrong-length packet")
	}
}

func TestHeaderMACBitFlipDetected(t *testing.T) {
	p := DefaultParams
	hops := buildThreeHopRoute(t, p)
	destination, _ := EncodeAddress(p.Sigma, "final-dest")

	pkt, err := BuildPacket(p, routeElements(hops), []byte("hi"), destination)
	if err != nil {
		t.Fatalf("build packet: %v", err)
	}

	pkt.HeaderMAC = append([]byte(nil), pkt.HeaderMAC...)
	pkt.HeaderMAC[0] ^= 0x01

	_, err = ProcessHop(p, hops[0].identity, pkt)
	if err != ErrHeaderIntegrity {
		t.Fatalf("expected ErrHeaderIntegrity, got %v", err)
	}
}

func TestDegenerateAlphaFailsAsHeaderIntegrity(t *testing.T) {
	// A degenerate (all-zero) alpha must not be distinguishable from any
	// other forged packet: it re-derives to routing keys the sender never
	// used, so it fails the ordinary header MAC check and surfaces the
	// same ErrHeaderIntegrity as a bit-flipped MAC would, rather than a
	// separately observable error returned before the MAC is even checked.
	p := DefaultParams
	hops := buildThreeHopRoute(t, p)
	destination, _ := EncodeAddress(p.Sigma, "final-dest")

	pkt, err := BuildPacket(p, routeElements(hops), []byte("hi"), destination)
	if err != nil {
		t.Fatalf("build packet: %v", err)
	}
	pkt.Alpha = xcrypto.GroupElement{}

	_, err = ProcessHop(p, hops[0].identity, pkt)
	if err != ErrHeaderIntegrity {
		t.Fatalf("expected ErrHeaderIntegrity, got %v", err)
	}
}

func TestPayloadTooLargeBoundary(t *testing.T) {
	p := DefaultParams
	hops := buildThreeHopRoute(t, p)
	destination, _ := EncodeAddress(p.Sigma, "final-dest")

	exact := make([]byte, p.PayloadSize-2*p.Sigma)
	if _, err := BuildPacket(p, routeElements(hops), exact, destination); err != nil {
		t.Fatalf("exact-fit message should succeed: %v", err)
	}

	tooLarge := make([]byte, len(exact)+1)
	if _, err := BuildPacket(p, routeElements(hops), tooLarge, destination); err == nil {
		t.Fatal("expected an error for an oversized message")
	}
}

func TestEncodeAddressRejectsOversizedName(t *testing.T) {
	if _, err := EncodeAddress(4, "toolong"); err == nil {
		t.Fatal("expected error for a name longer than sigma")
	}
}

func TestEncodeAddressRejectsSentinelCollision(t *testing.T) {
	if _, err := EncodeAddress(4, ""); err == nil {
		t.Fatal("expected error: empty name encodes to the reserved all-zero sentinel")
	}
}
