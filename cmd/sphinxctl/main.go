// Command sphinxctl is a small demo CLI around the sphinx package: build
// an onion packet for a fixed three-hop route, and peel it one hop at a
// time given that hop's name.
package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/sphinxmix/onion/internal/xcrypto"
	"github.com/sphinxmix/onion/sphinx"
	"github.com/urfave/cli/v2"
)

// Fixed demo identity scalars, analogous to the fixed demo keys a protocol
// walkthrough uses so a reader can replay every step by hand.
const (
	bobHex     = "071df4af67d0236f148e8c4d764ead3662693b4561b7bca19c6c7b3d80409800"
	charlieHex = "03aae4a7a4717e9721b49e8247be4a1280c2d9afad9f011dedc9e3650051c900"
	daveHex    = "034df19f85e920cb3a0dd529fd61dace4ac9a567c00c521b98e75762eed06900"
)

var (
	bob     xcrypto.Scalar
	charlie xcrypto.Scalar
	dave    xcrypto.Scalar
)

func scalarFromHex(s string) (xcrypto.Scalar, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return xcrypto.Scalar{}, err
	}
	wide := make([]byte, 64)
	copy(wide, raw)
	return xcrypto.ScalarFromWideBytes(wide)
}

func setupKeys(ctx *cli.Context) error {
	var err error
	if bob, err = scalarFromHex(bobHex); err != nil {
		return err
	}
	if charlie, err = scalarFromHex(charlieHex); err != nil {
		return err
	}
	if dave, err = scalarFromHex(daveHex); err != nil {
		return err
	}
	return nil
}

func main() {
	app := cli.App{
		Name:  "sphinxctl",
		Usage: "build and peel Sphinx-style onion packets",
		Commands: []*cli.Command{
			buildCmd,
			processCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var buildCmd = &cli.Command{
	Name:   "build",
	Usage:  "build an onion packet addressed to bob -> charlie -> dave",
	Before: setupKeys,
	Action: buildPacket,
}

func buildPacket(ctx *cli.Context) error {
	p := sphinx.DefaultParams

	bobAddr, err := sphinx.EncodeAddress(p.Sigma, "bob")
	if err != nil {
		return err
	}
	charlieAddr, err := sphinx.EncodeAddress(p.Sigma, "charlie")
	if err != nil {
		return err
	}
	daveAddr, err := sphinx.EncodeAddress(p.Sigma, "dave")
	if err != nil {
		return err
	}
	destination, err := sphinx.EncodeAddress(p.Sigma, "final-dest")
	if err != nil {
		return err
	}

	route := []sphinx.RouteElement{
		{Address: bobAddr, PublicKey: xcrypto.ScalarBaseMult(bob)},
		{Address: charlieAddr, PublicKey: xcrypto.ScalarBaseMult(charlie)},
		{Address: daveAddr, PublicKey: xcrypto.ScalarBaseMult(dave), Final: true},
	}

	fmt.Println("what message do you want to send to dave (the final hop):")
	reader := bufio.NewReader(os.Stdin)
	message, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("could not read input: %w", err)
	}

	pkt, err := sphinx.BuildPacket(p, route, []byte(message), destination)
	if err != nil {
		return err
	}

	fmt.Printf("packet to pass to the first hop (bob): %x\n", pkt.Serialize(p))
	return nil
}

var processCmd = &cli.Command{
	Name:      "process",
	Usage:     "peel one layer of a packet at a named hop",
	ArgsUsage: "[PACKET]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "hop",
			Usage: "which hop (bob, charlie or dave) is processing the packet",
		},
	},
	Before: setupKeys,
	Action: processPacket,
}

func processPacket(ctx *cli.Context) error {
	args := ctx.Args()
	if args.Len() < 1 {
		return errors.New("pass a packet to process")
	}

	hop := ctx.String("hop")
	var identity xcrypto.Scalar
	switch hop {
	case "bob":
		identity = bob
	case "charlie":
		identity = charlie
	case "dave":
		identity = dave
	default:
		return errors.New("invalid hop: must be bob, charlie or dave")
	}

	p := sphinx.DefaultParams
	raw, err := hex.DecodeString(args.First())
	if err != nil {
		return fmt.Errorf("error decoding packet: %w", err)
	}

	pkt, err := sphinx.ParsePacket(p, raw)
	if err != nil {
		return err
	}

	result, err := sphinx.ProcessHop(p, identity, pkt)
	if err != nil {
		return err
	}

	if result.Final {
		fmt.Printf("%s is the final hop\n", hop)
		fmt.Printf("destination: %x\n", result.Destination)
		fmt.Printf("message: %s\n", result.Message)
		return nil
	}

	fmt.Printf("%s forwards to: %s\n", hop, result.NextAddress)
	fmt.Printf("packet for the next hop: %x\n", result.NextPacket.Serialize(p))
	return nil
}
