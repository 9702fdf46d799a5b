// Package address encodes and decodes Zcash addresses.
//
// Transparent addresses use base58check with a two byte version prefix,
// so the leading "t" of a Zcash address survives the encoding. Shielded
// and unified addresses use bech32 with network specific human readable
// parts.
package address

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcutil/base58"
)

// Network selects the address encoding parameters.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// ParseNetwork normalizes a network name. Regtest shares the testnet
// encoding parameters.
func ParseNetwork(s string) (Network, error) {
	switch s {
	case "main", "mainnet":
		return Mainnet, nil
	case "test", "testnet", "regtest":
		return Testnet, nil
	default:
		return "", fmt.Errorf("unknown network %q", s)
	}
}

// Two byte base58 version prefixes for transparent addresses.
var (
	mainnetP2PKH = [2]byte{0x1C, 0xB8} // t1
	mainnetP2SH  = [2]byte{0x1C, 0xBD} // t3
	testnetP2PKH = [2]byte{0x1D, 0x25} // tm
	testnetP2SH  = [2]byte{0x1C, 0xBA} // t2
)

// Bech32 human readable parts.
const (
	hrpSaplingMain = "zs"
	hrpSaplingTest = "ztestsapling"
	hrpUnifiedMain = "u"
	hrpUnifiedTest = "utest"
)

// ZIP-316 receiver typecodes in a unified container.
const (
	TypecodeP2PKH   = 0x00
	TypecodeP2SH    = 0x01
	TypecodeSapling = 0x02
	TypecodeOrchard = 0x03
)

var ErrMalformed = errors.New("malformed address")

// checksum returns the first four bytes of the double SHA-256 of b.
func checksum(b []byte) (cksum [4]byte) {
	h := sha256.Sum256(b)
	h2 := sha256.Sum256(h[:])
	copy(cksum[:], h2[:4])
	return
}

func transparentPrefix(net Network, p2sh bool) [2]byte {
	if net == Mainnet {
		if p2sh {
			return mainnetP2SH
		}
		return mainnetP2PKH
	}
	if p2sh {
		return testnetP2SH
	}
	return testnetP2PKH
}

// EncodeTransparent encodes a 20 byte hash as a transparent address.
func EncodeTransparent(hash160 [20]byte, net Network, p2sh bool) string {
	prefix := transparentPrefix(net, p2sh)
	b := make([]byte, 0, 2+20+4)
	b = append(b, prefix[:]...)
	b = append(b, hash160[:]...)
	cksum := checksum(b)
	b = append(b, cksum[:]...)
	return base58.Encode(b)
}

// DecodeTransparent decodes a transparent address, returning the embedded
// hash, the network it belongs to, and whether it is pay-to-script-hash.
func DecodeTransparent(addr string) (hash160 [20]byte, net Network, p2sh bool, err error) {
	decoded := base58.Decode(addr)
	if len(decoded) != 2+20+4 {
		return hash160, "", false, fmt.Errorf("%w: wrong length %d", ErrMalformed, len(decoded))
	}
	var cksum [4]byte
	copy(cksum[:], decoded[len(decoded)-4:])
	if checksum(decoded[:len(decoded)-4]) != cksum {
		return hash160, "", false, fmt.Errorf("%w: bad checksum", ErrMalformed)
	}
	var prefix [2]byte
	copy(prefix[:], decoded[:2])
	copy(hash160[:], decoded[2:22])
	switch prefix {
	case mainnetP2PKH:
		return hash160, Mainnet, false, nil
	case mainnetP2SH:
		return hash160, Mainnet, true, nil
	case testnetP2PKH:
		return hash160, Testnet, false, nil
	case testnetP2SH:
		return hash160, Testnet, true, nil
	}
	return hash160, "", false, fmt.Errorf("%w: unknown version prefix %x", ErrMalformed, prefix)
}

// ScriptToAddress extracts the address from a standard transparent output
// script. Only p2pkh and p2sh scripts are recognized.
func ScriptToAddress(script []byte, net Network) (string, bool) {
	// p2pkh: OP_DUP OP_HASH160 0x14 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG
	if len(script) == 25 && script[0] == 0x76 && script[1] == 0xA9 && script[2] == 0x14 &&
		script[23] == 0x88 && script[24] == 0xAC {
		var h [20]byte
		copy(h[:], script[3:23])
		return EncodeTransparent(h, net, false), true
	}
	// p2sh: OP_HASH160 0x14 <20 bytes> OP_EQUAL
	if len(script) == 23 && script[0] == 0xA9 && script[1] == 0x14 && script[22] == 0x87 {
		var h [20]byte
		copy(h[:], script[2:22])
		return EncodeTransparent(h, net, true), true
	}
	return "", false
}

// P2PKHScript builds the standard pay-to-pubkey-hash output script.
func P2PKHScript(hash160 [20]byte) []byte {
	script := make([]byte, 0, 25)
	script = append(script, 0x76, 0xA9, 0x14)
	script = append(script, hash160[:]...)
	return append(script, 0x88, 0xAC)
}

// EncodeBech32 converts 8-bit data to the bech32 5-bit alphabet and encodes
// it under the given human readable part.
func EncodeBech32(hrp string, data []byte) (string, error) {
	converted, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(hrp, converted)
}

// DecodeBech32 decodes a bech32 string of any length and converts the data
// part back to 8-bit bytes. Viewing keys and unified addresses routinely
// exceed the 90 character limit applied to segwit addresses, so the
// no-limit decoder is used.
func DecodeBech32(s string) (hrp string, data []byte, err error) {
	hrp, converted, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return "", nil, err
	}
	data, err = bech32.ConvertBits(converted, 5, 8, false)
	if err != nil {
		return "", nil, err
	}
	return hrp, data, nil
}

// EncodeSapling encodes a Sapling payment address from its diversifier and
// the compressed transmission key.
func EncodeSapling(d [11]byte, pkd [33]byte, net Network) (string, error) {
	hrp := hrpSaplingMain
	if net != Mainnet {
		hrp = hrpSaplingTest
	}
	payload := make([]byte, 0, len(d)+len(pkd))
	payload = append(payload, d[:]...)
	payload = append(payload, pkd[:]...)
	return EncodeBech32(hrp, payload)
}

// DecodeSapling decodes a Sapling payment address.
func DecodeSapling(addr string) (d [11]byte, pkd [33]byte, net Network, err error) {
	hrp, data, err := DecodeBech32(addr)
	if err != nil {
		return d, pkd, "", err
	}
	switch hrp {
	case hrpSaplingMain:
		net = Mainnet
	case hrpSaplingTest:
		net = Testnet
	default:
		return d, pkd, "", fmt.Errorf("%w: unexpected prefix %q", ErrMalformed, hrp)
	}
	if len(data) != 11+33 {
		return d, pkd, "", fmt.Errorf("%w: wrong payload length %d", ErrMalformed, len(data))
	}
	copy(d[:], data[:11])
	copy(pkd[:], data[11:])
	return d, pkd, net, nil
}

// Receiver is a single typed entry in a unified container.
type Receiver struct {
	Typecode uint64
	Data     []byte
}

// EncodeItems serializes receivers as a ZIP-316 style item sequence:
// typecode || length || body, each as a compact size followed by bytes.
func EncodeItems(receivers []Receiver) []byte {
	buf := new(bytes.Buffer)
	for _, rcv := range receivers {
		writeCompactSize(buf, rcv.Typecode)
		writeCompactSize(buf, uint64(len(rcv.Data)))
		buf.Write(rcv.Data)
	}
	return buf.Bytes()
}

// DecodeItems parses a ZIP-316 style item sequence.
func DecodeItems(data []byte) ([]Receiver, error) {
	var receivers []Receiver
	off := 0
	for off < len(data) {
		typecode, n, err := readCompactSize(data[off:])
		if err != nil {
			return nil, fmt.Errorf("%w: item typecode", ErrMalformed)
		}
		off += n
		length, n, err := readCompactSize(data[off:])
		if err != nil {
			return nil, fmt.Errorf("%w: item length", ErrMalformed)
		}
		off += n
		if length > uint64(len(data)-off) {
			return nil, fmt.Errorf("%w: item body exceeds container", ErrMalformed)
		}
		body := make([]byte, length)
		copy(body, data[off:])
		off += int(length)
		receivers = append(receivers, Receiver{Typecode: typecode, Data: body})
	}
	if len(receivers) == 0 {
		return nil, fmt.Errorf("%w: empty container", ErrMalformed)
	}
	return receivers, nil
}

// EncodeUnified encodes receivers as a unified address.
func EncodeUnified(receivers []Receiver, net Network) (string, error) {
	hrp := hrpUnifiedMain
	if net != Mainnet {
		hrp = hrpUnifiedTest
	}
	return EncodeBech32(hrp, EncodeItems(receivers))
}

// DecodeUnified decodes a unified address into its receivers.
func DecodeUnified(addr string) ([]Receiver, Network, error) {
	hrp, data, err := DecodeBech32(addr)
	if err != nil {
		return nil, "", err
	}
	var net Network
	switch hrp {
	case hrpUnifiedMain:
		net = Mainnet
	case hrpUnifiedTest:
		net = Testnet
	default:
		return nil, "", fmt.Errorf("%w: unexpected prefix %q", ErrMalformed, hrp)
	}
	receivers, err := DecodeItems(data)
	if err != nil {
		return nil, "", err
	}
	return receivers, net, nil
}

func writeCompactSize(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 253:
		buf.WriteByte(byte(n))
	case n <= 0xFFFF:
		buf.WriteByte(253)
		buf.WriteByte(byte(n))
		buf.WriteByte(byte(n >> 8))
	case n <= 0xFFFFFFFF:
		buf.WriteByte(254)
		for i := 0; i < 4; i++ {
			buf.WriteByte(byte(n >> (8 * i)))
		}
	default:
		buf.WriteByte(255)
		for i := 0; i < 8; i++ {
			buf.WriteByte(byte(n >> (8 * i)))
		}
	}
}

func readCompactSize(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrMalformed
	}
	switch b[0] {
	case 253:
		if len(b) < 3 {
			return 0, 0, ErrMalformed
		}
		return uint64(b[1]) | uint64(b[2])<<8, 3, nil
	case 254:
		if len(b) < 5 {
			return 0, 0, ErrMalformed
		}
		var v uint64
		for i := 0; i < 4; i++ {
			v |= uint64(b[1+i]) << (8 * i)
		}
		return v, 5, nil
	case 255:
		if len(b) < 9 {
			return 0, 0, ErrMalformed
		}
		var v uint64
		for i := 0; i < 8; i++ {
			v |= uint64(b[1+i]) << (8 * i)
		}
		return v, 9, nil
	default:
		return uint64(b[0]), 1, nil
	}
}
