// Package viewkey parses and encodes Zcash viewing keys.
//
// Three encodings are recognized, all bech32:
//
//	zxviews / zxviewtestsapling   Sapling extended full viewing key
//	uview / uviewtest             unified full viewing key (UFVK)
//	uivk / uivktest               unified incoming viewing key (UIVK)
//
// Unified keys are ZIP-316 style containers of typed items; each shielded
// item carries the incoming viewing scalar, the nullifier deriving key
// (full keys only), and the diversifier key.
package viewkey

import (
	"fmt"

	"github.com/suffix-labs/zcash-view/pkg/address"
)

// Bech32 human readable parts for viewing keys.
const (
	hrpSaplingExtFVKMain = "zxviews"
	hrpSaplingExtFVKTest = "zxviewtestsapling"
	hrpUFVKMain          = "uview"
	hrpUFVKTest          = "uviewtest"
	hrpUIVKMain          = "uivk"
	hrpUIVKTest          = "uivktest"
)

// Key type names reported at the API boundary.
const (
	TypeUFVK          = "UFVK"
	TypeUIVK          = "UIVK"
	TypeSaplingExtFVK = "Sapling ExtFVK"
)

const (
	ivkSize = 32
	nkSize  = 32
	dkSize  = 11

	fullItemSize     = ivkSize + nkSize + dkSize
	incomingItemSize = ivkSize + dkSize
)

// Capability describes what a viewing key can do.
type Capability int

const (
	// CapabilityIncoming keys detect incoming notes but cannot derive
	// nullifiers, so spends cannot be linked to them.
	CapabilityIncoming Capability = iota
	// CapabilityFull keys additionally derive nullifiers.
	CapabilityFull
)

func (c Capability) String() string {
	if c == CapabilityFull {
		return "full"
	}
	return "incoming"
}

// PoolKey holds the per-pool key material.
type PoolKey struct {
	Ivk [ivkSize]byte // incoming viewing scalar
	Nk  [nkSize]byte  // nullifier deriving key, full capability only
	Dk  [dkSize]byte  // diversifier key
}

// ViewingKey is a parsed viewing key.
type ViewingKey struct {
	Network    address.Network
	Capability Capability
	KeyType    string

	Sapling *PoolKey
	Orchard *PoolKey

	// TransparentData is the opaque transparent item body from a unified
	// container, if one was present.
	TransparentData []byte
}

// HasSapling reports whether the key can scan the Sapling pool.
func (k *ViewingKey) HasSapling() bool { return k.Sapling != nil }

// HasOrchard reports whether the key can scan the Orchard pool.
func (k *ViewingKey) HasOrchard() bool { return k.Orchard != nil }

// HasTransparent reports whether the key carries a transparent component.
func (k *ViewingKey) HasTransparent() bool { return len(k.TransparentData) > 0 }

// Zero overwrites the key material in place. The key must not be used
// afterwards.
func (k *ViewingKey) Zero() {
	for _, pk := range []*PoolKey{k.Sapling, k.Orchard} {
		if pk == nil {
			continue
		}
		for i := range pk.Ivk {
			pk.Ivk[i] = 0
		}
		for i := range pk.Nk {
			pk.Nk[i] = 0
		}
		for i := range pk.Dk {
			pk.Dk[i] = 0
		}
	}
	for i := range k.TransparentData {
		k.TransparentData[i] = 0
	}
}

// Parse decodes a viewing key string. The encoding prefix determines the
// key type and network.
func Parse(s string) (*ViewingKey, error) {
	if s == "" {
		return nil, &KeyError{Code: ErrInvalidEncoding, Message: "empty viewing key"}
	}
	hrp, data, err := address.DecodeBech32(s)
	if err != nil {
		return nil, &KeyError{Code: ErrInvalidEncoding, Message: "not valid bech32", Cause: err}
	}

	switch hrp {
	case hrpSaplingExtFVKMain, hrpSaplingExtFVKTest:
		return parseSaplingExtFVK(hrp, data)
	case hrpUFVKMain, hrpUFVKTest:
		return parseUnified(hrp, data, CapabilityFull)
	case hrpUIVKMain, hrpUIVKTest:
		return parseUnified(hrp, data, CapabilityIncoming)
	}
	return nil, &KeyError{Code: ErrUnknownPrefix, Message: fmt.Sprintf("unrecognized viewing key prefix %q", hrp)}
}

func parseSaplingExtFVK(hrp string, data []byte) (*ViewingKey, error) {
	net := address.Mainnet
	if hrp == hrpSaplingExtFVKTest {
		net = address.Testnet
	}
	if len(data) != fullItemSize {
		return nil, &KeyError{
			Code:    ErrUnsupportedVersion,
			Message: fmt.Sprintf("sapling key payload is %d bytes, want %d", len(data), fullItemSize),
		}
	}
	return &ViewingKey{
		Network:    net,
		Capability: CapabilityFull,
		KeyType:    TypeSaplingExtFVK,
		Sapling:    poolKeyFromItem(data),
	}, nil
}

func parseUnified(hrp string, data []byte, capability Capability) (*ViewingKey, error) {
	net := address.Mainnet
	if hrp == hrpUFVKTest || hrp == hrpUIVKTest {
		net = address.Testnet
	}
	items, err := address.DecodeItems(data)
	if err != nil {
		return nil, &KeyError{Code: ErrInvalidEncoding, Message: "bad unified container", Cause: err}
	}

	keyType := TypeUFVK
	wantItem := fullItemSize
	if capability == CapabilityIncoming {
		keyType = TypeUIVK
		wantItem = incomingItemSize
	}

	key := &ViewingKey{Network: net, Capability: capability, KeyType: keyType}
	for _, item := range items {
		switch item.Typecode {
		case address.TypecodeSapling, address.TypecodeOrchard:
			if len(item.Data) != wantItem {
				return nil, &KeyError{
					Code: ErrUnsupportedVersion,
					Message: fmt.Sprintf("item typecode %d is %d bytes, want %d",
						item.Typecode, len(item.Data), wantItem),
				}
			}
			pk := poolKeyFromItem(item.Data)
			if item.Typecode == address.TypecodeSapling {
				key.Sapling = pk
			} else {
				key.Orchard = pk
			}
		case address.TypecodeP2PKH, address.TypecodeP2SH:
			key.TransparentData = item.Data
		default:
			// Unknown typecodes are tolerated for forward compatibility.
		}
	}
	if !key.HasSapling() && !key.HasOrchard() {
		return nil, &KeyError{Code: ErrUnsupportedVersion, Message: "container has no shielded items"}
	}
	return key, nil
}

// poolKeyFromItem builds a PoolKey from a full (ivk||nk||dk) or incoming
// (ivk||dk) item body. Lengths are validated by the callers.
func poolKeyFromItem(body []byte) *PoolKey {
	pk := &PoolKey{}
	copy(pk.Ivk[:], body[:ivkSize])
	rest := body[ivkSize:]
	if len(rest) == nkSize+dkSize {
		copy(pk.Nk[:], rest[:nkSize])
		rest = rest[nkSize:]
	}
	copy(pk.Dk[:], rest)
	return pk
}

func itemBody(pk *PoolKey, capability Capability) []byte {
	body := make([]byte, 0, fullItemSize)
	body = append(body, pk.Ivk[:]...)
	if capability == CapabilityFull {
		body = append(body, pk.Nk[:]...)
	}
	return append(body, pk.Dk[:]...)
}

// Encode serializes the key back to its string form.
func (k *ViewingKey) Encode() (string, error) {
	if k.KeyType == TypeSaplingExtFVK {
		if k.Sapling == nil {
			return "", &KeyError{Code: ErrInvalidEncoding, Message: "sapling key missing sapling component"}
		}
		hrp := hrpSaplingExtFVKMain
		if k.Network != address.Mainnet {
			hrp = hrpSaplingExtFVKTest
		}
		return address.EncodeBech32(hrp, itemBody(k.Sapling, CapabilityFull))
	}

	var hrp string
	switch {
	case k.Capability == CapabilityFull && k.Network == address.Mainnet:
		hrp = hrpUFVKMain
	case k.Capability == CapabilityFull:
		hrp = hrpUFVKTest
	case k.Network == address.Mainnet:
		hrp = hrpUIVKMain
	default:
		hrp = hrpUIVKTest
	}

	var receivers []address.Receiver
	if len(k.TransparentData) > 0 {
		receivers = append(receivers, address.Receiver{Typecode: address.TypecodeP2PKH, Data: k.TransparentData})
	}
	if k.Sapling != nil {
		receivers = append(receivers, address.Receiver{
			Typecode: address.TypecodeSapling,
			Data:     itemBody(k.Sapling, k.Capability),
		})
	}
	if k.Orchard != nil {
		receivers = append(receivers, address.Receiver{
			Typecode: address.TypecodeOrchard,
			Data:     itemBody(k.Orchard, k.Capability),
		})
	}
	if len(receivers) == 0 {
		return "", &KeyError{Code: ErrInvalidEncoding, Message: "key has no components"}
	}
	return address.EncodeBech32(hrp, address.EncodeItems(receivers))
}
