package wallet

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	bip39 "github.com/bisoncraft/go-bip39"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	blake2b "github.com/minio/blake2b-simd"
	"golang.org/x/crypto/ripemd160"

	"github.com/suffix-labs/zcash-view/pkg/address"
	"github.com/suffix-labs/zcash-view/pkg/notecrypt"
	"github.com/suffix-labs/zcash-view/pkg/viewkey"
)

// BLAKE2b personalizations for key tree derivation.
const (
	masterKeyPersonalization = "ZViewer_WalletMK"
	childKeyPersonalization  = "ZViewer_ChildKey"
)

// Child key derivation tags.
const (
	tagSaplingIvk  = "sapling-ivk"
	tagSaplingNk   = "sapling-nk"
	tagSaplingDk   = "sapling-dk"
	tagOrchardIvk  = "orchard-ivk"
	tagOrchardNk   = "orchard-nk"
	tagOrchardDk   = "orchard-dk"
	tagTransparent = "transparent"
)

// Info describes a derived wallet account.
type Info struct {
	Mnemonic string          `json:"mnemonic"`
	Network  address.Network `json:"network"`
	Account  uint32          `json:"account"`

	// AddressIndex is the requested diversifier index;
	// DiversifierIndex is the index actually used. They differ when the
	// requested index produced an invalid diversifier and derivation
	// skipped forward.
	AddressIndex     uint64 `json:"address_index"`
	DiversifierIndex uint64 `json:"diversifier_index"`

	UnifiedAddress     string `json:"unified_address"`
	SaplingAddress     string `json:"sapling_address"`
	TransparentAddress string `json:"transparent_address"`

	UFVK string `json:"ufvk"`
	UIVK string `json:"uivk"`
}

func personalizedSum(person string, inputs ...[]byte) [32]byte {
	h, err := blake2b.New(&blake2b.Config{Size: 32, Person: []byte(person)})
	if err != nil {
		panic("blake2b config: " + err.Error())
	}
	for _, in := range inputs {
		h.Write(in)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func masterKey(seed []byte, net address.Network) [32]byte {
	netByte := []byte{0}
	if net == address.Testnet {
		netByte[0] = 1
	}
	return personalizedSum(masterKeyPersonalization, seed, netByte)
}

func childKey(master [32]byte, tag string, index uint32) [32]byte {
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], index)
	return personalizedSum(childKeyPersonalization, master[:], []byte(tag), idx[:])
}

func poolKey(master [32]byte, ivkTag, nkTag, dkTag string, account uint32) *viewkey.PoolKey {
	pk := &viewkey.PoolKey{}
	pk.Ivk = childKey(master, ivkTag, account)
	pk.Nk = childKey(master, nkTag, account)
	dk := childKey(master, dkTag, account)
	copy(pk.Dk[:], dk[:])
	return pk
}

// transparentKey derives the account's transparent key pair at the given
// address index.
func transparentKey(master [32]byte, account uint32, index uint32) (*secp256k1.PrivateKey, error) {
	raw := childKey(master, tagTransparent, account)
	raw = personalizedSum(childKeyPersonalization, raw[:], []byte{byte(index), byte(index >> 8), byte(index >> 16), byte(index >> 24)})
	priv := secp256k1.PrivKeyFromBytes(raw[:])
	if priv.Key.IsZero() {
		return nil, errors.New("derived zero transparent key")
	}
	return priv, nil
}

func hash160(b []byte) [20]byte {
	sha := sha256.Sum256(b)
	r := ripemd160.New()
	r.Write(sha[:])
	var out [20]byte
	copy(out[:], r.Sum(nil))
	return out
}

// NewMnemonic generates a fresh 24 word seed phrase.
func NewMnemonic() (string, error) {
	entropy := make([]byte, 32)
	if _, err := rand.Read(entropy); err != nil {
		return "", fmt.Errorf("generating entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

// Derive builds the wallet account for a seed phrase. The same phrase,
// network, account, and address index always produce the same addresses
// and viewing keys.
func Derive(mnemonic string, net address.Network, account uint32, addressIndex uint64) (*Info, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid seed phrase")
	}
	seed := bip39.NewSeed(mnemonic, "")
	master := masterKey(seed, net)

	key := &viewkey.ViewingKey{
		Network:    net,
		Capability: viewkey.CapabilityFull,
		KeyType:    viewkey.TypeUFVK,
		Sapling:    poolKey(master, tagSaplingIvk, tagSaplingNk, tagSaplingDk, account),
		Orchard:    poolKey(master, tagOrchardIvk, tagOrchardNk, tagOrchardDk, account),
	}

	tpriv, err := transparentKey(master, account, uint32(addressIndex))
	if err != nil {
		return nil, err
	}
	tpub := tpriv.PubKey().SerializeCompressed()
	key.TransparentData = tpub
	th := hash160(tpub)

	info := &Info{
		Mnemonic:           mnemonic,
		Network:            net,
		Account:            account,
		AddressIndex:       addressIndex,
		TransparentAddress: address.EncodeTransparent(th, net, false),
	}

	// Diversifier indices that hash to the zero scalar are skipped, the
	// way real derivation skips invalid diversifiers.
	d, usedIndex, err := notecrypt.FindDiversifier(key.Sapling.Dk, addressIndex)
	if err != nil {
		return nil, fmt.Errorf("finding diversifier: %w", err)
	}
	info.DiversifierIndex = usedIndex

	saplingPkd, err := notecrypt.RecipientKey(key.Sapling.Ivk, d)
	if err != nil {
		return nil, fmt.Errorf("deriving sapling address: %w", err)
	}
	if info.SaplingAddress, err = address.EncodeSapling(d, saplingPkd, net); err != nil {
		return nil, err
	}

	orchardD, _, err := notecrypt.FindDiversifier(key.Orchard.Dk, usedIndex)
	if err != nil {
		return nil, fmt.Errorf("finding orchard diversifier: %w", err)
	}
	orchardPkd, err := notecrypt.RecipientKey(key.Orchard.Ivk, orchardD)
	if err != nil {
		return nil, fmt.Errorf("deriving orchard address: %w", err)
	}

	saplingPayload := append(append([]byte{}, d[:]...), saplingPkd[:]...)
	orchardPayload := append(append([]byte{}, orchardD[:]...), orchardPkd[:]...)
	info.UnifiedAddress, err = address.EncodeUnified([]address.Receiver{
		{Typecode: address.TypecodeP2PKH, Data: th[:]},
		{Typecode: address.TypecodeSapling, Data: saplingPayload},
		{Typecode: address.TypecodeOrchard, Data: orchardPayload},
	}, net)
	if err != nil {
		return nil, err
	}

	if info.UFVK, err = key.Encode(); err != nil {
		return nil, err
	}

	incoming := &viewkey.ViewingKey{
		Network:    net,
		Capability: viewkey.CapabilityIncoming,
		KeyType:    viewkey.TypeUIVK,
		Sapling:    &viewkey.PoolKey{Ivk: key.Sapling.Ivk, Dk: key.Sapling.Dk},
		Orchard:    &viewkey.PoolKey{Ivk: key.Orchard.Ivk, Dk: key.Orchard.Dk},
	}
	if info.UIVK, err = incoming.Encode(); err != nil {
		return nil, err
	}
	return info, nil
}

// DeriveAddresses derives count consecutive unified addresses starting at
// startIndex. Indices whose diversifier is invalid are skipped, so fewer
// than count distinct indices may be consumed per entry.
func DeriveAddresses(mnemonic string, net address.Network, account uint32, startIndex uint64, count int) ([]string, error) {
	addrs := make([]string, 0, count)
	index := startIndex
	for len(addrs) < count {
		info, err := Derive(mnemonic, net, account, index)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, info.UnifiedAddress)
		index = info.DiversifierIndex + 1
	}
	return addrs, nil
}
