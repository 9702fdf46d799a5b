// Package scan runs a viewing key over a decoded transaction and collects
// everything the key can see: decrypted notes, revealed nullifiers, and
// transparent activity.
package scan

import (
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/suffix-labs/zcash-view/pkg/address"
	"github.com/suffix-labs/zcash-view/pkg/notecrypt"
	"github.com/suffix-labs/zcash-view/pkg/txdecode"
	"github.com/suffix-labs/zcash-view/pkg/viewkey"
)

// Pool identifies the value pool an output belongs to.
type Pool string

const (
	PoolTransparent Pool = "transparent"
	PoolSapling     Pool = "sapling"
	PoolOrchard     Pool = "orchard"
)

// Note is one shielded output or transparent output examined during a
// scan. Every shielded output in the transaction produces an entry; Match
// distinguishes outputs that decrypted under the key from those that did
// not. Non-matching entries keep value zero and no nullifier.
type Note struct {
	OutputIndex int     `json:"output_index"`
	Pool        Pool    `json:"pool"`
	Match       bool    `json:"match"`
	Value       uint64  `json:"value"`
	Commitment  string  `json:"commitment"`
	Nullifier   *string `json:"nullifier,omitempty"`
	Memo        *string `json:"memo,omitempty"`
	Address     *string `json:"address,omitempty"`
}

// SpentNullifier is a nullifier revealed by a spend in the transaction.
type SpentNullifier struct {
	Pool      Pool   `json:"pool"`
	Nullifier string `json:"nullifier"`
}

// TransparentSpend is a transparent input, identified by the outpoint it
// consumes.
type TransparentSpend struct {
	PrevoutTxID  string `json:"prevout_txid"`
	PrevoutIndex uint32 `json:"prevout_index"`
}

// TransparentOutput is a transparent output with its decoded address when
// the script is standard.
type TransparentOutput struct {
	Index   int     `json:"index"`
	Value   uint64  `json:"value"`
	Address *string `json:"address,omitempty"`
}

// Result is the outcome of scanning one transaction.
type Result struct {
	TxID                string              `json:"txid"`
	Notes               []Note              `json:"notes"`
	SpentNullifiers     []SpentNullifier    `json:"spent_nullifiers"`
	TransparentSpends   []TransparentSpend  `json:"transparent_spends"`
	TransparentReceived uint64              `json:"transparent_received"`
	TransparentOutputs  []TransparentOutput `json:"transparent_outputs"`
}

// Options tunes a scan.
type Options struct {
	// Height is the block height the transaction was mined at, used as
	// part of the Sapling note position. Zero is accepted for unmined or
	// unknown positions.
	Height uint32
	// KnownAddresses restricts transparent matching to the given
	// addresses. When empty, every decodable transparent output counts as
	// received.
	KnownAddresses []string
}

// Transaction scans a decoded transaction with a viewing key. All shielded
// outputs are trial decrypted against the pools the key covers; shielded
// ordering follows the output index within each pool.
func Transaction(tx *txdecode.Tx, key *viewkey.ViewingKey, opts Options) *Result {
	res := &Result{
		TxID:               tx.TxIDString(),
		Notes:              []Note{},
		SpentNullifiers:    []SpentNullifier{},
		TransparentSpends:  []TransparentSpend{},
		TransparentOutputs: []TransparentOutput{},
	}

	known := make(map[string]bool, len(opts.KnownAddresses))
	for _, a := range opts.KnownAddresses {
		known[a] = true
	}

	scanTransparent(tx, key, known, res)
	scanSapling(tx, key, opts.Height, res)
	scanOrchard(tx, key, res)
	return res
}

func scanTransparent(tx *txdecode.Tx, key *viewkey.ViewingKey, known map[string]bool, res *Result) {
	for i := range tx.TransparentInputs {
		in := &tx.TransparentInputs[i]
		res.TransparentSpends = append(res.TransparentSpends, TransparentSpend{
			PrevoutTxID:  displayTxID(in.PrevoutTxID),
			PrevoutIndex: in.PrevoutIndex,
		})
	}

	for i := range tx.TransparentOutputs {
		out := &tx.TransparentOutputs[i]
		entry := TransparentOutput{Index: i, Value: out.Value}
		addr, ok := address.ScriptToAddress(out.ScriptPubKey, key.Network)
		if ok {
			entry.Address = &addr
		}
		res.TransparentOutputs = append(res.TransparentOutputs, entry)

		if !ok {
			continue
		}
		// With an explicit address set, match against it. Otherwise the
		// key's transparent component claims every decodable output.
		mine := known[addr]
		if len(known) == 0 {
			mine = key.HasTransparent()
		}
		if mine {
			res.TransparentReceived += out.Value
			res.Notes = append(res.Notes, Note{
				OutputIndex: i,
				Pool:        PoolTransparent,
				Match:       true,
				Value:       out.Value,
				Address:     &addr,
			})
		}
	}
}

func scanSapling(tx *txdecode.Tx, key *viewkey.ViewingKey, height uint32, res *Result) {
	for i := range tx.SaplingSpends {
		res.SpentNullifiers = append(res.SpentNullifiers, SpentNullifier{
			Pool:      PoolSapling,
			Nullifier: hex.EncodeToString(tx.SaplingSpends[i].Nullifier[:]),
		})
	}

	if !key.HasSapling() {
		return
	}

	for i := range tx.SaplingOutputs {
		out := &tx.SaplingOutputs[i]
		entry := Note{
			OutputIndex: i,
			Pool:        PoolSapling,
			Commitment:  hex.EncodeToString(out.Cmu[:]),
		}
		note, ok := notecrypt.TryDecrypt(notecrypt.DomainSapling,
			key.Sapling.Ivk, out.EphemeralKey, out.EncCiphertext, nil, out.Cmu)
		if ok {
			entry.Match = true
			entry.Value = note.Value
			entry.Memo = decodeMemo(note.Memo)
			if addr, err := address.EncodeSapling(note.Diversifier, note.Pkd, key.Network); err == nil {
				entry.Address = &addr
			}
			if key.Capability == viewkey.CapabilityFull {
				nf := notecrypt.SaplingNullifier(key.Sapling.Nk, out.Cmu, notePosition(height, i))
				s := hex.EncodeToString(nf[:])
				entry.Nullifier = &s
			}
		}
		res.Notes = append(res.Notes, entry)
	}
}

func scanOrchard(tx *txdecode.Tx, key *viewkey.ViewingKey, res *Result) {
	for i := range tx.OrchardActions {
		res.SpentNullifiers = append(res.SpentNullifiers, SpentNullifier{
			Pool:      PoolOrchard,
			Nullifier: hex.EncodeToString(tx.OrchardActions[i].Nullifier[:]),
		})
	}

	if !key.HasOrchard() {
		return
	}

	for i := range tx.OrchardActions {
		action := &tx.OrchardActions[i]
		entry := Note{
			OutputIndex: i,
			Pool:        PoolOrchard,
			Commitment:  hex.EncodeToString(action.Cmx[:]),
		}
		rho := action.Nullifier
		note, ok := notecrypt.TryDecrypt(notecrypt.DomainOrchard,
			key.Orchard.Ivk, action.EphemeralKey, action.EncCiphertext, &rho, action.Cmx)
		if ok {
			entry.Match = true
			entry.Value = note.Value
			entry.Memo = decodeMemo(note.Memo)
			if addr, err := orchardAddress(note, key.Network); err == nil {
				entry.Address = &addr
			}
			if key.Capability == viewkey.CapabilityFull {
				nf := notecrypt.OrchardNullifier(key.Orchard.Nk, rho)
				s := hex.EncodeToString(nf[:])
				entry.Nullifier = &s
			}
		}
		res.Notes = append(res.Notes, entry)
	}
}

// notePosition packs the block height and output index into a stable
// position for Sapling nullifier derivation.
func notePosition(height uint32, index int) uint64 {
	return uint64(height)<<16 | uint64(index)&0xFFFF
}

// orchardAddress rebuilds the unified address with a single Orchard
// receiver for a decrypted note.
func orchardAddress(note *notecrypt.Note, net address.Network) (string, error) {
	payload := make([]byte, 0, notecrypt.DiversifierSize+len(note.Pkd))
	payload = append(payload, note.Diversifier[:]...)
	payload = append(payload, note.Pkd[:]...)
	return address.EncodeUnified([]address.Receiver{
		{Typecode: address.TypecodeOrchard, Data: payload},
	}, net)
}

// decodeMemo strips trailing NUL padding and returns the memo text when it
// is non-empty valid UTF-8, nil otherwise.
func decodeMemo(memo [notecrypt.MemoSize]byte) *string {
	trimmed := strings.TrimRight(string(memo[:]), "\x00")
	if trimmed == "" || !utf8.ValidString(trimmed) {
		return nil
	}
	return &trimmed
}

// displayTxID renders an internal order txid in display order.
func displayTxID(id [32]byte) string {
	for i, j := 0, len(id)-1; i < j; i, j = i+1, j-1 {
		id[i], id[j] = id[j], id[i]
	}
	return hex.EncodeToString(id[:])
}
