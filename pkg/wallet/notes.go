// Package wallet maintains the client side note list: merging scan
// results, marking spends, and computing balances. The list itself is a
// plain slice owned by the caller; every operation here is pure and
// returns the updated slice.
package wallet

import (
	"github.com/suffix-labs/zcash-view/pkg/scan"
)

// Record is one tracked output. Its identity is (TxID, Pool, OutputIndex);
// merging the same transaction twice updates records in place instead of
// duplicating them.
type Record struct {
	scan.Note
	TxID      string  `json:"txid"`
	WalletID  string  `json:"wallet_id,omitempty"`
	Height    uint32  `json:"height,omitempty"`
	SpentTxID *string `json:"spent_txid"`
}

// Spent reports whether the record has been consumed by a later
// transaction.
func (r *Record) Spent() bool { return r.SpentTxID != nil }

func sameRecord(a *Record, txid string, pool scan.Pool, index int) bool {
	return a.TxID == txid && a.Pool == pool && a.OutputIndex == index
}

// AddNote upserts a record into the list. An existing record with the same
// identity is refreshed rather than duplicated, and a spent marker already
// present is never cleared by the refresh.
func AddNote(notes []Record, rec Record) []Record {
	for i := range notes {
		if sameRecord(&notes[i], rec.TxID, rec.Pool, rec.OutputIndex) {
			if notes[i].SpentTxID != nil && rec.SpentTxID == nil {
				rec.SpentTxID = notes[i].SpentTxID
			}
			notes[i] = rec
			return notes
		}
	}
	return append(notes, rec)
}

// MarkNotesSpent marks shielded records whose nullifier appears in the
// given set as spent by spendingTxID. Each nullifier consumes at most one
// record, the first unspent match. Records already spent keep their
// original spending transaction. Returns the updated list and how many
// records changed.
func MarkNotesSpent(notes []Record, nullifiers []scan.SpentNullifier, spendingTxID string) ([]Record, int) {
	marked := 0
	for _, nf := range nullifiers {
		for i := range notes {
			r := &notes[i]
			if r.Spent() || r.Nullifier == nil {
				continue
			}
			if r.Pool == nf.Pool && *r.Nullifier == nf.Nullifier {
				tx := spendingTxID
				r.SpentTxID = &tx
				marked++
				break
			}
		}
	}
	return notes, marked
}

// MarkTransparentSpent marks transparent records consumed by the given
// outpoints as spent by spendingTxID.
func MarkTransparentSpent(notes []Record, spends []scan.TransparentSpend, spendingTxID string) ([]Record, int) {
	marked := 0
	for _, sp := range spends {
		for i := range notes {
			r := &notes[i]
			if r.Spent() || r.Pool != scan.PoolTransparent {
				continue
			}
			if r.TxID == sp.PrevoutTxID && r.OutputIndex == int(sp.PrevoutIndex) {
				tx := spendingTxID
				r.SpentTxID = &tx
				marked++
				break
			}
		}
	}
	return notes, marked
}

// Merge folds one scan result into the note list: matched notes are
// upserted, then the result's nullifiers and transparent spends are
// applied. Merging the same result again leaves the list unchanged.
func Merge(notes []Record, res *scan.Result, walletID string, height uint32) []Record {
	for _, n := range res.Notes {
		if !n.Match {
			continue
		}
		notes = AddNote(notes, Record{
			Note:     n,
			TxID:     res.TxID,
			WalletID: walletID,
			Height:   height,
		})
	}
	notes, _ = MarkNotesSpent(notes, res.SpentNullifiers, res.TxID)
	notes, _ = MarkTransparentSpent(notes, res.TransparentSpends, res.TxID)
	return notes
}

// Balances is the unspent value held per pool.
type Balances struct {
	Total       uint64 `json:"total"`
	Transparent uint64 `json:"transparent"`
	Sapling     uint64 `json:"sapling"`
	Orchard     uint64 `json:"orchard"`
}

// Balance sums the unspent records. Spent records never contribute, so the
// balance cannot go negative no matter the merge order.
func Balance(notes []Record) Balances {
	var b Balances
	for i := range notes {
		r := &notes[i]
		if r.Spent() || !r.Match {
			continue
		}
		b.Total += r.Value
		switch r.Pool {
		case scan.PoolTransparent:
			b.Transparent += r.Value
		case scan.PoolSapling:
			b.Sapling += r.Value
		case scan.PoolOrchard:
			b.Orchard += r.Value
		}
	}
	return b
}
