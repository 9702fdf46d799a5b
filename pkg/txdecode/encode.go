package txdecode

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Bytes re-serializes the transaction to its wire encoding. Decoding the
// result yields an equal transaction.
func (tx *Tx) Bytes() []byte {
	buf := new(bytes.Buffer)
	header := tx.Version | overwinteredFlag
	binary.Write(buf, binary.LittleEndian, header)
	binary.Write(buf, binary.LittleEndian, tx.VersionGroupID)

	if tx.Version == 5 {
		binary.Write(buf, binary.LittleEndian, tx.ConsensusBranchID)
		binary.Write(buf, binary.LittleEndian, tx.LockTime)
		binary.Write(buf, binary.LittleEndian, tx.ExpiryHeight)
		encodeTransparentBundle(buf, tx)
		encodeSaplingBundleV5(buf, tx)
		encodeOrchardBundle(buf, tx)
	} else {
		encodeTransparentBundle(buf, tx)
		binary.Write(buf, binary.LittleEndian, tx.LockTime)
		binary.Write(buf, binary.LittleEndian, tx.ExpiryHeight)
		encodeSaplingBundleV4(buf, tx)
	}
	return buf.Bytes()
}

func encodeTransparentBundle(w io.Writer, tx *Tx) {
	writeCompactSize(w, uint64(len(tx.TransparentInputs)))
	for i := range tx.TransparentInputs {
		in := &tx.TransparentInputs[i]
		w.Write(in.PrevoutTxID[:])
		binary.Write(w, binary.LittleEndian, in.PrevoutIndex)
		writeCompactSize(w, uint64(len(in.ScriptSig)))
		w.Write(in.ScriptSig)
		binary.Write(w, binary.LittleEndian, in.Sequence)
	}
	writeCompactSize(w, uint64(len(tx.TransparentOutputs)))
	for i := range tx.TransparentOutputs {
		out := &tx.TransparentOutputs[i]
		binary.Write(w, binary.LittleEndian, out.Value)
		writeCompactSize(w, uint64(len(out.ScriptPubKey)))
		w.Write(out.ScriptPubKey)
	}
}

func encodeSaplingBundleV5(w io.Writer, tx *Tx) {
	writeCompactSize(w, uint64(len(tx.SaplingSpends)))
	for i := range tx.SaplingSpends {
		s := &tx.SaplingSpends[i]
		w.Write(s.CV[:])
		w.Write(s.Nullifier[:])
		w.Write(s.Rk[:])
	}
	writeCompactSize(w, uint64(len(tx.SaplingOutputs)))
	for i := range tx.SaplingOutputs {
		o := &tx.SaplingOutputs[i]
		w.Write(o.CV[:])
		w.Write(o.Cmu[:])
		w.Write(o.EphemeralKey[:])
		w.Write(o.EncCiphertext[:])
		w.Write(o.OutCiphertext[:])
	}
	if !tx.HasSapling() {
		return
	}
	binary.Write(w, binary.LittleEndian, tx.SaplingValueBalance)
	if len(tx.SaplingSpends) > 0 {
		w.Write(tx.SaplingAnchor[:])
	}
	for i := range tx.SaplingSpends {
		w.Write(tx.SaplingSpends[i].Proof[:])
	}
	for i := range tx.SaplingSpends {
		w.Write(tx.SaplingSpends[i].SpendAuthSig[:])
	}
	for i := range tx.SaplingOutputs {
		w.Write(tx.SaplingOutputs[i].Proof[:])
	}
	w.Write(tx.SaplingBindingSig[:])
}

func encodeSaplingBundleV4(w io.Writer, tx *Tx) {
	binary.Write(w, binary.LittleEndian, tx.SaplingValueBalance)
	writeCompactSize(w, uint64(len(tx.SaplingSpends)))
	for i := range tx.SaplingSpends {
		s := &tx.SaplingSpends[i]
		w.Write(s.CV[:])
		w.Write(s.Anchor[:])
		w.Write(s.Nullifier[:])
		w.Write(s.Rk[:])
		w.Write(s.Proof[:])
		w.Write(s.SpendAuthSig[:])
	}
	writeCompactSize(w, uint64(len(tx.SaplingOutputs)))
	for i := range tx.SaplingOutputs {
		o := &tx.SaplingOutputs[i]
		w.Write(o.CV[:])
		w.Write(o.Cmu[:])
		w.Write(o.EphemeralKey[:])
		w.Write(o.EncCiphertext[:])
		w.Write(o.OutCiphertext[:])
		w.Write(o.Proof[:])
	}
	writeCompactSize(w, uint64(len(tx.JoinSplits)))
	for _, js := range tx.JoinSplits {
		w.Write(js)
	}
	if len(tx.JoinSplits) > 0 {
		w.Write(tx.JoinSplitPubKey[:])
		w.Write(tx.JoinSplitSig[:])
	}
	if tx.HasSapling() {
		w.Write(tx.SaplingBindingSig[:])
	}
}

func encodeOrchardBundle(w io.Writer, tx *Tx) {
	writeCompactSize(w, uint64(len(tx.OrchardActions)))
	if len(tx.OrchardActions) == 0 {
		return
	}
	for i := range tx.OrchardActions {
		a := &tx.OrchardActions[i]
		w.Write(a.CV[:])
		w.Write(a.Nullifier[:])
		w.Write(a.Rk[:])
		w.Write(a.Cmx[:])
		w.Write(a.EphemeralKey[:])
		w.Write(a.EncCiphertext[:])
		w.Write(a.OutCiphertext[:])
	}
	w.Write([]byte{tx.OrchardFlags})
	binary.Write(w, binary.LittleEndian, tx.OrchardValueBalance)
	w.Write(tx.OrchardAnchor[:])
	writeCompactSize(w, uint64(len(tx.OrchardProof)))
	w.Write(tx.OrchardProof)
	for i := range tx.OrchardActions {
		w.Write(tx.OrchardActions[i].SpendAuthSig[:])
	}
	w.Write(tx.OrchardBindingSig[:])
}

// writeCompactSize writes a Bitcoin-style variable-length integer.
func writeCompactSize(w io.Writer, n uint64) {
	switch {
	case n < 253:
		w.Write([]byte{byte(n)})
	case n <= 0xFFFF:
		w.Write([]byte{253})
		binary.Write(w, binary.LittleEndian, uint16(n))
	case n <= 0xFFFFFFFF:
		w.Write([]byte{254})
		binary.Write(w, binary.LittleEndian, uint32(n))
	default:
		w.Write([]byte{255})
		binary.Write(w, binary.LittleEndian, n)
	}
}
