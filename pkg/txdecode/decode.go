package txdecode

import (
	"encoding/binary"
	"fmt"
)

// reader walks a byte slice keeping track of the current offset so decode
// failures can report where in the input they occurred. All reads are
// bounds checked; a short read never panics.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) truncated(what string) error {
	return &DecodeError{Code: ErrTruncated, Offset: r.off, Reason: "reading " + what + ": unexpected end of input"}
}

func (r *reader) readFull(dst []byte, what string) error {
	if r.remaining() < len(dst) {
		return r.truncated(what)
	}
	copy(dst, r.buf[r.off:])
	r.off += len(dst)
	return nil
}

func (r *reader) readBytes(n int, what string) ([]byte, error) {
	if r.remaining() < n {
		return nil, r.truncated(what)
	}
	b := make([]byte, n)
	copy(b, r.buf[r.off:])
	r.off += n
	return b, nil
}

func (r *reader) readU32(what string) (uint32, error) {
	if r.remaining() < 4 {
		return 0, r.truncated(what)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) readU64(what string) (uint64, error) {
	if r.remaining() < 8 {
		return 0, r.truncated(what)
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *reader) readI64(what string) (int64, error) {
	v, err := r.readU64(what)
	return int64(v), err
}

func (r *reader) readByte(what string) (byte, error) {
	if r.remaining() < 1 {
		return 0, r.truncated(what)
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

// readCompactSize reads a Bitcoin-style variable-length integer.
func (r *reader) readCompactSize(what string) (uint64, error) {
	first, err := r.readByte(what)
	if err != nil {
		return 0, err
	}
	switch first {
	case 253:
		if r.remaining() < 2 {
			return 0, r.truncated(what)
		}
		v := binary.LittleEndian.Uint16(r.buf[r.off:])
		r.off += 2
		return uint64(v), nil
	case 254:
		v, err := r.readU32(what)
		return uint64(v), err
	case 255:
		return r.readU64(what)
	default:
		return uint64(first), nil
	}
}

// readCount reads a compact-size element count and rejects counts that the
// remaining input could not possibly hold, given a minimum encoded size per
// element. This keeps hostile counts from driving huge allocations.
func (r *reader) readCount(what string, minElemSize int) (int, error) {
	n, err := r.readCompactSize(what)
	if err != nil {
		return 0, err
	}
	if n > uint64(r.remaining()/minElemSize) {
		return 0, &DecodeError{
			Code:   ErrBadCount,
			Offset: r.off,
			Reason: fmt.Sprintf("%s %d exceeds remaining input", what, n),
		}
	}
	return int(n), nil
}

// Decode parses raw transaction bytes. Both v5 (NU5) and v4
// (Sapling/Overwinter) formats are accepted; the format is selected from
// the header. Trailing bytes after a complete transaction are an error.
func Decode(data []byte) (*Tx, error) {
	r := &reader{buf: data}

	header, err := r.readU32("version")
	if err != nil {
		return nil, err
	}
	if header&overwinteredFlag == 0 {
		return nil, &DecodeError{
			Code:   ErrUnsupportedVersion,
			Offset: 0,
			Reason: fmt.Sprintf("not an overwintered transaction (header=0x%08x)", header),
		}
	}

	tx := &Tx{Version: header &^ overwinteredFlag}
	switch tx.Version {
	case 5:
		err = decodeV5(r, tx)
	case 4:
		err = decodeV4(r, tx)
	default:
		return nil, &DecodeError{
			Code:   ErrUnsupportedVersion,
			Offset: 0,
			Reason: fmt.Sprintf("unsupported transaction version %d", tx.Version),
		}
	}
	if err != nil {
		return nil, err
	}

	if r.remaining() != 0 {
		return nil, &DecodeError{
			Code:   ErrTrailingBytes,
			Offset: r.off,
			Reason: fmt.Sprintf("%d trailing bytes after transaction", r.remaining()),
		}
	}
	return tx, nil
}

func decodeV5(r *reader, tx *Tx) error {
	var err error
	if tx.VersionGroupID, err = r.readU32("version_group_id"); err != nil {
		return err
	}
	if tx.VersionGroupID != V5VersionGroupID {
		return &DecodeError{
			Code:   ErrUnsupportedVersion,
			Offset: r.off - 4,
			Reason: fmt.Sprintf("bad v5 version group id 0x%08x", tx.VersionGroupID),
		}
	}
	if tx.ConsensusBranchID, err = r.readU32("consensus_branch_id"); err != nil {
		return err
	}
	if tx.LockTime, err = r.readU32("lock_time"); err != nil {
		return err
	}
	if tx.ExpiryHeight, err = r.readU32("expiry_height"); err != nil {
		return err
	}

	if err := decodeTransparentBundle(r, tx); err != nil {
		return err
	}
	if err := decodeSaplingBundleV5(r, tx); err != nil {
		return err
	}
	return decodeOrchardBundle(r, tx)
}

func decodeV4(r *reader, tx *Tx) error {
	var err error
	if tx.VersionGroupID, err = r.readU32("version_group_id"); err != nil {
		return err
	}
	if tx.VersionGroupID != V4VersionGroupID {
		return &DecodeError{
			Code:   ErrUnsupportedVersion,
			Offset: r.off - 4,
			Reason: fmt.Sprintf("bad v4 version group id 0x%08x", tx.VersionGroupID),
		}
	}

	// v4 keeps the Bitcoin field order: lock time and expiry follow the
	// transparent arrays rather than sitting in the header.
	if err := decodeTransparentBundle(r, tx); err != nil {
		return err
	}
	if tx.LockTime, err = r.readU32("lock_time"); err != nil {
		return err
	}
	if tx.ExpiryHeight, err = r.readU32("expiry_height"); err != nil {
		return err
	}
	if tx.SaplingValueBalance, err = r.readI64("sapling value balance"); err != nil {
		return err
	}

	numSpends, err := r.readCount("spend count", 32*4+saplingProofSize+signatureSize)
	if err != nil {
		return err
	}
	tx.SaplingSpends = make([]SaplingSpend, numSpends)
	for i := range tx.SaplingSpends {
		s := &tx.SaplingSpends[i]
		if err := r.readFull(s.CV[:], "spend cv"); err != nil {
			return err
		}
		if err := r.readFull(s.Anchor[:], "spend anchor"); err != nil {
			return err
		}
		if err := r.readFull(s.Nullifier[:], "spend nullifier"); err != nil {
			return err
		}
		if err := r.readFull(s.Rk[:], "spend rk"); err != nil {
			return err
		}
		if err := r.readFull(s.Proof[:], "spend proof"); err != nil {
			return err
		}
		if err := r.readFull(s.SpendAuthSig[:], "spend auth sig"); err != nil {
			return err
		}
	}

	numOutputs, err := r.readCount("output count", 32*3+encCiphertextSize+outCiphertextSize+saplingProofSize)
	if err != nil {
		return err
	}
	tx.SaplingOutputs = make([]SaplingOutput, numOutputs)
	for i := range tx.SaplingOutputs {
		o := &tx.SaplingOutputs[i]
		if err := r.readFull(o.CV[:], "output cv"); err != nil {
			return err
		}
		if err := r.readFull(o.Cmu[:], "output cmu"); err != nil {
			return err
		}
		if err := r.readFull(o.EphemeralKey[:], "output ephemeral key"); err != nil {
			return err
		}
		if err := r.readFull(o.EncCiphertext[:], "output enc ciphertext"); err != nil {
			return err
		}
		if err := r.readFull(o.OutCiphertext[:], "output out ciphertext"); err != nil {
			return err
		}
		if err := r.readFull(o.Proof[:], "output proof"); err != nil {
			return err
		}
	}

	numJoinSplits, err := r.readCount("joinsplit count", joinSplitSize)
	if err != nil {
		return err
	}
	tx.JoinSplits = make([][]byte, numJoinSplits)
	for i := range tx.JoinSplits {
		if tx.JoinSplits[i], err = r.readBytes(joinSplitSize, "joinsplit"); err != nil {
			return err
		}
	}
	if numJoinSplits > 0 {
		if err := r.readFull(tx.JoinSplitPubKey[:], "joinsplit pubkey"); err != nil {
			return err
		}
		if err := r.readFull(tx.JoinSplitSig[:], "joinsplit sig"); err != nil {
			return err
		}
	}

	if numSpends > 0 || numOutputs > 0 {
		if err := r.readFull(tx.SaplingBindingSig[:], "sapling binding sig"); err != nil {
			return err
		}
	}
	return nil
}

func decodeTransparentBundle(r *reader, tx *Tx) error {
	numInputs, err := r.readCount("input count", 32+4+1+4)
	if err != nil {
		return err
	}
	tx.TransparentInputs = make([]TxIn, numInputs)
	for i := range tx.TransparentInputs {
		if err := decodeTxIn(r, &tx.TransparentInputs[i]); err != nil {
			return err
		}
	}

	numOutputs, err := r.readCount("output count", 8+1)
	if err != nil {
		return err
	}
	tx.TransparentOutputs = make([]TxOut, numOutputs)
	for i := range tx.TransparentOutputs {
		if err := decodeTxOut(r, &tx.TransparentOutputs[i]); err != nil {
			return err
		}
	}
	return nil
}

func decodeTxIn(r *reader, txin *TxIn) error {
	if err := r.readFull(txin.PrevoutTxID[:], "prevout txid"); err != nil {
		return err
	}
	var err error
	if txin.PrevoutIndex, err = r.readU32("prevout index"); err != nil {
		return err
	}
	scriptLen, err := r.readCount("scriptSig length", 1)
	if err != nil {
		return err
	}
	if txin.ScriptSig, err = r.readBytes(scriptLen, "scriptSig"); err != nil {
		return err
	}
	txin.Sequence, err = r.readU32("sequence")
	return err
}

func decodeTxOut(r *reader, txout *TxOut) error {
	var err error
	if txout.Value, err = r.readU64("value"); err != nil {
		return err
	}
	scriptLen, err := r.readCount("scriptPubKey length", 1)
	if err != nil {
		return err
	}
	txout.ScriptPubKey, err = r.readBytes(scriptLen, "scriptPubKey")
	return err
}

// decodeSaplingBundleV5 reads the v5 Sapling bundle. Spends are compact
// (cv, nullifier, rk), the anchor is shared, and proofs and signatures
// trail the descriptor arrays.
func decodeSaplingBundleV5(r *reader, tx *Tx) error {
	numSpends, err := r.readCount("spend count", 32*3)
	if err != nil {
		return err
	}
	tx.SaplingSpends = make([]SaplingSpend, numSpends)
	for i := range tx.SaplingSpends {
		s := &tx.SaplingSpends[i]
		if err := r.readFull(s.CV[:], "spend cv"); err != nil {
			return err
		}
		if err := r.readFull(s.Nullifier[:], "spend nullifier"); err != nil {
			return err
		}
		if err := r.readFull(s.Rk[:], "spend rk"); err != nil {
			return err
		}
	}

	numOutputs, err := r.readCount("output count", 32*3+encCiphertextSize+outCiphertextSize)
	if err != nil {
		return err
	}
	tx.SaplingOutputs = make([]SaplingOutput, numOutputs)
	for i := range tx.SaplingOutputs {
		o := &tx.SaplingOutputs[i]
		if err := r.readFull(o.CV[:], "output cv"); err != nil {
			return err
		}
		if err := r.readFull(o.Cmu[:], "output cmu"); err != nil {
			return err
		}
		if err := r.readFull(o.EphemeralKey[:], "output ephemeral key"); err != nil {
			return err
		}
		if err := r.readFull(o.EncCiphertext[:], "output enc ciphertext"); err != nil {
			return err
		}
		if err := r.readFull(o.OutCiphertext[:], "output out ciphertext"); err != nil {
			return err
		}
	}

	if numSpends == 0 && numOutputs == 0 {
		return nil
	}

	if tx.SaplingValueBalance, err = r.readI64("sapling value balance"); err != nil {
		return err
	}
	if numSpends > 0 {
		if err := r.readFull(tx.SaplingAnchor[:], "sapling anchor"); err != nil {
			return err
		}
	}
	for i := range tx.SaplingSpends {
		if err := r.readFull(tx.SaplingSpends[i].Proof[:], "spend proof"); err != nil {
			return err
		}
	}
	for i := range tx.SaplingSpends {
		if err := r.readFull(tx.SaplingSpends[i].SpendAuthSig[:], "spend auth sig"); err != nil {
			return err
		}
	}
	for i := range tx.SaplingOutputs {
		if err := r.readFull(tx.SaplingOutputs[i].Proof[:], "output proof"); err != nil {
			return err
		}
	}
	return r.readFull(tx.SaplingBindingSig[:], "sapling binding sig")
}

func decodeOrchardBundle(r *reader, tx *Tx) error {
	numActions, err := r.readCount("action count", 32*5+encCiphertextSize+outCiphertextSize)
	if err != nil {
		return err
	}
	if numActions == 0 {
		return nil
	}

	tx.OrchardActions = make([]OrchardAction, numActions)
	for i := range tx.OrchardActions {
		a := &tx.OrchardActions[i]
		if err := r.readFull(a.CV[:], "action cv"); err != nil {
			return err
		}
		if err := r.readFull(a.Nullifier[:], "action nullifier"); err != nil {
			return err
		}
		if err := r.readFull(a.Rk[:], "action rk"); err != nil {
			return err
		}
		if err := r.readFull(a.Cmx[:], "action cmx"); err != nil {
			return err
		}
		if err := r.readFull(a.EphemeralKey[:], "action ephemeral key"); err != nil {
			return err
		}
		if err := r.readFull(a.EncCiphertext[:], "action enc ciphertext"); err != nil {
			return err
		}
		if err := r.readFull(a.OutCiphertext[:], "action out ciphertext"); err != nil {
			return err
		}
	}

	if tx.OrchardFlags, err = r.readByte("orchard flags"); err != nil {
		return err
	}
	if tx.OrchardValueBalance, err = r.readI64("orchard value balance"); err != nil {
		return err
	}
	if err := r.readFull(tx.OrchardAnchor[:], "orchard anchor"); err != nil {
		return err
	}

	proofLen, err := r.readCount("proof length", 1)
	if err != nil {
		return err
	}
	if tx.OrchardProof, err = r.readBytes(proofLen, "orchard proof"); err != nil {
		return err
	}

	for i := range tx.OrchardActions {
		if err := r.readFull(tx.OrchardActions[i].SpendAuthSig[:], "action spend auth sig"); err != nil {
			return err
		}
	}
	return r.readFull(tx.OrchardBindingSig[:], "orchard binding sig")
}
