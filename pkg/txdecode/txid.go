package txdecode

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	blake2b "github.com/minio/blake2b-simd"
)

// ZIP-244 personalization strings for the v5 txid digest tree.
const (
	txIDPersonalizationPrefix = "ZcashTxHash_"

	headerDigestPersonalization      = "ZTxIdHeadersHash"
	transparentDigestPersonalization = "ZTxIdTranspaHash"
	saplingDigestPersonalization     = "ZTxIdSaplingHash"
	orchardDigestPersonalization     = "ZTxIdOrchardHash"

	prevoutDigestPersonalization  = "ZTxIdPrevoutHash"
	sequenceDigestPersonalization = "ZTxIdSequencHash"
	outputsDigestPersonalization  = "ZTxIdOutputsHash"

	saplingSpendsDigestPersonalization      = "ZTxIdSSpendsHash"
	saplingSpendsCompactPersonalization     = "ZTxIdSSpendCHash"
	saplingSpendsNoncompactPersonalization  = "ZTxIdSSpendNHash"
	saplingOutputsDigestPersonalization     = "ZTxIdSOutputHash"
	saplingOutputsCompactPersonalization    = "ZTxIdSOutC__Hash"
	saplingOutputsMemosPersonalization      = "ZTxIdSOutM__Hash"
	saplingOutputsNoncompactPersonalization = "ZTxIdSOutN__Hash"

	orchardActionsCompactPersonalization    = "ZTxIdOrcActCHash"
	orchardActionsMemosPersonalization      = "ZTxIdOrcActMHash"
	orchardActionsNoncompactPersonalization = "ZTxIdOrcActNHash"
)

// blake2bNew256 creates a BLAKE2b-256 hash with the given personalization.
// The personalization is a distinct BLAKE2b parameter, not a key.
func blake2bNew256(personalization []byte) hash.Hash {
	h, err := blake2b.New(&blake2b.Config{Size: 32, Person: personalization})
	if err != nil {
		panic("blake2b config: " + err.Error())
	}
	return h
}

func finish(h hash.Hash) [32]byte {
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// TxID computes the transaction identifier in internal byte order. For v5
// transactions this is the ZIP-244 digest tree; for v4 it is the double
// SHA-256 of the serialized transaction.
func (tx *Tx) TxID() [32]byte {
	if tx.Version == 5 {
		return tx.txIDV5()
	}
	first := sha256.Sum256(tx.Bytes())
	return sha256.Sum256(first[:])
}

// TxIDString returns the transaction id in the conventional display order,
// which reverses the internal byte order.
func (tx *Tx) TxIDString() string {
	id := tx.TxID()
	for i, j := 0, len(id)-1; i < j; i, j = i+1, j-1 {
		id[i], id[j] = id[j], id[i]
	}
	return hex.EncodeToString(id[:])
}

func (tx *Tx) txIDV5() [32]byte {
	// txid = BLAKE2b-256("ZcashTxHash_" || branch_id,
	//                    header || transparent || sapling || orchard)
	personalization := make([]byte, 16)
	copy(personalization, txIDPersonalizationPrefix)
	binary.LittleEndian.PutUint32(personalization[12:], tx.ConsensusBranchID)

	h := blake2bNew256(personalization)
	header := tx.headerDigest()
	h.Write(header[:])
	transparent := tx.transparentDigest()
	h.Write(transparent[:])
	sapling := tx.saplingDigest()
	h.Write(sapling[:])
	orchard := tx.orchardDigest()
	h.Write(orchard[:])
	return finish(h)
}

// headerDigest computes T.1.
func (tx *Tx) headerDigest() [32]byte {
	h := blake2bNew256([]byte(headerDigestPersonalization))
	binary.Write(h, binary.LittleEndian, tx.Version|overwinteredFlag)
	binary.Write(h, binary.LittleEndian, tx.VersionGroupID)
	binary.Write(h, binary.LittleEndian, tx.ConsensusBranchID)
	binary.Write(h, binary.LittleEndian, tx.LockTime)
	binary.Write(h, binary.LittleEndian, tx.ExpiryHeight)
	return finish(h)
}

// transparentDigest computes T.2 from three sub-digests. A transaction with
// no transparent component hashes to the bare personalized state.
func (tx *Tx) transparentDigest() [32]byte {
	h := blake2bNew256([]byte(transparentDigestPersonalization))
	if len(tx.TransparentInputs) == 0 && len(tx.TransparentOutputs) == 0 {
		return finish(h)
	}

	prevouts := blake2bNew256([]byte(prevoutDigestPersonalization))
	sequences := blake2bNew256([]byte(sequenceDigestPersonalization))
	for i := range tx.TransparentInputs {
		in := &tx.TransparentInputs[i]
		prevouts.Write(in.PrevoutTxID[:])
		binary.Write(prevouts, binary.LittleEndian, in.PrevoutIndex)
		binary.Write(sequences, binary.LittleEndian, in.Sequence)
	}

	outputs := blake2bNew256([]byte(outputsDigestPersonalization))
	for i := range tx.TransparentOutputs {
		out := &tx.TransparentOutputs[i]
		binary.Write(outputs, binary.LittleEndian, out.Value)
		writeCompactSize(outputs, uint64(len(out.ScriptPubKey)))
		outputs.Write(out.ScriptPubKey)
	}

	h.Write(prevouts.Sum(nil))
	h.Write(sequences.Sum(nil))
	h.Write(outputs.Sum(nil))
	return finish(h)
}

// saplingDigest computes T.3.
func (tx *Tx) saplingDigest() [32]byte {
	h := blake2bNew256([]byte(saplingDigestPersonalization))
	if !tx.HasSapling() {
		return finish(h)
	}
	spends := tx.saplingSpendsDigest()
	h.Write(spends[:])
	outputs := tx.saplingOutputsDigest()
	h.Write(outputs[:])
	binary.Write(h, binary.LittleEndian, tx.SaplingValueBalance)
	return finish(h)
}

func (tx *Tx) saplingSpendsDigest() [32]byte {
	h := blake2bNew256([]byte(saplingSpendsDigestPersonalization))
	if len(tx.SaplingSpends) == 0 {
		return finish(h)
	}

	compact := blake2bNew256([]byte(saplingSpendsCompactPersonalization))
	noncompact := blake2bNew256([]byte(saplingSpendsNoncompactPersonalization))
	for i := range tx.SaplingSpends {
		s := &tx.SaplingSpends[i]
		compact.Write(s.Nullifier[:])
		noncompact.Write(s.CV[:])
		noncompact.Write(tx.SaplingAnchor[:])
		noncompact.Write(s.Rk[:])
	}
	h.Write(compact.Sum(nil))
	h.Write(noncompact.Sum(nil))
	return finish(h)
}

func (tx *Tx) saplingOutputsDigest() [32]byte {
	h := blake2bNew256([]byte(saplingOutputsDigestPersonalization))
	if len(tx.SaplingOutputs) == 0 {
		return finish(h)
	}

	compact := blake2bNew256([]byte(saplingOutputsCompactPersonalization))
	memos := blake2bNew256([]byte(saplingOutputsMemosPersonalization))
	noncompact := blake2bNew256([]byte(saplingOutputsNoncompactPersonalization))
	for i := range tx.SaplingOutputs {
		o := &tx.SaplingOutputs[i]
		compact.Write(o.Cmu[:])
		compact.Write(o.EphemeralKey[:])
		compact.Write(o.EncCiphertext[:52])
		memos.Write(o.EncCiphertext[52:564])
		noncompact.Write(o.CV[:])
		noncompact.Write(o.EncCiphertext[564:])
		noncompact.Write(o.OutCiphertext[:])
	}
	h.Write(compact.Sum(nil))
	h.Write(memos.Sum(nil))
	h.Write(noncompact.Sum(nil))
	return finish(h)
}

// orchardDigest computes T.4.
func (tx *Tx) orchardDigest() [32]byte {
	h := blake2bNew256([]byte(orchardDigestPersonalization))
	if !tx.HasOrchard() {
		return finish(h)
	}

	compact := blake2bNew256([]byte(orchardActionsCompactPersonalization))
	memos := blake2bNew256([]byte(orchardActionsMemosPersonalization))
	noncompact := blake2bNew256([]byte(orchardActionsNoncompactPersonalization))
	for i := range tx.OrchardActions {
		a := &tx.OrchardActions[i]
		compact.Write(a.Nullifier[:])
		compact.Write(a.Cmx[:])
		compact.Write(a.EphemeralKey[:])
		compact.Write(a.EncCiphertext[:52])
		memos.Write(a.EncCiphertext[52:564])
		noncompact.Write(a.CV[:])
		noncompact.Write(a.Rk[:])
		noncompact.Write(a.EncCiphertext[564:])
		noncompact.Write(a.OutCiphertext[:])
	}
	h.Write(compact.Sum(nil))
	h.Write(memos.Sum(nil))
	h.Write(noncompact.Sum(nil))

	h.Write([]byte{tx.OrchardFlags})
	binary.Write(h, binary.LittleEndian, tx.OrchardValueBalance)
	h.Write(tx.OrchardAnchor[:])
	return finish(h)
}
