// Package txdecode decodes raw Zcash transaction bytes into a structured
// form suitable for trial decryption and reconciliation, and computes
// transaction IDs.
//
// Two wire formats are supported:
//   - V5 (NU5, ZIP-225): header carries a consensus branch ID, Sapling
//     descriptors are compact with proofs and signatures trailing the
//     descriptor arrays, and Orchard actions may be present.
//   - V4 (Sapling/Overwinter): proofs and signatures are inline in each
//     descriptor, each spend carries its own anchor, and Sprout joinsplits
//     may be present.
//
// References: ZIP-225 (https://zips.z.cash/zip-0225) and the v4 format in
// the Zcash protocol specification §7.1.
package txdecode

// Version group identifiers and related constants.
const (
	V5VersionGroupID = 0x26A7270A
	V4VersionGroupID = 0x892F2085

	// NU5 consensus branch ID, used when re-serializing a v4 header has no
	// branch field and a default is needed for v5 construction.
	NU5BranchID = 0xC2D6D0B4

	overwinteredFlag = uint32(1) << 31

	saplingProofSize  = 192
	signatureSize     = 64
	encCiphertextSize = 580
	outCiphertextSize = 80

	// Groth16 joinsplit descriptor size in v4 transactions:
	// vpub_old(8) vpub_new(8) anchor(32) nullifiers(64) commitments(64)
	// ephemeralKey(32) randomSeed(32) vmacs(64) proof(192) ciphertexts(1202).
	joinSplitSize = 1698
)

// Tx is a decoded Zcash transaction.
type Tx struct {
	// Version is the format version without the overwintered flag bit,
	// currently 4 or 5.
	Version           uint32
	VersionGroupID    uint32
	ConsensusBranchID uint32 // v5 only; zero for v4
	LockTime          uint32
	ExpiryHeight      uint32

	TransparentInputs  []TxIn
	TransparentOutputs []TxOut

	SaplingSpends       []SaplingSpend
	SaplingOutputs      []SaplingOutput
	SaplingValueBalance int64
	// SaplingAnchor is the shared anchor in v5. In v4 each spend carries
	// its own anchor instead.
	SaplingAnchor     [32]byte
	SaplingBindingSig [signatureSize]byte

	// JoinSplits holds raw Sprout descriptors from v4 transactions. They
	// are retained opaquely so the transaction round-trips.
	JoinSplits      [][]byte
	JoinSplitPubKey [32]byte
	JoinSplitSig    [signatureSize]byte

	OrchardActions      []OrchardAction
	OrchardFlags        uint8
	OrchardValueBalance int64
	OrchardAnchor       [32]byte
	OrchardProof        []byte
	OrchardBindingSig   [signatureSize]byte
}

// TxIn is a transparent input.
type TxIn struct {
	PrevoutTxID  [32]byte
	PrevoutIndex uint32
	ScriptSig    []byte
	Sequence     uint32
}

// TxOut is a transparent output.
type TxOut struct {
	Value        uint64
	ScriptPubKey []byte
}

// SaplingSpend is a Sapling spend descriptor. Anchor is only populated for
// v4 transactions.
type SaplingSpend struct {
	CV           [32]byte
	Anchor       [32]byte
	Nullifier    [32]byte
	Rk           [32]byte
	Proof        [saplingProofSize]byte
	SpendAuthSig [signatureSize]byte
}

// SaplingOutput is a Sapling output descriptor.
type SaplingOutput struct {
	CV            [32]byte
	Cmu           [32]byte
	EphemeralKey  [32]byte
	EncCiphertext [encCiphertextSize]byte
	OutCiphertext [outCiphertextSize]byte
	Proof         [saplingProofSize]byte
}

// OrchardAction is an Orchard action descriptor. An action is both a spend
// and an output; Nullifier belongs to the spend half and doubles as the
// rho input for notes created by the output half.
type OrchardAction struct {
	CV            [32]byte
	Nullifier     [32]byte
	Rk            [32]byte
	Cmx           [32]byte
	EphemeralKey  [32]byte
	EncCiphertext [encCiphertextSize]byte
	OutCiphertext [outCiphertextSize]byte
	SpendAuthSig  [signatureSize]byte
}

// HasSapling reports whether the transaction carries any Sapling bundle.
func (tx *Tx) HasSapling() bool {
	return len(tx.SaplingSpends) > 0 || len(tx.SaplingOutputs) > 0
}

// HasOrchard reports whether the transaction carries an Orchard bundle.
func (tx *Tx) HasOrchard() bool {
	return len(tx.OrchardActions) > 0
}
