// Package notecrypt implements shielded note encryption, trial decryption,
// note commitments, and nullifier derivation.
//
// The construction follows the Zcash note encryption shape: an ephemeral
// Diffie-Hellman exchange against the recipient's diversified transmission
// key, a personalized BLAKE2b KDF over the shared secret, and a
// ChaCha20-Poly1305 AEAD over the note plaintext. Key agreement runs over
// secp256k1 with a hash-to-scalar diversified base.
//
// The note plaintext is
//
//	lead byte (0x02) || diversifier (11) || value (8, LE) ||
//	rseed (32) || memo (512)
//
// which together with the 16 byte AEAD tag yields the 580 byte ciphertext
// carried in Sapling outputs and Orchard actions.
package notecrypt

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"hash"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	blake2b "github.com/minio/blake2b-simd"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sizes of the note encryption primitives.
const (
	DiversifierSize   = 11
	RseedSize         = 32
	MemoSize          = 512
	EncCiphertextSize = 580
	OutCiphertextSize = 80

	plaintextSize = 1 + DiversifierSize + 8 + RseedSize + MemoSize

	leadByte = 0x02
)

// BLAKE2b personalization strings, 16 bytes each.
const (
	diversifierPersonalization = "ZViewer_gd_hash_"
	divIndexPersonalization    = "ZViewer_DivIndex"
	eskPersonalization         = "ZViewer_esk_gen_"
	ockPersonalization         = "ZViewer_OutCiphK"

	saplingKDFPersonalization    = "Zcash_SaplingKDF"
	orchardKDFPersonalization    = "Zcash_OrchardKDF"
	saplingCommitPersonalization = "ZViewer_NoteCmtS"
	orchardCommitPersonalization = "ZViewer_NoteCmtO"
	saplingNfPersonalization     = "ZViewer_Nf_Sapl_"
	orchardNfPersonalization     = "ZViewer_Nf_Orch_"
)

// Domain selects the pool specific personalizations.
type Domain int

const (
	DomainSapling Domain = iota
	DomainOrchard
)

func (d Domain) kdfPersonalization() string {
	if d == DomainOrchard {
		return orchardKDFPersonalization
	}
	return saplingKDFPersonalization
}

func (d Domain) commitPersonalization() string {
	if d == DomainOrchard {
		return orchardCommitPersonalization
	}
	return saplingCommitPersonalization
}

// ErrInvalidDiversifier means the diversifier hashes to the zero scalar
// and has no diversified base point.
var ErrInvalidDiversifier = errors.New("invalid diversifier")

func personalized256(person string) hash.Hash {
	h, err := blake2b.New(&blake2b.Config{Size: 32, Person: []byte(person)})
	if err != nil {
		panic("blake2b config: " + err.Error())
	}
	return h
}

// hashToScalar hashes the inputs with the given personalization and reduces
// the digest modulo the curve order.
func hashToScalar(person string, inputs ...[]byte) *secp256k1.ModNScalar {
	h := personalized256(person)
	for _, in := range inputs {
		h.Write(in)
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	s := new(secp256k1.ModNScalar)
	s.SetBytes(&digest)
	return s
}

func compress(p *secp256k1.JacobianPoint) []byte {
	p.ToAffine()
	return secp256k1.NewPublicKey(&p.X, &p.Y).SerializeCompressed()
}

// DiversifiedBase maps a diversifier to its base point g_d. A diversifier
// whose hash reduces to zero is invalid; callers derive addresses by
// skipping such indices.
func DiversifiedBase(d [DiversifierSize]byte) (*secp256k1.JacobianPoint, error) {
	s := hashToScalar(diversifierPersonalization, d[:])
	if s.IsZero() {
		return nil, ErrInvalidDiversifier
	}
	var gd secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(s, &gd)
	return &gd, nil
}

func ivkScalar(ivk [32]byte) (*secp256k1.ModNScalar, error) {
	s := new(secp256k1.ModNScalar)
	s.SetBytes(&ivk)
	if s.IsZero() {
		return nil, errors.New("zero incoming viewing key")
	}
	return s, nil
}

// RecipientKey derives the diversified transmission key pk_d = ivk * g_d
// in compressed form.
func RecipientKey(ivk [32]byte, d [DiversifierSize]byte) ([33]byte, error) {
	var pkd [33]byte
	gd, err := DiversifiedBase(d)
	if err != nil {
		return pkd, err
	}
	s, err := ivkScalar(ivk)
	if err != nil {
		return pkd, err
	}
	var p secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(s, gd, &p)
	copy(pkd[:], compress(&p))
	return pkd, nil
}

// DefaultDiversifier derives the diversifier at the given index from the
// diversifier key. Truncating the hash to 11 bytes means distinct indices
// can collide; FindDiversifier surfaces the index actually used.
func DefaultDiversifier(dk [DiversifierSize]byte, index uint64) [DiversifierSize]byte {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], index)
	h := personalized256(divIndexPersonalization)
	h.Write(dk[:])
	h.Write(idx[:])
	var d [DiversifierSize]byte
	copy(d[:], h.Sum(nil))
	return d
}

// FindDiversifier returns the first valid diversifier at or after start,
// along with the index that produced it.
func FindDiversifier(dk [DiversifierSize]byte, start uint64) ([DiversifierSize]byte, uint64, error) {
	for index := start; index < start+1000; index++ {
		d := DefaultDiversifier(dk, index)
		if _, err := DiversifiedBase(d); err == nil {
			return d, index, nil
		}
	}
	return [DiversifierSize]byte{}, 0, ErrInvalidDiversifier
}

// kdf derives the AEAD key from the compressed shared secret and the
// ephemeral key bytes as they appear on the wire.
func kdf(domain Domain, sharedSecret, epk []byte) []byte {
	h := personalized256(domain.kdfPersonalization())
	h.Write(sharedSecret)
	h.Write(epk)
	return h.Sum(nil)
}

// Commitment computes the note commitment. For Orchard notes rho binds the
// commitment to the action that created it; for Sapling rho is nil.
func Commitment(domain Domain, gd, pkd []byte, value uint64, rseed [RseedSize]byte, rho *[32]byte) [32]byte {
	h := personalized256(domain.commitPersonalization())
	h.Write(gd)
	h.Write(pkd)
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], value)
	h.Write(v[:])
	h.Write(rseed[:])
	if rho != nil {
		h.Write(rho[:])
	}
	var cm [32]byte
	copy(cm[:], h.Sum(nil))
	return cm
}

// SaplingNullifier derives a Sapling nullifier from the nullifier deriving
// key, the note commitment, and the note position.
func SaplingNullifier(nk [32]byte, cm [32]byte, position uint64) [32]byte {
	h := personalized256(saplingNfPersonalization)
	h.Write(nk[:])
	h.Write(cm[:])
	var pos [8]byte
	binary.LittleEndian.PutUint64(pos[:], position)
	h.Write(pos[:])
	var nf [32]byte
	copy(nf[:], h.Sum(nil))
	return nf
}

// OrchardNullifier derives an Orchard nullifier from the nullifier deriving
// key and the rho of the action that created the note.
func OrchardNullifier(nk [32]byte, rho [32]byte) [32]byte {
	h := personalized256(orchardNfPersonalization)
	h.Write(nk[:])
	h.Write(rho[:])
	var nf [32]byte
	copy(nf[:], h.Sum(nil))
	return nf
}

// Each AEAD key encrypts exactly one plaintext, so a zero nonce is safe.
var zeroNonce [chacha20poly1305.NonceSize]byte

func aead(key []byte) cipher.AEAD {
	c, err := chacha20poly1305.New(key)
	if err != nil {
		panic("chacha20poly1305: " + err.Error())
	}
	return c
}

func seal(key, plaintext []byte) []byte {
	return aead(key).Seal(nil, zeroNonce[:], plaintext, nil)
}

func open(key, ciphertext []byte) ([]byte, bool) {
	pt, err := aead(key).Open(nil, zeroNonce[:], ciphertext, nil)
	return pt, err == nil
}

// liftEphemeralKey interprets the 32 wire bytes as an x coordinate with
// even y. Encryption normalizes the ephemeral scalar so this always
// recovers the sender's point.
func liftEphemeralKey(epk [32]byte) (*secp256k1.JacobianPoint, bool) {
	compressed := make([]byte, 33)
	compressed[0] = 0x02
	copy(compressed[1:], epk[:])
	pub, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return nil, false
	}
	var p secp256k1.JacobianPoint
	pub.AsJacobian(&p)
	return &p, true
}

// Note is the decrypted content of a shielded output.
type Note struct {
	Value       uint64
	Diversifier [DiversifierSize]byte
	Rseed       [RseedSize]byte
	Memo        [MemoSize]byte
	// Pkd is the recomputed diversified transmission key, used to rebuild
	// the receiving address.
	Pkd [33]byte
}

// EncryptedNote carries the wire fields produced by Encrypt.
type EncryptedNote struct {
	EphemeralKey  [32]byte
	EncCiphertext [EncCiphertextSize]byte
	OutCiphertext [OutCiphertextSize]byte
	Commitment    [32]byte
}

// Encrypt encrypts a note to the holder of pkd. The ephemeral scalar is
// derived from rseed so the same note encrypts identically. ovk may be nil
// when no outgoing viewing capability is wanted; the out ciphertext is
// still well formed.
func Encrypt(domain Domain, pkd [33]byte, d [DiversifierSize]byte, value uint64,
	rseed [RseedSize]byte, memo [MemoSize]byte, rho *[32]byte, ovk []byte) (*EncryptedNote, error) {

	gd, err := DiversifiedBase(d)
	if err != nil {
		return nil, err
	}
	pkdPub, err := secp256k1.ParsePubKey(pkd[:])
	if err != nil {
		return nil, err
	}

	esk := hashToScalar(eskPersonalization, rseed[:], d[:])
	if esk.IsZero() {
		esk.SetInt(1)
	}

	var epkPoint secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(esk, gd, &epkPoint)
	epkCompressed := compress(&epkPoint)
	if epkCompressed[0] == 0x03 {
		// Normalize to even y so the 32 byte wire form lifts uniquely.
		esk.Negate()
		secp256k1.ScalarMultNonConst(esk, gd, &epkPoint)
		epkCompressed = compress(&epkPoint)
	}

	out := &EncryptedNote{}
	copy(out.EphemeralKey[:], epkCompressed[1:])

	var pkdPoint, ssPoint secp256k1.JacobianPoint
	pkdPub.AsJacobian(&pkdPoint)
	secp256k1.ScalarMultNonConst(esk, &pkdPoint, &ssPoint)
	sharedSecret := compress(&ssPoint)

	key := kdf(domain, sharedSecret, out.EphemeralKey[:])

	plaintext := make([]byte, 0, plaintextSize)
	plaintext = append(plaintext, leadByte)
	plaintext = append(plaintext, d[:]...)
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], value)
	plaintext = append(plaintext, v[:]...)
	plaintext = append(plaintext, rseed[:]...)
	plaintext = append(plaintext, memo[:]...)

	copy(out.EncCiphertext[:], seal(key, plaintext))

	// Out ciphertext: pk_d x coordinate and the ephemeral scalar under a
	// key derived from the outgoing viewing key, or a zero key when the
	// sender keeps no outgoing capability.
	ovkBytes := make([]byte, 32)
	copy(ovkBytes, ovk)
	ockHash := personalized256(ockPersonalization)
	ockHash.Write(ovkBytes)
	ockHash.Write(out.EphemeralKey[:])
	ock := ockHash.Sum(nil)

	eskBytes := esk.Bytes()
	outPlain := make([]byte, 0, 64)
	outPlain = append(outPlain, pkd[1:]...)
	outPlain = append(outPlain, eskBytes[:]...)
	copy(out.OutCiphertext[:], seal(ock, outPlain))

	out.Commitment = Commitment(domain, compress(gd), pkd[:], value, rseed, rho)
	return out, nil
}

// TryDecrypt attempts trial decryption of a shielded output with an
// incoming viewing key. It returns the note and true on success, or nil
// and false when the output is not addressed to the key or is malformed.
// The recomputed note commitment must match the wire commitment, which
// rejects outputs whose ciphertext was forged against a mismatched
// commitment.
func TryDecrypt(domain Domain, ivk [32]byte, ephemeralKey [32]byte,
	encCiphertext [EncCiphertextSize]byte, rho *[32]byte, wireCommitment [32]byte) (*Note, bool) {

	epk, ok := liftEphemeralKey(ephemeralKey)
	if !ok {
		return nil, false
	}
	s, err := ivkScalar(ivk)
	if err != nil {
		return nil, false
	}

	var ssPoint secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(s, epk, &ssPoint)
	sharedSecret := compress(&ssPoint)

	key := kdf(domain, sharedSecret, ephemeralKey[:])
	plaintext, ok := open(key, encCiphertext[:])
	if !ok || len(plaintext) != plaintextSize {
		return nil, false
	}
	if plaintext[0] != leadByte {
		return nil, false
	}

	note := &Note{}
	copy(note.Diversifier[:], plaintext[1:12])
	note.Value = binary.LittleEndian.Uint64(plaintext[12:20])
	copy(note.Rseed[:], plaintext[20:52])
	copy(note.Memo[:], plaintext[52:])

	gd, err := DiversifiedBase(note.Diversifier)
	if err != nil {
		return nil, false
	}
	var pkdPoint secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(s, gd, &pkdPoint)
	copy(note.Pkd[:], compress(&pkdPoint))

	cm := Commitment(domain, compress(gd), note.Pkd[:], note.Value, note.Rseed, rho)
	if cm != wireCommitment {
		return nil, false
	}
	return note, true
}
