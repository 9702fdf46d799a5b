package notecrypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyMaterial(t *testing.T, seed byte) (ivk [32]byte, d [DiversifierSize]byte, pkd [33]byte) {
	t.Helper()
	for i := range ivk {
		ivk[i] = seed + byte(i)
	}
	var dk [DiversifierSize]byte
	for i := range dk {
		dk[i] = seed ^ byte(i*3)
	}
	var index uint64
	var err error
	d, index, err = FindDiversifier(dk, 0)
	require.NoError(t, err)
	require.Less(t, index, uint64(1000))

	pkd, err = RecipientKey(ivk, d)
	require.NoError(t, err)
	return
}

func testMemo(text string) (memo [MemoSize]byte) {
	copy(memo[:], text)
	return
}

func testRseed(seed byte) (rseed [RseedSize]byte) {
	for i := range rseed {
		rseed[i] = seed + byte(i*11)
	}
	return
}

func TestSaplingEncryptDecryptRoundTrip(t *testing.T) {
	ivk, d, pkd := testKeyMaterial(t, 1)

	enc, err := Encrypt(DomainSapling, pkd, d, 12345, testRseed(7), testMemo("hello"), nil, nil)
	require.NoError(t, err)

	note, ok := TryDecrypt(DomainSapling, ivk, enc.EphemeralKey, enc.EncCiphertext, nil, enc.Commitment)
	require.True(t, ok, "note addressed to the key must decrypt")
	assert.Equal(t, uint64(12345), note.Value)
	assert.Equal(t, d, note.Diversifier)
	assert.Equal(t, pkd, note.Pkd)
	assert.Equal(t, "hello", strings.TrimRight(string(note.Memo[:]), "\x00"))
}

func TestOrchardEncryptDecryptRoundTrip(t *testing.T) {
	ivk, d, pkd := testKeyMaterial(t, 40)
	rho := [32]byte{9, 9, 9}

	enc, err := Encrypt(DomainOrchard, pkd, d, 777, testRseed(3), testMemo("orchard note"), &rho, nil)
	require.NoError(t, err)

	note, ok := TryDecrypt(DomainOrchard, ivk, enc.EphemeralKey, enc.EncCiphertext, &rho, enc.Commitment)
	require.True(t, ok)
	assert.Equal(t, uint64(777), note.Value)

	// The same ciphertext under the wrong rho must fail the commitment
	// check.
	otherRho := [32]byte{1}
	_, ok = TryDecrypt(DomainOrchard, ivk, enc.EphemeralKey, enc.EncCiphertext, &otherRho, enc.Commitment)
	assert.False(t, ok)
}

func TestDecryptWrongKeyMisses(t *testing.T) {
	_, d, pkd := testKeyMaterial(t, 1)
	enc, err := Encrypt(DomainSapling, pkd, d, 5000, testRseed(1), testMemo(""), nil, nil)
	require.NoError(t, err)

	var wrongIvk [32]byte
	wrongIvk[0] = 0xEE
	_, ok := TryDecrypt(DomainSapling, wrongIvk, enc.EphemeralKey, enc.EncCiphertext, nil, enc.Commitment)
	assert.False(t, ok, "foreign key must not decrypt the note")
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	ivk, d, pkd := testKeyMaterial(t, 1)
	enc, err := Encrypt(DomainSapling, pkd, d, 5000, testRseed(1), testMemo("x"), nil, nil)
	require.NoError(t, err)

	for _, pos := range []int{0, 100, EncCiphertextSize - 1} {
		tampered := enc.EncCiphertext
		tampered[pos] ^= 0x01
		_, ok := TryDecrypt(DomainSapling, ivk, enc.EphemeralKey, tampered, nil, enc.Commitment)
		assert.False(t, ok, "tampered byte %d must fail authentication", pos)
	}
}

func TestDecryptRejectsMismatchedCommitment(t *testing.T) {
	ivk, d, pkd := testKeyMaterial(t, 1)
	enc, err := Encrypt(DomainSapling, pkd, d, 5000, testRseed(1), testMemo("x"), nil, nil)
	require.NoError(t, err)

	forged := enc.Commitment
	forged[0] ^= 0xFF
	_, ok := TryDecrypt(DomainSapling, ivk, enc.EphemeralKey, enc.EncCiphertext, nil, forged)
	assert.False(t, ok, "wire commitment mismatch must reject the note")
}

func TestDecryptGarbageNeverPanics(t *testing.T) {
	ivk, _, _ := testKeyMaterial(t, 1)
	var epk [32]byte
	var ct [EncCiphertextSize]byte
	for i := range ct {
		ct[i] = byte(i)
	}
	_, ok := TryDecrypt(DomainSapling, ivk, epk, ct, nil, [32]byte{})
	assert.False(t, ok)
}

func TestEncryptionIsDeterministic(t *testing.T) {
	_, d, pkd := testKeyMaterial(t, 1)
	rseed := testRseed(5)

	a, err := Encrypt(DomainSapling, pkd, d, 42, rseed, testMemo("m"), nil, nil)
	require.NoError(t, err)
	b, err := Encrypt(DomainSapling, pkd, d, 42, rseed, testMemo("m"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b, "rseed fixes the ephemeral key and ciphertext")

	c, err := Encrypt(DomainSapling, pkd, d, 42, testRseed(6), testMemo("m"), nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.EncCiphertext, c.EncCiphertext)
}

func TestDomainsAreSeparated(t *testing.T) {
	ivk, d, pkd := testKeyMaterial(t, 1)
	enc, err := Encrypt(DomainSapling, pkd, d, 999, testRseed(2), testMemo(""), nil, nil)
	require.NoError(t, err)

	_, ok := TryDecrypt(DomainOrchard, ivk, enc.EphemeralKey, enc.EncCiphertext, nil, enc.Commitment)
	assert.False(t, ok, "sapling ciphertext must not open under the orchard KDF")
}

func TestCommitmentBindsAllInputs(t *testing.T) {
	_, d, pkd := testKeyMaterial(t, 1)
	gd, err := DiversifiedBase(d)
	require.NoError(t, err)
	gdBytes := compress(gd)

	rseed := testRseed(1)
	base := Commitment(DomainSapling, gdBytes, pkd[:], 100, rseed, nil)
	assert.NotEqual(t, base, Commitment(DomainSapling, gdBytes, pkd[:], 101, rseed, nil))
	assert.NotEqual(t, base, Commitment(DomainSapling, gdBytes, pkd[:], 100, testRseed(2), nil))
	rho := [32]byte{1}
	assert.NotEqual(t, base, Commitment(DomainSapling, gdBytes, pkd[:], 100, rseed, &rho))
}

func TestNullifierDerivation(t *testing.T) {
	var nk [32]byte
	for i := range nk {
		nk[i] = byte(i)
	}
	cm := [32]byte{5}

	nf1 := SaplingNullifier(nk, cm, 0)
	nf2 := SaplingNullifier(nk, cm, 0)
	assert.Equal(t, nf1, nf2, "nullifier derivation is deterministic")
	assert.NotEqual(t, nf1, SaplingNullifier(nk, cm, 1), "position changes the nullifier")

	var otherNk [32]byte
	otherNk[0] = 0xFF
	assert.NotEqual(t, nf1, SaplingNullifier(otherNk, cm, 0))

	rho := [32]byte{7}
	onf := OrchardNullifier(nk, rho)
	assert.NotEqual(t, onf, OrchardNullifier(nk, [32]byte{8}))
	assert.NotEqual(t, nf1, onf)
}

func TestFindDiversifierSkipsForward(t *testing.T) {
	var dk [DiversifierSize]byte
	dk[0] = 0x77
	d, index, err := FindDiversifier(dk, 5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, index, uint64(5))
	_, err = DiversifiedBase(d)
	assert.NoError(t, err)
}

func TestRecipientKeyRejectsZeroIvk(t *testing.T) {
	var zero [32]byte
	var dk [DiversifierSize]byte
	d, _, err := FindDiversifier(dk, 0)
	require.NoError(t, err)
	_, err = RecipientKey(zero, d)
	assert.Error(t, err)
}
