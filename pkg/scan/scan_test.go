package scan

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/zcash-view/pkg/address"
	"github.com/suffix-labs/zcash-view/pkg/notecrypt"
	"github.com/suffix-labs/zcash-view/pkg/txdecode"
	"github.com/suffix-labs/zcash-view/pkg/viewkey"
)

// testKey builds a full viewing key with Sapling and Orchard components.
func testKey(t *testing.T, net address.Network) *viewkey.ViewingKey {
	t.Helper()
	mk := func(seed byte) *viewkey.PoolKey {
		pk := &viewkey.PoolKey{}
		for i := range pk.Ivk {
			pk.Ivk[i] = seed + byte(i)
		}
		for i := range pk.Nk {
			pk.Nk[i] = seed ^ byte(i*3)
		}
		for i := range pk.Dk {
			pk.Dk[i] = seed + byte(i*5)
		}
		return pk
	}
	return &viewkey.ViewingKey{
		Network:    net,
		Capability: viewkey.CapabilityFull,
		KeyType:    viewkey.TypeUFVK,
		Sapling:    mk(10),
		Orchard:    mk(20),
	}
}

// addSaplingOutput encrypts a note to the key and appends it to the
// transaction.
func addSaplingOutput(t *testing.T, tx *txdecode.Tx, key *viewkey.ViewingKey, value uint64, memoText string) {
	t.Helper()
	d, _, err := notecrypt.FindDiversifier(key.Sapling.Dk, 0)
	require.NoError(t, err)
	pkd, err := notecrypt.RecipientKey(key.Sapling.Ivk, d)
	require.NoError(t, err)

	var rseed [notecrypt.RseedSize]byte
	rseed[0] = byte(len(tx.SaplingOutputs) + 1)
	var memo [notecrypt.MemoSize]byte
	copy(memo[:], memoText)

	enc, err := notecrypt.Encrypt(notecrypt.DomainSapling, pkd, d, value, rseed, memo, nil, nil)
	require.NoError(t, err)

	out := txdecode.SaplingOutput{
		Cmu:           enc.Commitment,
		EphemeralKey:  enc.EphemeralKey,
		EncCiphertext: enc.EncCiphertext,
		OutCiphertext: enc.OutCiphertext,
	}
	tx.SaplingOutputs = append(tx.SaplingOutputs, out)
}

func addOrchardAction(t *testing.T, tx *txdecode.Tx, key *viewkey.ViewingKey, value uint64, memoText string) {
	t.Helper()
	d, _, err := notecrypt.FindDiversifier(key.Orchard.Dk, 0)
	require.NoError(t, err)
	pkd, err := notecrypt.RecipientKey(key.Orchard.Ivk, d)
	require.NoError(t, err)

	var rho [32]byte
	rho[0] = byte(len(tx.OrchardActions) + 0x80)
	var rseed [notecrypt.RseedSize]byte
	rseed[0] = byte(len(tx.OrchardActions) + 0x40)
	var memo [notecrypt.MemoSize]byte
	copy(memo[:], memoText)

	enc, err := notecrypt.Encrypt(notecrypt.DomainOrchard, pkd, d, value, rseed, memo, &rho, nil)
	require.NoError(t, err)

	action := txdecode.OrchardAction{
		Nullifier:     rho,
		Cmx:           enc.Commitment,
		EphemeralKey:  enc.EphemeralKey,
		EncCiphertext: enc.EncCiphertext,
		OutCiphertext: enc.OutCiphertext,
	}
	tx.OrchardActions = append(tx.OrchardActions, action)
}

func newV5Tx() *txdecode.Tx {
	return &txdecode.Tx{
		Version:           5,
		VersionGroupID:    txdecode.V5VersionGroupID,
		ConsensusBranchID: txdecode.NU5BranchID,
	}
}

func TestScanDecryptsOwnSaplingNote(t *testing.T) {
	key := testKey(t, address.Mainnet)
	tx := newV5Tx()
	addSaplingOutput(t, tx, key, 12345, "hello")

	res := Transaction(tx, key, Options{})
	require.Len(t, res.Notes, 1)

	note := res.Notes[0]
	assert.True(t, note.Match)
	assert.Equal(t, PoolSapling, note.Pool)
	assert.Equal(t, uint64(12345), note.Value)
	require.NotNil(t, note.Memo)
	assert.Equal(t, "hello", *note.Memo)
	require.NotNil(t, note.Nullifier, "full keys derive nullifiers")
	require.NotNil(t, note.Address)
	_, _, net, err := address.DecodeSapling(*note.Address)
	require.NoError(t, err)
	assert.Equal(t, address.Mainnet, net)
	assert.Equal(t, tx.TxIDString(), res.TxID)
}

func TestScanDecryptsOrchardAction(t *testing.T) {
	key := testKey(t, address.Mainnet)
	tx := newV5Tx()
	addOrchardAction(t, tx, key, 777, "orchard hi")

	res := Transaction(tx, key, Options{})

	var matched []Note
	for _, n := range res.Notes {
		if n.Match {
			matched = append(matched, n)
		}
	}
	require.Len(t, matched, 1)
	assert.Equal(t, PoolOrchard, matched[0].Pool)
	assert.Equal(t, uint64(777), matched[0].Value)
	require.NotNil(t, matched[0].Nullifier)

	// The action's own nullifier is reported as spent.
	require.Len(t, res.SpentNullifiers, 1)
	assert.Equal(t, PoolOrchard, res.SpentNullifiers[0].Pool)
}

func TestScanForeignNoteDoesNotMatch(t *testing.T) {
	sender := testKey(t, address.Mainnet)
	watcher := testKey(t, address.Mainnet)
	watcher.Sapling.Ivk[0] ^= 0xFF

	tx := newV5Tx()
	addSaplingOutput(t, tx, sender, 99999, "not yours")

	res := Transaction(tx, watcher, Options{})
	require.Len(t, res.Notes, 1)

	note := res.Notes[0]
	assert.False(t, note.Match)
	assert.Zero(t, note.Value, "non-matching notes carry no value")
	assert.Nil(t, note.Nullifier)
	assert.Nil(t, note.Memo)
	assert.NotEmpty(t, note.Commitment, "commitment is visible regardless")
}

func TestScanIncomingKeyOmitsNullifier(t *testing.T) {
	key := testKey(t, address.Mainnet)
	tx := newV5Tx()
	addSaplingOutput(t, tx, key, 500, "")

	incoming := &viewkey.ViewingKey{
		Network:    key.Network,
		Capability: viewkey.CapabilityIncoming,
		KeyType:    viewkey.TypeUIVK,
		Sapling:    &viewkey.PoolKey{Ivk: key.Sapling.Ivk, Dk: key.Sapling.Dk},
	}

	res := Transaction(tx, incoming, Options{})
	require.Len(t, res.Notes, 1)
	assert.True(t, res.Notes[0].Match, "incoming keys still detect notes")
	assert.Nil(t, res.Notes[0].Nullifier, "incoming keys cannot derive nullifiers")
}

func TestScanKeyWithoutPoolSkipsIt(t *testing.T) {
	key := testKey(t, address.Mainnet)
	tx := newV5Tx()
	addSaplingOutput(t, tx, key, 500, "")

	saplingless := &viewkey.ViewingKey{
		Network:    key.Network,
		Capability: viewkey.CapabilityFull,
		KeyType:    viewkey.TypeUFVK,
		Orchard:    key.Orchard,
	}
	res := Transaction(tx, saplingless, Options{})
	assert.Empty(t, res.Notes, "outputs in uncovered pools are not reported")
}

func TestScanSpentNullifiersAndTransparent(t *testing.T) {
	key := testKey(t, address.Mainnet)
	tx := newV5Tx()

	var prevout [32]byte
	prevout[0] = 0xAB
	tx.TransparentInputs = []txdecode.TxIn{{PrevoutTxID: prevout, PrevoutIndex: 2}}

	var h [20]byte
	h[0] = 0x99
	addr := address.EncodeTransparent(h, address.Mainnet, false)
	tx.TransparentOutputs = []txdecode.TxOut{
		{Value: 60000, ScriptPubKey: address.P2PKHScript(h)},
		{Value: 1, ScriptPubKey: []byte{0x6A}}, // op_return, no address
	}

	spend := txdecode.SaplingSpend{}
	spend.Nullifier[0] = 0xCD
	tx.SaplingSpends = []txdecode.SaplingSpend{spend}

	res := Transaction(tx, key, Options{KnownAddresses: []string{addr}})

	require.Len(t, res.TransparentSpends, 1)
	assert.Equal(t, uint32(2), res.TransparentSpends[0].PrevoutIndex)

	require.Len(t, res.SpentNullifiers, 1)
	assert.Equal(t, PoolSapling, res.SpentNullifiers[0].Pool)
	assert.Equal(t, hex.EncodeToString(spend.Nullifier[:]), res.SpentNullifiers[0].Nullifier)

	assert.Equal(t, uint64(60000), res.TransparentReceived)
	require.Len(t, res.TransparentOutputs, 2)
	require.NotNil(t, res.TransparentOutputs[0].Address)
	assert.Equal(t, addr, *res.TransparentOutputs[0].Address)
	assert.Nil(t, res.TransparentOutputs[1].Address)

	// Exactly one transparent note, for the known address.
	var transparent []Note
	for _, n := range res.Notes {
		if n.Pool == PoolTransparent {
			transparent = append(transparent, n)
		}
	}
	require.Len(t, transparent, 1)
	assert.Equal(t, uint64(60000), transparent[0].Value)
}

func TestScanUnknownTransparentNotCounted(t *testing.T) {
	key := testKey(t, address.Mainnet) // no transparent component
	tx := newV5Tx()

	var h [20]byte
	tx.TransparentOutputs = []txdecode.TxOut{{Value: 5, ScriptPubKey: address.P2PKHScript(h)}}

	other := address.EncodeTransparent([20]byte{0xFF}, address.Mainnet, false)
	res := Transaction(tx, key, Options{KnownAddresses: []string{other}})
	assert.Zero(t, res.TransparentReceived)

	res = Transaction(tx, key, Options{})
	assert.Zero(t, res.TransparentReceived, "key without transparent reach claims nothing")
}

func TestScanHeightChangesSaplingNullifier(t *testing.T) {
	key := testKey(t, address.Mainnet)
	tx := newV5Tx()
	addSaplingOutput(t, tx, key, 100, "")

	a := Transaction(tx, key, Options{Height: 100})
	b := Transaction(tx, key, Options{Height: 200})
	require.NotNil(t, a.Notes[0].Nullifier)
	require.NotNil(t, b.Notes[0].Nullifier)
	assert.NotEqual(t, *a.Notes[0].Nullifier, *b.Notes[0].Nullifier,
		"note position feeds nullifier derivation")
}

func TestScanSurvivesWireRoundTrip(t *testing.T) {
	key := testKey(t, address.Mainnet)
	tx := newV5Tx()
	addSaplingOutput(t, tx, key, 12345, "hello")

	decoded, err := txdecode.Decode(tx.Bytes())
	require.NoError(t, err)

	res := Transaction(decoded, key, Options{})
	require.Len(t, res.Notes, 1)
	assert.True(t, res.Notes[0].Match)
	assert.Equal(t, uint64(12345), res.Notes[0].Value)
}
