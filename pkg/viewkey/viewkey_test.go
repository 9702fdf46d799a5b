package viewkey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/zcash-view/pkg/address"
)

func testPoolKey(seed byte) *PoolKey {
	pk := &PoolKey{}
	for i := range pk.Ivk {
		pk.Ivk[i] = seed + byte(i)
	}
	for i := range pk.Nk {
		pk.Nk[i] = seed ^ byte(i*5)
	}
	for i := range pk.Dk {
		pk.Dk[i] = seed + byte(i*7)
	}
	return pk
}

func TestUFVKRoundTrip(t *testing.T) {
	key := &ViewingKey{
		Network:         address.Mainnet,
		Capability:      CapabilityFull,
		KeyType:         TypeUFVK,
		Sapling:         testPoolKey(1),
		Orchard:         testPoolKey(2),
		TransparentData: make([]byte, 33),
	}
	encoded, err := key.Encode()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "uview1"))

	parsed, err := Parse(encoded)
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
	assert.Equal(t, CapabilityFull, parsed.Capability)
	assert.True(t, parsed.HasSapling())
	assert.True(t, parsed.HasOrchard())
	assert.True(t, parsed.HasTransparent())
}

func TestUIVKRoundTrip(t *testing.T) {
	sapling := testPoolKey(3)
	sapling.Nk = [32]byte{} // incoming keys carry no nullifier component
	key := &ViewingKey{
		Network:    address.Testnet,
		Capability: CapabilityIncoming,
		KeyType:    TypeUIVK,
		Sapling:    sapling,
	}
	encoded, err := key.Encode()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "uivktest1"))

	parsed, err := Parse(encoded)
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
	assert.Equal(t, "incoming", parsed.Capability.String())
	assert.False(t, parsed.HasOrchard())
}

func TestSaplingExtFVKRoundTrip(t *testing.T) {
	for _, tt := range []struct {
		net    address.Network
		prefix string
	}{
		{address.Mainnet, "zxviews1"},
		{address.Testnet, "zxviewtestsapling1"},
	} {
		key := &ViewingKey{
			Network:    tt.net,
			Capability: CapabilityFull,
			KeyType:    TypeSaplingExtFVK,
			Sapling:    testPoolKey(9),
		}
		encoded, err := key.Encode()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(encoded, tt.prefix), "got %s", encoded)

		parsed, err := Parse(encoded)
		require.NoError(t, err)
		assert.Equal(t, key, parsed)
		assert.Equal(t, TypeSaplingExtFVK, parsed.KeyType)
	}
}

func TestParseRejectsUnknownPrefix(t *testing.T) {
	body := make([]byte, 75)
	encoded, err := address.EncodeBech32("zfakekey", body)
	require.NoError(t, err)

	_, err = Parse(encoded)
	var ke *KeyError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, ErrUnknownPrefix, ke.Code)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "not a key", "uview1qqqqq!!", "zxviews1"} {
		_, err := Parse(in)
		var ke *KeyError
		require.ErrorAs(t, err, &ke, "input %q", in)
		assert.Equal(t, ErrInvalidEncoding, ke.Code, "input %q", in)
	}
}

func TestParseRejectsWrongItemSize(t *testing.T) {
	// A UFVK whose sapling item is the incoming (43 byte) shape.
	items := address.EncodeItems([]address.Receiver{
		{Typecode: address.TypecodeSapling, Data: make([]byte, 43)},
	})
	encoded, err := address.EncodeBech32("uview", items)
	require.NoError(t, err)

	_, err = Parse(encoded)
	var ke *KeyError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, ErrUnsupportedVersion, ke.Code)
}

func TestParseRejectsShieldedlessContainer(t *testing.T) {
	items := address.EncodeItems([]address.Receiver{
		{Typecode: address.TypecodeP2PKH, Data: make([]byte, 33)},
	})
	encoded, err := address.EncodeBech32("uivk", items)
	require.NoError(t, err)

	_, err = Parse(encoded)
	var ke *KeyError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, ErrUnsupportedVersion, ke.Code)
}

func TestParseRejectsWrongLengthSaplingKey(t *testing.T) {
	encoded, err := address.EncodeBech32("zxviews", make([]byte, 40))
	require.NoError(t, err)

	_, err = Parse(encoded)
	var ke *KeyError
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, ErrUnsupportedVersion, ke.Code)
}

func TestZeroWipes(t *testing.T) {
	key := &ViewingKey{
		Network:         address.Mainnet,
		Capability:      CapabilityFull,
		KeyType:         TypeUFVK,
		Sapling:         testPoolKey(1),
		TransparentData: []byte{1, 2, 3},
	}
	key.Zero()
	assert.Equal(t, [32]byte{}, key.Sapling.Ivk)
	assert.Equal(t, [32]byte{}, key.Sapling.Nk)
	assert.Equal(t, [11]byte{}, key.Sapling.Dk)
	assert.Equal(t, []byte{0, 0, 0}, key.TransparentData)
}
