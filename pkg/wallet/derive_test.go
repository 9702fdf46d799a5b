package wallet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/zcash-view/pkg/address"
	"github.com/suffix-labs/zcash-view/pkg/viewkey"
)

// A fixed valid BIP39 phrase for deterministic derivation tests.
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestDeriveIsDeterministic(t *testing.T) {
	a, err := Derive(testMnemonic, address.Mainnet, 0, 0)
	require.NoError(t, err)
	b, err := Derive(testMnemonic, address.Mainnet, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveRejectsBadMnemonic(t *testing.T) {
	_, err := Derive("definitely not a seed phrase", address.Mainnet, 0, 0)
	assert.Error(t, err)
	_, err = Derive("", address.Mainnet, 0, 0)
	assert.Error(t, err)
}

func TestDeriveProducesParsableOutputs(t *testing.T) {
	info, err := Derive(testMnemonic, address.Mainnet, 0, 0)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(info.TransparentAddress, "t1"))
	assert.True(t, strings.HasPrefix(info.SaplingAddress, "zs1"))
	assert.True(t, strings.HasPrefix(info.UnifiedAddress, "u1"))

	key, err := viewkey.Parse(info.UFVK)
	require.NoError(t, err)
	assert.Equal(t, viewkey.CapabilityFull, key.Capability)
	assert.True(t, key.HasSapling())
	assert.True(t, key.HasOrchard())
	assert.True(t, key.HasTransparent())
	assert.Equal(t, address.Mainnet, key.Network)

	incoming, err := viewkey.Parse(info.UIVK)
	require.NoError(t, err)
	assert.Equal(t, viewkey.CapabilityIncoming, incoming.Capability)

	receivers, net, err := address.DecodeUnified(info.UnifiedAddress)
	require.NoError(t, err)
	assert.Equal(t, address.Mainnet, net)
	assert.Len(t, receivers, 3)
}

func TestDeriveNetworksDiffer(t *testing.T) {
	main, err := Derive(testMnemonic, address.Mainnet, 0, 0)
	require.NoError(t, err)
	test, err := Derive(testMnemonic, address.Testnet, 0, 0)
	require.NoError(t, err)

	assert.NotEqual(t, main.UFVK, test.UFVK)
	assert.True(t, strings.HasPrefix(test.TransparentAddress, "tm"))
	assert.True(t, strings.HasPrefix(test.SaplingAddress, "ztestsapling1"))
	assert.True(t, strings.HasPrefix(test.UnifiedAddress, "utest1"))
}

func TestDeriveAccountsDiffer(t *testing.T) {
	a0, err := Derive(testMnemonic, address.Mainnet, 0, 0)
	require.NoError(t, err)
	a1, err := Derive(testMnemonic, address.Mainnet, 1, 0)
	require.NoError(t, err)

	assert.NotEqual(t, a0.UFVK, a1.UFVK)
	assert.NotEqual(t, a0.SaplingAddress, a1.SaplingAddress)
	assert.NotEqual(t, a0.TransparentAddress, a1.TransparentAddress)
}

func TestDeriveAddressIndicesDiffer(t *testing.T) {
	i0, err := Derive(testMnemonic, address.Mainnet, 0, 0)
	require.NoError(t, err)
	i1, err := Derive(testMnemonic, address.Mainnet, 0, i0.DiversifierIndex+1)
	require.NoError(t, err)

	assert.NotEqual(t, i0.UnifiedAddress, i1.UnifiedAddress)
	assert.Equal(t, i0.UFVK, i1.UFVK, "viewing keys are per account, not per address")
}

func TestDeriveReportsDiversifierIndex(t *testing.T) {
	info, err := Derive(testMnemonic, address.Mainnet, 0, 3)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, info.DiversifierIndex, uint64(3),
		"invalid diversifier indices are skipped forward, never backward")
}

func TestDeriveAddresses(t *testing.T) {
	addrs, err := DeriveAddresses(testMnemonic, address.Mainnet, 0, 0, 4)
	require.NoError(t, err)
	require.Len(t, addrs, 4)

	seen := make(map[string]bool)
	for _, a := range addrs {
		assert.False(t, seen[a], "derived addresses must be distinct")
		seen[a] = true
		_, _, err := address.DecodeUnified(a)
		require.NoError(t, err)
	}
}

func TestNewMnemonic(t *testing.T) {
	m, err := NewMnemonic()
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m), 24)

	_, err = Derive(m, address.Testnet, 0, 0)
	assert.NoError(t, err)
}
