package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestNewSignerAddress(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"), s.Address())

	_, err = NewSigner("0xnothex")
	assert.Error(t, err)
}

func TestDeployAddressesDiffer(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)

	seen := map[common.Address]bool{}
	for nonce := uint64(0); nonce < 3; nonce++ {
		addr := s.DeployAddress(nonce)
		assert.False(t, seen[addr])
		assert.Equal(t, addr, s.DeployAddress(nonce))
		seen[addr] = true
	}
}

func TestSignAndRecover(t *testing.T) {
	s, err := NewSigner(testKey)
	require.NoError(t, err)

	payload := []byte(`{"type":"LogNewAnswer"}`)
	sig, err := s.SignPayload(payload)
	require.NoError(t, err)
	require.Len(t, sig, 2+130)

	addr, err := RecoverPayloadSigner(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), addr)

	other, err := RecoverPayloadSigner([]byte("tampered"), sig)
	require.NoError(t, err)
	assert.NotEqual(t, s.Address(), other)

	_, err = RecoverPayloadSigner(payload, "0x1234")
	assert.Error(t, err)
}
