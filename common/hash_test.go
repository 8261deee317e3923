package common

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlake2Hash(t *testing.T) {
	h := Blake2Hash([]byte("regcache"))
	assert.Equal(t, h, Blake2HashParts([]byte("reg"), []byte("cache")))
	assert.NotEqual(t, h, Blake2Hash([]byte("regcachf")))
	assert.Len(t, h.Hex(), 66)
	assert.Equal(t, h.Hex()[2:6], h.Short()[:4])
}

func TestHashJSON(t *testing.T) {
	h := Blake2Hash([]byte{1, 2, 3})
	b, err := json.Marshal(h)
	require.NoError(t, err)
	var back Hash
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, h, back)
}

func TestHexHelpers(t *testing.T) {
	assert.True(t, IsHex("0x00ff"))
	assert.True(t, IsHex("abcd"))
	assert.False(t, IsHex("0x0"))
	assert.False(t, IsHex("xyz1"))
	assert.Equal(t, []byte{0xde, 0xad}, FromHex("0xdead"))
	assert.Equal(t, "0xdead", Bytes2Hex([]byte{0xde, 0xad}))
}
