package userdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundtrip(t *testing.T) {
	codec := NewCodec("test-secret")

	original := &UserData{
		StreamingProvider: &StreamingProvider{Service: "realdebrid", Token: "tok-123"},
		SelectedCatalogs:  []string{"tamil_hdrip", "tamil_series"},
	}

	encoded, err := codec.Encode(original)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "tok-123")

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestCodecNonDeterministicCiphertext(t *testing.T) {
	codec := NewCodec("test-secret")
	data := &UserData{SelectedCatalogs: []string{"tamil_hdrip"}}

	a, err := codec.Encode(data)
	require.NoError(t, err)
	b, err := codec.Encode(data)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCodecRejectsTamperedBlob(t *testing.T) {
	codec := NewCodec("test-secret")

	encoded, err := codec.Encode(&UserData{SelectedCatalogs: []string{"tamil_hdrip"}})
	require.NoError(t, err)

	tampered := []byte(encoded)
	tampered[len(tampered)-1] ^= 1

	_, err = codec.Decode(string(tampered))
	assert.Error(t, err)
}

func TestCodecRejectsForeignSecret(t *testing.T) {
	encoded, err := NewCodec("secret-a").Encode(&UserData{})
	require.NoError(t, err)

	_, err = NewCodec("secret-b").Decode(encoded)
	assert.Error(t, err)
}

func TestCodecRejectsJunk(t *testing.T) {
	codec := NewCodec("test-secret")

	_, err := codec.Decode("!!!not-base64!!!")
	assert.Error(t, err)

	_, err = codec.Decode("c2hvcnQ")
	assert.Error(t, err)
}
