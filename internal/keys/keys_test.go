package keys

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEd25519RoundTrip(t *testing.T) {
	signer, err := GenerateEd25519()
	require.NoError(t, err)

	sig, err := signer.Sign("challenge-1")
	require.NoError(t, err)
	require.NoError(t, Verify(AlgEd25519, signer.PublicKey(), "challenge-1", sig))
	require.ErrorIs(t, Verify(AlgEd25519, signer.PublicKey(), "challenge-2", sig), ErrInvalidSignature)

	again, err := signer.Sign("challenge-1")
	require.NoError(t, err)
	assert.Equal(t, sig, again)

	loaded, err := Ed25519FromPrivate(signer.PrivateKey())
	require.NoError(t, err)
	assert.Equal(t, signer.PublicKey(), loaded.PublicKey())
}

func TestSecp256k1RoundTrip(t *testing.T) {
	signer, err := GenerateSecp256k1()
	require.NoError(t, err)

	sig, err := signer.Sign("challenge-1")
	require.NoError(t, err)
	raw, err := hex.DecodeString(sig)
	require.NoError(t, err)
	assert.Len(t, raw, 64)

	require.NoError(t, Verify(AlgSecp256k1, signer.PublicKey(), "challenge-1", sig))
	require.NoError(t, Verify(AlgSecp256k1, "0x"+signer.PublicKey(), "challenge-1", "0x"+sig))
	require.ErrorIs(t, Verify(AlgSecp256k1, signer.PublicKey(), "other", sig), ErrInvalidSignature)

	loaded, err := Secp256k1FromHex(signer.PrivateKey())
	require.NoError(t, err)
	assert.Equal(t, signer.PublicKey(), loaded.PublicKey())
}

func TestVerifyRejects(t *testing.T) {
	require.Error(t, Verify("rsa-pss", "x", "m", "s"))
	require.Error(t, Verify(AlgEd25519, "c2hvcnQ=", "m", "c2hvcnQ="))
	require.Error(t, Verify(AlgSecp256k1, "zz", "m", "00"))
}

func TestNormalizePublicKey(t *testing.T) {
	signer, err := GenerateEd25519()
	require.NoError(t, err)
	b64 := signer.PublicKey()
	raw, err := decodeSized(b64, 32)
	require.NoError(t, err)
	norm, err := NormalizePublicKey(AlgEd25519, hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, b64, norm)

	secp, err := GenerateSecp256k1()
	require.NoError(t, err)
	uncompressed := hex.EncodeToString(secp.priv.PubKey().SerializeUncompressed())
	norm, err = NormalizePublicKey(AlgSecp256k1, uncompressed)
	require.NoError(t, err)
	assert.Equal(t, secp.PublicKey(), norm)
}
