package fidocrypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-ctap/fido2vault/pkg/fidocrypto"
)

func TestSignES256_VerifiesAndRoundTripsThroughPKCS8(t *testing.T) {
	priv, pkcs8, err := fidocrypto.GenerateP256KeyPair()
	require.NoError(t, err)

	parsed, err := fidocrypto.ParsePKCS8PrivateKey(pkcs8)
	require.NoError(t, err)

	message := []byte("authData || clientDataHash")
	sig, err := fidocrypto.SignES256(parsed, message)
	require.NoError(t, err)

	require.True(t, fidocrypto.VerifyES256(&priv.PublicKey, message, sig))
	require.False(t, fidocrypto.VerifyES256(&priv.PublicKey, []byte("tampered"), sig))
}

func TestMarshalSPKI(t *testing.T) {
	priv, _, err := fidocrypto.GenerateP256KeyPair()
	require.NoError(t, err)

	spki, err := fidocrypto.MarshalSPKI(&priv.PublicKey)
	require.NoError(t, err)
	require.NotEmpty(t, spki)
}
