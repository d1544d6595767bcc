package cose_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/go-ctap/fido2vault/pkg/cose"
)

func TestKeyFromECDSA_CanonicalKeyOrder(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	k := cose.KeyFromECDSA(&priv.PublicKey)
	b, err := cose.MarshalKey(k, cose.EncMode())
	require.NoError(t, err)

	x := make([]byte, 32)
	y := make([]byte, 32)
	priv.PublicKey.X.FillBytes(x)
	priv.PublicKey.Y.FillBytes(y)

	// The canonical map header and key order (1, 3, -1, -2, -3) must appear
	// byte-for-byte: a5 01 02 03 26 20 01 21 58 20 <x32> 22 58 20 <y32>.
	var want []byte
	want = append(want, 0xA5, 0x01, 0x02, 0x03, 0x26, 0x20, 0x01, 0x21, 0x58, 0x20)
	want = append(want, x...)
	want = append(want, 0x22, 0x58, 0x20)
	want = append(want, y...)
	require.Equal(t, want, b)

	var m map[int64]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(b, &m))
	require.Len(t, m, 5)
}

func TestMarshalAttestationObject_ThreeEntries(t *testing.T) {
	authData := make([]byte, 37)
	b, err := cose.MarshalAttestationObject(authData, cose.EncMode())
	require.NoError(t, err)

	var m map[string]cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(b, &m))
	require.Len(t, m, 3)
	require.Contains(t, m, "fmt")
	require.Contains(t, m, "attStmt")
	require.Contains(t, m, "authData")
}
