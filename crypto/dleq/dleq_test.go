package dleq

import (
	"testing"

	"github.com/stretchr/testify/require"

	secp "github.com/noot/xmrbtc-swap/crypto/secp256k1"
)

// TestProveVerifyRoundTrip checks that for a freshly sampled scalar in the
// shared range, verify(prove(s), S_secp, S_ed) succeeds.
func TestProveVerifyRoundTrip(t *testing.T) {
	proof, secret, sSecp, sEd, err := Prove()
	require.NoError(t, err)
	require.NotNil(t, secret)

	err = Verify(proof, sSecp, sEd)
	require.NoError(t, err)
}

// TestVerifyRejectsMismatchedImage covers the second half of P4: verification
// must fail against a substituted secp256k1 point that isn't s*G.
func TestVerifyRejectsMismatchedImage(t *testing.T) {
	proof, _, _, sEd, err := Prove()
	require.NoError(t, err)

	other, err := secp.GenerateKeypair()
	require.NoError(t, err)

	err = Verify(proof, other.PublicKey(), sEd)
	require.ErrorIs(t, err, ErrInvalidCrossCurveProof)
}

// TestEncodeDecodeRoundTrip ensures the wire encoding used by the setup
// protocol's Msg0/Msg1 round-trips bit-exactly.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	proof, _, sSecp, sEd, err := Prove()
	require.NoError(t, err)

	encoded := proof.Encode()
	decoded, err := DecodeProof(encoded)
	require.NoError(t, err)

	err = Verify(decoded, sSecp, sEd)
	require.NoError(t, err)
}

// TestSecretAsSecp256k1PrivateKeyMatchesImage ensures the secp256k1
// reconstruction of the shared secret reproduces the same public image the
// proof was generated against.
func TestSecretAsSecp256k1PrivateKeyMatchesImage(t *testing.T) {
	_, secret, sSecp, _, err := Prove()
	require.NoError(t, err)

	key := secret.AsSecp256k1PrivateKey()
	require.Equal(t, sSecp.Compressed(), key.PublicKey().Compressed())
}

// TestSecretAsMoneroSpendKeyMatchesImage ensures the Monero spend-key
// reconstruction of the shared secret reproduces the same ed25519 image
// the proof was generated against.
func TestSecretAsMoneroSpendKeyMatchesImage(t *testing.T) {
	_, secret, _, sEd, err := Prove()
	require.NoError(t, err)

	spendKey, err := secret.AsMoneroSpendKey()
	require.NoError(t, err)
	require.Equal(t, sEd.Bytes(), spendKey.Public().Bytes())
}

// TestRecoverMoneroSpendKeyMatchesOriginal covers P3's leak mechanism end
// to end: a scalar round-tripped through the secp256k1 form (as Recover
// would hand back) reconstructs the same Monero spend-key share the DLEQ
// proof originally attested to.
func TestRecoverMoneroSpendKeyMatchesOriginal(t *testing.T) {
	_, secret, _, sEd, err := Prove()
	require.NoError(t, err)

	recovered := secret.AsSecp256k1PrivateKey()

	spendKey, err := RecoverMoneroSpendKey(recovered)
	require.NoError(t, err)
	require.Equal(t, sEd.Bytes(), spendKey.Public().Bytes())
}
