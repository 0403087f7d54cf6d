package adaptor

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	secp "github.com/noot/xmrbtc-swap/crypto/secp256k1"
)

// TestEncSignDecryptRecover checks that for a valid encrypted signature,
// decrypting then recovering reproduces the encryption private key.
func TestEncSignDecryptRecover(t *testing.T) {
	signer, err := secp.GenerateKeypair()
	require.NoError(t, err)

	encKey, err := secp.GenerateKeypair()
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("txredeem sighash"))

	encSig, err := EncSign(signer, encKey.PublicKey(), digest)
	require.NoError(t, err)

	err = VerifyEncSig(signer.PublicKey(), encKey.PublicKey(), digest, encSig)
	require.NoError(t, err)

	sig := Decrypt(encKey, encSig)
	err = signer.PublicKey().Verify(digest, sig)
	require.NoError(t, err)

	recovered, err := Recover(encKey.PublicKey(), sig, encSig)
	require.NoError(t, err)
	require.Equal(t, encKey.Bytes(), recovered.Bytes())
}

// TestVerifyEncSigRejectsWrongSigner ensures a signature encrypted by one
// key does not verify against an unrelated signer's public key.
func TestVerifyEncSigRejectsWrongSigner(t *testing.T) {
	signer, err := secp.GenerateKeypair()
	require.NoError(t, err)

	other, err := secp.GenerateKeypair()
	require.NoError(t, err)

	encKey, err := secp.GenerateKeypair()
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("some digest"))

	encSig, err := EncSign(signer, encKey.PublicKey(), digest)
	require.NoError(t, err)

	err = VerifyEncSig(other.PublicKey(), encKey.PublicKey(), digest, encSig)
	require.ErrorIs(t, err, ErrInvalidEncryptedSignature)
}

// TestEncryptedSignatureBytesRoundTrip covers the wire encoding used to
// carry encsig_seller_refund in Msg3 and encsig_buyer_redeem in
// EncSigNotification.
func TestEncryptedSignatureBytesRoundTrip(t *testing.T) {
	signer, err := secp.GenerateKeypair()
	require.NoError(t, err)

	encKey, err := secp.GenerateKeypair()
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("tx refund sighash"))

	encSig, err := EncSign(signer, encKey.PublicKey(), digest)
	require.NoError(t, err)

	decoded, err := NewEncryptedSignatureFromBytes(encSig.Bytes())
	require.NoError(t, err)

	err = VerifyEncSig(signer.PublicKey(), encKey.PublicKey(), digest, decoded)
	require.NoError(t, err)
}
