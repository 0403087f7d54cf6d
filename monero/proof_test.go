package monero

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	"github.com/noot/xmrbtc-swap/internal/backoff"
)

type fakeCheckTxKeyClient struct {
	Client
	calls              int
	receivedSequence   []uint64
	confirmationsSeq   []uint64
}

func (f *fakeCheckTxKeyClient) CheckTxKey(_ context.Context, _, _ string, _ mcrypto.Address) (uint64, uint64, error) {
	idx := f.calls
	f.calls++
	return f.receivedSequence[idx], f.confirmationsSeq[idx], nil
}

func fastPolicy() backoff.Policy {
	return backoff.Policy{Base: time.Millisecond, Max: 2 * time.Millisecond, Deadline: time.Second}
}

func TestVerifyTransferProofSucceedsOnceConfirmed(t *testing.T) {
	c := &fakeCheckTxKeyClient{
		receivedSequence: []uint64{1000, 1000, 1000},
		confirmationsSeq: []uint64{0, 1, 3},
	}

	err := VerifyTransferProof(context.Background(), c, TransferProof{TxHash: "h", TxKey: "k"}, mcrypto.Address("addr"), 1000, 3, fastPolicy())
	require.NoError(t, err)
	require.Equal(t, 3, c.calls)
}

func TestVerifyTransferProofRejectsInsufficientAmount(t *testing.T) {
	c := &fakeCheckTxKeyClient{
		receivedSequence: []uint64{500},
		confirmationsSeq: []uint64{10},
	}

	err := VerifyTransferProof(context.Background(), c, TransferProof{TxHash: "h", TxKey: "k"}, mcrypto.Address("addr"), 1000, 1, backoff.Policy{Base: time.Millisecond, Max: time.Millisecond, Deadline: 2 * time.Millisecond})
	require.ErrorIs(t, err, ErrInsufficientAmount)
}
