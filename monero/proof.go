package monero

import (
	"context"
	"errors"
	"fmt"

	"github.com/noot/xmrbtc-swap/internal/backoff"

	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
)

// TransferProof is the (tx_hash, tx_key) pair a party sends their
// counterparty after broadcasting the Monero lock transaction, letting
// the recipient verify the lock without needing
// the sender's spend key.
type TransferProof struct {
	TxHash string
	TxKey  string
}

// ErrInsufficientAmount is returned when a transfer proof's verified
// amount is less than the amount the swap requires.
var ErrInsufficientAmount = errors.New("monero: transfer proof amount is less than required")

// ErrInsufficientConfirmations is returned by VerifyTransferProof when the
// underlying check_tx_key call succeeds but the transaction has not yet
// reached minConfirmations; callers should treat this as retryable.
var ErrInsufficientConfirmations = errors.New("monero: transfer proof has insufficient confirmations")

// VerifyTransferProof checks that proof attests to at least wantAmount
// piconero locked to address, with at least minConfirmations
// confirmations, retrying with the given backoff policy since
// confirmations accrue over time and a transient RPC error does not mean
// the proof is invalid. A short amount is permanent — wrapped in
// backoff.Permanent so Retry returns ErrInsufficientAmount immediately
// instead of waiting out the full policy deadline — while insufficient
// confirmations and RPC errors are treated as transient and retried.
func VerifyTransferProof(ctx context.Context, c Client, proof TransferProof, address mcrypto.Address, wantAmount uint64, minConfirmations uint64, policy backoff.Policy) error {
	return backoff.Retry(ctx, policy, func() error {
		received, confirmations, err := c.CheckTxKey(ctx, proof.TxHash, proof.TxKey, address)
		if err != nil {
			return fmt.Errorf("check_tx_key failed: %w", err)
		}

		if received < wantAmount {
			return backoff.Permanent(fmt.Errorf("%w: got %d, want %d", ErrInsufficientAmount, received, wantAmount))
		}

		if confirmations < minConfirmations {
			return fmt.Errorf("%w: got %d, want %d", ErrInsufficientConfirmations, confirmations, minConfirmations)
		}

		return nil
	})
}
