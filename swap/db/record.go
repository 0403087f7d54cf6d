package db

import (
	"encoding/json"
	"fmt"

	"github.com/noot/xmrbtc-swap/protocol/setup"
	"github.com/noot/xmrbtc-swap/protocol/swap"
)

// Record is the full checkpoint persisted for one swap: the lightweight
// Info a Store's in-memory indexes are built from, the setup.Checkpoint
// everything past the handshake is rebuilt from, and whatever role-specific
// extras the seller or buyer state machine accumulates as it progresses
// through states a crash could interrupt between (transfer proof,
// restore height, and other recovery needs).
type Record struct {
	Info       swap.Info
	Checkpoint *setup.Checkpoint

	// TransferProof is the Monero lock transfer's (tx_hash, tx_key): the
	// seller persists it when it sends the transfer, so a restarted seller
	// can re-send it without re-broadcasting the transfer itself, and the
	// buyer persists the copy it received, so it can re-verify it on resume.
	TransferProof []byte `json:",omitempty"`
	// RestoreHeight is the block height a wallet scan of the joint
	// address should start from: the seller fixes it at the Monero height
	// read just before it broadcasts the lock transfer, the buyer backs it
	// off from the tip when it receives the transfer proof.
	RestoreHeight uint64 `json:",omitempty"`

	// RedeemTxID/RefundTxID/PunishTxID/CancelTxID record the Bitcoin
	// transactions this swap published, for status reporting after the
	// fact; on the cancel path CancelTxID is set together with RefundTxID
	// or PunishTxID.
	RedeemTxID string `json:",omitempty"`
	RefundTxID string `json:",omitempty"`
	PunishTxID string `json:",omitempty"`
	CancelTxID string `json:",omitempty"`
}

// Marshal encodes a Record as the opaque blob the Database stores.
func (r *Record) Marshal() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal swap record: %w", err)
	}
	return b, nil
}

// UnmarshalRecord decodes a blob previously produced by Record.Marshal.
func UnmarshalRecord(blob []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(blob, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal swap record: %w", err)
	}
	return &r, nil
}
