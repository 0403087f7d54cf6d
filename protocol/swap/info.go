// Package swap tracks the lightweight status of every swap a node has
// participated in, independent of which role (seller/buyer) it played or
// which detailed checkpoint (swap/db) backs its resumability.
package swap

import (
	"time"
)

// Role identifies which side of a swap a local Info describes.
type Role byte

const (
	Seller Role = iota
	Buyer
)

func (r Role) String() string {
	if r == Seller {
		return "seller"
	}
	return "buyer"
}

// Status is one of the named states a seller or buyer state machine can be
// in. It is carried as a plain string, not an
// exhaustive typed enum, since the two state machines have disjoint state
// sets and a single field needs to describe either.
type Status string

const (
	// Shared across both roles.
	Started       Status = "Started"
	SetupComplete Status = "SetupComplete"
	SafelyAborted Status = "SafelyAborted"

	// Seller-only.
	BtcLockSeen      Status = "BtcLockSeen"
	XmrLockTxSent    Status = "XmrLockTxSent"
	XmrLockConfirmed Status = "XmrLockConfirmed"
	XmrLockProofSent Status = "XmrLockProofSent"
	EncSigLearned    Status = "EncSigLearned"
	BtcRedeemPublished Status = "BtcRedeemPublished"
	BtcRedeemed      Status = "BtcRedeemed"

	// Buyer-only.
	BtcLockPublished    Status = "BtcLockPublished"
	XmrLockProofReceived Status = "XmrLockProofReceived"
	EncSigSent          Status = "EncSigSent"
	XmrRedeemed         Status = "XmrRedeemed"

	// Shared cancel/punish/refund terminal and intermediate states.
	CancelTimelockExpired Status = "CancelTimelockExpired"
	BtcCancelled          Status = "BtcCancelled"
	BtcPunishable         Status = "BtcPunishable"
	BtcPunished           Status = "BtcPunished"
	BtcRefunded           Status = "BtcRefunded"
	XmrRefunded           Status = "XmrRefunded"
)

// IsOngoing reports whether a swap in this status still has work to do, as
// opposed to having reached one of the terminal states (BtcRedeemed,
// XmrRedeemed, BtcPunished, BtcRefunded, XmrRefunded,
// SafelyAborted).
func (s Status) IsOngoing() bool {
	switch s {
	case BtcRedeemed, XmrRedeemed, BtcPunished, BtcRefunded, XmrRefunded, SafelyAborted:
		return false
	default:
		return true
	}
}

// ID identifies a swap, derived once at setup time (e.g. a hash of the
// agreed terms) and stable for the swap's lifetime.
type ID [32]byte

// Info is the lightweight, manager-visible summary of one swap; the full
// resumable checkpoint (keys, signatures, transfer proof) lives in
// swap/db, keyed by the same ID.
type Info struct {
	SwapID        ID
	Role          Role
	Status        Status
	BTCAmount     uint64 // satoshis
	XMRAmount     uint64 // piconero
	StartTime     time.Time
	EndTime       *time.Time
}

// NewInfo creates a fresh Info for a swap that has just started.
func NewInfo(id ID, role Role, btcAmount, xmrAmount uint64) *Info {
	return &Info{
		SwapID:    id,
		Role:      role,
		Status:    Started,
		BTCAmount: btcAmount,
		XMRAmount: xmrAmount,
		StartTime: time.Now(),
	}
}
