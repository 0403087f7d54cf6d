package bitcoin

// Stage classifies where in the cancel/punish timeline a lock output sits,
// relative to the two relative timelocks attached to
// TxCancel: T1 (cancel_timelock) gates TxCancel itself, and T2
// (punish_timelock) — counted from TxCancel's confirmation, not TxLock's —
// gates the race between TxPunish (seller) and TxRefund (buyer).
type Stage int

const (
	// StageNone means neither timelock has matured; only the cooperative
	// TxRedeem/TxEarlyRefund paths are available.
	StageNone Stage = iota
	// StageCancel means T1 has matured: TxCancel may be broadcast.
	StageCancel
	// StagePunish means T2 has matured on top of TxCancel's confirmation:
	// TxPunish may be broadcast (racing the buyer's TxRefund).
	StagePunish
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageCancel:
		return "cancel"
	case StagePunish:
		return "punish"
	default:
		return "unknown"
	}
}

// ClassifyLockTimelock determines the stage of a TxLock output given the
// height it confirmed at, the current chain tip, and T1 (blocks).
func ClassifyLockTimelock(lockConfirmHeight, tip, cancelTimelock uint32) Stage {
	if tip < lockConfirmHeight+cancelTimelock {
		return StageNone
	}
	return StageCancel
}

// ClassifyCancelTimelock determines whether T2 has matured on top of
// TxCancel's own confirmation height, i.e. whether TxPunish may now be
// broadcast.
func ClassifyCancelTimelock(cancelConfirmHeight, tip, punishTimelock uint32) Stage {
	if tip < cancelConfirmHeight+punishTimelock {
		return StageCancel
	}
	return StagePunish
}

// sequenceFromBlocks encodes a block-count relative timelock into the
// nSequence value BIP-68/112 expect: the low 16 bits hold the block count,
// the disable flag (bit 31) stays clear so the field is interpreted as a
// timelock, and the type flag (bit 22) stays clear to select block units
// rather than 512-second units.
func sequenceFromBlocks(blocks uint32) uint32 {
	const sequenceLockTimeMask = 0x0000ffff
	return blocks & sequenceLockTimeMask
}
