// Package xmrtaker drives the buyer's side of a swap once setup.RunBuyer
// has returned: broadcasting the already-signed TxLock, verifying the
// seller's Monero transfer proof, handing over the redeem encsig once it
// is safe to, and recovering either the redeemed Monero or, failing that,
// the buyer's own Bitcoin back. Its cancel/refund recourse lives in
// cancel.go and refund.go.
//
// Structured the same way as xmrmaker's state machine: a per-swap struct
// holding the peer connection, wallets and mutable swap.Info, and a
// sequential happy-path Run.
package xmrtaker

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/fatih/color" //nolint:misspell
	logging "github.com/ipfs/go-log/v2"

	"github.com/noot/xmrbtc-swap/bitcoin"
	"github.com/noot/xmrbtc-swap/crypto/adaptor"
	"github.com/noot/xmrbtc-swap/crypto/dleq"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	secp "github.com/noot/xmrbtc-swap/crypto/secp256k1"
	"github.com/noot/xmrbtc-swap/internal/backoff"
	"github.com/noot/xmrbtc-swap/monero"
	swapnet "github.com/noot/xmrbtc-swap/net"
	"github.com/noot/xmrbtc-swap/net/message"
	"github.com/noot/xmrbtc-swap/protocol/setup"
	pswap "github.com/noot/xmrbtc-swap/protocol/swap"
	"github.com/noot/xmrbtc-swap/swap/db"
)

var log = logging.Logger("xmrtaker")

// pollInterval is how often the state machine re-checks chain state while
// waiting on a confirmation or a timelock to mature. Kept as a var rather
// than a const so tests can shrink it.
var pollInterval = 20 * time.Second

// minRefundMargin is how many blocks of slack the buyer insists on keeping
// before T1 matures before handing over encsig_buyer_redeem: if T1 is any
// closer than this, there may not be time left to notice a stalled seller
// and still get TxCancel and TxRefund confirmed before punishment becomes
// possible.
const minRefundMargin = 6

// restoreHeightMargin backs a wallet restore height off from a tip
// snapshot by conf_target plus a buffer, a conservative stand-in for the
// seller's lock transaction's actual confirmation height, which
// check_tx_key does not expose directly.
func restoreHeightMargin(tip, confTarget uint64) uint64 {
	margin := confTarget + 10
	if margin > tip {
		return 0
	}
	return tip - margin
}

// Instance drives one buyer-side swap to completion.
type Instance struct {
	ctx    context.Context
	cancel context.CancelFunc

	conn      swapnet.Conn
	btcWallet bitcoin.Wallet
	xmrClient monero.Client
	store     *db.Store

	cfg    setup.Config
	result *setup.Result
	rec    *db.Record

	// destination is where redeemed or refunded Monero/Bitcoin ultimately
	// land; for Bitcoin refunds this is the buyer's own change address
	// implicit in BuyerRefundPkScript, but recovered Monero always needs
	// an explicit address to sweep to.
	destination    mcrypto.Address
	walletPassword string
}

// NewInstance builds the buyer's post-setup state machine, persisting an
// initial db.Record.
func NewInstance(
	ctx context.Context,
	conn swapnet.Conn,
	btcWallet bitcoin.Wallet,
	xmrClient monero.Client,
	store *db.Store,
	cfg setup.Config,
	result *setup.Result,
	destination mcrypto.Address,
	walletPassword string,
) (*Instance, error) {
	cctx, cancel := context.WithCancel(ctx)

	i := &Instance{
		ctx:            cctx,
		cancel:         cancel,
		conn:           conn,
		btcWallet:      btcWallet,
		xmrClient:      xmrClient,
		store:          store,
		cfg:            cfg,
		result:         result,
		destination:    destination,
		walletPassword: walletPassword,
	}

	cp, err := result.ToCheckpoint(setup.RoleBuyer, result.Own, result.Counterparty, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build initial checkpoint: %w", err)
	}

	i.rec = &db.Record{
		Info:       *pswap.NewInfo(swapID(result), pswap.Buyer, uint64(cfg.BTCAmount), cfg.XMRAmount),
		Checkpoint: cp,
	}
	i.rec.Info.Status = pswap.SetupComplete

	if err := store.Put(i.rec); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to persist initial swap record: %w", err)
	}

	return i, nil
}

// swapID derives a stable identifier from TxLock's outpoint, the one value
// both parties agree on independently the moment Msg2 is processed.
func swapID(r *setup.Result) pswap.ID {
	h := sha256.New()
	hash := r.LockOutpoint.Hash
	h.Write(hash[:])

	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], r.LockOutpoint.Index)
	h.Write(idx[:])

	var id pswap.ID
	copy(id[:], h.Sum(nil))
	return id
}

func (i *Instance) setStatus(s pswap.Status) {
	i.rec.Info.Status = s
	if err := i.store.Put(i.rec); err != nil {
		log.Warnf("failed to persist swap status %s: %s", s, err)
	}
}

// persistCheckpoint rebuilds and re-persists the checkpoint after mutating
// result.RedeemEncSig, the one piece of Result that changes after setup
// for the buyer.
func (i *Instance) persistCheckpoint() {
	cp, err := i.result.ToCheckpoint(setup.RoleBuyer, i.result.Own, i.result.Counterparty, i.cfg)
	if err != nil {
		log.Warnf("failed to rebuild checkpoint: %s", err)
		return
	}
	i.rec.Checkpoint = cp
	if err := i.store.Put(i.rec); err != nil {
		log.Warnf("failed to persist checkpoint: %s", err)
	}
}

// NewInstanceFromRecord reconstructs a buyer-side Instance from a record an
// earlier, now-dead process persisted, restoring the setup.Result from its
// checkpoint instead of re-running the handshake. Run dispatches on
// rec.Info.Status, so a swap resumed here picks up after whichever step
// last persisted rather than repeating it — in particular, a buyer that
// crashed after publishLock already ran does not rebroadcast tx lock.
func NewInstanceFromRecord(
	ctx context.Context,
	conn swapnet.Conn,
	btcWallet bitcoin.Wallet,
	xmrClient monero.Client,
	store *db.Store,
	rec *db.Record,
	destination mcrypto.Address,
	walletPassword string,
) (*Instance, error) {
	result, cfg, err := setup.FromCheckpoint(rec.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to restore swap from checkpoint: %w", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	i := &Instance{
		ctx:            cctx,
		cancel:         cancel,
		conn:           conn,
		btcWallet:      btcWallet,
		xmrClient:      xmrClient,
		store:          store,
		cfg:            cfg,
		result:         result,
		rec:            rec,
		destination:    destination,
		walletPassword: walletPassword,
	}

	return i, nil
}

// Run drives the buyer's swap to completion, resuming from rec.Info.Status
// instead of always starting at publishLock: a fresh Instance from
// NewInstance starts at SetupComplete and runs the full happy path, while
// one from NewInstanceFromRecord picks up wherever a previous process left
// off, skipping any step whose persisted status shows it already ran.
func (i *Instance) Run() error {
	defer i.cancel()

	switch i.rec.Info.Status {
	case pswap.Started, pswap.SetupComplete:
		if err := i.publishLock(); err != nil {
			return err
		}
		fallthrough
	case pswap.BtcLockPublished:
		if err := i.waitForTransferProof(); err != nil {
			return err
		}
		fallthrough
	case pswap.XmrLockProofReceived, pswap.XmrLockConfirmed:
		// confirmLockAndSendEncSig is safe to re-enter: re-verifying an
		// already-confirmed transfer proof and resending an
		// already-computed encsig move no funds, unlike publishLock or
		// lockMonero above.
		if err := i.confirmLockAndSendEncSig(); err != nil {
			return err
		}
		fallthrough
	case pswap.EncSigSent:
		return i.waitForRedeemOrCancel()

	case pswap.CancelTimelockExpired, pswap.BtcCancelled:
		return i.refund(i.result.TxCancel.TxHash())

	default:
		return fmt.Errorf("cannot resume swap from status %s", i.rec.Info.Status)
	}
}

// publishLock broadcasts TxLock: its funding inputs were already signed
// during RunBuyer, so this step is pure broadcast (the
// SetupComplete -> BtcLockPublished transition).
func (i *Instance) publishLock() error {
	hash, err := i.btcWallet.BroadcastTx(i.ctx, i.result.LockTx)
	if err != nil {
		return fmt.Errorf("failed to broadcast tx lock: %w", err)
	}

	i.setStatus(pswap.BtcLockPublished)
	log.Info(color.New(color.Bold).Sprintf("published tx lock: txid=%s", hash))
	return nil
}

// waitForTransferProof blocks for the seller's (tx_hash, tx_key), checks it
// against the amount the swap requires, and acknowledges it (the
// BtcLockPublished -> XmrLockProofReceived transition).
func (i *Instance) waitForTransferProof() error {
	raw, err := i.conn.Receive()
	if err != nil {
		return fmt.Errorf("failed to receive transfer proof: %w", err)
	}
	tp, ok := raw.(*message.TransferProof)
	if !ok {
		return fmt.Errorf("expected TransferProof, got %s", raw.Type())
	}

	proof := monero.TransferProof{TxHash: tp.TxHash, TxKey: tp.TxKey}
	if err := monero.VerifyTransferProof(
		i.ctx, i.xmrClient, proof, i.result.LockAddress, i.cfg.XMRAmount, 0, backoff.DefaultPolicy,
	); err != nil {
		return fmt.Errorf("seller's transfer proof failed to verify: %w", err)
	}

	tip, err := i.xmrClient.Height(i.ctx)
	if err != nil {
		return fmt.Errorf("failed to read monero chain height: %w", err)
	}
	i.rec.RestoreHeight = restoreHeightMargin(tip, i.cfg.XMRConfTarget)

	blob, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("failed to marshal transfer proof: %w", err)
	}
	i.rec.TransferProof = blob
	i.setStatus(pswap.XmrLockProofReceived)

	return i.conn.Send(&message.TransferProofAck{})
}

// confirmLockAndSendEncSig waits for the Monero lock to reach conf_target
// confirmations, checks that T1 is still far enough away to be safe, and
// if so hands over encsig_buyer_redeem (the XmrLockProofReceived ->
// EncSigSent transition).
func (i *Instance) confirmLockAndSendEncSig() error {
	var proof monero.TransferProof
	if err := json.Unmarshal(i.rec.TransferProof, &proof); err != nil {
		return fmt.Errorf("failed to unmarshal persisted transfer proof: %w", err)
	}

	if err := monero.VerifyTransferProof(
		i.ctx, i.xmrClient, proof, i.result.LockAddress, i.cfg.XMRAmount, i.cfg.XMRConfTarget, backoff.DefaultPolicy,
	); err != nil {
		return fmt.Errorf("monero lock failed to reach required confirmations: %w", err)
	}
	i.setStatus(pswap.XmrLockConfirmed)

	safe, err := i.safeToSendEncSig()
	if err != nil {
		return fmt.Errorf("failed to check cancel timelock margin: %w", err)
	}
	if !safe {
		return fmt.Errorf("refusing to send redeem encsig: cancel timelock is no longer far enough away")
	}

	encSig, err := i.result.SignBuyerRedeemEncSig()
	if err != nil {
		return fmt.Errorf("failed to sign redeem encsig: %w", err)
	}
	i.result.RedeemEncSig = encSig
	i.persistCheckpoint()

	if err := i.conn.Send(&message.EncSigNotification{RedeemEncryptedSig: encSig.Bytes()}); err != nil {
		return fmt.Errorf("failed to send redeem encsig: %w", err)
	}

	i.setStatus(pswap.EncSigSent)
	return nil
}

// safeToSendEncSig reports whether T1 is still at least minRefundMargin
// blocks away.
func (i *Instance) safeToSendEncSig() (bool, error) {
	lockHeight, err := i.btcWallet.ConfirmedHeight(i.ctx, i.result.LockTx.TxHash())
	if err != nil {
		return false, err
	}
	if lockHeight == 0 {
		return false, nil
	}

	tip, err := i.btcWallet.BlockHeight(i.ctx)
	if err != nil {
		return false, err
	}

	t1Height := uint64(lockHeight) + uint64(i.cfg.CancelTimelock)
	return uint64(tip)+minRefundMargin < t1Height, nil
}

// waitForRedeemOrCancel races the seller's TxRedeem appearing on-chain
// against T1 maturing, falling back to cancel.go's refund path if the
// seller never redeems in time.
func (i *Instance) waitForRedeemOrCancel() error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		redeemTx, err := i.btcWallet.GetTransaction(i.ctx, i.result.TxRedeem.TxHash())
		if err == nil && redeemTx != nil {
			return i.recoverFromRedeem(redeemTx)
		}

		expired, err := i.cancelTimelockExpired()
		if err == nil && expired {
			return i.beginCancel()
		}

		select {
		case <-i.ctx.Done():
			return i.ctx.Err()
		case <-ticker.C:
		}
	}
}

// cancelTimelockExpired reports whether T1 has matured on TxLock's own
// confirmation height.
func (i *Instance) cancelTimelockExpired() (bool, error) {
	lockHeight, err := i.btcWallet.ConfirmedHeight(i.ctx, i.result.LockTx.TxHash())
	if err != nil {
		return false, fmt.Errorf("failed to read tx lock confirmed height: %w", err)
	}
	if lockHeight == 0 {
		return false, nil
	}

	tip, err := i.btcWallet.BlockHeight(i.ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read chain tip: %w", err)
	}

	return bitcoin.ClassifyLockTimelock(lockHeight, tip, i.cfg.CancelTimelock) != bitcoin.StageNone, nil
}

// recoverFromRedeem extracts the buyer's own revealed pre-signature from
// the seller's broadcast TxRedeem — the decrypted copy of
// encsig_buyer_redeem the seller had to place there to complete it — and
// recovers the seller's Monero spend-key share from it, then sweeps the
// joint wallet to the buyer's own destination.
func (i *Instance) recoverFromRedeem(tx *wire.MsgTx) error {
	i.setStatus(pswap.BtcRedeemed)

	sigBytes, err := bitcoin.ExtractCounterpartySignature(tx, i.result.RedeemSigHash, i.result.BuyerTxLockKey)
	if err != nil {
		return fmt.Errorf("failed to extract revealed tx redeem signature: %w", err)
	}
	sig, err := secp.NewSignatureFromCompact(sigBytes)
	if err != nil {
		return fmt.Errorf("failed to parse revealed tx redeem signature: %w", err)
	}

	recovered, err := adaptor.Recover(i.result.SellerSpendKeyImageBTC, sig, i.result.RedeemEncSig)
	if err != nil {
		return fmt.Errorf("failed to recover seller's monero spend key: %w", err)
	}

	sellerSpendXMR, err := dleq.RecoverMoneroSpendKey(recovered)
	if err != nil {
		return fmt.Errorf("failed to convert recovered key to monero form: %w", err)
	}

	ownSpendXMR, err := i.result.Own.SpendKeyShareXMR()
	if err != nil {
		return fmt.Errorf("failed to read own monero spend key share: %w", err)
	}
	jointSpend := mcrypto.SumPrivateSpendKeys(ownSpendXMR, sellerSpendXMR)

	wallet, err := monero.RestoreJointWallet(
		i.ctx, i.xmrClient, i.result.LockAddress, jointSpend, i.result.JointViewPrivate,
		i.walletFilename(), i.walletPassword, i.rec.RestoreHeight,
	)
	if err != nil {
		return fmt.Errorf("failed to restore joint wallet: %w", err)
	}

	if _, err := wallet.Sweep(i.ctx, i.xmrClient, i.destination); err != nil {
		return fmt.Errorf("failed to sweep redeemed monero: %w", err)
	}

	i.setStatus(pswap.XmrRedeemed)
	if err := i.store.Complete(i.rec); err != nil {
		log.Warnf("failed to mark swap complete: %s", err)
	}

	log.Info(color.New(color.Bold).Sprint("swap complete: redeemed monero from the seller's tx redeem"))
	return nil
}

// walletFilename derives a deterministic wallet-rpc filename for this
// swap's joint wallet from its swap ID.
func (i *Instance) walletFilename() string {
	id := i.rec.Info.SwapID
	return fmt.Sprintf("xmrtaker-joint-%x", id[:8])
}

// waitForConfirmation blocks until hash has at least one confirmation.
func (i *Instance) waitForConfirmation(hash chainhash.Hash) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		confs, err := i.btcWallet.Confirmations(i.ctx, hash)
		if err == nil && confs > 0 {
			return nil
		}

		select {
		case <-i.ctx.Done():
			return i.ctx.Err()
		case <-ticker.C:
		}
	}
}
