// Package monero wraps a monero-wallet-rpc endpoint with the small
// capability surface a swap participant needs: stealth-address transfers,
// transfer proof checks, balance and height queries, and the restore/sweep
// operations the joint wallet reconstruction in sweep.go drives.
//
// The interface shape (a thin struct wrapping an endpoint, a mutex
// serializing calls against the single-threaded wallet RPC, and one method
// per capability) wraps github.com/MarinX/monerorpc.
package monero

import (
	"context"
	"fmt"
	"sync"

	"github.com/MarinX/monerorpc"
	"github.com/MarinX/monerorpc/wallet"

	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
)

// Client is the capability surface a swap needs from a Monero wallet.
type Client interface {
	Address(ctx context.Context, accountIdx uint64) (mcrypto.Address, error)
	Balance(ctx context.Context, accountIdx uint64) (unlocked, total uint64, err error)
	Transfer(ctx context.Context, to mcrypto.Address, accountIdx uint64, amount uint64) (txHash string, txKey string, err error)
	SweepAll(ctx context.Context, to mcrypto.Address, accountIdx uint64) (txHashes []string, err error)
	CheckTxKey(ctx context.Context, txHash, txKey string, address mcrypto.Address) (received uint64, confirmations uint64, err error)
	GenerateFromKeys(ctx context.Context, spend *mcrypto.PrivateSpendKey, view *mcrypto.PrivateViewKey, address mcrypto.Address, filename, password string, restoreHeight uint64) error
	Height(ctx context.Context) (uint64, error)
	OpenWallet(ctx context.Context, filename, password string) error
	CloseWallet(ctx context.Context) error
}

type client struct {
	mu  sync.Mutex
	rpc *monerorpc.MoneroRPC
}

// NewClient returns a Client talking to a monero-wallet-rpc endpoint.
func NewClient(endpoint string) Client {
	return &client{rpc: monerorpc.New(endpoint, nil)}
}

func (c *client) Address(_ context.Context, accountIdx uint64) (mcrypto.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.rpc.Wallet.GetAddress(&wallet.GetAddressRequest{AccountIndex: accountIdx})
	if err != nil {
		return "", fmt.Errorf("get_address: %w", err)
	}

	return mcrypto.Address(resp.Address), nil
}

func (c *client) Balance(_ context.Context, accountIdx uint64) (unlocked, total uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.rpc.Wallet.GetBalance(&wallet.GetBalanceRequest{AccountIndex: accountIdx})
	if err != nil {
		return 0, 0, fmt.Errorf("get_balance: %w", err)
	}

	return resp.UnlockedBalance, resp.Balance, nil
}

// Transfer locks amount piconero to the stealth address to, the mechanism
// behind TxLock's Monero-side counterpart.
func (c *client) Transfer(_ context.Context, to mcrypto.Address, accountIdx uint64, amount uint64) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.rpc.Wallet.Transfer(&wallet.TransferRequest{
		Destinations: []wallet.Destination{{Amount: amount, Address: string(to)}},
		AccountIndex: accountIdx,
		GetTxKey:     true,
	})
	if err != nil {
		return "", "", fmt.Errorf("transfer: %w", err)
	}

	return resp.TxHash, resp.TxKey, nil
}

// SweepAll sweeps every unlocked output in accountIdx of the open wallet
// to the address to — sweep.go uses this to empty the reconstructed joint
// wallet into the recovering party's own destination.
func (c *client) SweepAll(_ context.Context, to mcrypto.Address, accountIdx uint64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.rpc.Wallet.SweepAll(&wallet.SweepAllRequest{Address: string(to), AccountIndex: accountIdx})
	if err != nil {
		return nil, fmt.Errorf("sweep_all: %w", err)
	}

	return resp.TxHashList, nil
}

// CheckTxKey verifies a transfer proof (tx_hash, tx_key) against address,
// returning the amount received and confirmation count.
func (c *client) CheckTxKey(_ context.Context, txHash, txKey string, address mcrypto.Address) (uint64, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.rpc.Wallet.CheckTxKey(&wallet.CheckTxKeyRequest{
		Txid:    txHash,
		TxKey:   txKey,
		Address: string(address),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("check_tx_key: %w", err)
	}

	return resp.Received, resp.Confirmations, nil
}

// GenerateFromKeys restores (or creates) a wallet file from an explicit
// spend/view keypair, used by sweep.go to restore the joint wallet once
// both spend-key shares are summed.
func (c *client) GenerateFromKeys(_ context.Context, spend *mcrypto.PrivateSpendKey, view *mcrypto.PrivateViewKey, address mcrypto.Address, filename, password string, restoreHeight uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	spendHex := ""
	if spend != nil {
		b := spend.Bytes()
		spendHex = fmt.Sprintf("%x", b[:])
	}
	viewBytes := view.Bytes()

	_, err := c.rpc.Wallet.GenerateFromKeys(&wallet.GenerateFromKeysRequest{
		Address:       string(address),
		Spendkey:      spendHex,
		Viewkey:       fmt.Sprintf("%x", viewBytes[:]),
		Filename:      filename,
		Password:      password,
		RestoreHeight: restoreHeight,
	})
	if err != nil {
		return fmt.Errorf("generate_from_keys: %w", err)
	}

	return nil
}

func (c *client) Height(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.rpc.Wallet.GetHeight()
	if err != nil {
		return 0, fmt.Errorf("get_height: %w", err)
	}

	return resp.Height, nil
}

func (c *client) OpenWallet(_ context.Context, filename, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.rpc.Wallet.OpenWallet(&wallet.OpenWalletRequest{Filename: filename, Password: password}); err != nil {
		return fmt.Errorf("open_wallet: %w", err)
	}

	return nil
}

func (c *client) CloseWallet(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.rpc.Wallet.CloseWallet(); err != nil {
		return fmt.Errorf("close_wallet: %w", err)
	}

	return nil
}
