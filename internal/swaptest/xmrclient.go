package swaptest

import (
	"context"
	"fmt"
	"sync"

	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	"github.com/noot/xmrbtc-swap/monero"
)

// XMRClient is an in-memory monero.Client: transfers and sweeps are just
// recorded, and CheckTxKey reports whatever amount/confirmation figures a
// test has configured rather than actually consulting a wallet-rpc
// daemon.
type XMRClient struct {
	mu sync.Mutex

	height uint64

	Received      uint64
	Confirmations uint64

	transferCount int
	openWallet    string

	// Swept records the destination address of the most recent SweepAll
	// call, so a test can assert the recovered funds landed where
	// expected.
	Swept mcrypto.Address
}

// NewXMRClient returns an XMRClient pinned at the given starting height.
func NewXMRClient(height uint64) *XMRClient {
	return &XMRClient{height: height}
}

// AdvanceHeight moves the simulated Monero chain tip forward by n blocks.
func (c *XMRClient) AdvanceHeight(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += n
}

func (c *XMRClient) Address(_ context.Context, _ uint64) (mcrypto.Address, error) {
	return "", fmt.Errorf("swaptest: XMRClient.Address not implemented")
}

func (c *XMRClient) Balance(_ context.Context, _ uint64) (uint64, uint64, error) {
	return 0, 0, nil
}

// Transfer fabricates a deterministic (tx_hash, tx_key) pair per call.
func (c *XMRClient) Transfer(_ context.Context, _ mcrypto.Address, _ uint64, _ uint64) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transferCount++
	return fmt.Sprintf("txhash-%d", c.transferCount), fmt.Sprintf("txkey-%d", c.transferCount), nil
}

// TransferCount reports how many times Transfer has been called, so a
// test can assert a resumed swap never re-sends its Monero lock.
func (c *XMRClient) TransferCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transferCount
}

func (c *XMRClient) SweepAll(_ context.Context, to mcrypto.Address, _ uint64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Swept = to
	return []string{"sweep-txhash"}, nil
}

// CheckTxKey reports the Received/Confirmations a test has set, ignoring
// the actual proof fields.
func (c *XMRClient) CheckTxKey(_ context.Context, _, _ string, _ mcrypto.Address) (uint64, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Received, c.Confirmations, nil
}

func (c *XMRClient) GenerateFromKeys(_ context.Context, _ *mcrypto.PrivateSpendKey, _ *mcrypto.PrivateViewKey, _ mcrypto.Address, filename, _ string, _ uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openWallet = filename
	return nil
}

func (c *XMRClient) Height(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height, nil
}

func (c *XMRClient) OpenWallet(_ context.Context, filename, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openWallet = filename
	return nil
}

func (c *XMRClient) CloseWallet(_ context.Context) error {
	return nil
}

var _ monero.Client = (*XMRClient)(nil)
