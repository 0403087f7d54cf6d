// Package config carries the network profiles (timelock and confirmation
// defaults) that an operator picks between when building a setup.Config.
// Choosing and loading one is CLI/config-file plumbing, not core swap
// logic, so it stays a thin adapter over protocol/setup.Config rather
// than a dependency the core imports.
package config

import (
	"fmt"
	"time"

	"github.com/noot/xmrbtc-swap/bitcoin"
	mcrypto "github.com/noot/xmrbtc-swap/crypto/monero"
	"github.com/noot/xmrbtc-swap/protocol/setup"
)

// Env names a deployment environment with its own timelock and
// confirmation defaults.
type Env string

const (
	Regtest Env = "regtest"
	Testnet Env = "testnet"
	Mainnet Env = "mainnet"
)

// Profile bundles the non-negotiated, environment-wide defaults for an
// Env: the block-denominated timelocks, confirmation requirements, and
// average block times used to translate those timelocks into wall-clock
// estimates for an operator or CLI.
type Profile struct {
	Env Env

	CancelTimelock uint32
	PunishTimelock uint32

	BTCConfirmations uint32
	XMRConfTarget    uint64

	AvgBTCBlockTime time.Duration
	AvgXMRBlockTime time.Duration

	MoneroNetwork mcrypto.Network
}

var profiles = map[Env]Profile{
	Regtest: {
		Env:              Regtest,
		CancelTimelock:   100,
		PunishTimelock:   50,
		BTCConfirmations: 1,
		XMRConfTarget:    10,
		AvgBTCBlockTime:  5 * time.Second,
		AvgXMRBlockTime:  1 * time.Second,
		MoneroNetwork:    mcrypto.Stagenet,
	},
	Testnet: {
		Env:              Testnet,
		CancelTimelock:   12,
		PunishTimelock:   6,
		BTCConfirmations: 1,
		XMRConfTarget:    10,
		AvgBTCBlockTime:  10 * time.Minute,
		AvgXMRBlockTime:  2 * time.Minute,
		MoneroNetwork:    mcrypto.Stagenet,
	},
	Mainnet: {
		Env:              Mainnet,
		CancelTimelock:   72,
		PunishTimelock:   72,
		BTCConfirmations: 1,
		XMRConfTarget:    10,
		AvgBTCBlockTime:  10 * time.Minute,
		AvgXMRBlockTime:  2 * time.Minute,
		MoneroNetwork:    mcrypto.Mainnet,
	},
}

// ForEnv looks up the Profile for a named environment.
func ForEnv(env Env) (Profile, error) {
	p, ok := profiles[env]
	if !ok {
		return Profile{}, fmt.Errorf("config: unknown environment %q", env)
	}
	return p, nil
}

// NewSetupConfig builds a setup.Config from the profile's timelock and
// confirmation defaults plus the swap-specific terms (amounts and fee
// rate) that an offer negotiation would have already agreed on.
func (p Profile) NewSetupConfig(btcAmount bitcoin.Amount, xmrAmount uint64, feeRate bitcoin.FeeRate, txFee bitcoin.Amount) setup.Config {
	return setup.Config{
		BTCAmount:      btcAmount,
		XMRAmount:      xmrAmount,
		CancelTimelock: p.CancelTimelock,
		PunishTimelock: p.PunishTimelock,
		XMRConfTarget:  p.XMRConfTarget,
		Network:        p.MoneroNetwork,
		FeeRate:        feeRate,
		TxFee:          txFee,
	}
}
