// Package main provides swapcli, a thin command-line front end over the
// setup and config packages. Wiring it to a live swap daemon (offer
// negotiation, peer discovery, wallet RPC) is explicitly out of scope;
// these commands only exercise the parts of the core that make sense
// to run standalone.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/noot/xmrbtc-swap/config"
	"github.com/noot/xmrbtc-swap/protocol/setup"
)

const flagEnv = "env"

func main() {
	if err := cliApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func cliApp() *cli.App {
	return &cli.App{
		Name:  "swapcli",
		Usage: "Inspect swap timelock profiles and generate setup key material",
		Commands: []*cli.Command{
			{
				Name:   "profile",
				Usage:  "Print the timelock and confirmation defaults for an environment",
				Action: runProfile,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagEnv,
						Value: string(config.Testnet),
						Usage: "one of regtest, testnet, mainnet",
					},
				},
			},
			{
				Name:   "generate-keys",
				Usage:  "Generate a fresh setup-protocol keypair and print its public components",
				Action: runGenerateKeys,
			},
		},
	}
}

func runProfile(cctx *cli.Context) error {
	env := config.Env(cctx.String(flagEnv))
	p, err := config.ForEnv(env)
	if err != nil {
		return err
	}

	fmt.Printf("env:                %s\n", p.Env)
	fmt.Printf("cancel_timelock:    %d blocks (~%s)\n", p.CancelTimelock, p.AvgBTCBlockTime*time.Duration(p.CancelTimelock))
	fmt.Printf("punish_timelock:    %d blocks (~%s)\n", p.PunishTimelock, p.AvgBTCBlockTime*time.Duration(p.PunishTimelock))
	fmt.Printf("btc_confirmations:  %d\n", p.BTCConfirmations)
	fmt.Printf("xmr_conf_target:    %d (~%s)\n", p.XMRConfTarget, p.AvgXMRBlockTime*time.Duration(p.XMRConfTarget))
	fmt.Printf("monero_network:     %d\n", p.MoneroNetwork)
	return nil
}

func runGenerateKeys(_ *cli.Context) error {
	keys, err := setup.GenerateKeys()
	if err != nil {
		return err
	}

	pub := keys.TxLockKey.PublicKey()
	compressed := pub.Compressed()
	viewPub := keys.ViewKeyShare.Public()
	viewBytes := viewPub.Bytes()

	fmt.Printf("tx_lock_pubkey:  %x\n", compressed[:])
	fmt.Printf("view_key_share:  %x\n", viewBytes[:])
	return nil
}
