package ledgerctl

import (
	"github.com/spf13/cobra"

	"github.com/radieske/noloss-ledger-poc/internal/shared/config"
)

// NewRootCmd monta a CLI de operação do ledger; os defaults dos flags vêm da config
func NewRootCmd() *cobra.Command {
	cfg := config.Load()

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operational tooling for the no-loss staking ledger",
		Long: `ledgerctl applies the Postgres schema shared by wallet-service and
ledger-audit-worker, records externally earned yield into a bet escrow,
returns orphaned stakes and prints the current state of a bet as seen by
ledger-service.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newMigrateCmd(cfg.PostgresDSN),
		newAccrueYieldCmd(cfg.WalletURL, cfg.LedgerInstance),
		newRefundCmd(cfg.WalletURL, cfg.LedgerInstance),
		newInspectCmd(cfg.LedgerURL),
	)
	return root
}
