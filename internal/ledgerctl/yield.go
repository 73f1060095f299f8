package ledgerctl

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/radieske/noloss-ledger-poc/internal/custody"
	"github.com/radieske/noloss-ledger-poc/internal/ledger"
)

// escrowFlags são os flags comuns aos comandos que apontam para um escrow
type escrowFlags struct {
	walletURL string
	instance  string
	betID     uint64
}

func (f *escrowFlags) register(cmd *cobra.Command, defaultWalletURL, defaultInstance string) {
	cmd.Flags().StringVar(&f.walletURL, "wallet-url", defaultWalletURL, "wallet-service base URL")
	cmd.Flags().StringVar(&f.instance, "ledger", defaultInstance, "ledger instance id that owns the escrow")
	cmd.Flags().Uint64Var(&f.betID, "bet", 0, "bet id")
}

func (f *escrowFlags) key() (ledger.EscrowKey, error) {
	if f.instance == "" {
		return ledger.EscrowKey{}, errors.New("--ledger is required")
	}
	if f.betID == 0 {
		return ledger.EscrowKey{}, errors.New("--bet is required")
	}
	return ledger.EscrowKey{Instance: f.instance, Bet: ledger.BetID(f.betID)}, nil
}

func newAccrueYieldCmd(defaultWalletURL, defaultInstance string) *cobra.Command {
	var (
		flags  escrowFlags
		amount int64
	)
	cmd := &cobra.Command{
		Use:   "accrue-yield",
		Short: "Record externally earned yield into a bet escrow",
		Long: `accrue-yield credits the escrow of a bet with yield earned outside the
ledger (lending pool interest, staking rewards). The amount becomes the
surplus distributed when the bet is settled.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := flags.key()
			if err != nil {
				return err
			}
			if amount <= 0 {
				return errors.New("--amount must be positive")
			}
			if err := custody.NewClient(flags.walletURL).AccrueYield(cmd.Context(), key, amount); err != nil {
				return fmt.Errorf("accrue yield for %s: %w", key, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "accrued %d cents into %s\n", amount, key)
			return nil
		},
	}
	flags.register(cmd, defaultWalletURL, defaultInstance)
	cmd.Flags().Int64Var(&amount, "amount", 0, "yield in cents")
	return cmd
}

func newRefundCmd(defaultWalletURL, defaultInstance string) *cobra.Command {
	var (
		flags escrowFlags
		user  string
	)
	cmd := &cobra.Command{
		Use:   "refund",
		Short: "Return a stake the ledger never recorded back to the wallet",
		Long: `refund returns to the participant's wallet a stake pulled into an escrow
that the ledger has no record of. ledger-service does this on its own when a
pull fails; use this command when that compensation also failed and the bet
was never created, so no settlement will ever return the funds.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := flags.key()
			if err != nil {
				return err
			}
			if user == "" {
				return errors.New("--user is required")
			}
			if err := custody.NewClient(flags.walletURL).Refund(cmd.Context(), key, user); err != nil {
				return fmt.Errorf("refund %s on %s: %w", user, key, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refunded %s on %s\n", user, key)
			return nil
		},
	}
	flags.register(cmd, defaultWalletURL, defaultInstance)
	cmd.Flags().StringVar(&user, "user", "", "participant id")
	return cmd
}
