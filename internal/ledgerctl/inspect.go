package ledgerctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/radieske/noloss-ledger-poc/internal/ledger"
	"github.com/radieske/noloss-ledger-poc/internal/ledger-service/dto"
)

func newInspectCmd(defaultLedgerURL string) *cobra.Command {
	var (
		ledgerURL string
		betID     uint64
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print bet details, stakes and payouts from ledger-service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if betID == 0 {
				return errors.New("--bet is required")
			}
			c := &http.Client{Timeout: 5 * time.Second}
			base := ledgerURL + "/v1/bets/" + strconv.FormatUint(betID, 10)

			var d ledger.BetDetails
			if err := getJSON(cmd.Context(), c, base, &d); err != nil {
				return err
			}
			var stakes []ledger.StakeRecord
			if err := getJSON(cmd.Context(), c, base+"/stakes", &stakes); err != nil {
				return err
			}
			render(cmd.OutOrStdout(), d, stakes)
			return nil
		},
	}
	cmd.Flags().StringVar(&ledgerURL, "ledger-url", defaultLedgerURL, "ledger-service base URL")
	cmd.Flags().Uint64Var(&betID, "bet", 0, "bet id")
	return cmd
}

func getJSON(ctx context.Context, c *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		var e dto.ErrorResponse
		_ = json.NewDecoder(res.Body).Decode(&e)
		return fmt.Errorf("ledger http %d: %s", res.StatusCode, e.Error)
	}
	return json.NewDecoder(res.Body).Decode(dst)
}

func render(out io.Writer, d ledger.BetDetails, stakes []ledger.StakeRecord) {
	fmt.Fprintf(out, "Bet %d  [%s]\n", d.ID, d.Status)
	fmt.Fprintf(out, "  Condition:   %s\n", d.Condition)
	fmt.Fprintf(out, "  Creator:     %s\n", d.Creator)
	fmt.Fprintf(out, "  Min stake:   %d\n", d.MinStake)
	fmt.Fprintf(out, "  Expires:     %s\n", d.ExpirationTime.Format(time.RFC3339))
	fmt.Fprintf(out, "  Deadline:    %s\n", d.ResolutionDeadline.Format(time.RFC3339))
	fmt.Fprintf(out, "  Pool:        true=%d false=%d\n", d.TotalStakeTrue, d.TotalStakeFalse)
	fmt.Fprintf(out, "  Attestations %d/%d\n\n", d.Attestations, d.Participants)

	payouts := map[string]ledger.Payout{}
	if s := d.Settlement; s != nil {
		for _, p := range s.Payouts {
			payouts[p.Participant] = p
		}
	}

	tbl := tablewriter.NewWriter(out)
	tbl.Header("Participant", "Stake", "Prediction", "Attested", "Principal", "Yield")
	for _, s := range stakes {
		attested := "-"
		if s.Attested {
			attested = strconv.FormatBool(s.AttestedOutcome)
		}
		principal, yield := "-", "-"
		if p, ok := payouts[s.Participant]; ok {
			principal = strconv.FormatInt(p.Principal, 10)
			yield = strconv.FormatInt(p.Yield, 10)
		}
		tbl.Append(
			s.Participant,
			strconv.FormatInt(s.Amount, 10),
			strconv.FormatBool(s.Prediction),
			attested,
			principal,
			yield,
		)
	}
	tbl.Render()

	if s := d.Settlement; s != nil {
		outcome := strconv.FormatBool(s.Outcome)
		if s.Kind == ledger.SettledByCancel {
			outcome = "n/a"
		}
		fmt.Fprintf(out, "\n  Settled by %s (outcome %s) surplus=%d dust=%d\n", s.Kind, outcome, s.Surplus, s.Dust)
	}
}
