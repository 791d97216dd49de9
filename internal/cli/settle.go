package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"twod-ledger-backend/internal/models"
)

func (a *app) settleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settle WINNING_NUMBER",
		Short: "Settle the pending wagers of a session",
		Long: `Resolve every pending wager of the given session against the winning
number. Winners are credited stake times the multiplier; everything else is
marked LOSE. Records that fail stay pending, so rerunning is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runSettle,
	}
	cmd.Flags().StringP("session", "s", "", "Session to settle: MORNING or EVENING (default: the one that closed last)")
	cmd.Flags().Int64P("multiplier", "m", 0, "Payout multiplier (default: PAYOUT_MULTIPLIER)")
	return cmd
}

func (a *app) runSettle(cmd *cobra.Command, args []string) error {
	sessionFlag, _ := cmd.Flags().GetString("session")
	multiplier, _ := cmd.Flags().GetInt64("multiplier")

	session := a.engine.Market.Now().SettlementSession()
	if sessionFlag != "" {
		var err error
		if session, err = models.ParseSession(sessionFlag); err != nil {
			return err
		}
	}

	report, err := a.engine.Settlement.Settle(cmd.Context(), args[0], session, multiplier)
	if err != nil {
		return err
	}

	w := out(cmd)
	fmt.Fprintf(w, "Settled %s %s: winning number %s, multiplier x%d\n", report.Date, report.Session, report.WinningNumber, report.Multiplier)
	for _, p := range report.Winners {
		fmt.Fprintf(w, "  WIN  %-20s %s  (%s)\n", p.Owner, models.FormatAmount(p.Amount), p.WagerID)
	}
	fmt.Fprintf(w, "Winners: %d  Losers: %d  Skipped: %d  Paid: %s\n",
		len(report.Winners), report.Losers, report.Skipped, models.FormatAmount(report.TotalPaid()))

	if len(report.Failures) > 0 {
		for _, f := range report.Failures {
			fmt.Fprintf(w, "  FAIL %-20s %s  (%s): %s\n", f.Owner, f.Number, f.WagerID, f.Error)
		}
		return fmt.Errorf("%d wagers could not be settled and are still pending; rerun settle", len(report.Failures))
	}
	return nil
}
