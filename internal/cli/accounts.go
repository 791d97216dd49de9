package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"twod-ledger-backend/internal/models"
	"twod-ledger-backend/internal/services"
)

func (a *app) topupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topup HANDLE AMOUNT",
		Short: "Credit an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			reference, _ := cmd.Flags().GetString("reference")
			idempotencyKey, _ := cmd.Flags().GetString("idempotency-key")

			acct, err := a.engine.Accounts.TopUp(cmd.Context(), args[0], amount, reference, idempotencyKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "%s balance: %s\n", acct.Handle, models.FormatAmount(acct.Balance))
			return nil
		},
	}
	cmd.Flags().String("reference", "ledgerctl", "Reference recorded on the transaction")
	cmd.Flags().String("idempotency-key", "", "Apply the credit at most once for this key")
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register HANDLE",
		Short: "Create a zero-balance account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := a.engine.Accounts.Register(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "Registered %s\n", acct.Handle)
			return nil
		},
	}
}

func (a *app) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token HANDLE",
		Short: "Mint an API access token for an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET must be set to mint tokens the API server accepts")
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				ttl = a.cfg.JWTTTL
			}

			acct, err := a.engine.Accounts.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			jwtService, err := services.NewJWTService(a.cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			token, err := jwtService.Issue(acct.Handle, acct.Role)
			if err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), token)
			return nil
		},
	}
	cmd.Flags().Duration("ttl", 0, "Token lifetime (default: JWT_TTL)")
	return cmd
}

func (a *app) marketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "market",
		Short: "Show the market phase in the market timezone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.engine.Market.Now()
			fmt.Fprintf(out(cmd), "%s %s %s  phase=%s state=%s session=%s\n",
				st.Date, st.Weekday, st.Time.Format(time.Kitchen), st.Phase, st.State, st.Session)
			return nil
		},
	}
}
