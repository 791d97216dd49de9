package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"twod-ledger-backend/internal/services"
)

func (a *app) blockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Maintain the block list of unbettable numbers",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show blocked numbers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printBlockList(cmd)
		},
	}

	add := &cobra.Command{
		Use:   "add NUMBER...",
		Short: "Block one or more numbers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, n := range args {
				if err := a.engine.Blocks.Add(cmd.Context(), n); err != nil {
					return err
				}
			}
			return a.printBlockList(cmd)
		},
	}

	rng := &cobra.Command{
		Use:   "range DIGIT",
		Short: "Block the ten numbers with DIGIT in the head (or tail) position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos := services.BlockHead
			if tail, _ := cmd.Flags().GetBool("tail"); tail {
				pos = services.BlockTail
			}
			if _, err := a.engine.Blocks.AddRange(cmd.Context(), args[0], pos); err != nil {
				return err
			}
			return a.printBlockList(cmd)
		},
	}
	rng.Flags().Bool("tail", false, "Match DIGIT in the units position instead of the tens")

	remove := &cobra.Command{
		Use:   "remove NUMBER...",
		Short: "Unblock one or more numbers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, n := range args {
				if err := a.engine.Blocks.Remove(cmd.Context(), n); err != nil {
					return err
				}
			}
			return a.printBlockList(cmd)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Unblock every number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.engine.Blocks.Clear(cmd.Context()); err != nil {
				return err
			}
			return a.printBlockList(cmd)
		},
	}

	cmd.AddCommand(list, add, rng, remove, clearCmd)
	return cmd
}

func (a *app) printBlockList(cmd *cobra.Command) error {
	numbers, err := a.engine.Blocks.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(numbers) == 0 {
		fmt.Fprintln(out(cmd), "No numbers blocked.")
		return nil
	}
	fmt.Fprintf(out(cmd), "Blocked (%d): %s\n", len(numbers), strings.Join(numbers, " "))
	return nil
}
