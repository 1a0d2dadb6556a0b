package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"coursemarket_echo/internal/bootstrap"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <payment-id>...",
		Short: "Reconcile gateway payments by id, the same way the webhook does",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}

			engine, err := bootstrap.NewEngine(cfg, db, log.Default())
			if err != nil {
				return err
			}
			defer engine.Close()

			failed := 0
			for _, id := range args {
				outcome, err := engine.Reconciler.Reconcile(cmd.Context(), id)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%v\n", id, outcome, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, outcome)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d payments failed to reconcile", failed, len(args))
			}
			return nil
		},
	}
}
