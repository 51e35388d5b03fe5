package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Deltares-research/FloodAdapt-sub000/ingest"
)

func (a *app) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Store event sets and terrain models",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "events <file>",
		Short: "Store an event-set document (YAML or JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := ingest.ReadEventSetFile(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SaveEventSet(cmd.Context(), set); err != nil {
				return err
			}
			a.logger.Info("event set imported",
				zap.String("event_set", set.ID),
				zap.Int("events", len(set.Events)),
				zap.Int("cells", len(set.Cells())))
			fmt.Fprintln(cmd.OutOrStdout(), set.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "terrain <file>",
		Short: "Store a terrain document (YAML or JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := ingest.ReadTerrainFile(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SaveTerrain(cmd.Context(), *model); err != nil {
				return err
			}
			a.logger.Info("terrain imported",
				zap.String("terrain", model.ID),
				zap.Int("cells", len(model.Elevations)))
			fmt.Fprintln(cmd.OutOrStdout(), model.ID)
			return nil
		},
	})

	return cmd
}
