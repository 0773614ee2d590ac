package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/losrays/core"
	"github.com/signalsfoundry/losrays/internal/logging"
	"github.com/signalsfoundry/losrays/querystore"
)

func newRaysCmd(a *app) *cobra.Command {
	var (
		in   string
		zref float64
	)
	cmd := &cobra.Command{
		Use:   "rays",
		Short: "Fill ray start positions, look vectors and lengths of a dataset",
		Long: `Compute, for every pixel of a query-point dataset, the ECEF ray start
position, the unit ECEF look vector and the length of the ray from the ground
up to the --zref altitude, and store them in the dataset.

Example:
  losrays rays --in query.nc --zref 15000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("zref") {
				zref = a.cfg.Rays.ZRef
			}

			d, err := querystore.Read(in)
			if err != nil {
				return err
			}
			los, err := d.LineOfSight()
			if err != nil {
				return err
			}
			setup, err := core.PrepareRays(d.Lat, d.Lon, d.Hgt, los, zref)
			if err != nil {
				a.log.Error(ctx, "failed to prepare rays", logging.String("path", in), logging.Err(err))
				return err
			}
			if err := querystore.WriteRays(ctx, in, setup, a.storeOptions()...); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote rays to %s: %d pixels, zref %g m, longest ray %.3f m\n",
				in, d.NumRays, zref, setup.MaxLength())
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "Query-point dataset (required)")
	cmd.Flags().Float64Var(&zref, "zref", core.DefaultZRef, "Altitude in metres where rays end (default from LOSRAYS_RAYS_ZREF)")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
