package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/losrays/core"
	"github.com/signalsfoundry/losrays/internal/logging"
	"github.com/signalsfoundry/losrays/internal/observability"
	"github.com/signalsfoundry/losrays/querystore"
)

var errRaysNotPopulated = errors.New("dataset has no ray parameters; run `losrays rays` first")

func newSampleCmd(a *app) *cobra.Command {
	var (
		in    string
		pixel int
		step  float64
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Sample points along the rays of a dataset",
		Long: `Discretise rays every --step metres from the ground pixel up to the ray
length; the end point itself is not included.

With --pixel the samples of one ray are printed as "k x y z" lines. With
--all every ray is sampled up to the longest ray and a summary is printed.

Examples:
  losrays sample --in query.nc --pixel 5 --step 500
  losrays sample --in query.nc --all`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("step") {
				step = a.cfg.Rays.StepSize
			}
			if step <= 0 {
				return fmt.Errorf("--step must be positive, got %g", step)
			}

			d, err := querystore.Read(in)
			if err != nil {
				return err
			}
			if !d.Populated() {
				return errRaysNotPopulated
			}
			setup := d.RaySetup()
			out := cmd.OutOrStdout()

			ctx, span := observability.StartSpan(ctx, "losrays.sample",
				attribute.String("path", in),
				attribute.Float64("step_m", step),
				attribute.Bool("all", all),
			)
			defer func() { observability.EndSpan(span, err) }()

			if all {
				grid, err := setup.Sample(step)
				if err != nil {
					return err
				}
				a.metrics.ObserveSampling(grid.Pixels(), grid.Samples)
				a.log.Info(ctx, "sampled ray grid",
					logging.String("shape", grid.Shape().String()),
					logging.Int("samples_per_ray", grid.Samples),
				)
				fmt.Fprintf(out, "sampled %d rays, %d samples each, array shape %s\n", grid.Pixels(), grid.Samples, grid.Shape())
				return nil
			}

			if pixel < 0 || pixel >= len(setup.Length) {
				return fmt.Errorf("--pixel %d out of range [0, %d)", pixel, len(setup.Length))
			}
			length := setup.Length[pixel]
			if length <= 0 {
				fmt.Fprintf(out, "pixel %d is above zref; ray has no samples\n", pixel)
				return nil
			}
			points := core.SampleRay(length, setup.Start[pixel], setup.SLV[pixel], step)
			a.metrics.ObserveSampling(1, len(points))
			for k, p := range points {
				fmt.Fprintf(out, "%d %.3f %.3f %.3f\n", k, p.X, p.Y, p.Z)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "Query-point dataset with ray parameters (required)")
	cmd.Flags().IntVar(&pixel, "pixel", 0, "Flat row-major pixel index")
	cmd.Flags().Float64Var(&step, "step", 100, "Step between samples in metres (default from LOSRAYS_RAYS_STEP_SIZE)")
	cmd.Flags().BoolVar(&all, "all", false, "Sample every ray and print a summary")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
