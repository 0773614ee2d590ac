package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/signalsfoundry/losrays/querystore"
)

func newInspectCmd(a *app) *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a summary of a query-point dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := querystore.Read(in)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), in, d)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "Query-point dataset (required)")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func printSummary(w io.Writer, path string, d *querystore.Dataset) {
	chunk := querystore.ChunkContiguous
	if d.ChunkShape != nil {
		chunk = d.ChunkShape.String()
	}
	fmt.Fprintf(w, "dataset:     %s\n", path)
	fmt.Fprintf(w, "conventions: %s\n", d.Conventions)
	fmt.Fprintf(w, "shape:       %s\n", d.Shape)
	fmt.Fprintf(w, "rays:        %d\n", d.NumRays)
	fmt.Fprintf(w, "chunks:      %s\n", chunk)
	fmt.Fprintf(w, "projection:  EPSG:%d (%s, a=%.1f, 1/f=%.9f)\n", d.Projection, d.CRS.Ellipsoid, d.CRS.SemiMajorAxis, d.CRS.InverseFlattening)
	fmt.Fprintf(w, "los:         %s\n", d.LOSFrame)
	fmt.Fprintf(w, "lat:         [%.6f, %.6f]\n", floats.Min(d.Lat.Data), floats.Max(d.Lat.Data))
	fmt.Fprintf(w, "lon:         [%.6f, %.6f]\n", floats.Min(d.Lon.Data), floats.Max(d.Lon.Data))
	fmt.Fprintf(w, "hgt:         [%.3f, %.3f]\n", floats.Min(d.Hgt.Data), floats.Max(d.Hgt.Data))
	if d.Populated() {
		fmt.Fprintf(w, "ray length:  [%.3f, %.3f]\n", floats.Min(d.RaysLen.Data), floats.Max(d.RaysLen.Data))
	} else {
		fmt.Fprintf(w, "ray length:  not populated\n")
	}
}
