package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/signalsfoundry/losrays/core"
	"github.com/signalsfoundry/losrays/internal/logging"
	"github.com/signalsfoundry/losrays/model"
	"github.com/signalsfoundry/losrays/querystore"
)

type pointsOptions struct {
	bbox   string
	rows   int
	cols   int
	height float64
	los    string
	tle1   string
	tle2   string
	at     string
	out    string
	chunk  string
}

func newPointsCmd(a *app) *cobra.Command {
	o := &pointsOptions{}
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Write a query-point dataset for a lat/lon grid",
		Long: `Build a regular latitude/longitude grid over a bounding box, choose a
line-of-sight for every pixel and write the query-point dataset.

LOS choices:
  zenith          look straight up (default)
  enu:E,N,U       one local East-North-Up vector for every pixel
  tle             point at a satellite given by --tle1/--tle2 at --time

Examples:
  losrays points --bbox 34,35,-119,-118 --rows 3 --cols 4 --out query.nc
  losrays points --bbox 34,35,-119,-118 --los enu:0.1,0.2,0.97 --out query.nc --chunk 2,2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoints(cmd, a, o)
		},
	}

	cmd.Flags().StringVar(&o.bbox, "bbox", "", "Bounding box S,N,W,E in degrees (required)")
	cmd.Flags().IntVar(&o.rows, "rows", 3, "Number of latitude rows")
	cmd.Flags().IntVar(&o.cols, "cols", 4, "Number of longitude columns")
	cmd.Flags().Float64Var(&o.height, "height", 0, "Ground height of every pixel in metres")
	cmd.Flags().StringVar(&o.los, "los", "zenith", "Line-of-sight: zenith, enu:E,N,U or tle")
	cmd.Flags().StringVar(&o.tle1, "tle1", "", "First TLE line of the sensor (with --los tle)")
	cmd.Flags().StringVar(&o.tle2, "tle2", "", "Second TLE line of the sensor (with --los tle)")
	cmd.Flags().StringVar(&o.at, "time", "", "Acquisition time, RFC 3339 (with --los tle)")
	cmd.Flags().StringVar(&o.out, "out", "", "Output dataset path (required)")
	cmd.Flags().StringVar(&o.chunk, "chunk", "", "Chunk shape r,c (default from LOSRAYS_STORE_CHUNK_SHAPE, else contiguous)")
	_ = cmd.MarkFlagRequired("bbox")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runPoints(cmd *cobra.Command, a *app, o *pointsOptions) error {
	ctx := cmd.Context()

	bbox, err := parseFloats(o.bbox, 4)
	if err != nil {
		return fmt.Errorf("--bbox: %w", err)
	}
	lats, lons, hgts, err := buildGrid(bbox[0], bbox[1], bbox[2], bbox[3], o.rows, o.cols, o.height)
	if err != nil {
		return err
	}

	los, err := o.lineOfSight(lats, lons, hgts)
	if err != nil {
		return err
	}

	chunk := model.Shape(a.cfg.Store.ChunkShape)
	if o.chunk != "" {
		c, err := parseInts(o.chunk)
		if err != nil {
			return fmt.Errorf("--chunk: %w", err)
		}
		chunk = c
	}
	var extra []querystore.Option
	if len(chunk) > 0 {
		extra = append(extra, querystore.WithChunkShape(chunk))
	}

	if err := querystore.Write(ctx, o.out, lats, lons, hgts, los, a.storeOptions(extra...)...); err != nil {
		a.log.Error(ctx, "failed to write query points", logging.String("path", o.out), logging.Err(err))
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: shape %s, %d pixels, LOS %s\n", o.out, hgts.Shape, hgts.Len(), los)
	return nil
}

func (o *pointsOptions) lineOfSight(lats, lons, hgts model.Array) (model.LOS, error) {
	kind, arg, _ := strings.Cut(o.los, ":")
	switch strings.ToLower(kind) {
	case "zenith":
		return model.Zenith(), nil
	case "enu":
		v, err := parseFloats(arg, 3)
		if err != nil {
			return model.LOS{}, fmt.Errorf("--los enu: %w", err)
		}
		data := make([]float64, 0, 3*hgts.Len())
		for i := 0; i < hgts.Len(); i++ {
			data = append(data, v...)
		}
		return model.VectorLOS(model.FrameENU, model.Array{Shape: hgts.Shape.Append(3), Data: data}), nil
	case "tle":
		if o.tle1 == "" || o.tle2 == "" {
			return model.LOS{}, fmt.Errorf("--los tle needs --tle1 and --tle2")
		}
		at := time.Now().UTC()
		if o.at != "" {
			t, err := time.Parse(time.RFC3339, o.at)
			if err != nil {
				return model.LOS{}, fmt.Errorf("--time: %w", err)
			}
			at = t
		}
		sensor, err := core.SensorPosition(&model.SensorDefinition{
			ID:           "sensor",
			MotionSource: model.MotionSourceTLE,
			TLE1:         o.tle1,
			TLE2:         o.tle2,
		}, at)
		if err != nil {
			return model.LOS{}, fmt.Errorf("--los tle: %w", err)
		}
		return core.LOSFromSensor(lats, lons, hgts, sensor)
	default:
		return model.LOS{}, fmt.Errorf("--los: unknown line-of-sight %q", o.los)
	}
}

// buildGrid spans [south, north] x [west, east] with rows x cols pixels,
// edges included. A single row or column sits at the box centre.
func buildGrid(south, north, west, east float64, rows, cols int, height float64) (lats, lons, hgts model.Array, err error) {
	if rows < 1 || cols < 1 {
		return lats, lons, hgts, fmt.Errorf("grid needs at least one row and column, got %dx%d", rows, cols)
	}
	if south < -90 || north > 90 || south > north {
		return lats, lons, hgts, fmt.Errorf("latitude bounds must satisfy -90 <= S <= N <= 90, got S=%g N=%g", south, north)
	}
	if west < -180 || east > 180 || west > east {
		return lats, lons, hgts, fmt.Errorf("longitude bounds must satisfy -180 <= W <= E <= 180, got W=%g E=%g", west, east)
	}

	latAxis := span(rows, south, north)
	lonAxis := span(cols, west, east)

	shape := model.Shape{rows, cols}
	latData := make([]float64, 0, rows*cols)
	lonData := make([]float64, 0, rows*cols)
	for _, lat := range latAxis {
		for _, lon := range lonAxis {
			latData = append(latData, lat)
			lonData = append(lonData, lon)
		}
	}
	return model.Array{Shape: shape, Data: latData},
		model.Array{Shape: shape, Data: lonData},
		model.Full(shape, height), nil
}

func span(n int, lo, hi float64) []float64 {
	if n == 1 {
		return []float64{(lo + hi) / 2}
	}
	v := floats.Span(make([]float64, n), lo, hi)
	v[n-1] = hi
	return v
}

func parseFloats(s string, want int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != want {
		return nil, fmt.Errorf("want %d comma-separated numbers, got %q", want, s)
	}
	out := make([]float64, want)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseInts(s string) (model.Shape, error) {
	parts := strings.Split(s, ",")
	out := make(model.Shape, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
