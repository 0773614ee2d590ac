package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/losrays/core"
	"github.com/signalsfoundry/losrays/model"
	"github.com/signalsfoundry/losrays/querystore"
)

const (
	issTLE1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9993"
	issTLE2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257767"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPipelineEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "query.nc")

	out, err := run(t, "points", "--bbox", "34,35,-119,-118", "--rows", "3", "--cols", "4", "--height", "200", "--out", path)
	if err != nil {
		t.Fatalf("points: %v", err)
	}
	if !strings.Contains(out, "shape (3, 4), 12 pixels, LOS Zenith") {
		t.Fatalf("unexpected points output: %q", out)
	}

	out, err = run(t, "rays", "--in", path, "--zref", "15000")
	if err != nil {
		t.Fatalf("rays: %v", err)
	}
	if !strings.Contains(out, "longest ray 14800.000 m") {
		t.Fatalf("unexpected rays output: %q", out)
	}

	out, err = run(t, "sample", "--in", path, "--pixel", "5", "--step", "500")
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if want := core.SampleCount(14800, 500); len(lines) != want {
		t.Fatalf("sample printed %d lines, want %d", len(lines), want)
	}
	d, err := querystore.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	sp := d.RaySetup().Start[5]
	if want := fmt.Sprintf("0 %.3f %.3f %.3f", sp.X, sp.Y, sp.Z); lines[0] != want {
		t.Fatalf("first sample %q, want %q", lines[0], want)
	}

	out, err = run(t, "sample", "--in", path, "--all", "--step", "1000")
	if err != nil {
		t.Fatalf("sample --all: %v", err)
	}
	if !strings.Contains(out, "sampled 12 rays, 15 samples each, array shape (3, 4, 3, 15)") {
		t.Fatalf("unexpected sample --all output: %q", out)
	}

	out, err = run(t, "inspect", "--in", path)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"conventions: CF-1.8", "shape:       (3, 4)", "rays:        12", "EPSG:4326", "los:         zenith", "ray length:  [14800.000, 14800.000]"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestPointsENUWithChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enu.nc")
	if _, err := run(t, "points", "--bbox", "10,11,20,21", "--los", "enu:0,0.5,0.866", "--chunk", "2,2", "--out", path); err != nil {
		t.Fatalf("points: %v", err)
	}
	d, err := querystore.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !d.ChunkShape.Equal(model.Shape{2, 2}) {
		t.Fatalf("chunk shape = %v, want (2, 2)", d.ChunkShape)
	}
	if d.LOSFrame != "ENU" || d.LOS.Data[1] != 0.5 {
		t.Fatalf("LOS frame %q data %v", d.LOSFrame, d.LOS.Data[:3])
	}
	if d.Lat.Data[0] != 10 || d.Lat.Data[len(d.Lat.Data)-1] != 11 {
		t.Fatalf("grid does not span the bounding box: %v", d.Lat.Data)
	}
}

func TestPointsTowardSatellite(t *testing.T) {
	at := time.Date(2021, 10, 2, 12, 0, 0, 0, time.UTC)
	sensor, err := core.SensorPosition(&model.SensorDefinition{
		MotionSource: model.MotionSourceTLE,
		TLE1:         issTLE1,
		TLE2:         issTLE2,
	}, at)
	if err != nil {
		t.Fatalf("SensorPosition: %v", err)
	}
	lat, lon, _ := core.ECEFToGeodetic(sensor)
	bbox := fmt.Sprintf("%f,%f,%f,%f", lat-0.5, lat+0.5, lon-0.5, lon+0.5)

	path := filepath.Join(t.TempDir(), "tle.nc")
	if _, err := run(t, "points", "--bbox", bbox, "--rows", "2", "--cols", "2",
		"--los", "tle", "--tle1", issTLE1, "--tle2", issTLE2, "--time", at.Format(time.RFC3339), "--out", path); err != nil {
		t.Fatalf("points: %v", err)
	}
	if _, err := run(t, "rays", "--in", path); err != nil {
		t.Fatalf("rays: %v", err)
	}
	d, err := querystore.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if d.LOSFrame != "ECEF" {
		t.Fatalf("LOS frame = %q, want ECEF", d.LOSFrame)
	}
	for i, l := range d.RaysLen.Data {
		// Near-vertical rays from the ground up to zref.
		if l < core.DefaultZRef || l > 1.1*core.DefaultZRef {
			t.Errorf("pixel %d ray length %.1f outside [zref, 1.1 zref]", i, l)
		}
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	unpopulated := filepath.Join(dir, "plain.nc")
	if _, err := run(t, "points", "--bbox", "0,1,0,1", "--out", unpopulated); err != nil {
		t.Fatalf("points: %v", err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"missing bbox", []string{"points", "--out", filepath.Join(dir, "x.nc")}},
		{"short bbox", []string{"points", "--bbox", "0,1,0", "--out", filepath.Join(dir, "x.nc")}},
		{"inverted bbox", []string{"points", "--bbox", "1,0,0,1", "--out", filepath.Join(dir, "x.nc")}},
		{"unknown los", []string{"points", "--bbox", "0,1,0,1", "--los", "nadir", "--out", filepath.Join(dir, "x.nc")}},
		{"tle without lines", []string{"points", "--bbox", "0,1,0,1", "--los", "tle", "--out", filepath.Join(dir, "x.nc")}},
		{"corrupt tle", []string{"points", "--bbox", "0,1,0,1", "--los", "tle", "--tle1", issTLE1[:68] + "0", "--tle2", issTLE2, "--out", filepath.Join(dir, "x.nc")}},
		{"below horizon", []string{"points", "--bbox", "0,1,0,1", "--los", "enu:1,0,-0.1", "--out", filepath.Join(dir, "below.nc")}},
		{"bad log level", []string{"inspect", "--in", unpopulated, "--log-level", "loud"}},
		{"missing dataset", []string{"inspect", "--in", filepath.Join(dir, "missing.nc")}},
		{"sample before rays", []string{"sample", "--in", unpopulated}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "below horizon" {
				// Writing succeeds; ray preparation rejects the LOS.
				if _, err := run(t, tt.args...); err != nil {
					t.Fatalf("points: %v", err)
				}
				if _, err := run(t, "rays", "--in", filepath.Join(dir, "below.nc")); err == nil {
					t.Fatal("expected rays to reject a below-horizon LOS")
				}
				return
			}
			if _, err := run(t, tt.args...); err == nil {
				t.Fatalf("expected error for %v", tt.args)
			}
		})
	}
}

func TestBuildGridSinglePixel(t *testing.T) {
	lats, lons, hgts, err := buildGrid(10, 20, 30, 40, 1, 1, 5)
	if err != nil {
		t.Fatalf("buildGrid: %v", err)
	}
	if lats.Data[0] != 15 || lons.Data[0] != 35 || hgts.Data[0] != 5 {
		t.Fatalf("single pixel = (%v, %v, %v), want (15, 35, 5)", lats.Data, lons.Data, hgts.Data)
	}
}
