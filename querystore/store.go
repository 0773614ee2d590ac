package querystore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/losrays/core"
	"github.com/signalsfoundry/losrays/internal/logging"
	"github.com/signalsfoundry/losrays/internal/observability"
	"github.com/signalsfoundry/losrays/model"
)

var (
	ErrIO               = errors.New("query-point dataset I/O failure")
	ErrEmptyGrid        = errors.New("ground-point grid has a zero-length axis")
	ErrChunkShape       = errors.New("invalid chunk shape")
	ErrMalformedDataset = errors.New("malformed query-point dataset")
)

// IOError reports a filesystem failure while reading or writing a dataset.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%v: %s %s: %v", ErrIO, e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// MetricsRecorder receives one observation per dataset write.
type MetricsRecorder interface {
	ObserveWrite(operation string, pixels int, start time.Time, err error)
}

type options struct {
	chunk   model.Shape
	epsg    int
	log     logging.Logger
	metrics MetricsRecorder
}

// Option customises Write and WriteRays.
type Option func(*options)

// WithChunkShape records the storage chunk shape. It must have one positive
// extent per pixel axis. Without it the dataset is marked contiguous.
func WithChunkShape(shape model.Shape) Option {
	return func(o *options) {
		o.chunk = append(model.Shape(nil), shape...)
	}
}

// WithEPSG selects the spatial reference. Only EPSG:4326 is supported.
func WithEPSG(code int) Option {
	return func(o *options) {
		o.epsg = code
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func newOptions(opts []Option) *options {
	o := &options{epsg: core.EPSGWGS84, log: logging.Noop()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func (o *options) observe(op string, pixels int, start time.Time, err error) {
	if o.metrics != nil {
		o.metrics.ObserveWrite(op, pixels, start, err)
	}
}

// Write validates the ground points and LOS, then persists them with
// zero-filled Rays_SP, Rays_len and Rays_SLV placeholders for WriteRays to
// populate. Parent directories are created and an existing file is
// replaced; on failure nothing is left at path.
func Write(ctx context.Context, path string, lats, lons, hgts model.Array, los model.LOS, opts ...Option) (err error) {
	o := newOptions(opts)
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "querystore.Write",
		attribute.String("path", path),
		attribute.String("shape", hgts.Shape.String()),
	)
	defer func() {
		o.observe("write", hgts.Len(), start, err)
		observability.EndSpan(span, err)
	}()

	if err := core.CheckShapes(los, lats, lons, hgts); err != nil {
		return err
	}
	if _, err := core.CheckLOS(los, hgts.Len()); err != nil {
		return err
	}
	ref, err := core.ResolveReferenceSystem(o.epsg)
	if err != nil {
		return err
	}
	if err := checkGrid(hgts.Shape, o.chunk); err != nil {
		return err
	}

	d := newDataset(hgts.Shape, lats, lons, hgts, los, ref, o.chunk)
	if err := replaceFile(path, d); err != nil {
		return err
	}

	o.log.Info(ctx, "query-point dataset written",
		logging.String("path", path),
		logging.String("shape", d.Shape.String()),
		logging.Int("pixels", d.NumRays),
		logging.String("los", los.String()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Read loads a dataset and all of its attributes.
func Read(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	d, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// WriteRays fills the ray start positions, lengths and unit look vectors of
// an existing dataset. The setup must cover the stored pixel shape. The
// file is rewritten through the same all-or-nothing path as Write.
func WriteRays(ctx context.Context, path string, setup *core.RaySetup, opts ...Option) (err error) {
	o := newOptions(opts)
	start := time.Now()
	pixels := 0
	ctx, span := observability.StartSpan(ctx, "querystore.WriteRays", attribute.String("path", path))
	defer func() {
		o.observe("rays", pixels, start, err)
		observability.EndSpan(span, err)
	}()

	if setup == nil {
		return fmt.Errorf("%w: no ray setup for %s", core.ErrShapeMismatch, path)
	}
	d, err := Read(path)
	if err != nil {
		return err
	}
	pixels = d.NumRays

	n := d.Shape.Size()
	if !setup.Shape.Equal(d.Shape) || len(setup.Start) != n || len(setup.SLV) != n || len(setup.Length) != n {
		return fmt.Errorf("%w: dataset pixel shape %s, ray setup shape %s with %d starts, %d look vectors and %d lengths",
			core.ErrShapeMismatch, d.Shape, setup.Shape, len(setup.Start), len(setup.SLV), len(setup.Length))
	}

	for i := 0; i < n; i++ {
		sp, slv := setup.Start[i], setup.SLV[i]
		copy(d.RaysSP.Data[3*i:3*i+3], []float64{sp.X, sp.Y, sp.Z})
		copy(d.RaysSLV.Data[3*i:3*i+3], []float64{slv.X, slv.Y, slv.Z})
	}
	copy(d.RaysLen.Data, setup.Length)

	if err := replaceFile(path, d); err != nil {
		return err
	}

	o.log.Info(ctx, "ray parameters written",
		logging.String("path", path),
		logging.Int("pixels", n),
		logging.Float("max_length_m", setup.MaxLength()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func checkGrid(shape, chunk model.Shape) error {
	for _, d := range shape {
		if d == 0 {
			return fmt.Errorf("%w: shape %s", ErrEmptyGrid, shape)
		}
	}
	if chunk == nil {
		return nil
	}
	if len(chunk) != len(shape) {
		return fmt.Errorf("%w: chunk %s has rank %d, grid %s has rank %d", ErrChunkShape, chunk, len(chunk), shape, len(shape))
	}
	for _, c := range chunk {
		if c < 1 {
			return fmt.Errorf("%w: chunk %s has a non-positive extent", ErrChunkShape, chunk)
		}
	}
	return nil
}

// replaceFile encodes d into a temporary file next to path and renames it
// into place.
func replaceFile(path string, d *Dataset) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := encode(tmp, d); err != nil {
		return &IOError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Chmod(0o644); err != nil {
		return &IOError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &IOError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		committed = true
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	committed = true
	return nil
}
