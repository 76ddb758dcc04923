package scene

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	errs "github.com/23skdu/bandcluster/internal/errors"
)

// Options select bands from a tabular source where each row is one pixel in
// row-major order and each column is one band.
type Options struct {
	Width int
	// Bands lists the columns to use, in feature order. Empty means every
	// numeric column in schema order.
	Bands []string
	// NoData holds per-band no-data values.
	NoData map[string]float64
}

func (o Options) band(name string, values []float64) Band {
	b := Band{Name: name, Values: values}
	if nd, ok := o.NoData[name]; ok {
		b.NoData = nd
		b.HasNoData = true
	}
	return b
}

// FromRecords builds a scene from Arrow record batches sharing one schema.
// Null cells become invalid pixels.
func FromRecords(recs []arrow.Record, opts Options) (*Scene, error) {
	const op = "scene.FromRecords"
	if len(recs) == 0 {
		return nil, errs.WrapValidationError(ErrNoBands, op, "no record batches")
	}

	schema := recs[0].Schema()
	names := opts.Bands
	if len(names) == 0 {
		for _, f := range schema.Fields() {
			if isNumeric(f.Type) {
				names = append(names, f.Name)
			}
		}
	}

	var rows int64
	for _, rec := range recs {
		rows += rec.NumRows()
	}

	bands := make([]Band, 0, len(names))
	for _, name := range names {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, errs.WrapValidationError(ErrUnknownBand, op, "missing band column").WithContext("band", name)
		}
		values := make([]float64, 0, rows)
		for _, rec := range recs {
			var err error
			values, err = appendColumn(values, rec.Column(idx[0]))
			if err != nil {
				return nil, errs.WrapValidationError(err, op, "cannot read band column").WithContext("band", name)
			}
		}
		bands = append(bands, opts.band(name, values))
	}

	return New(opts.Width, bands)
}

func isNumeric(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64,
		arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	default:
		return false
	}
}

// appendColumn converts col to float64 and appends it to dst. Nulls become
// NaN so that the mask excludes them.
func appendColumn(dst []float64, col arrow.Array) ([]float64, error) {
	n := col.Len()
	var get func(i int) float64
	switch arr := col.(type) {
	case *array.Float64:
		get = arr.Value
	case *array.Float32:
		get = func(i int) float64 { return float64(arr.Value(i)) }
	case *array.Float16:
		get = func(i int) float64 { return float64(arr.Value(i).Float32()) }
	case *array.Int8:
		get = func(i int) float64 { return float64(arr.Value(i)) }
	case *array.Int16:
		get = func(i int) float64 { return float64(arr.Value(i)) }
	case *array.Int32:
		get = func(i int) float64 { return float64(arr.Value(i)) }
	case *array.Int64:
		get = func(i int) float64 { return float64(arr.Value(i)) }
	case *array.Uint8:
		get = func(i int) float64 { return float64(arr.Value(i)) }
	case *array.Uint16:
		get = func(i int) float64 { return float64(arr.Value(i)) }
	case *array.Uint32:
		get = func(i int) float64 { return float64(arr.Value(i)) }
	case *array.Uint64:
		get = func(i int) float64 { return float64(arr.Value(i)) }
	default:
		return dst, ErrUnsupportedType
	}

	for i := 0; i < n; i++ {
		if col.IsNull(i) {
			dst = append(dst, math.NaN())
			continue
		}
		dst = append(dst, get(i))
	}
	return dst, nil
}
