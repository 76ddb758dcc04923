package scene

import (
	"errors"
	"io"
	"math"

	"github.com/parquet-go/parquet-go"

	errs "github.com/23skdu/bandcluster/internal/errors"
)

const parquetBatchRows = 4096

// ReadParquet loads a scene from a Parquet file holding one row per pixel
// and one numeric column per band. Null cells become invalid pixels.
func ReadParquet(r io.ReaderAt, size int64, opts Options) (*Scene, error) {
	const op = "scene.ReadParquet"
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, errs.WrapStorageError(err, op, "cannot open parquet file")
	}

	schema := pf.Schema()
	names := opts.Bands
	if len(names) == 0 {
		for _, col := range schema.Columns() {
			if len(col) != 1 {
				continue
			}
			if leaf, ok := schema.Lookup(col[0]); ok && isNumericLeaf(leaf.Node) {
				names = append(names, col[0])
			}
		}
	}

	columns := make([]int, len(names))
	for i, name := range names {
		leaf, ok := schema.Lookup(name)
		if !ok {
			return nil, errs.WrapValidationError(ErrUnknownBand, op, "missing band column").WithContext("band", name)
		}
		columns[i] = leaf.ColumnIndex
	}
	byColumn := make(map[int]int, len(columns))
	for band, col := range columns {
		byColumn[col] = band
	}

	total := pf.NumRows()
	values := make([][]float64, len(names))
	for i := range values {
		values[i] = make([]float64, 0, total)
	}

	rows := make([]parquet.Row, parquetBatchRows)
	for _, rg := range pf.RowGroups() {
		if err := readRowGroup(rg, rows, byColumn, values); err != nil {
			return nil, errs.WrapStorageError(err, op, "cannot read rows")
		}
	}

	bands := make([]Band, len(names))
	for i, name := range names {
		bands[i] = opts.band(name, values[i])
	}
	return New(opts.Width, bands)
}

// isNumericLeaf reports whether a leaf column can be decoded as a band.
func isNumericLeaf(n parquet.Node) bool {
	switch n.Type().Kind() {
	case parquet.Double, parquet.Float, parquet.Int32, parquet.Int64:
		return true
	default:
		return false
	}
}

// readRowGroup appends one value per band for every row of rg.
func readRowGroup(rg parquet.RowGroup, buf []parquet.Row, byColumn map[int]int, values [][]float64) error {
	rows := rg.Rows()
	defer func() { _ = rows.Close() }()

	for {
		n, readErr := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			for band := range values {
				values[band] = append(values[band], math.NaN())
			}
			for _, v := range row {
				band, ok := byColumn[v.Column()]
				if !ok {
					continue
				}
				x, err := parquetFloat(v)
				if err != nil {
					return err
				}
				values[band][len(values[band])-1] = x
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

func parquetFloat(v parquet.Value) (float64, error) {
	if v.IsNull() {
		return math.NaN(), nil
	}
	switch v.Kind() {
	case parquet.Double:
		return v.Double(), nil
	case parquet.Float:
		return float64(v.Float()), nil
	case parquet.Int32:
		return float64(v.Int32()), nil
	case parquet.Int64:
		return float64(v.Int64()), nil
	default:
		return 0, ErrUnsupportedType
	}
}

// WriteParquet writes s with one required double column per band and one row
// per pixel. Invalid pixels are written as they are stored.
func WriteParquet(w io.Writer, s *Scene) error {
	const op = "scene.WriteParquet"
	group := make(parquet.Group, len(s.Bands))
	for _, b := range s.Bands {
		group[b.Name] = parquet.Compressed(parquet.Leaf(parquet.DoubleType), &parquet.Zstd)
	}
	schema := parquet.NewSchema("scene", group)

	columns := make([]int, len(s.Bands))
	for i, b := range s.Bands {
		leaf, _ := schema.Lookup(b.Name)
		columns[i] = leaf.ColumnIndex
	}

	pw := parquet.NewWriter(w, schema)
	rows := make([]parquet.Row, 0, parquetBatchRows)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		_, err := pw.WriteRows(rows)
		rows = rows[:0]
		return err
	}

	for i := 0; i < s.Len(); i++ {
		row := make(parquet.Row, len(s.Bands))
		for b, band := range s.Bands {
			row[columns[b]] = parquet.ValueOf(band.Values[i]).Level(0, 0, columns[b])
		}
		rows = append(rows, row)
		if len(rows) == cap(rows) {
			if err := flush(); err != nil {
				_ = pw.Close()
				return errs.WrapStorageError(err, op, "cannot write rows")
			}
		}
	}
	if err := flush(); err != nil {
		_ = pw.Close()
		return errs.WrapStorageError(err, op, "cannot write rows")
	}
	if err := pw.Close(); err != nil {
		return errs.WrapStorageError(err, op, "cannot close writer")
	}
	return nil
}
