package storage

import (
	"io"

	"github.com/parquet-go/parquet-go"

	errs "github.com/23skdu/bandcluster/internal/errors"
	"github.com/23skdu/bandcluster/internal/kmeans"
)

// ClusterRecord represents a single cluster for Parquet serialization
type ClusterRecord struct {
	Rank        int32     `parquet:"rank"`
	MemberCount int64     `parquet:"member_count"`
	Centroid    []float64 `parquet:"centroid"`
}

// LabelRecord represents one classified pixel
type LabelRecord struct {
	Pixel int64 `parquet:"pixel"`
	X     int32 `parquet:"x"`
	Y     int32 `parquet:"y"`
	Class int32 `parquet:"class"`
}

// labelBatch is the number of label rows buffered per write.
const labelBatch = 8192

// WriteClustersParquet writes set in rank order, one row per cluster.
func WriteClustersParquet(w io.Writer, set kmeans.ClusterSet) error {
	const op = "storage.WriteClustersParquet"
	if err := checkCentroids(set); err != nil {
		return errs.WrapValidationError(err, op, "invalid cluster set")
	}

	pw := parquet.NewGenericWriter[ClusterRecord](w, parquet.Compression(&parquet.Zstd))
	rows := make([]ClusterRecord, len(set))
	for i, c := range set {
		rows[i] = ClusterRecord{
			Rank:        int32(i),
			MemberCount: int64(c.MemberCount),
			Centroid:    c.Centroid,
		}
	}
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return errs.WrapStorageError(err, op, "write rows")
	}
	if err := pw.Close(); err != nil {
		return errs.WrapStorageError(err, op, "close writer")
	}
	return nil
}

// ReadClustersParquet reads a cluster set written by WriteClustersParquet.
// Rows must carry the ranks 0..n-1 in order.
func ReadClustersParquet(r io.ReaderAt, size int64) (kmeans.ClusterSet, error) {
	const op = "storage.ReadClustersParquet"
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, errs.WrapStorageError(err, op, "open parquet file")
	}

	pr := parquet.NewGenericReader[ClusterRecord](pf)
	defer pr.Close()

	rows := make([]ClusterRecord, pr.NumRows())
	n, err := pr.Read(rows)
	if err != nil && err != io.EOF {
		return nil, errs.WrapStorageError(err, op, "read rows")
	}
	rows = rows[:n]

	set := make(kmeans.ClusterSet, len(rows))
	for i, row := range rows {
		if int(row.Rank) != i {
			return nil, errs.WrapStorageError(ErrRankOutOfOrder, op, "invalid cluster file").
				WithContext("row", i).
				WithContext("rank", row.Rank)
		}
		set[i] = kmeans.Cluster{
			Centroid:    kmeans.FeatureVector(row.Centroid),
			MemberCount: int(row.MemberCount),
		}
	}
	if err := checkCentroids(set); err != nil {
		return nil, errs.WrapStorageError(err, op, "invalid cluster file")
	}
	return set, nil
}

// WriteLabelsParquet writes one row per pixel with its coordinates and class.
func WriteLabelsParquet(w io.Writer, classes []int32, width int) error {
	const op = "storage.WriteLabelsParquet"
	if width <= 0 {
		return errs.WrapValidationError(ErrUnsupportedWidth, op, "invalid width").WithContext("width", width)
	}
	if len(classes)%width != 0 {
		return errs.WrapValidationError(ErrLabelsLength, op, "ragged labels").
			WithContext("labels", len(classes)).
			WithContext("width", width)
	}

	pw := parquet.NewGenericWriter[LabelRecord](w, parquet.Compression(&parquet.Zstd))
	buf := make([]LabelRecord, 0, labelBatch)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		_, err := pw.Write(buf)
		buf = buf[:0]
		return err
	}

	for i, k := range classes {
		buf = append(buf, LabelRecord{
			Pixel: int64(i),
			X:     int32(i % width),
			Y:     int32(i / width),
			Class: k,
		})
		if len(buf) == labelBatch {
			if err := flush(); err != nil {
				_ = pw.Close()
				return errs.WrapStorageError(err, op, "write rows")
			}
		}
	}
	if err := flush(); err != nil {
		_ = pw.Close()
		return errs.WrapStorageError(err, op, "write rows")
	}
	if err := pw.Close(); err != nil {
		return errs.WrapStorageError(err, op, "close writer")
	}
	return nil
}

// ReadLabelsParquet returns the class column of a labels file in pixel
// order.
func ReadLabelsParquet(r io.ReaderAt, size int64) ([]int32, error) {
	const op = "storage.ReadLabelsParquet"
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, errs.WrapStorageError(err, op, "open parquet file")
	}

	pr := parquet.NewGenericReader[LabelRecord](pf)
	defer pr.Close()

	classes := make([]int32, pr.NumRows())
	buf := make([]LabelRecord, labelBatch)
	for {
		n, err := pr.Read(buf)
		for _, row := range buf[:n] {
			if row.Pixel < 0 || row.Pixel >= int64(len(classes)) {
				return nil, errs.WrapStorageError(ErrSchemaMismatch, op, "pixel index out of range").
					WithContext("pixel", row.Pixel)
			}
			classes[row.Pixel] = row.Class
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.WrapStorageError(err, op, "read rows")
		}
		if n == 0 {
			break
		}
	}
	return classes, nil
}

func checkCentroids(set kmeans.ClusterSet) error {
	for _, c := range set[min(1, len(set)):] {
		if len(c.Centroid) != len(set[0].Centroid) {
			return ErrRaggedCentroids
		}
	}
	return nil
}
