package storage

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	errs "github.com/23skdu/bandcluster/internal/errors"
	"github.com/23skdu/bandcluster/internal/kmeans"
	bcmem "github.com/23skdu/bandcluster/internal/memory"
)

// ClustersSchema returns the Arrow schema of a cluster record with
// centroids of length dims.
func ClustersSchema(dims int) *arrow.Schema {
	md := arrow.NewMetadata([]string{"bandcluster.entry_type"}, []string{"clusters"})
	return arrow.NewSchema([]arrow.Field{
		{Name: "rank", Type: arrow.PrimitiveTypes.Int32},
		{Name: "member_count", Type: arrow.PrimitiveTypes.Int64},
		{Name: "centroid", Type: arrow.FixedSizeListOf(int32(dims), arrow.PrimitiveTypes.Float64)},
	}, &md)
}

// ClustersRecord builds an Arrow record holding set in rank order. The
// caller releases it.
func ClustersRecord(mem memory.Allocator, set kmeans.ClusterSet) (arrow.Record, error) {
	if err := checkCentroids(set); err != nil {
		return nil, errs.WrapValidationError(err, "storage.ClustersRecord", "invalid cluster set")
	}
	dims := 0
	if len(set) > 0 {
		dims = len(set[0].Centroid)
	}

	b := array.NewRecordBuilder(mem, ClustersSchema(dims))
	defer b.Release()

	rankBuilder := b.Field(0).(*array.Int32Builder)
	countBuilder := b.Field(1).(*array.Int64Builder)
	centroidBuilder := b.Field(2).(*array.FixedSizeListBuilder)
	valueBuilder := centroidBuilder.ValueBuilder().(*array.Float64Builder)

	for i, c := range set {
		rankBuilder.Append(int32(i))
		countBuilder.Append(int64(c.MemberCount))
		centroidBuilder.Append(true)
		valueBuilder.AppendValues(c.Centroid, nil)
	}
	return b.NewRecord(), nil
}

// ClustersFromRecord converts a record with the ClustersSchema layout back
// into a cluster set.
func ClustersFromRecord(rec arrow.Record) (kmeans.ClusterSet, error) {
	return clustersFromRecord(rec, 0)
}

// clustersFromRecord expects the record's first rank to be base.
func clustersFromRecord(rec arrow.Record, base int) (kmeans.ClusterSet, error) {
	const op = "storage.ClustersFromRecord"
	if rec.NumCols() != 3 {
		return nil, errs.WrapStorageError(ErrSchemaMismatch, op, "unexpected column count").
			WithContext("columns", rec.NumCols())
	}
	ranks, ok1 := rec.Column(0).(*array.Int32)
	counts, ok2 := rec.Column(1).(*array.Int64)
	centroids, ok3 := rec.Column(2).(*array.FixedSizeList)
	if !ok1 || !ok2 || !ok3 {
		return nil, errs.WrapStorageError(ErrSchemaMismatch, op, "unexpected column types").
			WithContext("schema", rec.Schema().String())
	}
	values, ok := centroids.ListValues().(*array.Float64)
	if !ok {
		return nil, errs.WrapStorageError(ErrSchemaMismatch, op, "centroid values are not float64")
	}
	dims := int(centroids.DataType().(*arrow.FixedSizeListType).Len())

	rows := int(rec.NumRows())
	set := make(kmeans.ClusterSet, rows)
	for i := 0; i < rows; i++ {
		if int(ranks.Value(i)) != base+i {
			return nil, errs.WrapStorageError(ErrRankOutOfOrder, op, "invalid cluster record").
				WithContext("row", i).
				WithContext("rank", ranks.Value(i))
		}
		start, _ := centroids.ValueOffsets(i)
		centroid := make(kmeans.FeatureVector, dims)
		copy(centroid, values.Float64Values()[start:start+int64(dims)])
		set[i] = kmeans.Cluster{Centroid: centroid, MemberCount: int(counts.Value(i))}
	}
	return set, nil
}

// WriteClustersIPC writes set as a single-record Arrow IPC stream.
func WriteClustersIPC(w io.Writer, set kmeans.ClusterSet) error {
	const op = "storage.WriteClustersIPC"
	mem := bcmem.NewTrackingAllocator(nil)
	rec, err := ClustersRecord(mem, set)
	if err != nil {
		return err
	}
	defer rec.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return errs.WrapStorageError(err, op, "write record")
	}
	if err := writer.Close(); err != nil {
		return errs.WrapStorageError(err, op, "close writer")
	}
	return nil
}

// ReadClustersIPC reads a cluster set from an Arrow IPC stream. A stream
// may split the set over several records as long as ranks stay contiguous.
func ReadClustersIPC(r io.Reader) (kmeans.ClusterSet, error) {
	const op = "storage.ReadClustersIPC"
	mem := bcmem.NewTrackingAllocator(nil)
	reader, err := ipc.NewReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, errs.WrapStorageError(err, op, "open stream")
	}
	defer reader.Release()

	var set kmeans.ClusterSet
	for reader.Next() {
		part, err := clustersFromRecord(reader.Record(), len(set))
		if err != nil {
			return nil, err
		}
		set = append(set, part...)
	}
	if err := reader.Err(); err != nil && err != io.EOF {
		return nil, errs.WrapStorageError(err, op, "read record")
	}
	if set == nil {
		set = kmeans.ClusterSet{}
	}
	return set, nil
}
