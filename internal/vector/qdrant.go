package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/genbatech/chie/internal/models"
)

// pointIDNamespace derives stable Qdrant point UUIDs from chunk IDs, so
// re-adding a chunk overwrites its point instead of duplicating it.
var pointIDNamespace = uuid.MustParse("9e7c6a41-31b2-4f0e-8a3d-5c2e1f6b8d90")

// QdrantIndex implements Index against a Qdrant server over gRPC. The
// collection is created with cosine distance, so scores returned by the
// server are cosine similarities.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimensions  int
}

// NewQdrantIndex connects to Qdrant at addr and ensures the collection exists.
func NewQdrantIndex(ctx context.Context, addr, collection string, dimensions int) (*QdrantIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", addr, err)
	}
	q := &QdrantIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dimensions:  dimensions,
	}
	if err := q.ensureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return q, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}
	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.dimensions),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}
	return nil
}

// Add upserts entries as points. Chunk and document IDs travel in the payload
// since Qdrant point IDs must be UUIDs.
func (q *QdrantIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(entries))
	for i, e := range entries {
		if len(e.Vector) != q.dimensions {
			return fmt.Errorf("vector for chunk %s has %d dimensions, index expects %d: %w",
				e.ChunkID, len(e.Vector), q.dimensions, models.ErrDimensionMismatch)
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewSHA1(pointIDNamespace, []byte(e.ChunkID)).String()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: e.Vector},
				},
			},
			Payload: map[string]*pb.Value{
				"chunk_id":    {Kind: &pb.Value_StringValue{StringValue: e.ChunkID}},
				"document_id": {Kind: &pb.Value_StringValue{StringValue: e.DocumentID}},
			},
		}
	}
	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(entries), err)
	}
	return nil
}

// Search runs k-NN search and converts similarity scores to cosine distance.
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != q.dimensions {
		return nil, fmt.Errorf("query has %d dimensions, index expects %d: %w",
			len(query), q.dimensions, models.ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, nil
	}
	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         query,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	results := make([]*Result, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		payload := r.GetPayload()
		results = append(results, &Result{
			ChunkID:    payload["chunk_id"].GetStringValue(),
			DocumentID: payload["document_id"].GetStringValue(),
			Distance:   1 - float64(r.GetScore()),
		})
	}
	return results, nil
}

// Remove deletes points by their chunk IDs.
func (q *QdrantIndex) Remove(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	ids := make([]*pb.PointId, len(chunkIDs))
	for i, id := range chunkIDs {
		ids[i] = &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewSHA1(pointIDNamespace, []byte(id)).String()},
		}
	}
	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: ids},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete %d points: %w", len(chunkIDs), err)
	}
	return nil
}

// Save is a no-op; Qdrant persists server-side.
func (q *QdrantIndex) Save(path string) error {
	return nil
}

// Load is a no-op; Qdrant persists server-side.
func (q *QdrantIndex) Load(path string) error {
	return nil
}

// Size returns the point count, or 0 if the server cannot be reached.
func (q *QdrantIndex) Size() int {
	exact := true
	resp, err := q.points.Count(context.Background(), &pb.CountPoints{
		CollectionName: q.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0
	}
	return int(resp.GetResult().GetCount())
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}
