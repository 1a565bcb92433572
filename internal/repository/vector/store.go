// Package vector owns all qdrant operations. Vectors are keyed by a
// deterministic UUID derived from the document id; the raw doc_id always
// travels in the payload so deletes and hydration work by document.
package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/knowd-io/knowd/internal/domain"
)

// Store is a qdrant-backed vector store.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	root        pb.QdrantClient
	collection  string
}

// New creates a Store connected to qdrant at the given gRPC address.
func New(addr, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vector: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		root:        pb.NewQdrantClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// HealthCheck verifies the qdrant server responds.
func (s *Store) HealthCheck(ctx context.Context) error {
	if _, err := s.root.HealthCheck(ctx, &pb.HealthCheckRequest{}); err != nil {
		return fmt.Errorf("%w: health check: %w", domain.ErrVectorStoreUnavailable, err)
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("vector: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vector: create collection %s: %w", s.collection, err)
	}
	return nil
}

// Upsert stores one vector record, replacing any previous vector for the
// same document (last-write-wins).
func (s *Store) Upsert(ctx context.Context, rec domain.VectorRecord) error {
	payload := toPayload(rec.Payload)
	payload["doc_id"] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: rec.DocID}}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(rec.DocID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: rec.Embedding},
				},
			},
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %w", domain.ErrVectorStoreUnavailable, rec.DocID, err)
	}
	return nil
}

// Query performs k-NN similarity search with optional payload filters and tags.
func (s *Store) Query(
	ctx context.Context, embedding []float32, topK int,
	filters map[string]any, tags []string,
) ([]domain.Match, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	var must []*pb.Condition
	for k, val := range filters {
		must = append(must, fieldMatch(k, fmt.Sprint(val)))
	}
	if len(tags) > 0 {
		must = append(must, tagMatch(tags))
	}
	if len(must) > 0 {
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", domain.ErrVectorStoreUnavailable, err)
	}

	matches := make([]domain.Match, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		m := domain.Match{
			Score:   r.GetScore(),
			Payload: make(map[string]any),
		}
		for k, val := range r.GetPayload() {
			if k == "doc_id" {
				m.DocID = val.GetStringValue()
				continue
			}
			m.Payload[k] = fromValue(val)
		}
		matches[i] = m
	}
	return matches, nil
}

// Delete removes the vector for docID by payload filter, so it works even
// if the point id scheme ever changes.
func (s *Store) Delete(ctx context.Context, docID string) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{fieldMatch("doc_id", docID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %w", domain.ErrVectorStoreUnavailable, docID, err)
	}
	return nil
}

// pointID derives a stable UUID from the caller-assigned document id, so
// re-saving a document overwrites its point instead of accumulating copies.
func pointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String()
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

// tagMatch matches any of the given tags against the "tag" payload field.
func tagMatch(tags []string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: "tag",
				Match: &pb.Match{
					MatchValue: &pb.Match_Keywords{
						Keywords: &pb.RepeatedStrings{Strings: tags},
					},
				},
			},
		},
	}
}

func toPayload(m map[string]any) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(m)+1)
	for k, val := range m {
		switch tv := val.(type) {
		case string:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case int64:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
		case float64:
			payload[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		case bool:
			payload[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
		default:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return payload
}

func fromValue(v *pb.Value) any {
	switch kind := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	default:
		return v.String()
	}
}
