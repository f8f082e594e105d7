// Package semantic owns all Qdrant operations: the hybrid vector
// collections that hold embedded statute, sub-statute, and precedent
// text with flat filterable payloads. The index is a read-optimized
// projection of the relational store, never the source of truth for
// section existence disputes.
package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/NyayaAI/nyaya-core/engine/domain"
)

// pointsAPI is the slice of pb.PointsClient the store needs.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
	CreateFieldIndex(ctx context.Context, in *pb.CreateFieldIndexCollection, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
}

// collectionsAPI is the slice of pb.CollectionsClient the store needs.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store is the sole owner of Qdrant access.
type Store struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
}

// New dials Qdrant at the given gRPC address.
func New(addr string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

// NewWithClients builds a Store over injected clients, for tests.
func NewWithClients(points pointsAPI, collections collectionsAPI) *Store {
	return &Store{points: points, collections: collections}
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// indexedFields are the payload fields that must be separately indexed
// so filtered lookups stay O(log n).
var indexedFields = map[string]pb.FieldType{
	"act_code":         pb.FieldType_FieldTypeKeyword,
	"section_number":   pb.FieldType_FieldTypeKeyword,
	"era":              pb.FieldType_FieldTypeKeyword,
	"is_offence":       pb.FieldType_FieldTypeBool,
	"is_cognizable":    pb.FieldType_FieldTypeBool,
	"applicable_from":  pb.FieldType_FieldTypeFloat,
	"applicable_until": pb.FieldType_FieldTypeFloat,
}

// EnsureCollection creates a hybrid collection (named dense + sparse
// vectors) and its payload indexes if it does not already exist.
func (s *Store) EnsureCollection(ctx context.Context, name string, dims int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	exists := false
	for _, c := range list.GetCollections() {
		if c.GetName() == name {
			exists = true
			break
		}
	}

	if !exists {
		_, err = s.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: name,
			VectorsConfig: &pb.VectorsConfig{
				Config: &pb.VectorsConfig_ParamsMap{
					ParamsMap: &pb.VectorParamsMap{
						Map: map[string]*pb.VectorParams{
							DenseVector: {
								Size:     uint64(dims),
								Distance: pb.Distance_Cosine,
							},
						},
					},
				},
			},
			SparseVectorsConfig: &pb.SparseVectorConfig{
				Map: map[string]*pb.SparseVectorParams{
					SparseVector: {},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("semantic: create collection %s: %w", name, err)
		}
	}

	for field, ft := range indexedFields {
		ftCopy := ft
		_, err := s.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      field,
			FieldType:      &ftCopy,
		})
		if err != nil {
			return fmt.Errorf("semantic: index payload field %s.%s: %w", name, field, err)
		}
	}
	return nil
}

// Upsert writes records into a collection. Callers derive point IDs
// deterministically from the source identity, so re-ingestion of the
// same record overwrites rather than duplicates.
func (s *Store) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vectors{
					Vectors: &pb.NamedVectors{
						Vectors: map[string]*pb.Vector{
							DenseVector: {Data: r.Dense},
							SparseVector: {
								Data:    r.SparseValues,
								Indices: &pb.SparseIndices{Data: r.SparseIndices},
							},
						},
					},
				},
			},
			Payload: toPayload(r.Payload),
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points into %s: %w", len(records), collection, err)
	}
	return nil
}

// DeleteBySection removes all points for one section, used before
// re-ingesting an amended section.
func (s *Store) DeleteBySection(ctx context.Context, collection, actCode, sectionNumber string) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						keywordMatch("act_code", actCode),
						keywordMatch("section_number", sectionNumber),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete %s s.%s from %s: %w", actCode, sectionNumber, collection, err)
	}
	return nil
}

// SearchDense runs filtered cosine similarity over the dense vectors.
func (s *Store) SearchDense(ctx context.Context, collection string, vector []float32, limit uint64, f Filter) ([]Hit, error) {
	name := DenseVector
	req := &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		VectorName:     &name,
		Limit:          limit,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter:         f.conditions(),
	}
	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: dense search %s: %v", domain.ErrIndexUnavailable, collection, err)
	}
	return hitsFrom(resp), nil
}

// SearchSparse runs filtered term matching over the sparse vectors.
func (s *Store) SearchSparse(ctx context.Context, collection string, indices []uint32, values []float32, limit uint64, f Filter) ([]Hit, error) {
	name := SparseVector
	req := &pb.SearchPoints{
		CollectionName: collection,
		Vector:         values,
		SparseIndices:  &pb.SparseIndices{Data: indices},
		VectorName:     &name,
		Limit:          limit,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter:         f.conditions(),
	}
	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: sparse search %s: %v", domain.ErrIndexUnavailable, collection, err)
	}
	return hitsFrom(resp), nil
}

// Exists is the verifier's fast path: an exact count on the payload
// index, no scoring, no vectors.
func (s *Store) Exists(ctx context.Context, collection, actCode, sectionNumber string) (bool, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: collection,
		Exact:          &exact,
		Filter: &pb.Filter{
			Must: []*pb.Condition{
				keywordMatch("act_code", actCode),
				keywordMatch("section_number", sectionNumber),
			},
		},
	})
	if err != nil {
		return false, fmt.Errorf("%w: count %s s.%s in %s: %v", domain.ErrIndexUnavailable, actCode, sectionNumber, collection, err)
	}
	return resp.GetResult().GetCount() > 0, nil
}

// --- filter and payload plumbing ---

func (f Filter) conditions() *pb.Filter {
	var must []*pb.Condition
	if f.ActCode != "" {
		must = append(must, keywordMatch("act_code", f.ActCode))
	}
	if f.SectionNumber != "" {
		must = append(must, keywordMatch("section_number", f.SectionNumber))
	}
	if f.Era != "" {
		must = append(must, keywordMatch("era", string(f.Era)))
	}
	if f.IsOffence != nil {
		must = append(must, boolMatch("is_offence", *f.IsOffence))
	}
	if f.IsCognizable != nil {
		must = append(must, boolMatch("is_cognizable", *f.IsCognizable))
	}
	if f.OnDate != nil {
		at := float64(f.OnDate.Unix())
		must = append(must,
			rangeCondition("applicable_from", nil, &at),
			rangeCondition("applicable_until", &at, nil),
		)
	}
	if len(must) == 0 {
		return nil
	}
	return &pb.Filter{Must: must}
}

func keywordMatch(key, value string) *pb.Condition {
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

func boolMatch(key string, value bool) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Boolean{Boolean: value},
				},
			},
		},
	}
}

// rangeCondition builds gte <= field <= lte with either bound optional.
func rangeCondition(key string, gte, lte *float64) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Range: &pb.Range{Gte: gte, Lte: lte},
			},
		},
	}
}

func toPayload(m map[string]any) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(m))
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

func hitsFrom(resp *pb.SearchResponse) []Hit {
	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		h := Hit{
			ID:    r.GetId().GetUuid(),
			Score: r.GetScore(),
		}
		p := r.GetPayload()
		h.Payload = Payload{
			ActCode:         p["act_code"].GetStringValue(),
			SectionNumber:   p["section_number"].GetStringValue(),
			Era:             domain.Era(p["era"].GetStringValue()),
			Title:           p["title"].GetStringValue(),
			Content:         p["content"].GetStringValue(),
			ChunkIndex:      int(p["chunk_index"].GetIntegerValue()),
			SubSection:      p["sub_section"].GetStringValue(),
			IsOffence:       p["is_offence"].GetBoolValue(),
			IsCognizable:    p["is_cognizable"].GetBoolValue(),
			IsBailable:      p["is_bailable"].GetBoolValue(),
			TriableBy:       p["triable_by"].GetStringValue(),
			ApplicableFrom:  p["applicable_from"].GetIntegerValue(),
			ApplicableUntil: p["applicable_until"].GetIntegerValue(),
		}
		hits[i] = h
	}
	return hits
}
