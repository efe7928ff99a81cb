package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// QdrantConnectionConfig holds configuration for the Qdrant connection.
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API key, implies TLS
	UseTLS          bool
	VectorDimension int
}

// TemplatePayload is stored alongside each template vector.
type TemplatePayload struct {
	TemplateID string
	ClientID   string
	Category   string
	Importance string
}

// TemplateHit is one nearest-neighbour result.
type TemplateHit struct {
	TemplateID string
	Score      float32
	Payload    TemplatePayload
}

func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository mirrors active template embeddings into a Qdrant
// collection so nearest templates can be found without a full scan.
// The relational store stays the source of truth.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository dials Qdrant. Local instances use plaintext; an API key
// or UseTLS switches to TLS 1.3.
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	if cfg.VectorDimension <= 0 {
		return nil, fmt.Errorf("qdrant: vector dimension must be positive")
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS13,
		})))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: cfg.VectorDimension,
	}, nil
}

// Close closes the gRPC connection.
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection when missing and verifies the
// vector size of an existing one.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok && size != uint64(r.vectorDimension) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
		}
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// client_id is filtered on every search
	_, err = r.pointsClient.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: r.collectionName,
		FieldName:      "client_id",
		FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to index client_id: %w", err)
	}
	return nil
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}
	if single := vectors.GetParams(); single != nil && single.GetSize() > 0 {
		return single.GetSize(), true
	}
	for _, p := range vectors.GetParamsMap().GetMap() {
		if p.GetSize() > 0 {
			return p.GetSize(), true
		}
	}
	return 0, false
}

// Upsert stores or replaces the vector of a template.
func (r *QdrantRepository) Upsert(ctx context.Context, vector []float32, payload TemplatePayload) error {
	pointID, err := templatePointID(payload.TemplateID)
	if err != nil {
		return err
	}
	if len(vector) != r.vectorDimension {
		return fmt.Errorf("template %s: vector has %d dimensions, collection expects %d",
			payload.TemplateID, len(vector), r.vectorDimension)
	}

	_, err = r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Points: []*pb.PointStruct{{
			Id: pointID,
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}},
			},
			Payload: map[string]*pb.Value{
				"template_id": stringValue(payload.TemplateID),
				"client_id":   stringValue(payload.ClientID),
				"category":    stringValue(payload.Category),
				"importance":  stringValue(payload.Importance),
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert template point: %w", err)
	}
	return nil
}

// Search returns up to topK templates of clientID nearest to vector,
// excluding excludeID when non-empty.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, clientID, excludeID string, topK int) ([]TemplateHit, error) {
	filter := &pb.Filter{
		Must: []*pb.Condition{keywordCondition("client_id", clientID)},
	}
	if excludeID != "" {
		filter.MustNot = []*pb.Condition{keywordCondition("template_id", excludeID)}
	}

	resp, err := r.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         filter,
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search templates: %w", err)
	}

	hits := make([]TemplateHit, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		p := parsePayload(scored.GetPayload())
		if p.TemplateID == "" {
			p.TemplateID = scored.GetId().GetUuid()
		}
		hits = append(hits, TemplateHit{TemplateID: p.TemplateID, Score: scored.GetScore(), Payload: p})
	}
	return hits, nil
}

// Delete removes the point of a template. Deleting a missing point succeeds.
func (r *QdrantRepository) Delete(ctx context.Context, templateID string) error {
	pointID, err := templatePointID(templateID)
	if err != nil {
		return err
	}
	_, err = r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete template point: %w", err)
	}
	return nil
}

func templatePointID(templateID string) (*pb.PointId, error) {
	uid, err := uuid.Parse(templateID)
	if err != nil {
		return nil, fmt.Errorf("invalid template id %q: %w", templateID, err)
	}
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()}}, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func keywordCondition(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func parsePayload(payload map[string]*pb.Value) TemplatePayload {
	return TemplatePayload{
		TemplateID: payload["template_id"].GetStringValue(),
		ClientID:   payload["client_id"].GetStringValue(),
		Category:   payload["category"].GetStringValue(),
		Importance: payload["importance"].GetStringValue(),
	}
}
