package pointstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("docmanager.pointstore.qdrant")

// scrollPageSize is the number of points fetched per Scroll round trip.
const scrollPageSize = 256

// QdrantConfig configures the Qdrant gRPC backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: "localhost".
	Host string `koanf:"host"`
	// Port is the gRPC port, not the REST port. Default: 6334.
	Port int `koanf:"port"`
	// Collection holds the document chunks. Default: "declarative".
	Collection string `koanf:"collection"`
	// VectorSize is used when the collection has to be created. Default: 384.
	VectorSize uint64 `koanf:"vector_size"`
	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool `koanf:"use_tls"`
	// APIKey authenticates against Qdrant Cloud.
	APIKey string `koanf:"api_key"`
	// MaxRetries bounds retries of transient gRPC failures. Default: 3.
	MaxRetries int `koanf:"max_retries"`
	// RetryBackoff is the initial retry delay, doubled per attempt. Default: 1s.
	RetryBackoff time.Duration `koanf:"retry_backoff"`
	// MaxMessageSize is the gRPC message cap in bytes. Default: 50MB.
	MaxMessageSize int `koanf:"max_message_size"`
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "declarative"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	return nil
}

// QdrantStore implements Store over a Qdrant collection.
//
// Payloads are stored as-is: page_content and the metadata map live at the
// top level of the Qdrant payload, matching what ingestion pipelines write.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger
}

// NewQdrantStore connects, health-checks, and ensures the collection exists.
func NewQdrantStore(ctx context.Context, config QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)",
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	s := &QdrantStore{
		client:   client,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(hctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	if err := s.ensureCollection(hctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant point store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
	)
	return s, nil
}

// Name implements Store.
func (s *QdrantStore) Name() string { return "qdrant" }

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	var exists bool
	err := s.retry(ctx, "collection_exists", func() error {
		var err error
		exists, err = s.client.CollectionExists(ctx, s.config.Collection)
		return err
	})
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.retry(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.config.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.config.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
}

// Upsert implements Upserter. Points without a vector are embedded from
// their page content.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()

	span.SetAttributes(attribute.Int("point_count", len(points)))

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		vec := p.Vector
		if len(vec) == 0 {
			var err error
			vec, err = s.embedder.EmbedQuery(ctx, p.PageContent())
			if err != nil {
				return fmt.Errorf("embedding point %s: %w", p.ID, err)
			}
		}
		payload, err := qdrant.TryValueMap(p.Payload)
		if err != nil {
			return fmt.Errorf("converting payload of point %s: %w", p.ID, err)
		}
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      toQdrantID(id),
			Vectors: qdrant.NewVectors(vec...),
			Payload: payload,
		})
	}

	err := s.retry(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Wait:           qdrant.PtrOf(true),
			Points:         structs,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Enumerate implements Store by scrolling the collection page by page.
// Each page asks for one extra point and uses it as the next offset.
func (s *QdrantStore) Enumerate(ctx context.Context, limit int) ([]Point, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Enumerate")
	defer span.End()

	span.SetAttributes(attribute.Int("limit", limit))

	var (
		out    []Point
		offset *qdrant.PointId
	)
	for {
		page := scrollPageSize
		if limit > 0 && limit-len(out) < page {
			page = limit - len(out)
		}

		var batch []*qdrant.RetrievedPoint
		err := s.retry(ctx, "scroll", func() error {
			var err error
			batch, err = s.client.Scroll(ctx, &qdrant.ScrollPoints{
				CollectionName: s.config.Collection,
				Offset:         offset,
				Limit:          qdrant.PtrOf(uint32(page + 1)),
				WithPayload:    qdrant.NewWithPayload(true),
			})
			return err
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		more := len(batch) > page
		if more {
			offset = batch[page].GetId()
			batch = batch[:page]
		}
		for _, rp := range batch {
			out = append(out, Point{
				ID:      pointIDString(rp.GetId()),
				Payload: payloadToMap(rp.GetPayload()),
			})
		}
		if !more || (limit > 0 && len(out) >= limit) {
			break
		}
	}

	if out == nil {
		out = []Point{}
	}
	span.SetAttributes(attribute.Int("points", len(out)))
	return out, nil
}

// Search implements Store.
func (s *QdrantStore) Search(ctx context.Context, query string, k int, threshold float32) ([]ScoredPoint, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Search")
	defer span.End()

	span.SetAttributes(attribute.Int("k", k))

	if k <= 0 {
		return []ScoredPoint{}, nil
	}
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var hits []*qdrant.ScoredPoint
	err = s.retry(ctx, "search", func() error {
		var err error
		hits, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.Collection,
			Query:          qdrant.NewQuery(vec...),
			Limit:          qdrant.PtrOf(uint64(k)),
			ScoreThreshold: qdrant.PtrOf(threshold),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]ScoredPoint, len(hits))
	for i, h := range hits {
		out[i] = ScoredPoint{
			Point: Point{
				ID:      pointIDString(h.GetId()),
				Payload: payloadToMap(h.GetPayload()),
			},
			Score: h.GetScore(),
		}
	}
	span.SetAttributes(attribute.Int("results_count", len(out)))
	return out, nil
}

// DeleteByIDs implements Store.
func (s *QdrantStore) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteByIDs")
	defer span.End()

	span.SetAttributes(attribute.Int("id_count", len(ids)))

	if len(ids) == 0 {
		return 0, nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = toQdrantID(id)
	}

	err := s.retry(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.config.Collection,
			Wait:           qdrant.PtrOf(true),
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Points{
					Points: &qdrant.PointsIdsList{Ids: pointIDs},
				},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	return len(ids), nil
}

// DeleteByFilter implements Store. Filter keys address metadata fields.
func (s *QdrantStore) DeleteByFilter(ctx context.Context, filter map[string]any) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteByFilter")
	defer span.End()

	err := s.retry(ctx, "delete_by_filter", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.config.Collection,
			Wait:           qdrant.PtrOf(true),
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: metadataFilter(filter),
				},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// retry retries transient gRPC failures with exponential backoff.
func (s *QdrantStore) retry(ctx context.Context, op string, fn func() error) error {
	backoff := s.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", op, err)
		}
		if attempt >= s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", op, s.config.MaxRetries, err)
		}
		s.logger.Debug("retrying qdrant operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", op, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func isTransientError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// toQdrantID maps a string ID onto a Qdrant point ID. Qdrant only accepts
// unsigned integers and UUIDs; other strings are mapped to a name-based UUID
// so the same input always addresses the same point.
func toQdrantID(id string) *qdrant.PointId {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrant.NewIDNum(n)
	}
	if u, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(u.String())
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		values := kind.ListValue.GetValues()
		out := make([]any, len(values))
		for i, item := range values {
			out[i] = valueToAny(item)
		}
		return out
	default:
		return nil
	}
}

// metadataFilter builds a Qdrant filter matching every entry in filter
// against the metadata sub-object. An empty filter matches all points.
func metadataFilter(filter map[string]any) *qdrant.Filter {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: MetadataKey + "." + k,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: fmt.Sprint(filter[k])},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

var (
	_ Store    = (*QdrantStore)(nil)
	_ Upserter = (*QdrantStore)(nil)
)
