package vector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kangae/internal/config"
	"github.com/hyperjump/kangae/internal/models"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// ItemIDKey is the payload key holding the caller's id. Qdrant only accepts
// UUID or integer point ids, so string ids are mapped with PointID.
const ItemIDKey = "item_id"

// pointNamespace seeds the name-based UUIDs used as Qdrant point ids.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kangae/points"))

// PointID returns the deterministic Qdrant point UUID for an item id.
func PointID(itemID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(itemID)).String()
}

// QdrantStore keeps points in Qdrant collections with cosine distance.
type QdrantStore struct {
	client *qdrant.Client
	logger *zap.Logger

	mu    sync.Mutex
	known map[string]bool
}

// NewQdrantStore connects to Qdrant and checks that it answers.
func NewQdrantStore(cfg config.QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant health check failed: %w", err)
	}

	logger.Info("vector store initialized", zap.String("backend", BackendQdrant), zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
	return &QdrantStore{
		client: client,
		logger: logger.With(zap.String("component", "qdrant")),
		known:  make(map[string]bool),
	}, nil
}

// Type returns the backend name.
func (s *QdrantStore) Type() string {
	return BackendQdrant
}

// ensureCollection creates collection with the given dimension if it does not exist.
func (s *QdrantStore) ensureCollection(ctx context.Context, collection string, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known[collection] {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection %s: %w", collection, err)
		}
		s.logger.Info("created collection", zap.String("collection", collection), zap.Int("dimensions", dim))
	}
	s.known[collection] = true
	return nil
}

// Upsert writes items and waits for the write to apply. The collection is created on first use.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, items []models.StoredItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, collection, len(items[0].Vector)); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(items))
	for i, it := range items {
		p, err := toPoint(it)
		if err != nil {
			return err
		}
		points[i] = p
	}

	wait := true
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

// Get returns the stored items among ids, in the order given.
func (s *QdrantStore) Get(ctx context.Context, collection string, ids []string) ([]models.StoredItem, error) {
	if len(ids) == 0 {
		return []models.StoredItem{}, nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(PointID(id))
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant get failed: %w", err)
	}

	found := make(map[string]models.StoredItem, len(points))
	for _, p := range points {
		it := fromPayload(p.GetId(), p.GetPayload())
		it.Vector = denseVector(p.GetVectors())
		found[it.ID] = it
	}
	out := make([]models.StoredItem, 0, len(found))
	for _, id := range ids {
		if it, ok := found[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// Delete removes ids and waits for the delete to apply.
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(PointID(id))
	}
	wait := true
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	}); err != nil {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

// Search queries the collection with payloads. A collection that does not exist yet has no hits.
func (s *QdrantStore) Search(ctx context.Context, collection string, query []float32, limit int, filter map[string]string) ([]models.SearchHit, error) {
	if limit <= 0 {
		return []models.SearchHit{}, nil
	}
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if !exists {
		return []models.SearchHit{}, nil
	}

	n := uint64(limit)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &n,
		Filter:         toFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}

	hits := make([]models.SearchHit, len(points))
	for i, p := range points {
		it := fromPayload(p.GetId(), p.GetPayload())
		hits[i] = models.SearchHit{
			ID:         it.ID,
			Collection: collection,
			Score:      float64(p.GetScore()),
			Payload:    it.Payload,
		}
	}
	return hits, nil
}

// Close closes the gRPC connections.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func toPoint(it models.StoredItem) (*qdrant.PointStruct, error) {
	payload := make(map[string]any, len(it.Payload)+1)
	for k, v := range it.Payload {
		payload[k] = v
	}
	payload[ItemIDKey] = it.ID
	values, err := qdrant.TryValueMap(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid payload for %s: %w", it.ID, err)
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewID(PointID(it.ID)),
		Vectors: qdrant.NewVectors(it.Vector...),
		Payload: values,
	}, nil
}

// toFilter turns exact-match pairs into keyword conditions. An empty map is no filter.
func toFilter(filter map[string]string) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	conds := make([]*qdrant.Condition, 0, len(filter))
	for k, v := range filter {
		conds = append(conds, qdrant.NewMatch(k, v))
	}
	return &qdrant.Filter{Must: conds}
}

// fromPayload rebuilds an item from a point. The item id comes from the payload,
// falling back to the point id for points written by other tools.
func fromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value) models.StoredItem {
	it := models.StoredItem{}
	if len(payload) > 0 {
		it.Payload = make(map[string]interface{}, len(payload))
		for k, v := range payload {
			if k == ItemIDKey {
				it.ID = v.GetStringValue()
				continue
			}
			it.Payload[k] = fromValue(v)
		}
		if len(it.Payload) == 0 {
			it.Payload = nil
		}
	}
	if it.ID == "" {
		switch {
		case id.GetUuid() != "":
			it.ID = id.GetUuid()
		default:
			it.ID = fmt.Sprint(id.GetNum())
		}
	}
	return it
}

func fromValue(v *qdrant.Value) interface{} {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		out := make(map[string]interface{}, len(k.StructValue.GetFields()))
		for name, f := range k.StructValue.GetFields() {
			out[name] = fromValue(f)
		}
		return out
	case *qdrant.Value_ListValue:
		out := make([]interface{}, len(k.ListValue.GetValues()))
		for i, e := range k.ListValue.GetValues() {
			out[i] = fromValue(e)
		}
		return out
	default:
		return nil
	}
}

func denseVector(v *qdrant.VectorsOutput) []float32 {
	out := v.GetVector()
	if dense := out.GetDense(); dense != nil {
		return dense.GetData()
	}
	return out.GetData()
}
