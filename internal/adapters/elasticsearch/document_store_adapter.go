package es_adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

type Config struct {
	ListingIndex string
	UserIndex    string
	// Refresh значение параметра refresh при записи: "false", "true" или "wait_for"
	Refresh string
}

// ESDocumentStore реализует DocumentStorePort поверх Elasticsearch.
// Версия документа передается как внешняя (external_gte), устаревшие записи отклоняются с 409.
type ESDocumentStore struct {
	client *elasticsearch.Client
	cfg    Config
}

func NewESDocumentStore(client *elasticsearch.Client, cfg Config) (*ESDocumentStore, error) {
	if client == nil {
		return nil, fmt.Errorf("elasticsearch client cannot be nil")
	}
	if cfg.ListingIndex == "" {
		cfg.ListingIndex = "listings"
	}
	if cfg.UserIndex == "" {
		cfg.UserIndex = "users"
	}
	if cfg.Refresh == "" {
		cfg.Refresh = "false"
	}
	return &ESDocumentStore{client: client, cfg: cfg}, nil
}

// EnsureIndices создает индексы с маппингами, если их нет
func (s *ESDocumentStore) EnsureIndices(ctx context.Context) error {
	for index, body := range map[string]map[string]interface{}{
		s.cfg.ListingIndex: listingIndexBody(),
		s.cfg.UserIndex:    userIndexBody(),
	} {
		res, err := s.client.Indices.Exists([]string{index}, s.client.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to check index %s: %w", index, err)
		}
		res.Body.Close()
		if res.StatusCode == http.StatusOK {
			continue
		}

		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal index body: %w", err)
		}
		res, err = s.client.Indices.Create(index,
			s.client.Indices.Create.WithContext(ctx),
			s.client.Indices.Create.WithBody(bytes.NewReader(data)),
		)
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", index, err)
		}
		err = responseError(res, "create index "+index)
		res.Body.Close()
		if err != nil {
			return err
		}
		contextkeys.LoggerFromContext(ctx).Info("Elasticsearch index created", port.Fields{"index": index})
	}
	return nil
}

func (s *ESDocumentStore) index(ctx context.Context, index, id string, version int64, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	res, err := s.client.Index(index, bytes.NewReader(data),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(id),
		s.client.Index.WithVersion(int(version)),
		s.client.Index.WithVersionType("external_gte"),
		s.client.Index.WithRefresh(s.cfg.Refresh),
	)
	if err != nil {
		return fmt.Errorf("failed to index document %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return domain.ErrStaleDocument
	}
	return responseError(res, "index document "+id)
}

func (s *ESDocumentStore) delete(ctx context.Context, index, id string) error {
	res, err := s.client.Delete(index, id,
		s.client.Delete.WithContext(ctx),
		s.client.Delete.WithRefresh(s.cfg.Refresh),
	)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	defer res.Body.Close()

	// удаление отсутствующего документа не ошибка
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	return responseError(res, "delete document "+id)
}

func (s *ESDocumentStore) get(ctx context.Context, index, id string, dest interface{}) error {
	res, err := s.client.Get(index, id, s.client.Get.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to get document %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return domain.ErrDocumentNotFound
	}
	if err := responseError(res, "get document "+id); err != nil {
		return err
	}

	var envelope struct {
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(envelope.Source, dest); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return nil
}

func (s *ESDocumentStore) search(ctx context.Context, index string, body map[string]interface{}) (*esResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", index, err)
	}
	defer res.Body.Close()

	if err := responseError(res, "search "+index); err != nil {
		return nil, err
	}
	var result esResponse
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func (s *ESDocumentStore) UpsertListing(ctx context.Context, doc domain.ListingDocument) error {
	return s.index(ctx, s.cfg.ListingIndex, doc.ID, doc.SourceVersion, toESListing(doc))
}

func (s *ESDocumentStore) DeleteListing(ctx context.Context, id string) error {
	return s.delete(ctx, s.cfg.ListingIndex, id)
}

func (s *ESDocumentStore) GetListing(ctx context.Context, id string) (*domain.ListingDocument, error) {
	var doc esListing
	if err := s.get(ctx, s.cfg.ListingIndex, id, &doc); err != nil {
		return nil, err
	}
	out := doc.toDomain()
	return &out, nil
}

func (s *ESDocumentStore) QueryListings(ctx context.Context, q domain.ListingQuery) (*domain.ListingPage, error) {
	result, err := s.search(ctx, s.cfg.ListingIndex, listingSearchBody(q))
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Listing search failed", err, port.Fields{"component": "ESDocumentStore"})
		return nil, err
	}

	page := &domain.ListingPage{Total: result.Hits.Total.Value, Hits: make([]domain.ListingHit, 0, len(result.Hits.Hits))}
	for _, hit := range result.Hits.Hits {
		var doc esListing
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode listing %s: %w", hit.ID, err)
		}
		out := domain.ListingHit{Document: doc.toDomain(), Highlights: hit.Highlight}
		if hit.Score != nil {
			out.Score = *hit.Score
		}
		page.Hits = append(page.Hits, out)
	}
	return page, nil
}

func (s *ESDocumentStore) CountListings(ctx context.Context, filter domain.ListingFilter) (int64, error) {
	data, err := json.Marshal(map[string]interface{}{"query": listingQuery(filter)})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal query: %w", err)
	}
	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(s.cfg.ListingIndex),
		s.client.Count.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	defer res.Body.Close()

	if err := responseError(res, "count listings"); err != nil {
		return 0, err
	}
	var result struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Count, nil
}

func (s *ESDocumentStore) AggregateListings(ctx context.Context, field domain.AggregationField, filter domain.ListingFilter) (map[string]int64, error) {
	body, ok := aggregationBody(field, filter)
	if !ok {
		return nil, fmt.Errorf("unsupported aggregation field %q", field)
	}
	result, err := s.search(ctx, s.cfg.ListingIndex, body)
	if err != nil {
		return nil, err
	}
	buckets := make(map[string]int64, len(result.Aggregations.Buckets.Buckets))
	for _, b := range result.Aggregations.Buckets.Buckets {
		if b.Key != "" {
			buckets[b.Key] = b.DocCount
		}
	}
	return buckets, nil
}

func (s *ESDocumentStore) UpsertUser(ctx context.Context, doc domain.UserDocument) error {
	return s.index(ctx, s.cfg.UserIndex, doc.ID, doc.SourceVersion, toESUser(doc))
}

func (s *ESDocumentStore) DeleteUser(ctx context.Context, id string) error {
	return s.delete(ctx, s.cfg.UserIndex, id)
}

func (s *ESDocumentStore) GetUser(ctx context.Context, id string) (*domain.UserDocument, error) {
	var doc esUser
	if err := s.get(ctx, s.cfg.UserIndex, id, &doc); err != nil {
		return nil, err
	}
	out := doc.toDomain()
	return &out, nil
}

func (s *ESDocumentStore) QueryUsers(ctx context.Context, q domain.UserQuery) (*domain.UserPage, error) {
	result, err := s.search(ctx, s.cfg.UserIndex, userSearchBody(q))
	if err != nil {
		return nil, err
	}
	page := &domain.UserPage{Total: result.Hits.Total.Value, Items: make([]domain.UserDocument, 0, len(result.Hits.Hits))}
	for _, hit := range result.Hits.Hits {
		var doc esUser
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode user %s: %w", hit.ID, err)
		}
		page.Items = append(page.Items, doc.toDomain())
	}
	return page, nil
}

func (s *ESDocumentStore) CountUsers(ctx context.Context) (int64, error) {
	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(s.cfg.UserIndex),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	defer res.Body.Close()

	if err := responseError(res, "count users"); err != nil {
		return 0, err
	}
	var result struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Count, nil
}

// PurgeIndexedBefore удаляет документы, проиндексированные раньше t.
// Документы, обновленные во время удаления, пропускаются по конфликту версий.
func (s *ESDocumentStore) PurgeIndexedBefore(ctx context.Context, kind domain.EntityKind, t time.Time) (int64, error) {
	var index string
	switch kind {
	case domain.EntityListing:
		index = s.cfg.ListingIndex
	case domain.EntityUser:
		index = s.cfg.UserIndex
	default:
		return 0, fmt.Errorf("unknown entity kind %q", kind)
	}

	refresh, err := s.client.Indices.Refresh(
		s.client.Indices.Refresh.WithContext(ctx),
		s.client.Indices.Refresh.WithIndex(index),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to refresh %s: %w", index, err)
	}
	refresh.Body.Close()

	data, err := json.Marshal(map[string]interface{}{
		"query": rangeQuery("indexedAt", map[string]interface{}{"lt": t.UTC().Format(time.RFC3339Nano)}),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal query: %w", err)
	}
	res, err := s.client.DeleteByQuery([]string{index}, bytes.NewReader(data),
		s.client.DeleteByQuery.WithContext(ctx),
		s.client.DeleteByQuery.WithConflicts("proceed"),
		s.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s: %w", index, err)
	}
	defer res.Body.Close()

	if err := responseError(res, "purge "+index); err != nil {
		return 0, err
	}
	var result struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Deleted, nil
}

func (s *ESDocumentStore) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to ping elasticsearch: %w", err)
	}
	defer res.Body.Close()
	return responseError(res, "ping")
}

// responseError ошибка для ответа с кодом 4xx/5xx, тело ответа попадает в текст
func responseError(res *esapi.Response, op string) error {
	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("elasticsearch %s failed: %s: %s", op, res.Status(), bytes.TrimSpace(body))
}

// esResponse ответ поиска
type esResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID        string              `json:"_id"`
			Score     *float64            `json:"_score"`
			Source    json.RawMessage     `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		Buckets struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int64  `json:"doc_count"`
			} `json:"buckets"`
		} `json:"buckets"`
	} `json:"aggregations"`
}
