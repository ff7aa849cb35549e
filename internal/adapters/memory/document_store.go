package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"search-service/internal/core/domain"
	"search-service/internal/core/port"
)

// DocumentStore хранилище документов в памяти процесса.
// Используется для локального запуска и в тестах.
type DocumentStore struct {
	mu       sync.RWMutex
	listings map[string]domain.ListingDocument
	users    map[string]domain.UserDocument
}

var _ port.DocumentStorePort = (*DocumentStore)(nil)

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		listings: make(map[string]domain.ListingDocument),
		users:    make(map[string]domain.UserDocument),
	}
}

func (s *DocumentStore) UpsertListing(ctx context.Context, doc domain.ListingDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.listings[doc.ID]; ok && cur.SourceVersion > doc.SourceVersion {
		return domain.ErrStaleDocument
	}
	s.listings[doc.ID] = cloneListing(doc)
	return nil
}

func (s *DocumentStore) DeleteListing(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listings, id)
	return nil
}

func (s *DocumentStore) GetListing(ctx context.Context, id string) (*domain.ListingDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.listings[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	out := cloneListing(doc)
	return &out, nil
}

type scoredListing struct {
	doc        domain.ListingDocument
	score      float64
	highlights map[string][]string
}

// filterListings отбирает документы под фильтр, снимок делается под блокировкой чтения
func (s *DocumentStore) filterListings(filter domain.ListingFilter) []scoredListing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]scoredListing, 0)
	for _, doc := range s.listings {
		score, hits, ok := matchListing(doc, filter)
		if !ok {
			continue
		}
		out = append(out, scoredListing{doc: cloneListing(doc), score: score, highlights: hits})
	}
	return out
}

func (s *DocumentStore) QueryListings(ctx context.Context, query domain.ListingQuery) (*domain.ListingPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matched := s.filterListings(query.Filter)
	sortListings(matched, query.SortBy, query.SortDir)

	page := &domain.ListingPage{Total: int64(len(matched)), Hits: []domain.ListingHit{}}
	from := query.Offset()
	if from < 0 || from >= len(matched) {
		return page, nil
	}
	to := min(from+query.Size, len(matched))

	for _, m := range matched[from:to] {
		hit := domain.ListingHit{Document: m.doc, Score: m.score}
		if query.Highlight && len(m.highlights) > 0 {
			hit.Highlights = renderHighlights(m.doc, m.highlights)
		}
		page.Hits = append(page.Hits, hit)
	}
	return page, nil
}

func renderHighlights(doc domain.ListingDocument, hits map[string][]string) map[string][]string {
	texts := map[string]string{"title": doc.Title, "description": doc.Description, "address": doc.Address}
	out := make(map[string][]string, len(hits))
	for _, field := range sortedKeys(hits) {
		if fragment := highlight(texts[field], hits[field]); fragment != "" {
			out[field] = []string{fragment}
		}
	}
	return out
}

func (s *DocumentStore) CountListings(ctx context.Context, filter domain.ListingFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(s.filterListings(filter))), nil
}

func (s *DocumentStore) AggregateListings(ctx context.Context, field domain.AggregationField, filter domain.ListingFilter) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buckets := map[string]int64{}
	for _, m := range s.filterListings(filter) {
		key := aggregationKey(m.doc, field)
		if key == "" {
			continue
		}
		buckets[key]++
	}
	return buckets, nil
}

func aggregationKey(doc domain.ListingDocument, field domain.AggregationField) string {
	switch field {
	case domain.AggregateByCity:
		return doc.City
	case domain.AggregateByDistrict:
		return doc.District
	case domain.AggregateByPropertyType:
		return doc.PropertyType
	case domain.AggregateByListingType:
		return doc.ListingType
	case domain.AggregateByAgentID:
		return doc.AgentID
	}
	return ""
}

func (s *DocumentStore) UpsertUser(ctx context.Context, doc domain.UserDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.users[doc.ID]; ok && cur.SourceVersion > doc.SourceVersion {
		return domain.ErrStaleDocument
	}
	s.users[doc.ID] = doc
	return nil
}

func (s *DocumentStore) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *DocumentStore) GetUser(ctx context.Context, id string) (*domain.UserDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.users[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return &doc, nil
}

func (s *DocumentStore) QueryUsers(ctx context.Context, query domain.UserQuery) (*domain.UserPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	matched := make([]domain.UserDocument, 0)
	for _, u := range s.users {
		if query.Role != "" && !strings.EqualFold(u.Role, query.Role) {
			continue
		}
		if query.Keyword != "" {
			_, _, ok := matchKeyword(query.Keyword, false, []textField{
				{name: "username", text: u.Username, weight: 2},
				{name: "fullName", text: u.FullName, weight: 2},
				{name: "email", text: u.Email, weight: 1},
				{name: "city", text: u.City, weight: 1},
			})
			if !ok {
				continue
			}
		}
		matched = append(matched, u)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Username != matched[j].Username {
			return matched[i].Username < matched[j].Username
		}
		return matched[i].ID < matched[j].ID
	})

	page := &domain.UserPage{Total: int64(len(matched)), Items: []domain.UserDocument{}}
	from := query.Page * query.Size
	if from >= 0 && from < len(matched) {
		page.Items = append(page.Items, matched[from:min(from+query.Size, len(matched))]...)
	}
	return page, nil
}

func (s *DocumentStore) CountUsers(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *DocumentStore) PurgeIndexedBefore(ctx context.Context, kind domain.EntityKind, t time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	switch kind {
	case domain.EntityListing:
		for id, doc := range s.listings {
			if doc.IndexedAt.Before(t) {
				delete(s.listings, id)
				purged++
			}
		}
	case domain.EntityUser:
		for id, doc := range s.users {
			if doc.IndexedAt.Before(t) {
				delete(s.users, id)
				purged++
			}
		}
	}
	return purged, nil
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func cloneListing(doc domain.ListingDocument) domain.ListingDocument {
	doc.Amenities = append([]string(nil), doc.Amenities...)
	doc.Images = append([]string(nil), doc.Images...)
	if doc.Location != nil {
		loc := *doc.Location
		doc.Location = &loc
	}
	return doc
}
