package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const listingColumns = `ld.id, ld.title, ld.description, ld.address, ld.city, ld.district, ld.property_type,
	ld.listing_type, ld.agent_id, ld.agent_name, ld.amenities, ld.images, ld.price, ld.bedrooms, ld.bathrooms,
	ld.area_sqm, ld.rating, ld.view_count, ld.location_lat, ld.location_lon, ld.geohash, ld.available,
	ld.featured, ld.posted_at, ld.updated_at, ld.source_version, ld.indexed_at`

const userColumns = `ud.id, ud.username, ud.email, ud.full_name, ud.phone, ud.role, ud.city, ud.verified,
	ud.listing_count, ud.created_at, ud.updated_at, ud.source_version, ud.indexed_at`

// PostgresDocumentStore реализует DocumentStorePort поверх PostgreSQL
type PostgresDocumentStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDocumentStore(pool *pgxpool.Pool) (*PostgresDocumentStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresDocumentStore{pool: pool}, nil
}

// EnsureSchema создает таблицы и индексы, если их нет
func (a *PostgresDocumentStore) EnsureSchema(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply document schema: %w", err)
	}
	return nil
}

func (a *PostgresDocumentStore) UpsertListing(ctx context.Context, doc domain.ListingDocument) error {
	var lat, lon *float64
	if doc.Location != nil {
		lat, lon = &doc.Location.Lat, &doc.Location.Lon
	}

	// Обновление пропускается, если в таблице более новая версия
	query := `
		INSERT INTO listing_documents (
			id, title, description, address, city, district, property_type, listing_type, agent_id, agent_name,
			amenities, images, price, bedrooms, bathrooms, area_sqm, rating, view_count, location_lat, location_lon,
			geohash, available, featured, posted_at, updated_at, source_version, indexed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27
		)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, description = EXCLUDED.description, address = EXCLUDED.address,
			city = EXCLUDED.city, district = EXCLUDED.district, property_type = EXCLUDED.property_type,
			listing_type = EXCLUDED.listing_type, agent_id = EXCLUDED.agent_id, agent_name = EXCLUDED.agent_name,
			amenities = EXCLUDED.amenities, images = EXCLUDED.images, price = EXCLUDED.price,
			bedrooms = EXCLUDED.bedrooms, bathrooms = EXCLUDED.bathrooms, area_sqm = EXCLUDED.area_sqm,
			rating = EXCLUDED.rating, view_count = EXCLUDED.view_count, location_lat = EXCLUDED.location_lat,
			location_lon = EXCLUDED.location_lon, geohash = EXCLUDED.geohash, available = EXCLUDED.available,
			featured = EXCLUDED.featured, posted_at = EXCLUDED.posted_at, updated_at = EXCLUDED.updated_at,
			source_version = EXCLUDED.source_version, indexed_at = EXCLUDED.indexed_at
		WHERE listing_documents.source_version <= EXCLUDED.source_version`

	tag, err := a.pool.Exec(ctx, query,
		doc.ID, doc.Title, doc.Description, doc.Address, doc.City, doc.District, doc.PropertyType, doc.ListingType,
		doc.AgentID, doc.AgentName, nonNil(doc.Amenities), nonNil(doc.Images), doc.Price, doc.Bedrooms, doc.Bathrooms,
		doc.AreaSqm, doc.Rating, doc.ViewCount, lat, lon, doc.Geohash, doc.Available, doc.Featured,
		doc.PostedAt, doc.UpdatedAt, doc.SourceVersion, doc.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert listing document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleDocument
	}
	return nil
}

func (a *PostgresDocumentStore) DeleteListing(ctx context.Context, id string) error {
	if _, err := a.pool.Exec(ctx, `DELETE FROM listing_documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete listing document: %w", err)
	}
	return nil
}

func (a *PostgresDocumentStore) GetListing(ctx context.Context, id string) (*domain.ListingDocument, error) {
	query := fmt.Sprintf("SELECT %s FROM listing_documents ld WHERE ld.id = $1", listingColumns)
	doc, err := scanListing(a.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get listing document: %w", err)
	}
	return doc, nil
}

// QueryListings подсчет и страница в одной транзакции только на чтение
func (a *PostgresDocumentStore) QueryListings(ctx context.Context, q domain.ListingQuery) (*domain.ListingPage, error) {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "PostgresDocumentStore",
		"method":    "QueryListings",
		"page":      q.Page,
		"size":      q.Size,
	})

	qb := applyListingFilter(q.Filter)
	whereClause, args := qb.build()

	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM listing_documents ld %s", whereClause)
	var total int64
	if err := tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		repoLogger.Error("Failed to count listing documents", err, port.Fields{"query": countQuery})
		return nil, fmt.Errorf("failed to count listing documents: %w", err)
	}

	page := &domain.ListingPage{Hits: []domain.ListingHit{}, Total: total}
	if total == 0 || int64(q.Offset()) >= total {
		return page, tx.Commit(ctx)
	}

	highlight := q.Highlight && qb.keywordArg > 0
	dataQuery := fmt.Sprintf(
		"SELECT %s, %s, %s, %s FROM listing_documents ld %s %s LIMIT $%d OFFSET $%d",
		listingColumns, qb.rankExpr(), qb.headlineExpr("ld.title"), qb.headlineExpr("ld.description"),
		whereClause, qb.orderClause(q.SortBy, q.SortDir), len(args)+1, len(args)+2,
	)
	rows, err := tx.Query(ctx, dataQuery, append(args, q.Size, q.Offset())...)
	if err != nil {
		repoLogger.Error("Failed to query listing documents", err, port.Fields{"query": dataQuery})
		return nil, fmt.Errorf("failed to query listing documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			doc             domain.ListingDocument
			score           float32
			titleHL, descHL *string
			lat, lon        *float64
		)
		if err := rows.Scan(append(listingDest(&doc, &lat, &lon), &score, &titleHL, &descHL)...); err != nil {
			return nil, fmt.Errorf("failed to scan listing document: %w", err)
		}
		setLocation(&doc, lat, lon)

		hit := domain.ListingHit{Document: doc, Score: float64(score)}
		if highlight {
			hit.Highlights = highlights(map[string]*string{"title": titleHL, "description": descHL})
		}
		page.Hits = append(page.Hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during listing rows iteration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	repoLogger.Debug("Listing page loaded", port.Fields{"total": total, "count": len(page.Hits)})
	return page, nil
}

func (a *PostgresDocumentStore) CountListings(ctx context.Context, filter domain.ListingFilter) (int64, error) {
	whereClause, args := applyListingFilter(filter).build()
	var total int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM listing_documents ld %s", whereClause)
	if err := a.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count listing documents: %w", err)
	}
	return total, nil
}

func (a *PostgresDocumentStore) AggregateListings(ctx context.Context, field domain.AggregationField, filter domain.ListingFilter) (map[string]int64, error) {
	column, ok := aggregationColumns[field]
	if !ok {
		return nil, fmt.Errorf("unsupported aggregation field %q", field)
	}
	qb := applyListingFilter(filter)
	qb.conditions = append(qb.conditions, column+" <> ''")
	whereClause, args := qb.build()

	query := fmt.Sprintf("SELECT %[1]s, COUNT(*) FROM listing_documents ld %[2]s GROUP BY %[1]s", column, whereClause)
	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate listings by %s: %w", field, err)
	}
	defer rows.Close()

	buckets := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan aggregation bucket: %w", err)
		}
		buckets[key] = count
	}
	return buckets, rows.Err()
}

func (a *PostgresDocumentStore) UpsertUser(ctx context.Context, doc domain.UserDocument) error {
	query := `
		INSERT INTO user_documents (
			id, username, email, full_name, phone, role, city, verified, listing_count,
			created_at, updated_at, source_version, indexed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username, email = EXCLUDED.email, full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone, role = EXCLUDED.role, city = EXCLUDED.city, verified = EXCLUDED.verified,
			listing_count = EXCLUDED.listing_count, created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at, source_version = EXCLUDED.source_version,
			indexed_at = EXCLUDED.indexed_at
		WHERE user_documents.source_version <= EXCLUDED.source_version`

	tag, err := a.pool.Exec(ctx, query,
		doc.ID, doc.Username, doc.Email, doc.FullName, doc.Phone, doc.Role, doc.City, doc.Verified,
		doc.ListingCount, doc.CreatedAt, doc.UpdatedAt, doc.SourceVersion, doc.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleDocument
	}
	return nil
}

func (a *PostgresDocumentStore) DeleteUser(ctx context.Context, id string) error {
	if _, err := a.pool.Exec(ctx, `DELETE FROM user_documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete user document: %w", err)
	}
	return nil
}

func (a *PostgresDocumentStore) GetUser(ctx context.Context, id string) (*domain.UserDocument, error) {
	query := fmt.Sprintf("SELECT %s FROM user_documents ud WHERE ud.id = $1", userColumns)
	var doc domain.UserDocument
	if err := a.pool.QueryRow(ctx, query, id).Scan(userDest(&doc)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get user document: %w", err)
	}
	return &doc, nil
}

func (a *PostgresDocumentStore) QueryUsers(ctx context.Context, q domain.UserQuery) (*domain.UserPage, error) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)
	if q.Keyword != "" {
		args = append(args, q.Keyword)
		conditions = append(conditions, fmt.Sprintf("ud.search_vector @@ websearch_to_tsquery('%s', $%d)", tsConfig, len(args)))
	}
	if q.Role != "" {
		args = append(args, q.Role)
		conditions = append(conditions, fmt.Sprintf("upper(ud.role) = upper($%d)", len(args)))
	}
	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	page := &domain.UserPage{Items: []domain.UserDocument{}}
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM user_documents ud "+whereClause, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count user documents: %w", err)
	}
	if page.Total == 0 {
		return page, tx.Commit(ctx)
	}

	query := fmt.Sprintf("SELECT %s FROM user_documents ud %s ORDER BY ud.username ASC, ud.id ASC LIMIT $%d OFFSET $%d",
		userColumns, whereClause, len(args)+1, len(args)+2)
	rows, err := tx.Query(ctx, query, append(args, q.Size, q.Page*q.Size)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query user documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc domain.UserDocument
		if err := rows.Scan(userDest(&doc)...); err != nil {
			return nil, fmt.Errorf("failed to scan user document: %w", err)
		}
		page.Items = append(page.Items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page, tx.Commit(ctx)
}

func (a *PostgresDocumentStore) CountUsers(ctx context.Context) (int64, error) {
	var total int64
	if err := a.pool.QueryRow(ctx, "SELECT COUNT(*) FROM user_documents").Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count user documents: %w", err)
	}
	return total, nil
}

func (a *PostgresDocumentStore) PurgeIndexedBefore(ctx context.Context, kind domain.EntityKind, t time.Time) (int64, error) {
	var table string
	switch kind {
	case domain.EntityListing:
		table = "listing_documents"
	case domain.EntityUser:
		table = "user_documents"
	default:
		return 0, fmt.Errorf("unknown entity kind %q", kind)
	}
	tag, err := a.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE indexed_at < $1", table), t)
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func (a *PostgresDocumentStore) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func listingDest(doc *domain.ListingDocument, lat, lon **float64) []interface{} {
	return []interface{}{
		&doc.ID, &doc.Title, &doc.Description, &doc.Address, &doc.City, &doc.District, &doc.PropertyType,
		&doc.ListingType, &doc.AgentID, &doc.AgentName, &doc.Amenities, &doc.Images, &doc.Price, &doc.Bedrooms,
		&doc.Bathrooms, &doc.AreaSqm, &doc.Rating, &doc.ViewCount, lat, lon, &doc.Geohash, &doc.Available,
		&doc.Featured, &doc.PostedAt, &doc.UpdatedAt, &doc.SourceVersion, &doc.IndexedAt,
	}
}

func scanListing(row pgx.Row) (*domain.ListingDocument, error) {
	var doc domain.ListingDocument
	var lat, lon *float64
	if err := row.Scan(listingDest(&doc, &lat, &lon)...); err != nil {
		return nil, err
	}
	setLocation(&doc, lat, lon)
	return &doc, nil
}

func setLocation(doc *domain.ListingDocument, lat, lon *float64) {
	if lat != nil && lon != nil {
		doc.Location = &domain.GeoPoint{Lat: *lat, Lon: *lon}
	}
}

func userDest(doc *domain.UserDocument) []interface{} {
	return []interface{}{
		&doc.ID, &doc.Username, &doc.Email, &doc.FullName, &doc.Phone, &doc.Role, &doc.City, &doc.Verified,
		&doc.ListingCount, &doc.CreatedAt, &doc.UpdatedAt, &doc.SourceVersion, &doc.IndexedAt,
	}
}

func highlights(fields map[string]*string) map[string][]string {
	out := make(map[string][]string)
	for name, fragment := range fields {
		if fragment != nil && *fragment != "" && strings.Contains(*fragment, "<em>") {
			out[name] = []string{*fragment}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
