package postgres

import (
	"fmt"
	"math"
	"strings"

	"search-service/internal/core/domain"

	"github.com/mmcloughlin/geohash"
)

const (
	earthRadiusKm = 6371.0
	kmPerDegree   = 111.32
	// tsConfig конфигурация полнотекстового поиска, без стемминга: тексты на разных языках
	tsConfig = "simple"
)

type queryBuilder struct {
	conditions []string
	args       []interface{}
	argId      int
	// keywordArg номер аргумента с ключевыми словами, 0 если поиска по тексту нет
	keywordArg int
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{
		argId: 1,
		args:  make([]interface{}, 0),
	}
}

func (qb *queryBuilder) addCondition(condition string, fieldName string, arg interface{}) {
	qb.conditions = append(qb.conditions, fmt.Sprintf(condition, fieldName, qb.argId))
	qb.args = append(qb.args, arg)
	qb.argId++
}

// addArg добавляет аргумент и возвращает его номер
func (qb *queryBuilder) addArg(arg interface{}) int {
	qb.args = append(qb.args, arg)
	qb.argId++
	return qb.argId - 1
}

func (qb *queryBuilder) AddFloatFilter(fieldName string, r domain.FloatRange) {
	if r.Min != nil {
		qb.addCondition("%s >= $%d", fieldName, *r.Min)
	}
	if r.Max != nil {
		if r.MaxExclusive {
			qb.addCondition("%s < $%d", fieldName, *r.Max)
		} else {
			qb.addCondition("%s <= $%d", fieldName, *r.Max)
		}
	}
}

func (qb *queryBuilder) AddIntFilter(fieldName string, r domain.IntRange) {
	if r.Min != nil {
		qb.addCondition("%s >= $%d", fieldName, *r.Min)
	}
	if r.Max != nil {
		qb.addCondition("%s <= $%d", fieldName, *r.Max)
	}
}

// AddKeyword полнотекстовый поиск; при fuzzy каждое слово ищется подстрокой в любом текстовом поле
func (qb *queryBuilder) AddKeyword(keyword string, fuzzy bool) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return
	}
	qb.keywordArg = qb.addArg(keyword)
	if !fuzzy {
		qb.conditions = append(qb.conditions,
			fmt.Sprintf("ld.search_vector @@ websearch_to_tsquery('%s', $%d)", tsConfig, qb.keywordArg))
		return
	}
	for _, token := range strings.Fields(keyword) {
		n := qb.addArg("%" + escapeLike(token) + "%")
		qb.conditions = append(qb.conditions,
			fmt.Sprintf("(ld.title ILIKE $%[1]d OR ld.description ILIKE $%[1]d OR ld.address ILIKE $%[1]d)", n))
	}
}

// AddGeo отбор по ячейкам geohash вокруг центра и точная проверка расстояния по гаверсинусу
func (qb *queryBuilder) AddGeo(geo *domain.GeoFilter) {
	if geo == nil {
		return
	}
	if cells, precision := coveringCells(geo.Center, geo.RadiusKm); len(cells) > 0 {
		qb.addCondition("left(%s, "+fmt.Sprint(precision)+") = ANY($%d)", "ld.geohash", cells)
	}
	lat := qb.addArg(geo.Center.Lat)
	lon := qb.addArg(geo.Center.Lon)
	radius := qb.addArg(geo.RadiusKm)
	qb.conditions = append(qb.conditions, fmt.Sprintf(
		"ld.location_lat IS NOT NULL AND %s <= $%d",
		haversineSQL(lat, lon), radius,
	))
}

func haversineSQL(latArg, lonArg int) string {
	return fmt.Sprintf(
		"(2 * %v * asin(sqrt(power(sin(radians(ld.location_lat - $%[2]d) / 2), 2) + "+
			"cos(radians($%[2]d)) * cos(radians(ld.location_lat)) * power(sin(radians(ld.location_lon - $%[3]d) / 2), 2))))",
		earthRadiusKm, latArg, lonArg,
	)
}

// coveringCells ячейка центра и 8 соседей самой мелкой точности, чья ячейка не меньше радиуса
func coveringCells(center domain.GeoPoint, radiusKm float64) ([]string, uint) {
	for precision := uint(9); precision >= 1; precision-- {
		cell := geohash.EncodeWithPrecision(center.Lat, center.Lon, precision)
		box := geohash.BoundingBox(cell)
		heightKm := (box.MaxLat - box.MinLat) * kmPerDegree
		widthKm := (box.MaxLng - box.MinLng) * kmPerDegree * math.Cos(center.Lat*math.Pi/180)
		if heightKm >= radiusKm && widthKm >= radiusKm {
			return append([]string{cell}, geohash.Neighbors(cell)...), precision
		}
	}
	// радиус больше ячейки первого уровня, предфильтр не нужен
	return nil, 0
}

// build создает WHERE и аргументы
func (qb *queryBuilder) build() (string, []interface{}) {
	whereClause := ""
	if len(qb.conditions) > 0 {
		whereClause = "WHERE " + strings.Join(qb.conditions, " AND ")
	}
	return whereClause, qb.args
}

// applyListingFilter разбирает фильтр объявлений
func applyListingFilter(f domain.ListingFilter) *queryBuilder {
	qb := newQueryBuilder()

	qb.AddKeyword(f.Keyword, f.Fuzzy)

	// Сравнение без учета регистра
	if f.City != "" {
		qb.addCondition("lower(%s) = lower($%d)", "ld.city", f.City)
	}
	if f.District != "" {
		qb.addCondition("lower(%s) = lower($%d)", "ld.district", f.District)
	}
	if f.PropertyType != "" {
		qb.addCondition("lower(%s) = lower($%d)", "ld.property_type", f.PropertyType)
	}
	if f.ListingType != "" {
		qb.addCondition("lower(%s) = lower($%d)", "ld.listing_type", f.ListingType)
	}
	if f.AgentID != "" {
		qb.addCondition("%s = $%d", "ld.agent_id", f.AgentID)
	}

	qb.AddFloatFilter("ld.price", f.Price)
	qb.AddIntFilter("ld.bedrooms", f.Bedrooms)
	qb.AddIntFilter("ld.bathrooms", f.Bathrooms)
	qb.AddFloatFilter("ld.rating", f.Rating)

	if f.Available != nil {
		qb.addCondition("%s = $%d", "ld.available", *f.Available)
	}
	qb.AddGeo(f.Geo)

	return qb
}

var sortColumns = map[domain.SortField]string{
	domain.SortPostedAt:  "ld.posted_at",
	domain.SortPrice:     "ld.price",
	domain.SortRating:    "ld.rating",
	domain.SortBedrooms:  "ld.bedrooms",
	domain.SortBathrooms: "ld.bathrooms",
	domain.SortViewCount: "ld.view_count",
	domain.SortAreaSqm:   "ld.area_sqm",
}

// orderClause сортировка с добивкой по id для стабильной пагинации
func (qb *queryBuilder) orderClause(field domain.SortField, dir domain.SortDirection) string {
	direction := "DESC"
	if dir == domain.SortAsc {
		direction = "ASC"
	}
	column, ok := sortColumns[field]
	if field == domain.SortRelevance && qb.keywordArg > 0 {
		column, ok = qb.rankExpr(), true
	}
	if !ok {
		column = sortColumns[domain.SortPostedAt]
	}
	return fmt.Sprintf("ORDER BY %s %s NULLS LAST, ld.id ASC", column, direction)
}

func (qb *queryBuilder) rankExpr() string {
	if qb.keywordArg == 0 {
		return "0::real"
	}
	return fmt.Sprintf("ts_rank(ld.search_vector, websearch_to_tsquery('%s', $%d))", tsConfig, qb.keywordArg)
}

// headlineExpr фрагмент поля с выделенными совпадениями
func (qb *queryBuilder) headlineExpr(column string) string {
	if qb.keywordArg == 0 {
		return "NULL::text"
	}
	return fmt.Sprintf(
		"ts_headline('%s', %s, websearch_to_tsquery('%s', $%d), 'StartSel=<em>, StopSel=</em>, MaxFragments=1')",
		tsConfig, column, tsConfig, qb.keywordArg,
	)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var aggregationColumns = map[domain.AggregationField]string{
	domain.AggregateByCity:         "ld.city",
	domain.AggregateByDistrict:     "ld.district",
	domain.AggregateByPropertyType: "ld.property_type",
	domain.AggregateByListingType:  "ld.listing_type",
	domain.AggregateByAgentID:      "ld.agent_id",
}
