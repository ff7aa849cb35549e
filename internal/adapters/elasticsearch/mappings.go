package es_adapter

// foldedKeyword поле для агрегаций с подполем без учета регистра для фильтров
func foldedKeyword() map[string]interface{} {
	return map[string]interface{}{
		"type": "keyword",
		"fields": map[string]interface{}{
			"folded": map[string]interface{}{"type": "keyword", "normalizer": "folded"},
		},
	}
}

func indexSettings() map[string]interface{} {
	return map[string]interface{}{
		"analysis": map[string]interface{}{
			"normalizer": map[string]interface{}{
				"folded": map[string]interface{}{
					"type":   "custom",
					"filter": []string{"lowercase", "asciifolding"},
				},
			},
		},
	}
}

func listingIndexBody() map[string]interface{} {
	keyword := map[string]interface{}{"type": "keyword"}
	return map[string]interface{}{
		"settings": indexSettings(),
		"mappings": map[string]interface{}{
			"dynamic": "strict",
			"properties": map[string]interface{}{
				"id":            keyword,
				"title":         map[string]interface{}{"type": "text"},
				"description":   map[string]interface{}{"type": "text"},
				"address":       map[string]interface{}{"type": "text"},
				"city":          foldedKeyword(),
				"district":      foldedKeyword(),
				"propertyType":  foldedKeyword(),
				"listingType":   foldedKeyword(),
				"agentId":       keyword,
				"agentName":     keyword,
				"amenities":     keyword,
				"images":        map[string]interface{}{"type": "keyword", "index": false},
				"price":         map[string]interface{}{"type": "double"},
				"bedrooms":      map[string]interface{}{"type": "integer"},
				"bathrooms":     map[string]interface{}{"type": "integer"},
				"areaSqm":       map[string]interface{}{"type": "double"},
				"rating":        map[string]interface{}{"type": "double"},
				"viewCount":     map[string]interface{}{"type": "long"},
				"location":      map[string]interface{}{"type": "geo_point"},
				"geohash":       keyword,
				"available":     map[string]interface{}{"type": "boolean"},
				"featured":      map[string]interface{}{"type": "boolean"},
				"postedAt":      map[string]interface{}{"type": "date"},
				"updatedAt":     map[string]interface{}{"type": "date"},
				"sourceVersion": map[string]interface{}{"type": "long"},
				"indexedAt":     map[string]interface{}{"type": "date"},
			},
		},
	}
}

func userIndexBody() map[string]interface{} {
	keyword := map[string]interface{}{"type": "keyword"}
	textWithKeyword := map[string]interface{}{
		"type":   "text",
		"fields": map[string]interface{}{"keyword": keyword},
	}
	return map[string]interface{}{
		"settings": indexSettings(),
		"mappings": map[string]interface{}{
			"dynamic": "strict",
			"properties": map[string]interface{}{
				"id":            keyword,
				"username":      textWithKeyword,
				"email":         map[string]interface{}{"type": "text"},
				"fullName":      map[string]interface{}{"type": "text"},
				"phone":         keyword,
				"role":          foldedKeyword(),
				"city":          map[string]interface{}{"type": "text"},
				"verified":      map[string]interface{}{"type": "boolean"},
				"listingCount":  map[string]interface{}{"type": "integer"},
				"createdAt":     map[string]interface{}{"type": "date"},
				"updatedAt":     map[string]interface{}{"type": "date"},
				"sourceVersion": map[string]interface{}{"type": "long"},
				"indexedAt":     map[string]interface{}{"type": "date"},
			},
		},
	}
}
