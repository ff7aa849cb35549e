package domain

import "errors"

var (
	// ErrMalformedEvent событие нельзя разобрать или в нем нет id
	ErrMalformedEvent = errors.New("malformed change event")
	// ErrDocumentNotFound документа с таким id нет в индексе
	ErrDocumentNotFound = errors.New("document not found")
	// ErrStaleDocument пришла версия старше той, что уже в индексе
	ErrStaleDocument = errors.New("stale document version")
	// ErrInvalidSearchRequest параметры поиска не прошли проверку
	ErrInvalidSearchRequest = errors.New("invalid search request")
	// ErrReindexInProgress полная переиндексация уже идет
	ErrReindexInProgress = errors.New("reindex already in progress")
)
