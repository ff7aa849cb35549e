package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"
	"search-service/internal/core/port/usecases_port"
)

type AdminHandler struct {
	reindexUC   usecases_port.ReindexAllUseCase
	syncStatsUC usecases_port.GetSyncStatsUseCase
	// appCtx живет дольше запроса: фоновая переиндексация не должна прерываться вместе с ним
	appCtx context.Context
}

func NewAdminHandler(appCtx context.Context, reindexUC usecases_port.ReindexAllUseCase, syncStatsUC usecases_port.GetSyncStatsUseCase) *AdminHandler {
	return &AdminHandler{reindexUC: reindexUC, syncStatsUC: syncStatsUC, appCtx: appCtx}
}

// Reindex обрабатывает POST /api/v1/admin/reindex
func (h *AdminHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "Reindex"})

	// логгер и trace_id запроса переносятся в фоновый контекст
	ctx := contextkeys.ContextWithLogger(h.appCtx, contextkeys.LoggerFromContext(r.Context()))
	ctx = contextkeys.ContextWithTraceID(ctx, contextkeys.TraceIDFromContext(r.Context()))

	report, err := h.reindexUC.Start(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrReindexInProgress) {
			WriteJSONError(w, http.StatusConflict, err.Error())
			return
		}
		logger.Error("Failed to start reindex", err, nil)
		WriteJSONError(w, http.StatusInternalServerError, "Failed to start reindex")
		return
	}
	logger.Info("Reindex started", port.Fields{"run_id": report.RunID})
	RespondWithJSON(w, http.StatusAccepted, toReindexReportResponse(*report))
}

// SyncStats обрабатывает GET /api/v1/admin/sync/stats
func (h *AdminHandler) SyncStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.syncStatsUC.Execute(r.Context())
	if err != nil {
		contextkeys.LoggerFromContext(r.Context()).Error("Use case failed", err, port.Fields{"handler": "SyncStats"})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to get sync stats")
		return
	}
	RespondWithJSON(w, http.StatusOK, toSyncStatsResponse(stats))
}

// Pinger то, что проверяет /health
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
	cache Pinger
}

// NewHealthHandler cache может быть nil, если кэш выключен
func NewHealthHandler(store Pinger, cache Pinger) *HealthHandler {
	return &HealthHandler{store: store, cache: cache}
}

// Health без хранилища сервис не работает, без кэша работает медленнее
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "UP", Store: "UP", Cache: "DISABLED"}
	code := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		contextkeys.LoggerFromContext(r.Context()).Warn("Document store is unavailable", port.Fields{"error": err.Error()})
		resp.Status, resp.Store = "DOWN", "DOWN"
		code = http.StatusServiceUnavailable
	}
	if h.cache != nil {
		resp.Cache = "UP"
		if err := h.cache.Ping(ctx); err != nil {
			resp.Cache = "DOWN"
			if code == http.StatusOK {
				resp.Status = "DEGRADED"
			}
		}
	}
	RespondWithJSON(w, code, resp)
}
