package handler

import (
	"log/slog"
	"net/http"

	"diskcatalog/internal/domain/models/catalog"
	catalogSvc "diskcatalog/internal/domain/services/catalog"
	"diskcatalog/internal/httputil"
)

// CatalogHandler handles HTTP requests for the file catalog
type CatalogHandler struct {
	imports catalogSvc.ImportService
	deletes catalogSvc.DeleteService
	queries catalogSvc.QueryService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(
	imports catalogSvc.ImportService,
	deletes catalogSvc.DeleteService,
	queries catalogSvc.QueryService,
	logger *slog.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		imports: imports,
		deletes: deletes,
		queries: queries,
		logger:  logger,
	}
}

// Register mounts the catalog routes on mux
func (h *CatalogHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /imports", h.Import)
	mux.HandleFunc("GET /nodes/{id}", h.GetNode)
	mux.HandleFunc("DELETE /delete/{id}", h.Delete)
	mux.HandleFunc("GET /updates", h.Updates)
	mux.HandleFunc("GET /node/{id}/history", h.History)
	mux.HandleFunc("GET /health", h.Health)
}

// Import applies a batch of item descriptors
// POST /imports
func (h *CatalogHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req catalogSvc.ImportRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	result, err := h.imports.Import(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// GetNode returns an item with its nested subtree
// GET /nodes/{id}
func (h *CatalogHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.queries.NodeInfo(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// Delete removes an item with its subtree and history
// DELETE /delete/{id}?date=
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	date, err := requireQuery(r, "date")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	result, err := h.deletes.DeleteNode(r.Context(), r.PathValue("id"), date)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// Updates lists files changed within 24 hours before date
// GET /updates?date=
func (h *CatalogHandler) Updates(w http.ResponseWriter, r *http.Request) {
	date, err := requireQuery(r, "date")
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	files, err := h.queries.RecentFiles(r.Context(), date)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondItems(w, files)
}

// History returns an item's snapshots in [dateStart, dateEnd), newest first
// GET /node/{id}/history?dateStart=&dateEnd=
func (h *CatalogHandler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.queries.HistoryOf(
		r.Context(),
		r.PathValue("id"),
		httputil.OptionalQueryParam(r, "dateStart"),
		httputil.OptionalQueryParam(r, "dateEnd"),
	)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondItems[catalog.HistoryRecord](w, records)
}

// Health reports liveness
// GET /health
func (h *CatalogHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
