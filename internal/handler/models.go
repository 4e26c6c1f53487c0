package handler

import (
	"net/http"

	"chatstream/internal/capabilities"
	"chatstream/internal/httputil"
)

// ModelCatalog lists the models offered to clients
type ModelCatalog interface {
	List() []capabilities.ModelConfig
}

// ModelsHandler serves the model catalogue
type ModelsHandler struct {
	catalog ModelCatalog
}

func NewModelsHandler(catalog ModelCatalog) *ModelsHandler {
	return &ModelsHandler{catalog: catalog}
}

// ListModels returns every model the server can route to
// GET /api/models
func (h *ModelsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.catalog.List())
}
