package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/markdave123-py/Examina/internal/core/llm"
	"github.com/markdave123-py/Examina/internal/logging"
)

type ModelService interface {
	AIStatus() (llm.ModelStatus, error)
	RefreshModels(ctx context.Context) (llm.ModelStatus, error)
}

type AIHandler struct {
	models ModelService
	log    *zap.Logger
}

func NewAIHandler(models ModelService, log *zap.Logger) *AIHandler {
	return &AIHandler{models: models, log: logging.OrNop(log)}
}

func (h *AIHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.models.AIStatus()
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Refresh forces a model availability check. A failed check still answers
// with the current status, under 502.
func (h *AIHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	st, err := h.models.RefreshModels(r.Context())
	if err != nil {
		if st.CurrentModel == "" {
			writeServiceError(w, h.log, err)
			return
		}
		h.log.Warn("model.refresh_failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "status": st})
		return
	}
	writeJSON(w, http.StatusOK, st)
}
