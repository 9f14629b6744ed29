package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kartoza/price-gateway/internal/config"
	"github.com/kartoza/price-gateway/internal/encoding"
	"github.com/kartoza/price-gateway/internal/features"
	"github.com/kartoza/price-gateway/internal/history"
	"github.com/kartoza/price-gateway/internal/inference"
	"github.com/kartoza/price-gateway/internal/models"
	"github.com/kartoza/price-gateway/internal/nn"
)

// maxBodyBytes bounds prediction request bodies
const maxBodyBytes = 64 << 10

// defaultRecent is the page size of the history listing
const defaultRecent = 20

// Handler provides HTTP API endpoints
type Handler struct {
	coordinator *inference.Coordinator
	registry    *encoding.Registry
	model       *nn.Adapter
	history     *history.Store
	cfg         config.Config
	logger      *zap.Logger
}

// NewHandler creates a new API handler. store may be nil when prediction
// history is disabled.
func NewHandler(
	coordinator *inference.Coordinator,
	registry *encoding.Registry,
	model *nn.Adapter,
	store *history.Store,
	cfg config.Config,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		coordinator: coordinator,
		registry:    registry,
		model:       model,
		history:     store,
		cfg:         cfg,
		logger:      logger,
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")
	r.HandleFunc("/encodings", h.handleEncodings).Methods("GET")

	// Inference
	r.HandleFunc("/predict", h.handlePredict).Methods("POST")

	// History
	r.HandleFunc("/predictions", h.handleListPredictions).Methods("GET")
	r.HandleFunc("/predictions/{id}", h.handleGetPrediction).Methods("GET")
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("Error encoding response", zap.Error(err))
	}
}

// respondError sends a JSON error response
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// statusCode maps an outcome to its HTTP status
func statusCode(s inference.Status) int {
	switch s {
	case inference.StatusPredicted:
		return http.StatusOK
	case inference.StatusAssemblyFailed:
		return http.StatusUnprocessableEntity
	case inference.StatusModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth returns server health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"version":         h.cfg.Version,
		"model":           h.model.Status(),
		"history_enabled": h.history != nil,
	}
	h.respondJSON(w, http.StatusOK, info)
}

// handleEncodings returns the categorical vocabularies
func (h *Handler) handleEncodings(w http.ResponseWriter, r *http.Request) {
	resp := models.EncodingsResponse{
		DefaultCode:  encoding.DefaultCode,
		Vocabularies: make(map[string]map[string]int),
	}
	if h.registry != nil {
		for _, dim := range h.registry.Dimensions() {
			resp.Vocabularies[string(dim)] = h.registry.Vocabulary(dim)
		}
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// handlePredict runs one inference from a form or JSON body
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	d, err := decodeDescriptor(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := h.coordinator.Infer(d)
	id := h.record(r, out)

	h.respondJSON(w, statusCode(out.Status), models.NewPredictResponse(id, out))
}

// decodeDescriptor reads the five descriptor fields from a JSON, urlencoded
// or multipart body
func decodeDescriptor(r *http.Request) (features.Descriptor, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var req models.PredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return features.Descriptor{}, fmt.Errorf("invalid JSON body: %w", err)
		}
		return req.Descriptor(), nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return features.Descriptor{}, fmt.Errorf("invalid multipart body: %w", err)
		}
	default:
		if err := r.ParseForm(); err != nil {
			return features.Descriptor{}, fmt.Errorf("invalid form body: %w", err)
		}
	}

	return features.Descriptor{
		Bedrooms:      r.PostFormValue("bedrooms"),
		Builder:       r.PostFormValue("builder"),
		Locality:      r.PostFormValue("locality"),
		PrimeLocation: r.PostFormValue("prime_location"),
		PropertyType:  r.PostFormValue("property_type"),
	}, nil
}

// record stores out in the history and returns its ID. Failures are logged
// and leave the ID empty; they never change the response status.
func (h *Handler) record(r *http.Request, out inference.Outcome) string {
	if h.history == nil {
		return ""
	}

	rec, err := history.RecordFromOutcome(out)
	if err != nil {
		h.logger.Warn("Failed to build prediction record", zap.Error(err))
		return ""
	}
	if err := h.history.Save(r.Context(), rec); err != nil {
		h.logger.Warn("Failed to save prediction", zap.Error(err))
		return ""
	}
	return rec.ID
}

// handleGetPrediction replays a stored outcome
func (h *Handler) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.respondError(w, http.StatusNotFound, "prediction history is disabled")
		return
	}

	id := mux.Vars(r)["id"]
	rec, err := h.history.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Failed to load prediction", zap.String("id", id), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to load prediction")
		return
	}

	resp, err := recordResponse(rec)
	if err != nil {
		h.logger.Error("Stored prediction is corrupt", zap.String("id", id), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to load prediction")
		return
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// handleListPredictions returns the most recent stored outcomes
func (h *Handler) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecent
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	if h.history == nil {
		h.respondJSON(w, http.StatusOK, []models.PredictResponse{})
		return
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list predictions", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to list predictions")
		return
	}

	resp := make([]models.PredictResponse, 0, len(records))
	for i := range records {
		item, err := recordResponse(&records[i])
		if err != nil {
			h.logger.Warn("Skipping corrupt prediction record",
				zap.String("id", records[i].ID),
				zap.Error(err),
			)
			continue
		}
		resp = append(resp, item)
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func recordResponse(rec *history.Record) (models.PredictResponse, error) {
	out, err := rec.Outcome()
	if err != nil {
		return models.PredictResponse{}, err
	}
	resp := models.NewPredictResponse(rec.ID, out)
	createdAt := rec.CreatedAt.UTC()
	resp.CreatedAt = &createdAt
	return resp, nil
}
