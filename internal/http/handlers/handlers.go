package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Rohan-S-Mathad/ambulance-app/internal/models"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/service"
	"github.com/Rohan-S-Mathad/ambulance-app/internal/store"
)

type Handler struct {
	Coordinator *service.Coordinator
	Candidates  store.CandidateStore
	Validator   *validator.Validate
	Logger      zerolog.Logger

	// Ping checks the backing store. Nil means always healthy.
	Ping func(ctx context.Context) error
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			writeError(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Store unavailable", err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createIncidentRequest struct {
	Lat         *float64 `json:"lat" binding:"required"`
	Lon         *float64 `json:"lon" binding:"required"`
	RequesterID string   `json:"requester_id"`
}

// @Summary Create incident and broadcast to nearest ambulances
// @Tags incidents
// @Accept json
// @Produce json
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/incidents [post]
func (h *Handler) CreateIncident(c *gin.Context) {
	var req createIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "lat and lon are required", err.Error())
		return
	}

	incident, broadcasts, err := h.Coordinator.CreateIncident(c.Request.Context(), models.Location{Lat: *req.Lat, Lon: *req.Lon}, req.RequesterID)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			writeError(c, http.StatusBadRequest, "INVALID_COORDINATES", "Coordinates out of range", nil)
			return
		}
		h.Logger.Error().Err(err).Msg("create incident failed")
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to create incident", err.Error())
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"incident_id": incident.ID,
		"status":      incident.Status,
		"broadcasts":  broadcasts,
	})
}

func (h *Handler) GetIncident(c *gin.Context) {
	incident, err := h.Coordinator.GetIncident(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Incident not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to get incident", err.Error())
		return
	}
	c.JSON(http.StatusOK, incident)
}

type acceptAmbulanceRequest struct {
	AmbulanceID string `json:"ambulance_id" binding:"required"`
}

// @Summary Accept incident as ambulance (first accept wins)
// @Tags incidents
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/incidents/{id}/accept-ambulance [post]
func (h *Handler) AcceptAmbulance(c *gin.Context) {
	var req acceptAmbulanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "ambulance_id is required", err.Error())
		return
	}
	h.writeAcceptResult(c, h.Coordinator.AcceptAsAmbulance(c.Request.Context(), c.Param("id"), req.AmbulanceID))
}

type acceptHospitalRequest struct {
	HospitalID string `json:"hospital_id" binding:"required"`
}

// @Summary Accept incident as hospital (first accept wins)
// @Tags incidents
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/incidents/{id}/accept-hospital [post]
func (h *Handler) AcceptHospital(c *gin.Context) {
	var req acceptHospitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "hospital_id is required", err.Error())
		return
	}
	h.writeAcceptResult(c, h.Coordinator.AcceptAsHospital(c.Request.Context(), c.Param("id"), req.HospitalID))
}

// writeAcceptResult keeps losing racers on the same response shape as
// winners: the race outcome is data, not a transport failure.
func (h *Handler) writeAcceptResult(c *gin.Context, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	if reason := service.FailureReason(err); reason != "" {
		status := http.StatusConflict
		if reason == "not_found" {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"success": false, "reason": reason})
		return
	}
	h.Logger.Error().Err(err).Msg("acceptance failed")
	writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Acceptance failed", err.Error())
}

type rejectRequest struct {
	Role        models.Role `json:"role" binding:"required"`
	CandidateID string      `json:"candidate_id" binding:"required"`
}

func (h *Handler) RejectBroadcast(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Role.Valid() {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "role and candidate_id are required", nil)
		return
	}
	if err := h.Coordinator.Reject(c.Request.Context(), c.Param("id"), req.Role, req.CandidateID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Broadcast not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to reject broadcast", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary Complete incident and release assigned candidates
// @Tags incidents
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/incidents/{id}/complete [post]
func (h *Handler) CompleteIncident(c *gin.Context) {
	incident, err := h.Coordinator.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Incident not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to complete incident", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "incident": incident})
}

// @Summary Pending broadcasts for one candidate
// @Tags broadcasts
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/broadcasts/{targetType}/{targetId} [get]
func (h *Handler) ListBroadcasts(c *gin.Context) {
	role := models.Role(c.Param("targetType"))
	items, err := h.Coordinator.ListPendingBroadcasts(c.Request.Context(), role, c.Param("targetId"))
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "target type must be ambulance or hospital", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list broadcasts", err.Error())
		return
	}
	if items == nil {
		items = []models.Broadcast{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type candidatePayload struct {
	ID     string  `json:"id" validate:"required"`
	Role   string  `json:"role" validate:"required,oneof=ambulance hospital"`
	Name   string  `json:"name"`
	Phone  string  `json:"phone"`
	Lat    float64 `json:"lat" validate:"min=-90,max=90"`
	Lon    float64 `json:"lon" validate:"min=-180,max=180"`
	Status string  `json:"status" validate:"omitempty,oneof=available busy"`
}

// @Summary Batch upsert the candidate roster
// @Tags candidates
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/candidates [post]
func (h *Handler) UpsertCandidates(c *gin.Context) {
	var payload []candidatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "candidate array required", err.Error())
		return
	}

	for i, p := range payload {
		if err := h.Validator.Struct(p); err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_CANDIDATE", "Candidate validation failed", gin.H{"index": i, "error": err.Error()})
			return
		}
	}

	upserted := 0
	for _, p := range payload {
		status := models.CandidateStatus(p.Status)
		if status == "" {
			status = models.CandidateAvailable
		}
		candidate := models.Candidate{
			ID:       p.ID,
			Role:     models.Role(p.Role),
			Name:     p.Name,
			Phone:    p.Phone,
			Location: models.Location{Lat: p.Lat, Lon: p.Lon},
			Status:   status,
		}
		if err := h.Candidates.UpsertCandidate(c.Request.Context(), &candidate); err != nil {
			writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to upsert candidate", err.Error())
			return
		}
		upserted++
	}
	c.JSON(http.StatusOK, gin.H{"upserted": upserted})
}

type locationRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lon *float64 `json:"lon" binding:"required"`
}

func (h *Handler) UpdateCandidateLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "lat and lon are required", err.Error())
		return
	}
	loc := models.Location{Lat: *req.Lat, Lon: *req.Lon}
	if !loc.InRange() {
		writeError(c, http.StatusBadRequest, "INVALID_COORDINATES", "Coordinates out of range", nil)
		return
	}
	if err := h.Candidates.UpdateLocation(c.Request.Context(), c.Param("id"), loc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Candidate not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to update location", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ListCandidates(c *gin.Context) {
	role := models.Role(c.Query("role"))
	if !role.Valid() {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "role query must be ambulance or hospital", nil)
		return
	}
	items, err := h.Candidates.ListByRole(c.Request.Context(), role)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list candidates", err.Error())
		return
	}
	if items == nil {
		items = []models.Candidate{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	payload := gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	if details != nil {
		payload["error"].(gin.H)["details"] = details
	}
	c.JSON(status, payload)
}
