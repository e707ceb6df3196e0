package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"luxestore-backend/internal/domains/importer/model"
	"luxestore-backend/internal/domains/importer/service"
	"luxestore-backend/internal/shared/response"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// streamHeartbeatInterval paces SSE keep-alive comments for idle streams.
const streamHeartbeatInterval = 15 * time.Second

type ImportHandler struct {
	controller *service.Controller
}

func NewImportHandler(controller *service.Controller) *ImportHandler {
	return &ImportHandler{controller: controller}
}

type startImportRequest struct {
	Keyword   string `json:"keyword"`
	Count     int    `json:"count"`
	BatchSize int    `json:"batch_size"`
	Country   string `json:"country"`
}

func (r startImportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Keyword, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Count, validation.Required, validation.Min(1), validation.Max(1000)),
		validation.Field(&r.BatchSize, validation.Min(0), validation.Max(50)),
	)
}

// Start launches a keyword import job.
// POST /api/imports/start
func (h *ImportHandler) Start(c *gin.Context) {
	var req startImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid import parameters", err)
		return
	}

	var userID *uuid.UUID
	if raw, ok := c.Get("userID"); ok {
		if id, err := uuid.Parse(fmt.Sprint(raw)); err == nil {
			userID = &id
		}
	}

	job, err := h.controller.Start(c.Request.Context(), model.Params{
		Keyword:   req.Keyword,
		Count:     req.Count,
		BatchSize: req.BatchSize,
		Country:   req.Country,
	}, userID)
	if err != nil {
		if errors.Is(err, model.ErrInvalidParams) {
			response.BadRequest(c, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to start import job")
		response.InternalServerError(c, "Failed to start import")
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{
		"job_id":         job.ID,
		"source":         job.Supplier,
		"accepted_count": job.Params.Count,
	})
}

// Status returns the current progress snapshot of a job.
// GET /api/imports/:id/status
func (h *ImportHandler) Status(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid job id")
		return
	}

	job, err := h.controller.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			response.NotFound(c, "Import job not found")
			return
		}
		log.Error().Err(err).Str("job_id", id.String()).Msg("Failed to load import job")
		response.InternalServerError(c, "Failed to load import job")
		return
	}

	response.Success(c, http.StatusOK, job.Snapshot())
}

// List returns recent jobs, newest first.
// GET /api/imports
func (h *ImportHandler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			response.BadRequest(c, "Invalid limit")
			return
		}
	}

	jobs, err := h.controller.List(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list import jobs")
		response.InternalServerError(c, "Failed to list import jobs")
		return
	}
	response.Success(c, http.StatusOK, jobs)
}

// Cancel stops a running job.
// POST /api/imports/:id/cancel
func (h *ImportHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid job id")
		return
	}

	if err := h.controller.Cancel(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, model.ErrJobNotFound):
			response.NotFound(c, "Import job not found")
		case errors.Is(err, model.ErrJobFinalized):
			response.Conflict(c, "Import job already finished")
		default:
			log.Error().Err(err).Str("job_id", id.String()).Msg("Failed to cancel import job")
			response.InternalServerError(c, "Failed to cancel import job")
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"job_id": id, "cancelled": true})
}

// Stream pushes progress snapshots over SSE until the job reaches a terminal
// state. Events are `data: <json>` lines; idle streams get a comment
// heartbeat every 15s.
// GET /api/admin/import-tasks/:id/stream
func (h *ImportHandler) Stream(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid job id")
		return
	}

	events, unsubscribe, err := h.controller.Subscribe(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			response.NotFound(c, "Import job not found")
			return
		}
		log.Error().Err(err).Str("job_id", id.String()).Msg("Failed to subscribe to import job")
		response.InternalServerError(c, "Failed to open stream")
		return
	}
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		case snapshot, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(c.Writer, snapshot); err != nil {
				return
			}
			c.Writer.Flush()
			if snapshot.Terminal() {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, snapshot model.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
