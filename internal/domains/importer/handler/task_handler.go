package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"luxestore-backend/internal/domains/importer/model"
	"luxestore-backend/internal/domains/importer/repository"
	"luxestore-backend/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// maxTaskFileSize bounds uploaded task files (1 MiB of CSV is thousands of
// keywords).
const maxTaskFileSize = 1 << 20

// FileUploader stores uploaded task files. MinIO storage satisfies it.
type FileUploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type TaskHandler struct {
	tasks repository.TaskRepository
	files FileUploader
}

func NewTaskHandler(tasks repository.TaskRepository, files FileUploader) *TaskHandler {
	return &TaskHandler{tasks: tasks, files: files}
}

// Create accepts a CSV of `keyword,count` lines and schedules it as a bulk
// import task. Multipart field: "file"; optional "scheduled_at" (RFC 3339).
// POST /api/admin/import-tasks
func (h *TaskHandler) Create(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "A task file is required")
		return
	}
	if fileHeader.Size > maxTaskFileSize {
		response.BadRequest(c, "Task file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "Failed to read task file")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxTaskFileSize))
	if err != nil {
		response.BadRequest(c, "Failed to read task file")
		return
	}

	scheduledAt := time.Now().UTC()
	if raw := c.PostForm("scheduled_at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(c, "scheduled_at must be RFC 3339")
			return
		}
		scheduledAt = parsed.UTC()
	}

	key := fmt.Sprintf("import-tasks/%s.csv", uuid.New())
	if _, err := h.files.Upload(c.Request.Context(), key, data, "text/csv"); err != nil {
		log.Error().Err(err).Msg("Failed to store task file")
		response.InternalServerError(c, "Failed to store task file")
		return
	}

	task := &model.BulkImportTask{FileKey: key, ScheduledAt: scheduledAt}
	if err := h.tasks.Create(c.Request.Context(), task); err != nil {
		log.Error().Err(err).Msg("Failed to create bulk import task")
		response.InternalServerError(c, "Failed to create bulk import task")
		return
	}

	response.Success(c, http.StatusCreated, task)
}

// List returns recent bulk import tasks.
// GET /api/admin/import-tasks
func (h *TaskHandler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			response.BadRequest(c, "Invalid limit")
			return
		}
	}

	tasks, err := h.tasks.List(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list bulk import tasks")
		response.InternalServerError(c, "Failed to list bulk import tasks")
		return
	}
	response.Success(c, http.StatusOK, tasks)
}

// Get returns one bulk import task.
// GET /api/admin/import-tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid task id")
		return
	}

	task, err := h.tasks.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			response.NotFound(c, "Bulk import task not found")
			return
		}
		log.Error().Err(err).Msg("Failed to load bulk import task")
		response.InternalServerError(c, "Failed to load bulk import task")
		return
	}
	response.Success(c, http.StatusOK, task)
}
