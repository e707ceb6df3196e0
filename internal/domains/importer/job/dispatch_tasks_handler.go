package job

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"luxestore-backend/internal/domains/importer/model"
	"luxestore-backend/internal/domains/importer/repository"
	"luxestore-backend/internal/domains/importer/service"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// FileStore fetches uploaded task files. MinIO storage satisfies it.
type FileStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// NewDispatchTasksHandler returns the handler that drains due bulk import
// tasks: each task file is a CSV of `keyword,count` lines, one import job
// per line.
func NewDispatchTasksHandler(
	tasks repository.TaskRepository,
	files FileStore,
	controller *service.Controller,
) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, _ *asynq.Task) error {
		due, err := tasks.FindDue(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}
		log.Info().Int("count", len(due)).Msg("Dispatching bulk import tasks")

		for _, task := range due {
			if err := dispatchOne(ctx, task, files, controller); err != nil {
				log.Error().Err(err).Str("task_id", task.ID.String()).Msg("Bulk import task failed")
				if markErr := tasks.MarkProcessed(ctx, task.ID, err.Error()); markErr != nil {
					return markErr
				}
				continue
			}
			if err := tasks.MarkProcessed(ctx, task.ID, ""); err != nil {
				return err
			}
		}
		return nil
	}
}

func dispatchOne(ctx context.Context, task model.BulkImportTask, files FileStore, controller *service.Controller) error {
	data, err := files.Download(ctx, task.FileKey)
	if err != nil {
		return fmt.Errorf("failed to download task file: %w", err)
	}

	lines, err := parseTaskFile(data)
	if err != nil {
		return err
	}

	for _, params := range lines {
		job, err := controller.Start(ctx, params, nil)
		if err != nil {
			return fmt.Errorf("failed to start import for keyword %q: %w", params.Keyword, err)
		}
		log.Info().
			Str("task_id", task.ID.String()).
			Str("job_id", job.ID.String()).
			Str("keyword", params.Keyword).
			Msg("Bulk import job started")
	}
	return nil
}

// parseTaskFile reads `keyword,count` CSV rows. Blank lines and a header row
// are tolerated.
func parseTaskFile(data []byte) ([]model.Params, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid task file: %w", err)
	}

	var out []model.Params
	for i, record := range records {
		if len(record) < 2 {
			continue
		}
		keyword := strings.TrimSpace(record[0])
		countRaw := strings.TrimSpace(record[1])
		if keyword == "" {
			continue
		}
		if i == 0 && strings.EqualFold(keyword, "keyword") {
			continue
		}
		count, err := strconv.Atoi(countRaw)
		if err != nil || count <= 0 {
			return nil, fmt.Errorf("invalid count %q on line %d", countRaw, i+1)
		}
		out = append(out, model.Params{Keyword: keyword, Count: count})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("task file contains no import lines")
	}
	return out, nil
}
