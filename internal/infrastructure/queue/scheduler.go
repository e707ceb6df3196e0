package queue

import (
	"time"

	"luxestore-backend/internal/shared"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// NewScheduler builds the cron scheduler. All specs run in UTC. Each entry is
// unique-locked for most of its period, so a run that is still alive when the
// next tick fires makes the new task a no-op instead of an overlap; missed
// ticks are not back-filled.
func NewScheduler(redisOpt asynq.RedisClientOpt) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
	})

	entries := []struct {
		spec string
		task *asynq.Task
		opts []asynq.Option
	}{
		{
			spec: "0 * * * *",
			task: asynq.NewTask(shared.TypeFxRefresh, nil),
			opts: []asynq.Option{asynq.Queue(shared.QueueDefault), asynq.Unique(50 * time.Minute)},
		},
		{
			spec: "0 2 * * *",
			task: asynq.NewTask(shared.TypeRepriceLive, nil),
			opts: []asynq.Option{asynq.Queue(shared.QueueDefault), asynq.Unique(4 * time.Hour)},
		},
		{
			spec: "*/30 * * * *",
			task: asynq.NewTask(shared.TypeDispatchImportTasks, nil),
			opts: []asynq.Option{asynq.Queue(shared.QueueImports), asynq.Unique(25 * time.Minute)},
		},
		{
			spec: "0 */6 * * *",
			task: asynq.NewTask(shared.TypeInventorySync, nil),
			opts: []asynq.Option{asynq.Queue(shared.QueueDefault), asynq.Unique(5 * time.Hour)},
		},
	}

	for _, entry := range entries {
		entryID, err := scheduler.Register(entry.spec, entry.task, entry.opts...)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("task", entry.task.Type()).
			Str("spec", entry.spec).
			Str("entry_id", entryID).
			Msg("Scheduled task registered")
	}

	return scheduler, nil
}
