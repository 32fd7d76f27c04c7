// Package job holds the cron jobs run by the web server.
package job

import (
	"context"
	"time"

	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/logger"
)

const jobTimeout = 30 * time.Second

// CheckpointJob folds the sqlite write-ahead log back into the database file.
type CheckpointJob struct {
	store database.Checkpointer
}

func NewCheckpointJob(store database.Checkpointer) *CheckpointJob {
	return &CheckpointJob{store: store}
}

// Run is called by cron.
func (j *CheckpointJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := j.store.Checkpoint(ctx); err != nil {
		logger.Warning("checkpoint job err:", err)
	}
}
