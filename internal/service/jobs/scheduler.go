package jobs

import (
	"context"
	"fmt"

	chatSvc "chatstream/internal/domain/services/chat"
)

// Scheduler implements chat.JobScheduler on top of a Queue
type Scheduler struct {
	queue Queue
}

// NewScheduler creates a scheduler that enqueues onto queue
func NewScheduler(queue Queue) *Scheduler {
	return &Scheduler{queue: queue}
}

var _ chatSvc.JobScheduler = (*Scheduler)(nil)

func (s *Scheduler) ScheduleTitle(ctx context.Context, job *chatSvc.TitleJob) error {
	if job == nil || job.MessageID == "" || job.ConversationID == "" {
		return fmt.Errorf("title job requires message and conversation ids")
	}
	return s.queue.Enqueue(ctx, chatSvc.JobKindTitle, job)
}

func (s *Scheduler) ScheduleTokenCount(ctx context.Context, job *chatSvc.TokenCountJob) error {
	if job == nil || len(job.AttachmentIDs) == 0 {
		return nil
	}
	return s.queue.Enqueue(ctx, chatSvc.JobKindTokenCount, job)
}
