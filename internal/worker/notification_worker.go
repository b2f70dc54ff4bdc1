package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"learnhub/internal/apperr"
	"learnhub/internal/config"
	"learnhub/internal/domain"
	"learnhub/internal/metrics"
	"learnhub/internal/models"
	"learnhub/internal/notify"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NotificationWorker delivers queued e-mails. Every task is persisted in the
// outbox first; Redis or the in-memory channel only shorten the wait, and the
// outbox poll picks up anything they lose.
type NotificationWorker struct {
	store         domain.NotificationTaskRepository
	mailer        notify.Mailer
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.NotificationTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewNotificationWorker(
	store domain.NotificationTaskRepository,
	mailer notify.Mailer,
	redisClient *redis.Client,
	cfg config.WorkerConfig,
	logger *zerolog.Logger,
) *NotificationWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.QueueKey == "" {
		cfg.QueueKey = "notifications:queue"
	}
	if cfg.DeadLetterKey == "" {
		cfg.DeadLetterKey = "notifications:deadletter"
	}

	return &NotificationWorker{
		store:         store,
		mailer:        mailer,
		redis:         redisClient,
		retryPolicy:   PolicyFromConfig(cfg),
		queue:         make(chan models.NotificationTask, models.WorkerQueueSize),
		redisQueueKey: cfg.QueueKey,
		deadLetterKey: cfg.DeadLetterKey,
		pollInterval:  cfg.PollInterval,
		batchSize:     20,
		logger:        logger,
	}
}

// Enqueue persists task to the outbox and schedules it via redis or the in-memory queue.
func (w *NotificationWorker) Enqueue(ctx context.Context, task *models.NotificationTask) error {
	if task.TaskType == "" {
		return apperr.Validation("task_type", "is required")
	}
	if task.Recipient == "" {
		return apperr.Validation("recipient", "is required")
	}

	task.Status = models.TaskStatusPending
	if err := w.store.CreateNotificationTask(ctx, task); err != nil {
		return fmt.Errorf("persist notification task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, *task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("Redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- *task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("In-memory queue full, task left to outbox polling")
	}
	return nil
}

// Start runs until ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Notification worker started")
	defer w.logger.Info().Msg("Notification worker stopped")

	if n, err := w.store.ReleaseNotificationClaims(ctx); err != nil {
		w.logger.Error().Err(err).Msg("Failed to release notification claims")
	} else if n > 0 {
		w.logger.Warn().Int64("released", n).Msg("Released notifications left in processing")
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		n, err := w.processPending(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("Failed to fetch pending notifications")
		}
		if n == 0 {
			sleep(ctx, w.pollInterval)
		}
	}
}

// processPending delivers due outbox tasks and returns how many it handled.
func (w *NotificationWorker) processPending(ctx context.Context) (int, error) {
	tasks, err := w.store.GetPendingNotificationTasks(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks), nil
}

func (w *NotificationWorker) tryLocalQueue() (models.NotificationTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotificationTask{}, false
	}
}

func (w *NotificationWorker) tryRedis(ctx context.Context) (models.NotificationTask, bool) {
	if w.redis == nil {
		return models.NotificationTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("Redis BRPOP failed")
		}
		return models.NotificationTask{}, false
	}
	if len(res) != 2 {
		return models.NotificationTask{}, false
	}
	var task models.NotificationTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode queued notification")
		return models.NotificationTask{}, false
	}
	return task, true
}

func (w *NotificationWorker) processTask(ctx context.Context, task *models.NotificationTask) {
	log := w.logger.With().Int64("task_id", task.ID).Str("task_type", task.TaskType).Logger()

	// The same task can arrive from the queue and from the outbox poll.
	claimed, err := w.store.ClaimNotificationTask(ctx, task.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to claim notification")
		return
	}
	if !claimed {
		log.Debug().Msg("Notification already claimed, skipping")
		return
	}

	msg, err := notify.Decode(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.mailer.Send(ctx, msg); err != nil {
		log.Warn().Err(err).Int("retry_count", task.RetryCount).Msg("Notification delivery failed")
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncNotification("sent")
	if err := w.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		log.Error().Err(err).Msg("Failed to mark notification completed")
	}
}

func (w *NotificationWorker) retryOrFail(ctx context.Context, task *models.NotificationTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncNotification("retry")
	next := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to schedule notification retry")
	}
}

func (w *NotificationWorker) failTask(ctx context.Context, task *models.NotificationTask, cause error) {
	metrics.IncNotification("dead")
	if err := w.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark notification failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *NotificationWorker) pushRedis(ctx context.Context, task models.NotificationTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *NotificationWorker) pushDeadLetter(ctx context.Context, task *models.NotificationTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to encode dead letter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to push dead letter")
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
