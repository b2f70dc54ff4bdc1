package worker

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"learnhub/internal/config"
	"learnhub/internal/database"
	"learnhub/internal/models"
	"learnhub/internal/notify"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{}
	worker := NewNotificationWorker(db, mailer, nil, config.WorkerConfig{}, nil)

	ctx := context.Background()
	task := newTask(t, "a@example.com")
	if err := worker.Enqueue(ctx, task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	queued, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &queued)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.TaskStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "a@example.com", mailer.sent[0].To)
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{err: errors.New("relay down")}
	worker := NewNotificationWorker(db, mailer, nil, config.WorkerConfig{MaxRetries: 3, InitialDelay: time.Second}, nil)

	ctx := context.Background()
	task := newTask(t, "b@example.com")
	require.NoError(t, worker.Enqueue(ctx, task))

	queued, ok := worker.tryLocalQueue()
	require.True(t, ok)
	worker.processTask(ctx, &queued)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.TaskStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now().Add(-time.Second)) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	mailer := &fakeMailer{err: errors.New("fatal")}
	worker := NewNotificationWorker(db, mailer, client, config.WorkerConfig{MaxRetries: 1, DeadLetterKey: "dead"}, nil)

	ctx := context.Background()
	task := newTask(t, "c@example.com")
	require.NoError(t, worker.Enqueue(ctx, task))
	queued, ok := worker.tryRedis(ctx)
	require.True(t, ok)
	worker.processTask(ctx, &queued)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.TaskStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
	dead, err := s.List("dead")
	require.NoError(t, err)
	assert.Len(t, dead, 1)
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{}
	worker := NewNotificationWorker(db, mailer, nil, config.WorkerConfig{}, nil)

	ctx := context.Background()
	task := &models.NotificationTask{TaskType: models.TaskBookingCreated, BookingID: 1, Recipient: "x@example.com", Payload: "not json"}
	require.NoError(t, worker.Enqueue(ctx, task))
	queued, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &queued)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, models.TaskStatusFailed, status)
	assert.Empty(t, mailer.sent)
}

func TestEnqueue(t *testing.T) {
	db := newTestDB(t)
	worker := NewNotificationWorker(db, &fakeMailer{}, nil, config.WorkerConfig{}, nil)
	ctx := context.Background()

	t.Run("MissingType", func(t *testing.T) {
		err := worker.Enqueue(ctx, &models.NotificationTask{Recipient: "a@example.com"})
		assert.Error(t, err)
	})

	t.Run("MissingRecipient", func(t *testing.T) {
		err := worker.Enqueue(ctx, &models.NotificationTask{TaskType: models.TaskBookingCreated})
		assert.Error(t, err)
	})

	t.Run("RedisQueue", func(t *testing.T) {
		s := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: s.Addr()})
		defer client.Close()

		w := NewNotificationWorker(db, &fakeMailer{}, client, config.WorkerConfig{QueueKey: "q"}, nil)
		task := newTask(t, "r@example.com")
		require.NoError(t, w.Enqueue(ctx, task))

		items, err := s.List("q")
		require.NoError(t, err)
		assert.Len(t, items, 1)
		_, local := w.tryLocalQueue()
		assert.False(t, local)

		got, ok := w.tryRedis(ctx)
		require.True(t, ok)
		assert.Equal(t, task.ID, got.ID)
	})

	t.Run("RedisDownFallsBackToMemory", func(t *testing.T) {
		s := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: s.Addr()})
		defer client.Close()
		s.Close()

		w := NewNotificationWorker(db, &fakeMailer{}, client, config.WorkerConfig{}, nil)
		task := newTask(t, "m@example.com")
		require.NoError(t, w.Enqueue(ctx, task))
		got, ok := w.tryLocalQueue()
		require.True(t, ok)
		assert.Equal(t, task.ID, got.ID)
	})
}

func TestProcessPendingPicksUpOutbox(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{}
	worker := NewNotificationWorker(db, mailer, nil, config.WorkerConfig{}, nil)
	ctx := context.Background()

	// Written directly to the outbox, as if the queue push was lost.
	task := newTask(t, "lost@example.com")
	require.NoError(t, db.CreateNotificationTask(ctx, task))

	n, err := worker.processPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, mailer.sent, 1)

	n, err = worker.processPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTaskDeliveredOnceFromQueueAndOutbox(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{}
	worker := NewNotificationWorker(db, mailer, nil, config.WorkerConfig{}, nil)
	ctx := context.Background()

	task := newTask(t, "once@example.com")
	require.NoError(t, worker.Enqueue(ctx, task))

	n, err := worker.processPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	queued, ok := worker.tryLocalQueue()
	require.True(t, ok)
	worker.processTask(ctx, &queued)

	assert.Equal(t, 1, mailer.count())
	status, _, _ := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, models.TaskStatusCompleted, status)
}

func TestRetriedTaskIsNotResentFromQueue(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{err: errors.New("relay down")}
	worker := NewNotificationWorker(db, mailer, nil, config.WorkerConfig{MaxRetries: 3, InitialDelay: time.Hour}, nil)
	ctx := context.Background()

	task := newTask(t, "later@example.com")
	require.NoError(t, worker.Enqueue(ctx, task))
	_, err := worker.processPending(ctx)
	require.NoError(t, err)

	mailer.mu.Lock()
	mailer.err = nil
	mailer.mu.Unlock()

	queued, ok := worker.tryLocalQueue()
	require.True(t, ok)
	worker.processTask(ctx, &queued)

	assert.Zero(t, mailer.count(), "retry is scheduled an hour out")
	status, retryCount, _ := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, models.TaskStatusRetry, status)
	assert.Equal(t, 1, retryCount)
}

func TestStartReleasesStaleClaims(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task := newTask(t, "stale@example.com")
	require.NoError(t, db.CreateNotificationTask(ctx, task))
	claimed, err := db.ClaimNotificationTask(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	worker := NewNotificationWorker(db, mailer, nil, config.WorkerConfig{PollInterval: 10 * time.Millisecond}, nil)
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return mailer.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestStartStopsOnCancel(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{}
	worker := NewNotificationWorker(db, mailer, nil, config.WorkerConfig{PollInterval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, worker.Enqueue(ctx, newTask(t, "loop@example.com")))

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return mailer.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(config.WorkerConfig{})
	assert.Equal(t, 5, p.MaxRetries)
	assert.Equal(t, 2*time.Second, p.InitialDelay)
	assert.Equal(t, time.Minute, p.MaxDelay)
	assert.False(t, p.Exhausted(4))
	assert.True(t, p.Exhausted(5))
}

// Helpers

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []notify.Message
}

func (f *fakeMailer) Send(ctx context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTask(t *testing.T, to string) *models.NotificationTask {
	t.Helper()
	payload, err := notify.Message{To: to, Subject: "Booking received", Body: "hello"}.Encode()
	require.NoError(t, err)
	return &models.NotificationTask{
		TaskType:  models.TaskBookingCreated,
		BookingID: 1,
		Recipient: to,
		Payload:   payload,
	}
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM notification_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
