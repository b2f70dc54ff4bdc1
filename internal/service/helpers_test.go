package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"learnhub/internal/config"
	"learnhub/internal/database"
	"learnhub/internal/events"
	"learnhub/internal/models"
	"learnhub/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func daysFromNow(t *testing.T, days int) time.Time {
	t.Helper()
	d, err := models.ParseDate(time.Now().UTC().AddDate(0, 0, days).Format(models.DateLayout))
	require.NoError(t, err)
	return d
}

func createSlot(t *testing.T, db *database.DB, capacity *int64, mutate ...func(*models.Slot)) *models.Slot {
	t.Helper()
	slot := &models.Slot{
		Kind:        models.SlotKindMockInterview,
		Title:       "System design mock",
		Date:        daysFromNow(t, 3),
		StartTime:   "14:00",
		EndTime:     "15:00",
		Price:       1500,
		Capacity:    capacity,
		IsActive:    true,
		MeetingLink: "https://meet.example.com/mock",
	}
	for _, m := range mutate {
		m(slot)
	}
	require.NoError(t, db.CreateSlot(context.Background(), slot))
	return slot
}

func bookingConfig() config.BookingConfig {
	return config.BookingConfig{
		LinkLeadTime:         10 * time.Minute,
		DefaultSessionLength: time.Hour,
		MaxAdvanceDays:       180,
		RateLimitRequests:    100,
		RateLimitWindow:      time.Minute,
	}
}

// recordingQueue captures enqueued notifications.
type recordingQueue struct {
	mu    sync.Mutex
	err   error
	tasks []*models.NotificationTask
}

func (q *recordingQueue) Enqueue(ctx context.Context, task *models.NotificationTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) types() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.TaskType)
	}
	return out
}

// eventRecorder subscribes to every event type on a real bus.
func eventRecorder(bus *events.EventBus, types ...string) *[]string {
	var mu sync.Mutex
	seen := &[]string{}
	for _, typ := range types {
		bus.Subscribe(typ, func(e *events.Event) error {
			mu.Lock()
			defer mu.Unlock()
			*seen = append(*seen, e.Type)
			return nil
		})
	}
	return seen
}

func newBookingService(t *testing.T, db *database.DB, queue *recordingQueue, bus *events.EventBus, cfg config.BookingConfig) *BookingService {
	t.Helper()
	return NewBookingService(db, db, repository.NewMemoryCache(), bus, queue, cfg, testLogger())
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetActiveFlashSale(ctx context.Context) (*models.FlashSale, bool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.FlashSale), args.Bool(1), args.Error(2)
}

func (m *mockCache) SetActiveFlashSale(ctx context.Context, sale *models.FlashSale, ttl time.Duration) error {
	return m.Called(ctx, sale, ttl).Error(0)
}

func (m *mockCache) InvalidateActiveFlashSale(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type mockFlashSales struct {
	mock.Mock
}

func (m *mockFlashSales) CreateFlashSale(ctx context.Context, sale *models.FlashSale) error {
	return m.Called(ctx, sale).Error(0)
}

func (m *mockFlashSales) GetFlashSale(ctx context.Context, id int64) (*models.FlashSale, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FlashSale), args.Error(1)
}

func (m *mockFlashSales) ActivateFlashSale(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockFlashSales) DeactivateFlashSale(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockFlashSales) GetEnabledFlashSale(ctx context.Context) (*models.FlashSale, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FlashSale), args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) UpsertCatalogItem(ctx context.Context, item *models.CatalogItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *mockCatalog) GetCatalogItem(ctx context.Context, ref models.ItemRef) (*models.CatalogItem, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CatalogItem), args.Error(1)
}

func (m *mockCatalog) ListCatalogItems(ctx context.Context, itemType models.ItemType) ([]*models.CatalogItem, error) {
	args := m.Called(ctx, itemType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CatalogItem), args.Error(1)
}
