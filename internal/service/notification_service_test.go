package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/hijabworld/internal/events"
	"github.com/d60-Lab/hijabworld/internal/model"
	"github.com/d60-Lab/hijabworld/internal/repository"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.NotificationEvent
	err    error
	block  chan struct{}
}

func (p *capturePublisher) Publish(_ context.Context, ev events.NotificationEvent) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestNotificationService_NotifyPersistsAndPublishes(t *testing.T) {
	db := setupDB(t)
	pub := &capturePublisher{}
	d := NewEventDispatcher(pub, 16)
	stop := d.Start(2)

	svc := NewNotificationService(repository.NewNotificationRepository(db), d)
	svc.Notify(context.Background(), &model.Notification{
		UserID:   "user-1",
		Type:     model.NotificationOrderConfirm,
		Title:    "Order Confirmed",
		Message:  "Your order #HW1 has been received and is being processed.",
		Priority: model.PriorityHigh,
		Data:     model.NotificationData{OrderID: "o-1", Link: "/my-orders/o-1"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))

	require.Equal(t, 1, pub.count())
	ev := pub.events[0]
	assert.Equal(t, "user-1", ev.UserID)
	assert.Equal(t, "order_confirm", ev.Type)
	assert.Equal(t, "o-1", ev.OrderID)
	assert.NotEmpty(t, ev.ID)

	page, err := svc.List(context.Background(), "user-1", nil, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, "/my-orders/o-1", page.Notifications[0].Data.Link)
	assert.Equal(t, int64(1), page.UnreadCount)
}

func TestNotificationService_NotifyFailureIsSwallowed(t *testing.T) {
	db := setupDB(t)
	pub := &capturePublisher{}
	d := NewEventDispatcher(pub, 4)
	svc := NewNotificationService(repository.NewNotificationRepository(db), d)

	require.NoError(t, db.Migrator().DropTable(&model.Notification{}))
	assert.NotPanics(t, func() {
		svc.Notify(context.Background(), &model.Notification{UserID: "u", Type: model.NotificationSystem, Title: "t", Message: "m"})
	})
	assert.Zero(t, d.QueueLen())
}

func TestNotificationService_ReadLifecycle(t *testing.T) {
	db := setupDB(t)
	svc := NewNotificationService(repository.NewNotificationRepository(db), nil)
	ctx := context.Background()

	var ids []string
	for _, kind := range []model.NotificationType{model.NotificationOrderConfirm, model.NotificationPaymentSuccess, model.NotificationSystem} {
		n := &model.Notification{UserID: "user-1", Type: kind, Title: "t", Message: "m"}
		svc.Notify(ctx, n)
		ids = append(ids, n.ID)
	}
	svc.Notify(ctx, &model.Notification{UserID: "user-2", Type: model.NotificationSystem, Title: "t", Message: "m"})

	require.NoError(t, svc.MarkRead(ctx, ids[0], "user-1"))
	err := svc.MarkRead(ctx, ids[1], "user-2")
	assert.True(t, errors.Is(err, ErrNotFound))

	unread := false
	page, err := svc.List(ctx, "user-1", &unread, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 2)
	assert.Equal(t, int64(2), page.UnreadCount)

	stats, err := svc.Stats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Unread)
	assert.Equal(t, int64(1), stats.ByType["payment_success"])

	n, err := svc.MarkAllRead(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, svc.Delete(ctx, ids[2], "user-1"))
	assert.True(t, errors.Is(svc.Delete(ctx, ids[2], "user-1"), ErrNotFound))

	page, err = svc.List(ctx, "user-1", nil, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 2)
	assert.Zero(t, page.UnreadCount)
}

func TestEventDispatcher_DropsWhenFull(t *testing.T) {
	setupDB(t)
	pub := &capturePublisher{block: make(chan struct{})}
	d := NewEventDispatcher(pub, 2)

	// 无 worker 时队列容量即上限
	for i := 0; i < 5; i++ {
		d.Enqueue(events.NotificationEvent{UserID: "u", Type: "system"})
	}
	assert.Equal(t, 2, d.QueueLen())

	close(pub.block)
	stop := d.Start(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))
	assert.Equal(t, 2, pub.count())
	assert.Zero(t, d.QueueLen())
}

func TestEventDispatcher_PublishErrorDoesNotStopWorkers(t *testing.T) {
	setupDB(t)
	pub := &capturePublisher{err: errors.New("broker down")}
	d := NewEventDispatcher(pub, 8)
	stop := d.Start(1)

	for i := 0; i < 3; i++ {
		d.Enqueue(events.NotificationEvent{UserID: "u", Type: "system"})
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))
	assert.Equal(t, 3, pub.count())
}
