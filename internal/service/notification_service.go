package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/hijabworld/internal/events"
	"github.com/d60-Lab/hijabworld/internal/metrics"
	"github.com/d60-Lab/hijabworld/internal/model"
	"github.com/d60-Lab/hijabworld/internal/repository"
	"github.com/d60-Lab/hijabworld/pkg/logger"
)

// Notifier 订单生命周期事件的通知出口，失败只记录日志，不影响调用方
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification)
}

// NotificationPage 通知分页结果
type NotificationPage struct {
	Notifications []model.Notification `json:"notifications"`
	Pagination    Pagination           `json:"pagination"`
	UnreadCount   int64                `json:"unreadCount"`
}

// NotificationService 通知服务
type NotificationService interface {
	Notifier
	List(ctx context.Context, userID string, read *bool, page, limit int) (*NotificationPage, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
	Stats(ctx context.Context, userID string) (*repository.NotificationStats, error)
}

type notificationService struct {
	repo       repository.NotificationRepository
	dispatcher *EventDispatcher
}

func NewNotificationService(repo repository.NotificationRepository, dispatcher *EventDispatcher) NotificationService {
	return &notificationService{repo: repo, dispatcher: dispatcher}
}

func (s *notificationService) Notify(ctx context.Context, n *model.Notification) {
	if err := s.repo.Create(ctx, n); err != nil {
		logger.Error("create notification failed",
			zap.String("user", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err))
		return
	}
	metrics.NotificationSent(string(n.Type))

	if s.dispatcher != nil {
		s.dispatcher.Enqueue(events.NotificationEvent{
			ID:         n.ID,
			UserID:     n.UserID,
			Type:       string(n.Type),
			Title:      n.Title,
			Message:    n.Message,
			OrderID:    n.Data.OrderID,
			Link:       n.Data.Link,
			Priority:   string(n.Priority),
			OccurredAt: n.CreatedAt,
		})
	}
}

func (s *notificationService) List(ctx context.Context, userID string, read *bool, page, limit int) (*NotificationPage, error) {
	page, limit = normalizePage(page, limit, 20)
	items, total, err := s.repo.ListByUser(ctx, userID, read, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{
		Notifications: items,
		Pagination:    newPagination(page, limit, total),
		UnreadCount:   unread,
	}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID string) error {
	err := s.repo.MarkRead(ctx, id, userID, time.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: "notification not found"}
	}
	return err
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, time.Now())
}

func (s *notificationService) Delete(ctx context.Context, id, userID string) error {
	err := s.repo.Delete(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: "notification not found"}
	}
	return err
}

func (s *notificationService) Stats(ctx context.Context, userID string) (*repository.NotificationStats, error) {
	return s.repo.Stats(ctx, userID)
}
