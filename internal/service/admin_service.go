package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/d60-Lab/hijabworld/internal/model"
	"github.com/d60-Lab/hijabworld/internal/repository"
	"github.com/d60-Lab/hijabworld/pkg/logger"
)

// DashboardStats 管理后台统计
type DashboardStats struct {
	TotalUsers    int64           `json:"totalUsers"`
	TotalProducts int64           `json:"totalProducts"`
	TotalOrders   int64           `json:"totalOrders"`
	TotalSales    decimal.Decimal `json:"totalSales"`
	RecentOrders  []model.Order   `json:"recentOrders"`
}

type UserPage struct {
	Users      []model.User `json:"users"`
	Pagination Pagination   `json:"pagination"`
}

type AdminOrderPage struct {
	Orders     []model.Order `json:"orders"`
	Pagination Pagination    `json:"pagination"`
}

// UpdateUserInput 管理员修改用户资料
type UpdateUserInput struct {
	FirstName string `json:"firstName" validate:"required,max=64"`
	LastName  string `json:"lastName" validate:"required,max=64"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone"`
	IsAdmin   bool   `json:"isAdmin"`
}

// UpdateOrderStatusInput 管理员修正订单状态
type UpdateOrderStatusInput struct {
	Status         string `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled"`
	TrackingNumber string `json:"trackingNumber" validate:"max=64"`
}

// AdminService 管理后台
type AdminService interface {
	Stats(ctx context.Context) (*DashboardStats, error)
	ListUsers(ctx context.Context, page, limit int) (*UserPage, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, in UpdateUserInput) (*model.User, error)
	DeleteUser(ctx context.Context, id string, actor Actor) error
	ListOrders(ctx context.Context, page, limit int, status string) (*AdminOrderPage, error)
	UpdateOrderStatus(ctx context.Context, id string, in UpdateOrderStatusInput) (*model.Order, error)
}

type adminService struct {
	users    repository.UserRepository
	products repository.ProductRepository
	orders   repository.OrderRepository
	cache    CacheInvalidator
	notifier Notifier
	now      func() time.Time
}

func NewAdminService(users repository.UserRepository, products repository.ProductRepository, orders repository.OrderRepository, cache CacheInvalidator, notifier Notifier) AdminService {
	return &adminService{users: users, products: products, orders: orders, cache: cache, notifier: notifier, now: time.Now}
}

func (s *adminService) Stats(ctx context.Context) (*DashboardStats, error) {
	var (
		st  DashboardStats
		err error
	)
	if st.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, err
	}
	if st.TotalProducts, err = s.products.Count(ctx); err != nil {
		return nil, err
	}
	if st.TotalOrders, err = s.orders.Count(ctx); err != nil {
		return nil, err
	}
	if st.TotalSales, err = s.orders.TotalSales(ctx); err != nil {
		return nil, err
	}
	if st.RecentOrders, _, err = s.orders.List(ctx, repository.OrderFilter{Limit: 5}); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *adminService) ListUsers(ctx context.Context, page, limit int) (*UserPage, error) {
	page, limit = normalizePage(page, limit, 20)
	users, total, err := s.users.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Pagination: newPagination(page, limit, total)}, nil
}

func (s *adminService) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &Error{Kind: KindNotFound, Message: "User not found"}
	}
	return u, err
}

func (s *adminService) UpdateUser(ctx context.Context, id string, in UpdateUserInput) (*model.User, error) {
	if err := validateStruct("invalid user", in); err != nil {
		return nil, err
	}
	err := s.users.Update(ctx, &model.User{
		ID:        id,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Phone:     in.Phone,
		IsAdmin:   in.IsAdmin,
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, &Error{Kind: KindNotFound, Message: "User not found"}
	case errors.Is(err, repository.ErrDuplicate):
		return nil, &Error{Kind: KindConflict, Message: "Email already in use"}
	case err != nil:
		if existing, gErr := s.users.GetByEmail(ctx, in.Email); gErr == nil && existing.ID != id {
			return nil, &Error{Kind: KindConflict, Message: "Email already in use"}
		}
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

func (s *adminService) DeleteUser(ctx context.Context, id string, actor Actor) error {
	if id == actor.ID {
		return invalidState("You cannot delete your own account")
	}
	err := s.users.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: "User not found"}
	}
	return err
}

func (s *adminService) ListOrders(ctx context.Context, page, limit int, status string) (*AdminOrderPage, error) {
	st, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	page, limit = normalizePage(page, limit, 20)
	orders, total, err := s.orders.List(ctx, repository.OrderFilter{Status: st, Offset: (page - 1) * limit, Limit: limit})
	if err != nil {
		return nil, err
	}
	return &AdminOrderPage{Orders: orders, Pagination: newPagination(page, limit, total)}, nil
}

// UpdateOrderStatus 管理员修正。取消走条件更新并归还库存；已取消订单不能重新打开（库存已归还）
func (s *adminService) UpdateOrderStatus(ctx context.Context, id string, in UpdateOrderStatusInput) (*model.Order, error) {
	if err := validateStruct("invalid order status", in); err != nil {
		return nil, err
	}
	target := model.OrderStatus(in.Status)

	order, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.Status == target && in.TrackingNumber == "" {
		return order, nil
	}
	if order.Status == model.OrderStatusCancelled && target != model.OrderStatusCancelled {
		return nil, invalidState("cancelled orders cannot be reopened")
	}

	now := s.now()
	if target == model.OrderStatusCancelled && order.Status.Cancellable() {
		if err := s.orders.CancelAndRelease(ctx, order, "cancelled by admin", now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, invalidState("order status changed concurrently")
			}
			return nil, err
		}
		if s.cache != nil {
			ids := make([]string, 0, len(order.Items))
			for _, it := range order.Items {
				ids = append(ids, it.ProductID)
			}
			s.cache.Invalidate(ctx, ids...)
		}
	} else if err := s.orders.UpdateStatus(ctx, id, order.Status, target, in.TrackingNumber, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, invalidState("order status changed concurrently")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	updated, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.Info("order status updated by admin",
		zap.String("order", updated.OrderNumber),
		zap.String("from", string(order.Status)),
		zap.String("to", string(updated.Status)))

	if s.notifier != nil && order.Status != updated.Status {
		s.notifier.Notify(ctx, &model.Notification{
			UserID:  updated.UserID,
			Type:    model.NotificationSystem,
			Title:   "Order Update",
			Message: fmt.Sprintf("Your order #%s is now %s.", updated.OrderNumber, updated.Status),
			Data:    model.NotificationData{OrderID: updated.ID, Link: "/my-orders/" + updated.ID},
		})
	}
	return updated, nil
}
