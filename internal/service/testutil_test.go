package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/hijabworld/internal/model"
	"github.com/d60-Lab/hijabworld/internal/payment"
	"github.com/d60-Lab/hijabworld/pkg/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger.Set(zaptest.NewLogger(t))
	t.Cleanup(func() { logger.Set(nil) })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price int64, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:     name,
		Price:    decimal.NewFromInt(price),
		Category: model.CategoryHijab,
		ImageURL: "https://cdn.example.com/" + name + ".jpg",
		Stock:    stock,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func stockOf(t *testing.T, db *gorm.DB, id string) int {
	t.Helper()
	var p model.Product
	require.NoError(t, db.Where("id = ?", id).First(&p).Error)
	return p.Stock
}

func countOrders(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.Order{}).Count(&n).Error)
	return n
}

type verifyStep struct {
	res *payment.VerifyResult
	err error
}

// fakeGateway 可编排的支付网关
type fakeGateway struct {
	mu          sync.Mutex
	initErr     error
	initCalls   int
	lastInit    payment.InitializeRequest
	steps       []verifyStep
	verifyCalls int
}

func (g *fakeGateway) Initialize(_ context.Context, req payment.InitializeRequest) (*payment.InitializeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initCalls++
	g.lastInit = req
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &payment.InitializeResult{
		RedirectURL: "https://checkout.paystack.com/" + req.Reference,
		Reference:   req.Reference,
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*payment.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if len(g.steps) == 0 {
		return &payment.VerifyResult{Succeeded: true, TransactionID: "tx-1", Reference: reference, RawStatus: "success"}, nil
	}
	step := g.steps[0]
	if len(g.steps) > 1 {
		g.steps = g.steps[1:]
	}
	return step.res, step.err
}

func succeeded(ref string) verifyStep {
	return verifyStep{res: &payment.VerifyResult{Succeeded: true, TransactionID: "tx-" + ref, Reference: ref, RawStatus: "success"}}
}

func declined(ref, status string) verifyStep {
	return verifyStep{res: &payment.VerifyResult{Succeeded: false, Reference: ref, RawStatus: status}}
}

func unavailableStep() verifyStep {
	return verifyStep{err: &payment.UnavailableError{Op: "verify", Err: context.DeadlineExceeded}}
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n *model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, *n)
}

func (r *recordingNotifier) ofType(kind model.NotificationType) []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.sent {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

func shipTo() ShippingAddressInput {
	return ShippingAddressInput{
		FirstName: "Aisha",
		LastName:  "Bello",
		Email:     "aisha@example.com",
		Phone:     "+2348012345678",
		Address:   "12 Admiralty Way",
		City:      "Lekki",
		State:     "Lagos",
		ZipCode:   "106104",
	}
}
