package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/d60-Lab/hijabworld/config"
	"github.com/d60-Lab/hijabworld/internal/events"
	"github.com/d60-Lab/hijabworld/internal/model"
	"github.com/d60-Lab/hijabworld/internal/payment"
	"github.com/d60-Lab/hijabworld/internal/repository"
	"github.com/d60-Lab/hijabworld/internal/service"
	"github.com/d60-Lab/hijabworld/pkg/database"
	"github.com/d60-Lab/hijabworld/pkg/logger"
)

// 并发下单压测：验证条件扣减在高并发下不超卖

type BenchResult struct {
	Name            string
	Duration        time.Duration
	TotalRequests   int64
	SuccessRequests int64
	RejectedStock   int64
	FailedRequests  int64
	QPS             float64
	AvgLatency      time.Duration
	P50Latency      time.Duration
	P95Latency      time.Duration
	P99Latency      time.Duration
}

// stubGateway 本地支付网关，避免压测打到 Paystack
type stubGateway struct{}

func (stubGateway) Initialize(_ context.Context, req payment.InitializeRequest) (*payment.InitializeResult, error) {
	return &payment.InitializeResult{RedirectURL: "https://checkout.local/" + req.Reference, Reference: req.Reference}, nil
}

func (stubGateway) Verify(_ context.Context, reference string) (*payment.VerifyResult, error) {
	return &payment.VerifyResult{Succeeded: true, Reference: reference, RawStatus: "success"}, nil
}

func main() {
	configPath := flag.String("config", "", "配置文件路径，设置后使用其中的 database 配置")
	driver := flag.String("driver", "sqlite", "postgres | sqlite")
	dsn := flag.String("dsn", "file:stockbench?mode=memory&cache=shared", "数据库 DSN")
	productCount := flag.Int("products", 5, "商品数")
	stock := flag.Int("stock", 200, "每个商品初始库存")
	buyers := flag.Int("buyers", 2000, "下单请求总数")
	concurrency := flag.Int("concurrency", 100, "并发数")
	maxQty := flag.Int("max-qty", 3, "单行最大购买数量")
	flag.Parse()

	if err := logger.Init("warn", "console"); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	dbCfg := config.DatabaseConfig{Driver: *driver, DSN: *dsn, MaxOpenConns: *concurrency, MaxIdleConns: *concurrency}
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Printf("加载配置失败: %v\n", err)
			os.Exit(1)
		}
		dbCfg = cfg.Database
	}

	db, err := database.New(dbCfg)
	if err != nil {
		fmt.Printf("连接数据库失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = database.Close(db) }()
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		fmt.Printf("迁移失败: %v\n", err)
		os.Exit(1)
	}

	products := seedProducts(db, *productCount, *stock)
	fmt.Println("===== 并发下单压测 =====")
	fmt.Printf("驱动: %s\n", dbCfg.Driver)
	fmt.Printf("商品数: %d, 每个库存: %d\n", *productCount, *stock)
	fmt.Printf("请求数: %d, 并发: %d\n\n", *buyers, *concurrency)

	dispatcher := service.NewEventDispatcher(events.LogPublisher{}, *buyers)
	stopDispatcher := dispatcher.Start(4)
	notifier := service.NewNotificationService(repository.NewNotificationRepository(db), dispatcher)

	orderService := service.NewOrderService(
		repository.NewProductRepository(db),
		repository.NewOrderRepository(db),
		stubGateway{},
		notifier,
		nil,
		service.OrderOptions{FrontendURL: "http://localhost:3000", Tax: service.NoTax{}},
	)

	result := benchCheckout(orderService, products, *buyers, *concurrency, *maxQty)
	printBenchResult(result)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = stopDispatcher(ctx)
	printDispatchLatency(dispatcher)

	fmt.Println("\n===== 库存一致性校验 =====")
	if err := checkNoOversell(db, products, *stock); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ 无超卖，已售 + 剩余 = 初始库存")
}

func seedProducts(db *gorm.DB, n, stock int) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p := &model.Product{
			Name:     fmt.Sprintf("bench-hijab-%d-%d", i, time.Now().UnixNano()),
			Price:    decimal.NewFromInt(int64(1000 * (i + 1))),
			Category: model.CategoryHijab,
			Stock:    stock,
		}
		if err := db.Create(p).Error; err != nil {
			fmt.Printf("创建商品失败: %v\n", err)
			os.Exit(1)
		}
		ids = append(ids, p.ID)
	}
	return ids
}

func benchCheckout(svc service.OrderService, products []string, total, concurrency, maxQty int) *BenchResult {
	var (
		success, rejected, failed atomic.Int64
		mu                        sync.Mutex
		latencies                 = make([]time.Duration, 0, total)
		wg                        sync.WaitGroup
	)
	jobs := make(chan int, total)
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			local := make([]time.Duration, 0, total/concurrency+1)
			for i := range jobs {
				in := service.CreateOrderInput{
					Items: []service.CartLine{
						{ProductID: products[rng.Intn(len(products))], Quantity: 1 + rng.Intn(maxQty)},
						{ProductID: products[rng.Intn(len(products))], Quantity: 1 + rng.Intn(maxQty)},
					},
					ShippingAddress: service.ShippingAddressInput{
						FirstName: "Bench", LastName: fmt.Sprintf("Buyer%d", i),
						Email: fmt.Sprintf("buyer%d@bench.local", i), Phone: "+2348000000000",
						Address: "1 Bench Road", City: "Lagos", State: "Lagos", ZipCode: "100001",
					},
				}
				t0 := time.Now()
				_, err := svc.CreateOrder(context.Background(), service.Actor{ID: fmt.Sprintf("bench-user-%d", i)}, in)
				local = append(local, time.Since(t0))
				switch {
				case err == nil:
					success.Add(1)
				case service.KindOf(err) == service.KindInsufficientStock:
					rejected.Add(1)
				default:
					failed.Add(1)
				}
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(int64(w) + time.Now().UnixNano())
	}
	wg.Wait()

	return calculateResult("并发下单", time.Since(start), int64(total), success.Load(), rejected.Load(), failed.Load(), latencies)
}

// checkNoOversell 已售数量 + 剩余库存必须等于初始库存，且库存不为负
func checkNoOversell(db *gorm.DB, products []string, initial int) error {
	for _, id := range products {
		var p model.Product
		if err := db.First(&p, "id = ?", id).Error; err != nil {
			return err
		}
		var sold int64
		err := db.Model(&model.OrderItem{}).
			Select("COALESCE(SUM(quantity), 0)").
			Where("product_id = ?", id).
			Row().Scan(&sold)
		if err != nil {
			return err
		}
		fmt.Printf("商品 %s: 已售 %d, 剩余 %d\n", id, sold, p.Stock)
		if p.Stock < 0 {
			return fmt.Errorf("商品 %s 库存为负: %d", id, p.Stock)
		}
		if int(sold)+p.Stock != initial {
			return fmt.Errorf("商品 %s 超卖: 已售 %d + 剩余 %d != 初始 %d", id, sold, p.Stock, initial)
		}
	}
	return nil
}

func printDispatchLatency(d *service.EventDispatcher) {
	var samples []time.Duration
	for {
		select {
		case l := <-d.Metrics():
			samples = append(samples, l)
			continue
		default:
		}
		break
	}
	if len(samples) == 0 {
		return
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	fmt.Printf("\n通知投递样本: %d, P50: %v, P99: %v\n", len(samples), percentile(samples, 0.50), percentile(samples, 0.99))
}

// calculateResult 计算统计结果
func calculateResult(name string, duration time.Duration, total, success, rejected, failed int64, latencies []time.Duration) *BenchResult {
	res := &BenchResult{
		Name:            name,
		Duration:        duration,
		TotalRequests:   total,
		SuccessRequests: success,
		RejectedStock:   rejected,
		FailedRequests:  failed,
		QPS:             float64(total) / duration.Seconds(),
	}
	if len(latencies) == 0 {
		return res
	}

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	res.AvgLatency = sum / time.Duration(len(latencies))

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	res.P50Latency = percentile(sorted, 0.50)
	res.P95Latency = percentile(sorted, 0.95)
	res.P99Latency = percentile(sorted, 0.99)
	return res
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	index := int(math.Ceil(float64(len(sorted))*p)) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// printBenchResult 打印压测结果
func printBenchResult(result *BenchResult) {
	fmt.Printf("名称: %s\n", result.Name)
	fmt.Printf("耗时: %v\n", result.Duration)
	fmt.Printf("总请求数: %d\n", result.TotalRequests)
	fmt.Printf("成功下单: %d\n", result.SuccessRequests)
	fmt.Printf("库存不足拒绝: %d\n", result.RejectedStock)
	fmt.Printf("失败请求: %d\n", result.FailedRequests)
	fmt.Printf("QPS: %.2f\n", result.QPS)
	fmt.Printf("平均延迟: %v\n", result.AvgLatency)
	fmt.Printf("P50 延迟: %v\n", result.P50Latency)
	fmt.Printf("P95 延迟: %v\n", result.P95Latency)
	fmt.Printf("P99 延迟: %v\n", result.P99Latency)
}
