package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/hijabworld/internal/events"
	"github.com/d60-Lab/hijabworld/internal/metrics"
	"github.com/d60-Lab/hijabworld/pkg/logger"
)

type dispatchJob struct {
	ev    events.NotificationEvent
	enqAt time.Time
}

// EventDispatcher 本地异步事件投递：有界队列 + 固定 worker，队列满时丢弃并告警
type EventDispatcher struct {
	pub       events.Publisher
	ch        chan dispatchJob
	metricsCh chan time.Duration
	wg        sync.WaitGroup
}

func NewEventDispatcher(pub events.Publisher, queueSize int) *EventDispatcher {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &EventDispatcher{
		pub:       pub,
		ch:        make(chan dispatchJob, queueSize),
		metricsCh: make(chan time.Duration, 1024),
	}
}

// Start 启动 worker，返回的 stop 函数会在超时前尽量排空队列
func (d *EventDispatcher) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case job := <-d.ch:
					d.deliver(job)
				case <-stopCh:
					// 退出前处理剩余任务
					for {
						select {
						case job := <-d.ch:
							d.deliver(job)
						default:
							return
						}
					}
				}
			}
		}()
	}

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stopCh) })
		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *EventDispatcher) deliver(job dispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.pub.Publish(ctx, job.ev); err != nil {
		logger.Warn("publish notification event failed",
			zap.String("type", job.ev.Type),
			zap.String("user", job.ev.UserID),
			zap.Error(err))
	}
	select {
	case d.metricsCh <- time.Since(job.enqAt):
	default:
	}
}

// Enqueue 非阻塞入队
func (d *EventDispatcher) Enqueue(ev events.NotificationEvent) {
	select {
	case d.ch <- dispatchJob{ev: ev, enqAt: time.Now()}:
	default:
		metrics.EventDropped()
		logger.Warn("dispatch queue full, drop event", zap.String("type", ev.Type), zap.String("user", ev.UserID))
	}
}

// Metrics 返回投递耗时的只读通道（每处理一条发送一次 duration）
func (d *EventDispatcher) Metrics() <-chan time.Duration { return d.metricsCh }

// QueueLen 返回当前队列长度（采样值）
func (d *EventDispatcher) QueueLen() int { return len(d.ch) }
