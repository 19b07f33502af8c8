package model

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"
)

const orderNumberPrefix = "HW"

// OrderNumberGenerator 生成 HW + 时间戳后 8 位 + 4 位后缀。
// 后缀从随机起点递增，同一进程内连续 10000 个号码后缀互不相同。
type OrderNumberGenerator struct {
	seq atomic.Uint32
	now func() time.Time
}

func NewOrderNumberGenerator() *OrderNumberGenerator {
	g := &OrderNumberGenerator{now: time.Now}
	g.seq.Store(mrand.Uint32N(10000))
	return g
}

// Next returns a fresh order number.
func (g *OrderNumberGenerator) Next() string {
	ts := strconv.FormatInt(g.now().UnixMilli(), 10)
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	suffix := g.seq.Add(1) % 10000
	return fmt.Sprintf("%s%s%04d", orderNumberPrefix, ts, suffix)
}

var defaultGenerator = NewOrderNumberGenerator()

// NewOrderNumber uses the process-wide generator.
func NewOrderNumber() string {
	return defaultGenerator.Next()
}

// FallbackOrderNumber 持久化时订单号仍为空的兜底：HW-FB + 完整毫秒时间戳 + 随机数
func FallbackOrderNumber() string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return fmt.Sprintf("%s-FB%d%d", orderNumberPrefix, time.Now().UnixMilli(), mrand.IntN(10000))
	}
	return fmt.Sprintf("%s-FB%d%d", orderNumberPrefix, time.Now().UnixMilli(), n.Int64())
}
