package app

import (
	"sync"

	"pricewatch/internal/monitor"
)

// reportCache 缓存最近一次巡检报告，供状态接口读取。
type reportCache struct {
	mu   sync.RWMutex
	last monitor.PassReport
	ok   bool
}

func newReportCache() *reportCache {
	return &reportCache{}
}

func (c *reportCache) Set(r monitor.PassReport) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.last = r
	c.ok = true
	c.mu.Unlock()
}

func (c *reportCache) Get() (monitor.PassReport, bool) {
	if c == nil {
		return monitor.PassReport{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.ok {
		return monitor.PassReport{}, false
	}
	out := c.last
	out.Results = append([]monitor.ProductResult(nil), c.last.Results...)
	return out, true
}

// LastReport lets the cache serve as the status API's report source.
func (c *reportCache) LastReport() (monitor.PassReport, bool) {
	return c.Get()
}
