package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"pricewatch/internal/config"
	"pricewatch/internal/gateway/notifier"
	"pricewatch/internal/monitor"
	"pricewatch/internal/source"
)

type StartupSummary struct {
	Env          string
	StoreDriver  string
	StoreTarget  string
	Window       time.Duration
	FetchTimeout time.Duration
	Concurrency  int
	Interval     string
	Notifier     string
	Sources      []string
	Products     int
	CatalogPath  string
	HTTPAddr     string
}

func buildSummary(cfg *config.Config, reg *source.Registry, n notifier.Notifier, opts monitor.Options, products int) *StartupSummary {
	s := &StartupSummary{
		Env:          cfg.App.Env,
		StoreDriver:  cfg.Store.Driver,
		StoreTarget:  cfg.Store.Path,
		Window:       opts.Window,
		FetchTimeout: opts.FetchTimeout,
		Concurrency:  opts.Concurrency,
		Interval:     cfg.Watch.Interval,
		Notifier:     n.Name(),
		Sources:      reg.Matches(),
		Products:     products,
		CatalogPath:  cfg.Watch.CatalogPath,
	}
	if cfg.Store.Driver == config.DriverMySQL {
		s.StoreTarget = "(dsn)"
	}
	if cfg.HTTP.Enabled {
		s.HTTPAddr = cfg.HTTP.Addr
	}
	return s
}

func (s *StartupSummary) Print() {
	s.Fprint(os.Stdout)
}

func (s *StartupSummary) Fprint(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "[存储 (STORE)]")
	fmt.Fprintf(w, "  驱动: %s\n", s.StoreDriver)
	fmt.Fprintf(w, "  目标: %s\n", orDash(s.StoreTarget))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[巡检 (WATCH)]")
	fmt.Fprintf(w, "  窗口: %s\n", s.Window)
	fmt.Fprintf(w, "  抓取超时: %s\n", s.FetchTimeout)
	fmt.Fprintf(w, "  并发: %d\n", s.Concurrency)
	fmt.Fprintf(w, "  间隔: %s\n", orDash(s.Interval))
	fmt.Fprintf(w, "  商品数: %d\n", s.Products)
	fmt.Fprintf(w, "  商品目录: %s\n", orDash(s.CatalogPath))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[数据源 (SOURCES)]")
	if len(s.Sources) == 0 {
		fmt.Fprintln(w, "  (无配置)")
	}
	for i, m := range s.Sources {
		fmt.Fprintf(w, "  %d. %s\n", i+1, m)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "[通知 (NOTIFY)] %s\n", s.Notifier)
	if s.HTTPAddr != "" {
		fmt.Fprintf(w, "[状态接口 (HTTP)] %s\n", s.HTTPAddr)
	}
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
