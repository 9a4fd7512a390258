package statushttp

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"pricewatch/internal/config"
	"pricewatch/internal/store"
	"pricewatch/internal/types"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 500

type Router struct {
	cfg ServerConfig
}

func NewRouter(cfg ServerConfig) *Router {
	return &Router{cfg: cfg}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/products", r.handleProducts)
	group.GET("/products/:sku/low", r.handleLow)
	group.GET("/products/:sku/history", r.handleHistory)
	group.GET("/products/:sku/notifications", r.handleNotifications)
	group.GET("/products/:sku/chart", r.handleChart)
	group.GET("/runs/last", r.handleLastRun)
}

type productView struct {
	types.Product
	TrailingLow *float64 `json:"trailing_low"`
}

type observationView struct {
	Site      string    `json:"site"`
	Price     *float64  `json:"price"`
	Shipping  float64   `json:"shipping"`
	Available bool      `json:"available"`
	Timestamp time.Time `json:"timestamp"`
}

func toView(o types.Observation) observationView {
	v := observationView{Site: o.Site, Shipping: o.Shipping, Available: o.Available, Timestamp: o.Timestamp}
	if o.PriceKnown() {
		p := o.Price
		v.Price = &p
	}
	return v
}

func (r *Router) handleProducts(c *gin.Context) {
	now := r.cfg.Now()
	products := r.cfg.Products()
	out := make([]productView, 0, len(products))
	for _, p := range products {
		view := productView{Product: p}
		low, ok, err := r.cfg.Store.TrailingLow(c.Request.Context(), p.SKU, r.cfg.Window, now)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if ok {
			view.TrailingLow = &low
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"products": out, "window": r.cfg.Window.String()})
}

func (r *Router) lookup(c *gin.Context) (types.Product, bool) {
	sku := strings.TrimSpace(c.Param("sku"))
	for _, p := range r.cfg.Products() {
		if p.SKU == sku {
			return p, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "unknown sku " + sku})
	return types.Product{}, false
}

func (r *Router) windowParam(c *gin.Context) (time.Duration, bool) {
	raw := strings.TrimSpace(c.Query("window"))
	if raw == "" {
		return r.cfg.Window, true
	}
	d, ok := config.ParseDuration(raw)
	if !ok || d <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window " + raw})
		return 0, false
	}
	return d, true
}

func (r *Router) handleLow(c *gin.Context) {
	p, ok := r.lookup(c)
	if !ok {
		return
	}
	window, ok := r.windowParam(c)
	if !ok {
		return
	}
	low, found, err := r.cfg.Store.TrailingLow(c.Request.Context(), p.SKU, window, r.cfg.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp := gin.H{"sku": p.SKU, "window": window.String(), "found": found}
	if found {
		resp["low"] = low
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) history(c *gin.Context, p types.Product) ([]types.Observation, bool) {
	window, ok := r.windowParam(c)
	if !ok {
		return nil, false
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return nil, false
		}
		limit = n
	}
	since := r.cfg.Now().Add(-window)
	rows, err := r.cfg.Store.History(c.Request.Context(), p.SKU, since, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return rows, true
}

func (r *Router) handleHistory(c *gin.Context) {
	p, ok := r.lookup(c)
	if !ok {
		return
	}
	rows, ok := r.history(c, p)
	if !ok {
		return
	}
	views := make([]observationView, 0, len(rows))
	for _, o := range rows {
		views = append(views, toView(o))
	}
	c.JSON(http.StatusOK, gin.H{"sku": p.SKU, "observations": views})
}

func (r *Router) handleNotifications(c *gin.Context) {
	p, ok := r.lookup(c)
	if !ok {
		return
	}
	log, ok := r.cfg.Store.(store.NotificationLog)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "store does not keep a notification log"})
		return
	}
	recs, err := log.Notifications(c.Request.Context(), p.SKU, 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sku": p.SKU, "notifications": recs})
}

func (r *Router) handleChart(c *gin.Context) {
	p, ok := r.lookup(c)
	if !ok {
		return
	}
	rows, ok := r.history(c, p)
	if !ok {
		return
	}
	html, err := renderHistoryChart(p, rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (r *Router) handleLastRun(c *gin.Context) {
	if r.cfg.Reports == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pass has run yet"})
		return
	}
	report, ok := r.cfg.Reports.LastReport()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pass has run yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}
