// Package api exposes the lab service over HTTP with gin. Responses wrap their
// payload in a named envelope and errors as {"error": message}.
package api

import (
	"context"
	"expvar"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labcore/internal/core"
)

// Lab is the subset of core.Service served over HTTP.
type Lab interface {
	RegisterAgroTest(ctx context.Context, test core.AgroTest) (core.AgroTest, core.Result, error)
	GetAgroTest(ctx context.Context, ref string) (core.AgroTest, error)
	CreateClient(ctx context.Context, client core.Client) (core.Client, core.Result, error)
	PlaceOrder(ctx context.Context, req core.PlaceOrderRequest) (core.OrderPlacement, core.Result, error)
	OrderProgress(ctx context.Context, orderID string) (core.OrderProgress, error)
	AdvanceSample(ctx context.Context, sampleID string, target core.SampleStatus) (core.Sample, core.Result, error)
	RecordResults(ctx context.Context, req core.RecordRequest) (core.RecordOutcome, core.Result, error)
	IssueReport(ctx context.Context, reportID string) (core.Report, core.Result, error)
	GetReport(ctx context.Context, reportID string) (core.ReportDetail, error)
	GetReportByNumber(ctx context.Context, number string) (core.ReportDetail, error)
	MonthlySummary(ctx context.Context, year int, month time.Month) (core.MonthlySummary, error)
}

var _ Lab = (*core.Service)(nil)

type routerOptions struct {
	metrics   http.Handler
	debugVars bool
	now       func() time.Time
}

// RouterOption customizes NewRouter.
type RouterOption func(*routerOptions)

// WithMetricsHandler mounts h at GET /metrics, typically promhttp.HandlerFor.
func WithMetricsHandler(h http.Handler) RouterOption {
	return func(o *routerOptions) { o.metrics = h }
}

// WithDebugVars mounts the expvar handler at GET /debug/vars.
func WithDebugVars() RouterOption {
	return func(o *routerOptions) { o.debugVars = true }
}

// WithNow sets the clock used for summary defaults.
func WithNow(now func() time.Time) RouterOption {
	return func(o *routerOptions) { o.now = now }
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(lab Lab, log *zap.Logger, opts ...RouterOption) *gin.Engine {
	o := routerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{lab: lab, log: log, now: o.now}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if o.metrics != nil {
		router.GET("/metrics", gin.WrapH(o.metrics))
	}
	if o.debugVars {
		router.GET("/debug/vars", gin.WrapH(expvar.Handler()))
	}

	v1 := router.Group("/api/v1")
	v1.POST("/tests", h.registerTest)
	v1.GET("/tests/:ref", h.getTest)
	v1.POST("/clients", h.createClient)
	v1.POST("/orders", h.placeOrder)
	v1.GET("/orders/:id", h.orderProgress)
	v1.POST("/samples/:id/advance", h.advanceSample)
	v1.POST("/samples/:id/results", h.recordResults)
	v1.GET("/reports/:id", h.getReport)
	v1.POST("/reports/:id/issue", h.issueReport)
	v1.GET("/report-numbers/:number", h.getReportByNumber)
	v1.GET("/summary", h.monthlySummary)
	return router
}

// RequestLogger logs each request at a level derived from its status.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch {
		case status >= 500:
			log.Error("server error", fields...)
		case status >= 400:
			log.Warn("client error", fields...)
		default:
			log.Debug("request processed", fields...)
		}
	}
}
