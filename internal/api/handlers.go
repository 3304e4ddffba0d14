package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labcore/internal/core"
	"labcore/pkg/domain"
)

type handler struct {
	lab Lab
	log *zap.Logger
	now func() time.Time
}

// violation is the wire form of a rule violation.
type violation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Entity   string `json:"entity,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
}

func violations(res core.Result) []violation {
	if len(res.Violations) == 0 {
		return nil
	}
	out := make([]violation, 0, len(res.Violations))
	for _, v := range res.Violations {
		out = append(out, violation{Rule: v.Rule, Severity: string(v.Severity), Message: v.Message, Entity: string(v.Entity), EntityID: v.EntityID})
	}
	return out
}

// respond writes payload under key plus any rule warnings.
func respond(c *gin.Context, status int, key string, payload any, res core.Result) {
	body := gin.H{key: payload}
	if v := violations(res); v != nil {
		body["violations"] = v
	}
	c.JSON(status, body)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var (
		notFound   domain.NotFoundError
		transition *domain.InvalidTransitionError
		ruleErr    domain.RuleViolationError
		invalid    *domain.InvalidValueError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &transition), errors.As(err, &ruleErr), errors.Is(err, domain.ErrConsistencyViolation):
		return http.StatusConflict
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	case domain.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		message = "internal error"
	}
	body := gin.H{"error": message}
	var ruleErr domain.RuleViolationError
	if errors.As(err, &ruleErr) {
		body["violations"] = violations(ruleErr.Result)
	}
	c.AbortWithStatusJSON(status, body)
}

func (h *handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (h *handler) registerTest(c *gin.Context) {
	var test core.AgroTest
	if !h.bind(c, &test) {
		return
	}
	created, res, err := h.lab.RegisterAgroTest(c.Request.Context(), test)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "test", created, res)
}

func (h *handler) getTest(c *gin.Context) {
	test, err := h.lab.GetAgroTest(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"test": test})
}

func (h *handler) createClient(c *gin.Context) {
	var client core.Client
	if !h.bind(c, &client) {
		return
	}
	created, res, err := h.lab.CreateClient(c.Request.Context(), client)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "client", created, res)
}

func (h *handler) placeOrder(c *gin.Context) {
	var req core.PlaceOrderRequest
	if !h.bind(c, &req) {
		return
	}
	placement, res, err := h.lab.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "placement", placement, res)
}

func (h *handler) orderProgress(c *gin.Context) {
	progress, err := h.lab.OrderProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress})
}

type advanceRequest struct {
	Status core.SampleStatus `json:"status"`
}

func (h *handler) advanceSample(c *gin.Context) {
	var req advanceRequest
	if !h.bind(c, &req) {
		return
	}
	sample, res, err := h.lab.AdvanceSample(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "sample", sample, res)
}

type recordBody struct {
	TechnicianID string                  `json:"technician_id"`
	Results      []core.ResultSubmission `json:"results"`
}

func (h *handler) recordResults(c *gin.Context) {
	var body recordBody
	if !h.bind(c, &body) {
		return
	}
	outcome, res, err := h.lab.RecordResults(c.Request.Context(), core.RecordRequest{
		SampleID:     c.Param("id"),
		TechnicianID: body.TechnicianID,
		Results:      body.Results,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "outcome", outcome, res)
}

func (h *handler) getReport(c *gin.Context) {
	detail, err := h.lab.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": detail})
}

func (h *handler) getReportByNumber(c *gin.Context) {
	detail, err := h.lab.GetReportByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": detail})
}

func (h *handler) issueReport(c *gin.Context) {
	report, res, err := h.lab.IssueReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "report", report, res)
}

// monthlySummary defaults year and month to the current UTC month.
func (h *handler) monthlySummary(c *gin.Context) {
	now := h.now().UTC()
	year, month := now.Year(), int(now.Month())
	var err error
	if raw := c.Query("year"); raw != "" {
		if year, err = strconv.Atoi(raw); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
			return
		}
	}
	if raw := c.Query("month"); raw != "" {
		if month, err = strconv.Atoi(raw); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
			return
		}
	}
	summary, err := h.lab.MonthlySummary(c.Request.Context(), year, time.Month(month))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
