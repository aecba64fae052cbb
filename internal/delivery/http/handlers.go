package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/smartenergy/aidaily/internal/domain"
	"github.com/smartenergy/aidaily/internal/service"
	"github.com/smartenergy/aidaily/pkg/utils"
)

const (
	defaultVerifyLimit = 10
	maxVerifyLimit     = 1000
)

// ruleSlugs maps URL path segments to rule targets
var ruleSlugs = map[string]domain.Target{
	"solar-power": domain.TargetSolarPower,
	"ess-charge":  domain.TargetESSCharge,
	"power-usage": domain.TargetPowerUsage,
	"ess-predict": domain.TargetESSForecast,
}

// Handler contains all HTTP handlers
type Handler struct {
	batch  *service.AggregateService
	charge *service.ESSChargeService
	store  domain.Store
	logger *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(batch *service.AggregateService, charge *service.ESSChargeService, store domain.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		batch:  batch,
		charge: charge,
		store:  store,
		logger: logger,
	}
}

// aggregateRequest is the body of every aggregate endpoint
type aggregateRequest struct {
	TargetDate string   `json:"target_date"`
	Feeds      []string `json:"feeds"`
}

// HealthCheck returns service and store health
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	status, code := "ok", fiber.StatusOK
	storeStatus := "ok"
	if err := h.store.Health(c.UserContext()); err != nil {
		h.logger.Warn("Store health check failed", zap.Error(err))
		status, code, storeStatus = "degraded", fiber.StatusServiceUnavailable, "unavailable"
	}
	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"service": "aidaily",
		"store":   storeStatus,
	})
}

// AggregateAll runs every rule for the requested day
func (h *Handler) AggregateAll(c *fiber.Ctx) error {
	var req aggregateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	batch := h.batch.AggregateAll(c.UserContext(), req.TargetDate)

	code := fiber.StatusOK
	if allInvalidDate(batch) {
		code = fiber.StatusBadRequest
	}
	return c.Status(code).JSON(batch)
}

// Aggregate runs a single rule for the requested day
func (h *Handler) Aggregate(c *fiber.Ctx) error {
	rule, err := h.rule(c)
	if err != nil {
		return err
	}

	var req aggregateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if len(req.Feeds) > 0 && rule.Target() != domain.TargetESSCharge {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Rule %q does not take feeds", rule.Target()))
	}

	var res domain.Result
	if len(req.Feeds) > 0 {
		feeds := make([]domain.Feed, 0, len(req.Feeds))
		for _, name := range req.Feeds {
			feed, ok := domain.ParseFeed(name)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Unknown feed %q", name))
			}
			feeds = append(feeds, feed)
		}
		res = h.charge.AggregateFeeds(c.UserContext(), req.TargetDate, feeds)
	} else {
		res = rule.Aggregate(c.UserContext(), req.TargetDate)
	}

	return c.Status(statusFor(res)).JSON(res)
}

// Verify returns the newest rows of a rule's table
func (h *Handler) Verify(c *fiber.Ctx) error {
	rule, err := h.rule(c)
	if err != nil {
		return err
	}
	limit, err := utils.ParseLimit(c.Query("limit"), defaultVerifyLimit, maxVerifyLimit)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	set, err := rule.Verify(c.UserContext(), limit)
	if err != nil {
		h.logger.Error("Verification read failed", zap.String("rule", string(rule.Target())), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to read back rows")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"columns": set.Columns,
		"data":    set.Rows,
		"count":   set.Len(),
	})
}

// Export returns the newest rows of a rule's table as an xlsx workbook
func (h *Handler) Export(c *fiber.Ctx) error {
	rule, err := h.rule(c)
	if err != nil {
		return err
	}
	limit, err := utils.ParseLimit(c.Query("limit"), defaultVerifyLimit, maxVerifyLimit)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	set, err := rule.Verify(c.UserContext(), limit)
	if err != nil {
		h.logger.Error("Verification read failed", zap.String("rule", string(rule.Target())), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to read back rows")
	}

	data, err := buildWorkbook(string(rule.Target()), set)
	if err != nil {
		h.logger.Error("Workbook export failed", zap.String("rule", string(rule.Target())), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to build workbook")
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.xlsx"`, rule.Target()))
	return c.Send(data)
}

func (h *Handler) rule(c *fiber.Ctx) (service.Rule, error) {
	target, ok := ruleSlugs[c.Params("rule")]
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Unknown rule %q", c.Params("rule")))
	}
	rule, ok := h.batch.Rule(target)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Rule %q is not configured", target))
	}
	return rule, nil
}

// statusFor maps a result condition to an HTTP status
func statusFor(res domain.Result) int {
	switch res.Condition {
	case domain.ConditionOK, domain.ConditionNoSourceData:
		return fiber.StatusOK
	case domain.ConditionInvalidDate:
		return fiber.StatusBadRequest
	case domain.ConditionNotImplemented:
		return fiber.StatusNotImplemented
	default:
		return fiber.StatusInternalServerError
	}
}

func allInvalidDate(batch domain.BatchResult) bool {
	if len(batch) == 0 {
		return false
	}
	for _, res := range batch {
		if res.Condition != domain.ConditionInvalidDate {
			return false
		}
	}
	return true
}
