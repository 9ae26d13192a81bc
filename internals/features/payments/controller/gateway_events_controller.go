// file: internals/features/payments/controller/gateway_events_controller.go
package controller

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	model "playhost_backend/internals/features/payments/model"
)

/* =======================================================================
   Gateway event log (admin/debug surface)
======================================================================= */

type GatewayEventController struct {
	DB *gorm.DB
}

func NewGatewayEventController(db *gorm.DB) *GatewayEventController {
	return &GatewayEventController{DB: db}
}

/* =======================================================================
   List (filter + pagination)
   Query params:
     - provider: bakong|midtrans
     - status: received|processed|discarded|failed
     - settlement_id: uuid
     - q: search in external_id / external_ref (ilike)
     - start, end: RFC3339 (filter received_at)
     - page (default 1), limit (default 20, max 200)
======================================================================= */

func (h *GatewayEventController) ListEvents(c *fiber.Ctx) error {
	db := h.DB.WithContext(c.UserContext()).Model(&model.PaymentGatewayEvent{})

	if p := strings.TrimSpace(c.Query("provider")); p != "" {
		db = db.Where("gateway_event_provider = ?", strings.ToLower(p))
	}
	if s := strings.TrimSpace(c.Query("status")); s != "" {
		db = db.Where("gateway_event_status = ?", strings.ToLower(s))
	}
	if sid := strings.TrimSpace(c.Query("settlement_id")); sid != "" {
		id, err := uuid.Parse(sid)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid settlement_id")
		}
		db = db.Where("gateway_event_settlement_id = ?", id)
	}

	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + q + "%"
		db = db.Where(`
			COALESCE(gateway_event_external_id,'') ILIKE ?
			OR COALESCE(gateway_event_external_ref,'') ILIKE ?
		`, like, like)
	}

	if start := strings.TrimSpace(c.Query("start")); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid start (use RFC3339)")
		}
		db = db.Where("gateway_event_received_at >= ?", t)
	}
	if end := strings.TrimSpace(c.Query("end")); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid end (use RFC3339)")
		}
		db = db.Where("gateway_event_received_at < ?", t)
	}

	page := clampInt(queryInt(c, "page", 1), 1, 1_000_000)
	limit := clampInt(queryInt(c, "limit", 20), 1, 200)
	offset := (page - 1) * limit

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	var rows []model.PaymentGatewayEvent
	if err := db.Order("gateway_event_received_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"page":  page,
		"limit": limit,
		"total": total,
		"data":  rows,
	})
}

/* =======================================================================
   Detail
======================================================================= */

func (h *GatewayEventController) GetByID(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var m model.PaymentGatewayEvent
	if err := h.DB.WithContext(c.UserContext()).
		First(&m, "gateway_event_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "event not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(m)
}

/* =======================================================================
   Helpers
======================================================================= */

func queryInt(c *fiber.Ctx, key string, def int) int {
	if v := c.Query(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
