// file: internals/features/payments/controller/payment_controller.go
package controller

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	dto "playhost_backend/internals/features/payments/dto"
	"playhost_backend/internals/features/payments/khqr"
	model "playhost_backend/internals/features/payments/model"
	"playhost_backend/internals/features/payments/service"
	helper "playhost_backend/internals/helpers"
)

var validate = validator.New()

/* =========================================================
   Controller
========================================================= */

type PaymentController struct {
	DB      *gorm.DB
	Service *service.SettlementService
}

func NewPaymentController(db *gorm.DB, svc *service.SettlementService) *PaymentController {
	return &PaymentController{DB: db, Service: svc}
}

/* =========================================================
   POST /api/payments: issue a QR / checkout session for an invoice
========================================================= */

func (h *PaymentController) CreatePayment(c *fiber.Ctx) error {
	var req dto.CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json: "+err.Error())
	}
	if err := validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	provider := model.GatewayProvider(req.Provider)
	if provider == "" {
		provider = model.GatewayProviderBakong
	}

	rec, err := h.Service.IssuePayment(c.UserContext(), req.InvoiceID, provider, req.Currency)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecordNotFound):
			return fiber.NewError(fiber.StatusNotFound, "invoice not found")
		case errors.Is(err, service.ErrInvoiceAlreadyPaid):
			return fiber.NewError(fiber.StatusConflict, "invoice already paid")
		case errors.Is(err, khqr.ErrInvalidMerchantConfig):
			return fiber.NewError(fiber.StatusInternalServerError, "merchant misconfigured: "+err.Error())
		case errors.Is(err, khqr.ErrInvalidPayloadField), errors.Is(err, khqr.ErrValueTooLong):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return helper.SuccessWithCode(c, fiber.StatusCreated, "payment created", dto.FromSettlement(rec))
}

/* =========================================================
   GET /api/payments/:id
========================================================= */

func (h *PaymentController) GetPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var rec model.SettlementRecord
	if err := h.DB.WithContext(c.UserContext()).
		First(&rec, "settlement_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "payment not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return helper.Success(c, "ok", dto.FromSettlement(&rec))
}

/* =========================================================
   POST /api/payments/:id/check?mode=manual|silent

   Manual mode backs the payer's "I've paid" button and surfaces soft
   failures; silent mode backs background polling and suppresses them.
========================================================= */

func (h *PaymentController) CheckPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	silent := c.Query("mode", "manual") == "silent"

	rec, err := h.Service.Poll(c.UserContext(), id)
	switch {
	case err == nil:
		return helper.Success(c, "ok", dto.FromSettlement(rec))

	case errors.Is(err, service.ErrRecordNotFound):
		return fiber.NewError(fiber.StatusNotFound, "payment not found")

	case errors.Is(err, service.ErrNotYetPaid):
		// Soft: the payer just hasn't completed the transfer.
		return helper.Success(c, "payment not yet received", dto.FromSettlement(rec))

	case errors.Is(err, service.ErrExpiredFingerprint):
		if silent {
			return helper.Success(c, "payment expired", dto.FromSettlement(rec))
		}
		return fiber.NewError(fiber.StatusGone, "payment window expired, request a new QR")

	case errors.Is(err, service.ErrProvisioningFailed):
		// Settled. Fulfillment trouble is an admin concern; never report
		// it to the payer as a payment failure.
		return helper.Success(c, "ok", dto.FromSettlement(rec))

	default:
		if silent && rec != nil {
			return helper.Success(c, "payment pending", dto.FromSettlement(rec))
		}
		return fiber.NewError(fiber.StatusBadGateway, "gateway check failed: "+err.Error())
	}
}

/* =========================================================
   GET /api/payments/:id/qr.png
========================================================= */

func (h *PaymentController) GetQRImage(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var rec model.SettlementRecord
	if err := h.DB.WithContext(c.UserContext()).
		First(&rec, "settlement_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "payment not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if rec.SettlementQRPayload == nil {
		return fiber.NewError(fiber.StatusNotFound, "payment has no QR payload")
	}

	size := c.QueryInt("size", 512)
	png, err := khqr.ImagePNG(*rec.SettlementQRPayload, size)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}
