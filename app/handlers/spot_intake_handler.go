package handlers

import (
	"context"
	"log"
	"time"

	"github.com/adscope-labs/spotgrid/app/dto"
	businessflow "github.com/adscope-labs/spotgrid/business_flow"
	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// SpotIntakeHandlerInterface defines endpoints for spot ingestion
type SpotIntakeHandlerInterface interface {
	ImportSpots(c fiber.Ctx) error
	CreateSpot(c fiber.Ctx) error
}

// SpotIntakeHandler implements SpotIntakeHandlerInterface
type SpotIntakeHandler struct {
	flow      businessflow.SpotIntakeFlow
	validator *validator.Validate
}

func NewSpotIntakeHandler(flow businessflow.SpotIntakeFlow) SpotIntakeHandlerInterface {
	return &SpotIntakeHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *SpotIntakeHandler) ErrorResponse(c fiber.Ctx, status int, message, code string, details any) error {
	return c.Status(status).JSON(dto.APIResponse{Success: false, Message: message, Error: dto.ErrorDetail{Code: code, Details: details}})
}

func (h *SpotIntakeHandler) SuccessResponse(c fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// ImportSpots ingests an xlsx traffic export uploaded as multipart form file "file"
func (h *SpotIntakeHandler) ImportSpots(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Spreadsheet file is required", "MISSING_FILE", nil)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Failed to open uploaded file", "INVALID_FILE", err.Error())
	}
	defer file.Close()

	summary, err := h.flow.ImportSpotsFromExcel(h.createRequestContext(c, "/api/v1/admin/spots/import"), file)
	if err != nil {
		log.Println("Spot import failed:", err)
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Spot import failed", "SPOT_IMPORT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Spots imported", summary)
}

// CreateSpot submits a single spot
func (h *SpotIntakeHandler) CreateSpot(c fiber.Ctx) error {
	var req dto.CreateSpotRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, e := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(e))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	airDate, err := utils.ParseDate(req.AirDate)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid air date", "INVALID_DATE", err.Error())
	}
	timeIn, err := models.ParseTimeOfDay(req.TimeIn)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid time in", "INVALID_TIME", err.Error())
	}
	timeOut, err := models.ParseTimeOfDay(req.TimeOut)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid time out", "INVALID_TIME", err.Error())
	}

	spot := &models.Spot{
		MarketID:    req.MarketID,
		AirDate:     airDate,
		TimeIn:      timeIn,
		TimeOut:     timeOut,
		Advertiser:  req.Advertiser,
		GrossRate:   req.GrossRate,
		RevenueType: req.RevenueType,
	}

	if err := h.flow.CreateSpot(h.createRequestContext(c, "/api/v1/admin/spots"), spot); err != nil {
		if businessflow.IsMarketNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Market not found", "MARKET_NOT_FOUND", nil)
		}
		if businessflow.IsMarketInactive(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Market is inactive", "MARKET_INACTIVE", nil)
		}
		if businessflow.IsSpotTimeRangeInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Spot time range invalid", "SPOT_TIME_RANGE_INVALID", nil)
		}
		log.Println("Create spot failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Create spot failed", "SPOT_CREATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Spot created", spot)
}

// createRequestContext mirrors other handlers for request-scoped values
func (h *SpotIntakeHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 60*time.Second)
}

func (h *SpotIntakeHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
