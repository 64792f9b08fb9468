package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/adscope-labs/spotgrid/app/dto"
	"github.com/adscope-labs/spotgrid/app/middleware"
	businessflow "github.com/adscope-labs/spotgrid/business_flow"
	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ScheduleAdminHandlerInterface defines admin endpoints for schedule management
type ScheduleAdminHandlerInterface interface {
	CreateMarket(c fiber.Ctx) error
	ListMarkets(c fiber.Ctx) error
	CreateGrid(c fiber.Ctx) error
	CreateBlock(c fiber.Ctx) error
	DeactivateBlock(c fiber.Ctx) error
	CreateAssignment(c fiber.Ctx) error
	EndAssignment(c fiber.Ctx) error
	MigrateMarket(c fiber.Ctx) error
	ListCollisions(c fiber.Ctx) error
	ResolveCollision(c fiber.Ctx) error
}

// ScheduleAdminHandler implements ScheduleAdminHandlerInterface
type ScheduleAdminHandler struct {
	flow      businessflow.ScheduleAdminFlow
	validator *validator.Validate
}

func NewScheduleAdminHandler(flow businessflow.ScheduleAdminFlow) ScheduleAdminHandlerInterface {
	return &ScheduleAdminHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *ScheduleAdminHandler) ErrorResponse(c fiber.Ctx, status int, message, code string, details any) error {
	return c.Status(status).JSON(dto.APIResponse{Success: false, Message: message, Error: dto.ErrorDetail{Code: code, Details: details}})
}

func (h *ScheduleAdminHandler) SuccessResponse(c fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// CreateMarket creates a new market
func (h *ScheduleAdminHandler) CreateMarket(c fiber.Ctx) error {
	var req dto.CreateMarketRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validateStruct(c, &req); err != nil {
		return err
	}

	market := &models.Market{
		Code:     req.Code,
		Name:     req.Name,
		IsActive: true,
	}
	if req.Region != "" {
		market.Region = &req.Region
	}
	if err := h.flow.CreateMarket(h.createRequestContext(c, "/api/v1/admin/markets"), market); err != nil {
		if businessflow.IsMarketCodeTaken(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Market code already in use", "MARKET_CODE_TAKEN", nil)
		}
		log.Println("Create market failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Create market failed", "MARKET_CREATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Market created", market)
}

// ListMarkets returns markets ordered by code
func (h *ScheduleAdminHandler) ListMarkets(c fiber.Ctx) error {
	limit, offset := paginationParams(c)
	markets, err := h.flow.ListMarkets(h.createRequestContext(c, "/api/v1/admin/markets"), limit, offset)
	if err != nil {
		log.Println("List markets failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "List markets failed", "MARKET_LIST_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Markets retrieved", markets)
}

// CreateGrid creates a new programming grid version
func (h *ScheduleAdminHandler) CreateGrid(c fiber.Ctx) error {
	var req dto.CreateGridRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validateStruct(c, &req); err != nil {
		return err
	}

	startDate, err := utils.ParseDate(req.EffectiveStartDate)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid effective start date", "INVALID_DATE", err.Error())
	}
	grid := &models.ProgrammingGrid{
		Name:               req.Name,
		Version:            req.Version,
		Kind:               models.ScheduleKind(req.Kind),
		EffectiveStartDate: startDate,
		IsActive:           true,
	}
	if req.EffectiveEndDate != "" {
		endDate, err := utils.ParseDate(req.EffectiveEndDate)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid effective end date", "INVALID_DATE", err.Error())
		}
		grid.EffectiveEndDate = &endDate
	}

	if err := h.flow.CreateGrid(h.createRequestContext(c, "/api/v1/admin/grids"), grid); err != nil {
		log.Println("Create grid failed:", err)
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Create grid failed", "GRID_CREATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Grid created", grid)
}

// CreateBlock adds a language block to a grid
func (h *ScheduleAdminHandler) CreateBlock(c fiber.Ctx) error {
	var req dto.CreateBlockRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validateStruct(c, &req); err != nil {
		return err
	}

	startMinute, err := models.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid start time", "INVALID_TIME", err.Error())
	}
	endMinute, err := models.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid end time", "INVALID_TIME", err.Error())
	}

	block := &models.LanguageBlock{
		GridID:       req.GridID,
		DayOfWeek:    models.DayOfWeek(req.DayOfWeek),
		StartMinute:  startMinute,
		EndMinute:    endMinute,
		LanguageCode: req.LanguageCode,
		Name:         req.Name,
		Category:     req.Category,
		DayPart:      req.DayPart,
		DisplayOrder: req.DisplayOrder,
		IsActive:     true,
	}

	if err := h.flow.CreateBlock(h.createRequestContext(c, "/api/v1/admin/blocks"), block); err != nil {
		if businessflow.IsGridNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Programming grid not found", "GRID_NOT_FOUND", nil)
		}
		if businessflow.IsGridInactive(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Programming grid is inactive", "GRID_INACTIVE", nil)
		}
		if businessflow.IsBlockWindowInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Block window invalid", "BLOCK_WINDOW_INVALID", nil)
		}
		log.Println("Create block failed:", err)
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Create block failed", "BLOCK_CREATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Block created", block)
}

// DeactivateBlock marks a block inactive
func (h *ScheduleAdminHandler) DeactivateBlock(c fiber.Ctx) error {
	blockID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid block ID", "INVALID_ID", nil)
	}

	if err := h.flow.DeactivateBlock(h.createRequestContext(c, "/api/v1/admin/blocks/:id"), uint(blockID)); err != nil {
		if businessflow.IsBlockNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Language block not found", "BLOCK_NOT_FOUND", nil)
		}
		log.Println("Deactivate block failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Deactivate block failed", "BLOCK_DEACTIVATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Block deactivated", nil)
}

// CreateAssignment binds a market to a grid; collision findings come back in the response
func (h *ScheduleAdminHandler) CreateAssignment(c fiber.Ctx) error {
	var req dto.CreateAssignmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validateStruct(c, &req); err != nil {
		return err
	}

	startDate, err := utils.ParseDate(req.EffectiveStartDate)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid effective start date", "INVALID_DATE", err.Error())
	}
	assignment := &models.MarketGridAssignment{
		MarketID:           req.MarketID,
		GridID:             req.GridID,
		EffectiveStartDate: startDate,
		Priority:           req.Priority,
	}
	if req.EffectiveEndDate != "" {
		endDate, err := utils.ParseDate(req.EffectiveEndDate)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid effective end date", "INVALID_DATE", err.Error())
		}
		assignment.EffectiveEndDate = &endDate
	}
	if admin, ok := middleware.GetAdminNameFromContext(c); ok {
		assignment.CreatedBy = utils.ToPtr(admin)
	}

	findings, err := h.flow.CreateAssignment(h.createRequestContext(c, "/api/v1/admin/assignments"), assignment)
	if err != nil {
		if businessflow.IsMarketNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Market not found", "MARKET_NOT_FOUND", nil)
		}
		if businessflow.IsMarketInactive(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Market is inactive", "MARKET_INACTIVE", nil)
		}
		if businessflow.IsGridNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Programming grid not found", "GRID_NOT_FOUND", nil)
		}
		if businessflow.IsGridInactive(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Programming grid is inactive", "GRID_INACTIVE", nil)
		}
		if businessflow.IsEndDateBeforeStart(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "End date cannot be before start date", "END_DATE_BEFORE_START", nil)
		}
		log.Println("Create assignment failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Create assignment failed", "ASSIGNMENT_CREATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Assignment created", fiber.Map{
		"assignment": assignment,
		"collisions": findings,
	})
}

// EndAssignment closes an open assignment on a date
func (h *ScheduleAdminHandler) EndAssignment(c fiber.Ctx) error {
	assignmentID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid assignment ID", "INVALID_ID", nil)
	}

	var req dto.EndAssignmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validateStruct(c, &req); err != nil {
		return err
	}

	endDate, err := utils.ParseDate(req.EndDate)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid end date", "INVALID_DATE", err.Error())
	}

	if err := h.flow.EndAssignment(h.createRequestContext(c, "/api/v1/admin/assignments/:id/end"), uint(assignmentID), endDate); err != nil {
		if businessflow.IsAssignmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Assignment not found", "ASSIGNMENT_NOT_FOUND", nil)
		}
		if businessflow.IsAssignmentAlreadyEnded(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Assignment already ended", "ASSIGNMENT_ALREADY_ENDED", nil)
		}
		if businessflow.IsEndDateBeforeStart(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "End date cannot be before start date", "END_DATE_BEFORE_START", nil)
		}
		log.Println("End assignment failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "End assignment failed", "ASSIGNMENT_END_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Assignment ended", nil)
}

// MigrateMarket moves a market to a new grid in one transaction
func (h *ScheduleAdminHandler) MigrateMarket(c fiber.Ctx) error {
	var req dto.MigrateMarketRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validateStruct(c, &req); err != nil {
		return err
	}

	endDate, err := utils.ParseDate(req.EndDate)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid end date", "INVALID_DATE", err.Error())
	}

	actor := "admin"
	if admin, ok := middleware.GetAdminNameFromContext(c); ok {
		actor = admin
	}

	successor, err := h.flow.MigrateMarket(h.createRequestContext(c, "/api/v1/admin/markets/migrate"), req.MarketID, req.NewGridID, endDate, actor)
	if err != nil {
		if businessflow.IsGridNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Programming grid not found", "GRID_NOT_FOUND", nil)
		}
		log.Println("Market migration failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Market migration failed", "MARKET_MIGRATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Market migrated", successor)
}

// ListCollisions returns open collision records
func (h *ScheduleAdminHandler) ListCollisions(c fiber.Ctx) error {
	limit, offset := paginationParams(c)
	records, err := h.flow.ListOpenCollisions(h.createRequestContext(c, "/api/v1/admin/collisions"), limit, offset)
	if err != nil {
		log.Println("List collisions failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "List collisions failed", "COLLISION_LIST_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Collisions retrieved", records)
}

// ResolveCollision closes a collision record with an explicit action
func (h *ScheduleAdminHandler) ResolveCollision(c fiber.Ctx) error {
	collisionID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid collision ID", "INVALID_ID", nil)
	}

	var req dto.ResolveCollisionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validateStruct(c, &req); err != nil {
		return err
	}

	actor := "admin"
	if admin, ok := middleware.GetAdminNameFromContext(c); ok {
		actor = admin
	}

	err = h.flow.ResolveCollision(h.createRequestContext(c, "/api/v1/admin/collisions/:id/resolve"),
		uint(collisionID), models.ResolutionStatus(req.Status), actor, req.Notes)
	if err != nil {
		if businessflow.IsCollisionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Collision record not found", "COLLISION_NOT_FOUND", nil)
		}
		if businessflow.IsCollisionAlreadyResolved(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Collision record already closed", "COLLISION_ALREADY_RESOLVED", nil)
		}
		log.Println("Resolve collision failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Resolve collision failed", "COLLISION_RESOLVE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Collision resolved", nil)
}

func (h *ScheduleAdminHandler) validateStruct(c fiber.Ctx, req any) error {
	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, e := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(e))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}
	return nil
}

func paginationParams(c fiber.Ctx) (limit, offset int) {
	limit = 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// createRequestContext mirrors other handlers for request-scoped values
func (h *ScheduleAdminHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *ScheduleAdminHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
