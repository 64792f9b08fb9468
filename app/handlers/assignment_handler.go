package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/adscope-labs/spotgrid/app/dto"
	"github.com/adscope-labs/spotgrid/app/middleware"
	businessflow "github.com/adscope-labs/spotgrid/business_flow"
	"github.com/adscope-labs/spotgrid/models"
	"github.com/adscope-labs/spotgrid/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// BatchRunner is the narrow orchestrator surface the API needs: run one
// batch now and report its summary.
type BatchRunner interface {
	RunBatch(ctx context.Context) (*businessflow.BatchSummary, error)
}

// AssignmentHandlerInterface defines endpoints for the assignment engine
type AssignmentHandlerInterface interface {
	RunBatch(c fiber.Ctx) error
	GetSpotAssignment(c fiber.Ctx) error
	ReassignSpot(c fiber.Ctx) error
}

// AssignmentHandler implements AssignmentHandlerInterface
type AssignmentHandler struct {
	flow      businessflow.AssignmentFlow
	runner    BatchRunner
	validator *validator.Validate
}

func NewAssignmentHandler(flow businessflow.AssignmentFlow, runner BatchRunner) AssignmentHandlerInterface {
	return &AssignmentHandler{
		flow:      flow,
		runner:    runner,
		validator: validator.New(),
	}
}

func (h *AssignmentHandler) ErrorResponse(c fiber.Ctx, status int, message, code string, details any) error {
	return c.Status(status).JSON(dto.APIResponse{Success: false, Message: message, Error: dto.ErrorDetail{Code: code, Details: details}})
}

func (h *AssignmentHandler) SuccessResponse(c fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// RunBatch triggers an assignment batch and returns its summary. Batches over
// large imports can take a while; the request context caps the run and a
// second trigger while one is running is rejected.
func (h *AssignmentHandler) RunBatch(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	summary, err := h.runner.RunBatch(ctx)
	if err != nil {
		if errors.Is(err, businessflow.ErrBatchAlreadyRunning) {
			return h.ErrorResponse(c, fiber.StatusConflict, "An assignment batch is already running", "BATCH_ALREADY_RUNNING", nil)
		}
		log.Println("Batch run failed:", err)
		// A partial summary still tells the operator how far the run got.
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Batch run aborted",
			Data:    summary,
			Error:   dto.ErrorDetail{Code: "BATCH_ABORTED"},
		})
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Batch completed", summary)
}

// GetSpotAssignment returns the recorded assignment for one spot
func (h *AssignmentHandler) GetSpotAssignment(c fiber.Ctx) error {
	spotUUID := c.Params("uuid")
	if _, err := utils.ParseUUID(spotUUID); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid spot UUID", "INVALID_UUID", nil)
	}

	assignment, err := h.flow.AssignmentForSpot(h.createRequestContext(c, "/api/v1/admin/spots/:uuid/assignment"), spotUUID)
	if err != nil {
		if businessflow.IsSpotNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Spot not found", "SPOT_NOT_FOUND", nil)
		}
		if businessflow.IsSpotNotYetAssigned(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Spot has not been assigned yet", "SPOT_NOT_YET_ASSIGNED", nil)
		}
		log.Println("Get spot assignment failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Get spot assignment failed", "ASSIGNMENT_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Assignment retrieved", toSpotAssignmentResponse(spotUUID, assignment))
}

// ReassignSpot explicitly re-runs classification for one spot
func (h *AssignmentHandler) ReassignSpot(c fiber.Ctx) error {
	spotUUID := c.Params("uuid")
	if _, err := utils.ParseUUID(spotUUID); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid spot UUID", "INVALID_UUID", nil)
	}

	var req dto.ReassignSpotRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	actor := "admin"
	if admin, ok := middleware.GetAdminNameFromContext(c); ok {
		actor = admin
	}

	assignment, err := h.flow.Reassign(h.createRequestContext(c, "/api/v1/admin/spots/:uuid/reassign"), spotUUID, req.ForceCurrentGrid, actor)
	if err != nil {
		if businessflow.IsSpotNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Spot not found", "SPOT_NOT_FOUND", nil)
		}
		if businessflow.IsSpotNotYetAssigned(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Spot has no assignment to replace", "SPOT_NOT_YET_ASSIGNED", nil)
		}
		log.Println("Reassign spot failed:", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Reassign spot failed", "REASSIGN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Spot reassigned", toSpotAssignmentResponse(spotUUID, assignment))
}

func toSpotAssignmentResponse(spotUUID string, a *models.SpotAssignment) dto.SpotAssignmentResponse {
	return dto.SpotAssignmentResponse{
		SpotUUID:          spotUUID,
		GridID:            a.GridID,
		BlockID:           a.BlockID,
		Intent:            a.Intent.String(),
		Confidence:        a.Confidence,
		MultiBlock:        a.MultiBlock,
		SpannedBlockIDs:   a.SpannedBlockIDs,
		PrimaryBlockID:    a.PrimaryBlockID,
		Method:            a.Method.String(),
		RequiresAttention: a.RequiresAttention,
		AttentionReason:   a.AttentionReason,
		AssignedAt:        a.AssignedAt.Format(time.RFC3339),
	}
}

// createRequestContext mirrors other handlers for request-scoped values
func (h *AssignmentHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *AssignmentHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
