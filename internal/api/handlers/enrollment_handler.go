package handlers

import (
	"net/http"
	"strconv"

	"course-enrollment/internal/api/middleware"
	domain "course-enrollment/internal/domain/enrollment"
	serviceInterfaces "course-enrollment/internal/interfaces/service"
	"course-enrollment/internal/service"
	appErrors "course-enrollment/pkg/errors"
	"course-enrollment/pkg/logger"
	"course-enrollment/pkg/response"
	"course-enrollment/pkg/validator"

	"github.com/gin-gonic/gin"
)

// EnrollmentHandler handles enrollment batch and query requests
type EnrollmentHandler struct {
	enrollmentService  serviceInterfaces.EnrollmentService
	idempotencyService *service.IdempotencyService
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(enrollmentService serviceInterfaces.EnrollmentService, idempotencyService *service.IdempotencyService) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollmentService:  enrollmentService,
		idempotencyService: idempotencyService,
	}
}

// SubmitBatch handles POST /api/v1/enrollments/batch
func (h *EnrollmentHandler) SubmitBatch(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req domain.BatchEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}
	if err := validator.ValidateStruct(&req); err != nil {
		response.ValidationFailed(c, err)
		return
	}

	key := c.GetString(middleware.IdempotencyKeyKey)
	if h.idempotencyService != nil && key != "" {
		stored, duplicate, err := h.idempotencyService.CheckDuplicateRequest(c.Request.Context(), key, actor.UserID, &req)
		if err != nil {
			response.Error(c, err)
			return
		}
		if duplicate {
			c.Header(middleware.IdempotentReplayedHeader, "true")
			c.Data(stored.StatusCode, "application/json; charset=utf-8", []byte(stored.ResponseData))
			return
		}
	}

	resp, err := h.enrollmentService.SubmitBatch(c.Request.Context(), actor, &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	body := response.APIResponse{
		Success: true,
		Message: "Enrollment batch accepted",
		Data:    resp,
	}
	if h.idempotencyService != nil && key != "" {
		if err := h.idempotencyService.StoreProcessedRequest(c.Request.Context(), key, actor.UserID, &req, body, http.StatusAccepted); err != nil {
			logger.Warn("Batch %s accepted but idempotency key was not stored: %v", resp.BatchID, err)
		}
	}
	c.JSON(http.StatusAccepted, body)
}

// GetBatchStatus handles GET /api/v1/enrollments/batch/:batch_id
func (h *EnrollmentHandler) GetBatchStatus(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.enrollmentService.GetBatchStatus(c.Request.Context(), actor, c.Param("batch_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "", status)
}

// GetStudentEnrollments handles GET /api/v1/students/:student_id/enrollments
func (h *EnrollmentHandler) GetStudentEnrollments(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	studentID, err := strconv.ParseInt(c.Param("student_id"), 10, 64)
	if err != nil || studentID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid student_id"))
		return
	}

	var semesterID int64
	if raw := c.Query("semester_id"); raw != "" {
		semesterID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || semesterID <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "invalid semester_id"))
			return
		}
	}

	enrollments, err := h.enrollmentService.GetStudentEnrollments(c.Request.Context(), actor, studentID, semesterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "", enrollments)
}
