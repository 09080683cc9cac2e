package router

import (
	"course-enrollment/internal/api/handlers"
	"course-enrollment/internal/api/middleware"
	"course-enrollment/internal/domain/user"

	"github.com/gin-gonic/gin"
)

func registerEnrollmentRoutes(v1 *gin.RouterGroup, deps Dependencies) {
	enrollmentHandler := handlers.NewEnrollmentHandler(deps.EnrollmentService, deps.IdempotencyService)
	settingHandler := handlers.NewSettingHandler(deps.SettingService)

	enrollments := v1.Group("/enrollments")
	{
		enrollments.POST("/batch", middleware.IdempotencyMiddleware(), enrollmentHandler.SubmitBatch)
		enrollments.GET("/batch/:batch_id", enrollmentHandler.GetBatchStatus)
	}

	students := v1.Group("/students")
	{
		students.GET("/:student_id/enrollments", enrollmentHandler.GetStudentEnrollments)
	}

	settings := v1.Group("/settings")
	settings.Use(middleware.RequireRoles(user.RoleAdministrator, user.RoleAcademicManager))
	{
		settings.POST("/reload", settingHandler.Reload)
	}
}
