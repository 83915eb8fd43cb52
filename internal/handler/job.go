package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/middleware"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/service"
)

type JobHandler struct {
	jobs *service.JobTracker
}

func NewJobHandler(jobs *service.JobTracker) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// Get handles GET /api/jobs/:jobId
func (h *JobHandler) Get(c fiber.Ctx) error {
	jobID, errMsg := middleware.ValidateJobID(c.Params("jobId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	job, err := h.jobs.Get(c.Context(), jobID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(model.JobResponse{Status: model.StatusSuccess, Job: job})
}
