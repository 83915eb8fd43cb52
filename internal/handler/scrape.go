package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/middleware"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/service"
)

type ScrapeHandler struct {
	svc *service.IngestService
}

func NewScrapeHandler(svc *service.IngestService) *ScrapeHandler {
	return &ScrapeHandler{svc: svc}
}

// Dispatch handles POST /api/scrapes
func (h *ScrapeHandler) Dispatch(c fiber.Ctx) error {
	var req model.ScrapeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	url, errMsg := middleware.ValidateURL(req.URL)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	req.URL = url

	job, err := h.svc.DispatchScrape(c.Context(), req)
	if err != nil {
		// A finished wait still reports the job so clients see its error.
		if job != nil && (errors.Is(err, service.ErrJobFailed) || errors.Is(err, service.ErrJobTimeout)) {
			status, code := classify(err)
			return c.Status(status).JSON(fiber.Map{
				"status":  model.StatusError,
				"code":    code,
				"message": err.Error(),
				"job":     job,
			})
		}
		return serviceError(c, err)
	}

	status := fiber.StatusAccepted
	if job.Status == model.JobReady {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(model.JobResponse{Status: model.StatusSuccess, Job: job})
}
