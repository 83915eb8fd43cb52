package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/middleware"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/service"
)

type AnalysisHandler struct {
	svc *service.SentimentService
}

func NewAnalysisHandler(svc *service.SentimentService) *AnalysisHandler {
	return &AnalysisHandler{svc: svc}
}

// Analyze handles POST /api/analysis
func (h *AnalysisHandler) Analyze(c fiber.Ctx) error {
	var req model.AnalysisRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	videoID, errMsg := middleware.ValidateVideoID(req.VideoID)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	res, err := h.svc.Analyze(c.Context(), videoID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(model.AnalysisResponse{
		Status:           model.StatusSuccess,
		Sentiment:        res.Sentiment,
		Summary:          res.Summary,
		SummaryDegraded:  res.Degraded,
		CommentsAnalyzed: res.CommentsAnalyzed,
	})
}

// GetSummary handles GET /api/videos/:videoId/summary
func (h *AnalysisHandler) GetSummary(c fiber.Ctx) error {
	videoID, errMsg := middleware.ValidateVideoID(c.Params("videoId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	sum, err := h.svc.Summary(c.Context(), videoID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": model.StatusSuccess, "summary": sum})
}
