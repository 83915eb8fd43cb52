package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/middleware"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/service"
)

type VideoHandler struct {
	svc *service.IngestService
}

func NewVideoHandler(svc *service.IngestService) *VideoHandler {
	return &VideoHandler{svc: svc}
}

// Collect handles POST /api/videos/collect
func (h *VideoHandler) Collect(c fiber.Ctx) error {
	var req model.CollectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	if req.ChannelID != "" {
		id, errMsg := middleware.ValidateChannelID(req.ChannelID)
		if errMsg != "" {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
		}
		req.ChannelID = id
	}
	url, errMsg := middleware.ValidateURL(req.URL)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	req.URL = url
	if req.ChannelID == "" && req.ChannelHandle == "" && req.URL == "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "MISSING_FIELDS", "channelId, channelHandle or url is required")
	}

	res, err := h.svc.TriggerVideoCollection(c.Context(), req)
	if err != nil {
		return serviceError(c, err)
	}

	resp := model.CollectResponse{
		Status:        model.StatusSuccess,
		JobID:         res.Job.ID,
		Count:         &res.Videos,
		CommentsCount: &res.Comments,
	}
	if res.Videos == 0 {
		resp.Message = "No videos found for channel"
	}
	return c.JSON(resp)
}
