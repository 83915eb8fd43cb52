package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/middleware"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/service"
)

type ChannelHandler struct {
	svc *service.IngestService
}

func NewChannelHandler(svc *service.IngestService) *ChannelHandler {
	return &ChannelHandler{svc: svc}
}

// Collect handles POST /api/channels/collect
func (h *ChannelHandler) Collect(c fiber.Ctx) error {
	var req model.CollectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}
	url, errMsg := middleware.ValidateURL(req.URL)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}
	if url == "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "MISSING_FIELDS", "url is required")
	}

	res, err := h.svc.TriggerChannelCollection(c.Context(), url)
	if err != nil {
		return serviceError(c, err)
	}

	resp := model.CollectResponse{
		Status:   model.StatusSuccess,
		Channel:  res.Channel,
		Existing: res.Existing,
	}
	if res.Existing {
		resp.Message = "Channel already collected"
	}
	return c.JSON(resp)
}

// Get handles GET /api/channels/:channelId
func (h *ChannelHandler) Get(c fiber.Ctx) error {
	channelID, errMsg := middleware.ValidateChannelID(c.Params("channelId"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	ch, err := h.svc.LookupChannel(c.Context(), channelID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": model.StatusSuccess, "channel": ch})
}
