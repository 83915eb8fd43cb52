package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/service"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Webhook-Signature"

type WebhookHandler struct {
	svc *service.WebhookService
}

func NewWebhookHandler(svc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// Receive handles POST /api/webhooks/scrape
func (h *WebhookHandler) Receive(c fiber.Ctx) error {
	// The request body buffer is reused by fasthttp once the handler returns.
	body := append([]byte(nil), c.Body()...)

	resp, err := h.svc.Handle(c.Context(), service.Delivery{
		Body:          body,
		SnapshotID:    service.SnapshotIDFromHeaders(func(name string) string { return c.Get(name) }),
		Signature:     c.Get(SignatureHeader),
		Authorization: c.Get(fiber.HeaderAuthorization),
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(resp)
}
