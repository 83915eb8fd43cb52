package middleware

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
)

// Field length limits matching database schema constraints.
const (
	MaxVideoIDLen   = 16  // videos.id VARCHAR(16)
	MaxChannelIDLen = 32  // channels.id VARCHAR(32)
	MaxURLLen       = 512 // trigger urls
)

var (
	// videoIDRe matches YouTube video IDs: alphanumeric, dash, underscore.
	videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	// channelIDRe matches YouTube channel IDs.
	channelIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ErrorResponse is a helper that returns a standard API error response.
func ErrorResponse(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  model.StatusError,
		"code":    code,
		"message": message,
	})
}

// ValidateVideoID checks that a video ID is well-formed and within DB limits.
func ValidateVideoID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "videoId is required"
	}
	if len(id) > MaxVideoIDLen {
		return "", "videoId must be at most 16 characters"
	}
	if !videoIDRe.MatchString(id) {
		return "", "videoId contains invalid characters"
	}
	return id, ""
}

// ValidateChannelID checks that a channel ID is well-formed.
func ValidateChannelID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "channelId is required"
	}
	if len(id) > MaxChannelIDLen {
		return "", "channelId must be at most 32 characters"
	}
	if !channelIDRe.MatchString(id) {
		return "", "channelId contains invalid characters"
	}
	return id, ""
}

// ValidateJobID checks that a job ID is a UUID and returns it in canonical form.
func ValidateJobID(id string) (string, string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "jobId is required"
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", "jobId must be a UUID"
	}
	return parsed.String(), ""
}

// ValidateURL trims a trigger URL and bounds its length. Parsing is left to
// the channel reference parser.
func ValidateURL(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	if len(raw) > MaxURLLen {
		return "", "url must be at most 512 characters"
	}
	return raw, ""
}
