package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/essaymark/essaymark-go-api/internal/ratelimit"
	"github.com/essaymark/essaymark-go-api/internal/service"
)

func userContextFromLocals(c *fiber.Ctx) service.UserContext {
	user := service.UserContext{}

	if id, ok := c.Locals("user_id").(string); ok {
		user.ID = strings.TrimSpace(id)
	}
	if tier, ok := c.Locals("user_tier").(string); ok {
		user.Tier = ratelimit.ParseTier(tier)
	} else {
		user.Tier = ratelimit.TierFree
	}
	if subjects, ok := c.Locals("allowed_subjects").([]string); ok {
		user.AllowedSubjects = subjects
	}

	return user
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}
