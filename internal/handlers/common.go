package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

var errMissingIdentity = errors.New("missing authenticated user id")

func parseAuthUserID(c *fiber.Ctx) (int64, error) {
	raw, ok := c.Locals("user_id").(string)
	if !ok || raw == "" {
		return 0, errMissingIdentity
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, errMissingIdentity
	}
	return userID, nil
}

func parseIDParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id parameter")
	}
	return id, nil
}
