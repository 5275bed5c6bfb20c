package server

import (
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

// NewFiber builds the fiber app with the jsoniter codec
func NewFiber(bodyLimit int) *fiber.App {
	return fiber.New(
		fiber.Config{
			AppName:               "facegaze",
			BodyLimit:             bodyLimit,
			StrictRouting:         true,
			CaseSensitive:         true,
			DisableStartupMessage: true,
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
		})
}
