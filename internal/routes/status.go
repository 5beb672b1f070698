package routes

import (
	_ "embed"

	"github.com/gofiber/fiber/v2"
)

//go:embed index.html
var indexPage []byte

// RegisterStatusRoutes serves the live status page.
func RegisterStatusRoutes(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		c.Type("html", "utf-8")
		return c.Send(indexPage)
	})
}
