package api

import (
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/arrivo-transit/arrivo/pkg/snapshot"
	"github.com/arrivo-transit/arrivo/pkg/tracker"
	"github.com/arrivo-transit/arrivo/pkg/util"
	"github.com/gofiber/fiber/v2"
)

const apiVersion = "1.0"

// SetupServer exposes the read-only surface over live vehicle state and
// reference data. Vehicle locations come from the redis mirror, never from
// the tracker's memory.
func SetupServer(listen string, mirror *tracker.RedisMirror, repository *snapshot.Repository) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"version": apiVersion})
	})

	group.Get("vehicles", func(c *fiber.Ctx) error {
		locations, err := mirror.All(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read vehicle locations")
		}

		return c.JSON(locations)
	})

	group.Get("vehicles/:id", func(c *fiber.Ctx) error {
		location, err := mirror.Get(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "vehicle not found")
		}

		return c.JSON(location)
	})

	group.Get("stops", func(c *fiber.Ctx) error {
		stops := repository.Stops()

		if routeID := c.Query("route"); routeID != "" {
			util.InPlaceFilter(&stops, func(stop *model.Stop) bool {
				return util.ContainsString(stop.RouteIDs, routeID)
			})
		}

		return c.JSON(stops)
	})

	group.Get("stops/:id", func(c *fiber.Ctx) error {
		stop := repository.Stop(c.Params("id"))
		if stop == nil {
			return fiber.NewError(fiber.StatusNotFound, "stop not found")
		}

		return c.JSON(stop)
	})

	return webApp.Listen(listen)
}
