package httpapi

import (
	"errors"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/i474232898/gaf-clearance/internal/clearance"
	"github.com/i474232898/gaf-clearance/internal/gaf"
	"github.com/i474232898/gaf-clearance/internal/maparea"
	"github.com/i474232898/gaf-clearance/internal/store"
)

var validate = validator.New()

// QueryService is the read side of the forecast service.
type QueryService interface {
	Clearance(period gaf.Period, rule clearance.Rule) *geojson.FeatureCollection
	MapAreas(period gaf.Period) *geojson.FeatureCollection
	Envelopes(period gaf.Period) *geojson.FeatureCollection
	ValidityWindows() []gaf.ValidityWindow
	MajorAreas(period gaf.Period) []maparea.Export
	Forecast(region gaf.Region, from string) (gaf.Forecast, error)
	Ready() bool
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service QueryService) {
	v1 := app.Group("/api/v1")

	v1.Get("/clearance/:period/:rule", func(c *fiber.Ctx) error {
		req := clearanceParams{Period: c.Params("period"), Rule: c.Params("rule")}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rule := clearance.Day
		if req.Rule == clearance.Night.String() {
			rule = clearance.Night
		}
		return c.JSON(service.Clearance(gaf.Period(req.Period), rule))
	})

	v1.Get("/mapareas/:period", func(c *fiber.Ctx) error {
		period, err := parsePeriod(c)
		if err != nil {
			return err
		}
		return c.JSON(service.MapAreas(period))
	})

	v1.Get("/envelopes/:period", func(c *fiber.Ctx) error {
		period, err := parsePeriod(c)
		if err != nil {
			return err
		}
		return c.JSON(service.Envelopes(period))
	})

	v1.Get("/majorareas/:period", func(c *fiber.Ctx) error {
		period, err := parsePeriod(c)
		if err != nil {
			return err
		}
		return c.JSON(service.MajorAreas(period))
	})

	v1.Get("/validity", func(c *fiber.Ctx) error {
		return c.JSON(service.ValidityWindows())
	})

	v1.Get("/forecasts/:region/:from", func(c *fiber.Ctx) error {
		var req forecastParams
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		region, err := gaf.ParseRegion(req.Region)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		f, err := service.Forecast(region, req.From)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no forecast for requested region and validity start")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch forecast")
		}
		return c.JSON(f)
	})
}

// RegisterHealth wires liveness and readiness endpoints.
func RegisterHealth(app *fiber.App, service QueryService) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "gaf-clearance",
		})
	})

	// Ready once any (period, region) forecast has been installed.
	app.Get("/readyz", func(c *fiber.Ctx) error {
		if !service.Ready() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "waiting for first forecast"})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})
}

// periodParams holds the period path parameter.
type periodParams struct {
	Period string `validate:"required,oneof=current next"`
}

func parsePeriod(c *fiber.Ctx) (gaf.Period, error) {
	req := periodParams{Period: c.Params("period")}
	if err := validate.Struct(req); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return gaf.ParsePeriodStrict(req.Period)
}

// clearanceParams holds the path parameters of the clearance endpoint.
type clearanceParams struct {
	Period string `validate:"required,oneof=current next"`
	Rule   string `validate:"required,oneof=day night"`
}

// forecastParams holds the path parameters of the raw forecast endpoint.
type forecastParams struct {
	Region string `validate:"required"`
	From   string `validate:"required"`
}

func (f *forecastParams) bind(c *fiber.Ctx) error {
	f.Region = c.Params("region")

	from, err := url.PathUnescape(c.Params("from"))
	if err != nil {
		return err
	}
	f.From = from
	return nil
}
