package httpapi

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-oracle/internal/domain"
	"github.com/i474232898/weather-oracle/internal/oracle"
	"github.com/i474232898/weather-oracle/internal/store"
)

const ServiceName = "weather-oracle"

var validate = validator.New()

// OracleService is the oracle use-case layer consumed by the handlers.
type OracleService interface {
	Create(ctx context.Context, req oracle.CreateRequest) (domain.TrackedOracle, error)
	List(ctx context.Context) ([]domain.TrackedOracle, error)
	Get(ctx context.Context, id string) (oracle.Detail, error)
	DeadLetters(ctx context.Context) ([]domain.TrackedOracle, error)
	Ping(ctx context.Context) error
}

// LocationSearcher proxies free-text geocoding queries.
type LocationSearcher interface {
	Search(ctx context.Context, query string) (json.RawMessage, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, oracles OracleService, searcher LocationSearcher) {
	h := &handlers{oracles: oracles, searcher: searcher}

	app.Get("/health", h.health)
	app.Get("/search", h.search)
	app.Post("/oracle", h.createOracle)
	app.Get("/oracles", h.listOracles)
	app.Get("/oracles/dead-letter", h.deadLetters)
	app.Get("/oracles/:id", h.getOracle)
}

type handlers struct {
	oracles  OracleService
	searcher LocationSearcher
}

func (h *handlers) health(c *fiber.Ctx) error {
	if err := h.oracles.Ping(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "degraded",
			"service": ServiceName,
			"store":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": ServiceName,
		"store":   "ok",
	})
}

func (h *handlers) search(c *fiber.Ctx) error {
	q := c.Query("q")
	if q == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query parameter q is required")
	}

	raw, err := h.searcher.Search(c.UserContext(), q)
	if err != nil {
		log.Ctx(c.UserContext()).Error().Err(err).Str("q", q).Msg("location search failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Error fetching location data",
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}

// createOracleRequest is the POST /oracle body. Pointers distinguish a
// missing value from a legitimate zero.
type createOracleRequest struct {
	Latitude   *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	CityName   string   `json:"city_name" validate:"required,max=128"`
	TargetTemp *float64 `json:"target_temp" validate:"required,gte=0"`
	TargetTime int64    `json:"target_time" validate:"required,gt=0"`
}

func (r createOracleRequest) toCreateRequest() oracle.CreateRequest {
	return oracle.CreateRequest{
		Latitude:   *r.Latitude,
		Longitude:  *r.Longitude,
		CityName:   r.CityName,
		TargetTemp: *r.TargetTemp,
		TargetTime: r.TargetTime,
	}
}

func (h *handlers) createOracle(c *fiber.Ctx) error {
	var req createOracleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
			"details": err.Error(),
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid oracle request",
			"details": err.Error(),
		})
	}

	o, err := h.oracles.Create(c.UserContext(), req.toCreateRequest())
	if err != nil {
		log.Ctx(c.UserContext()).Error().Err(err).Str("city", req.CityName).Msg("oracle creation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Error creating oracle",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"oracle":  o,
		"message": "Oracle created",
	})
}

func (h *handlers) listOracles(c *fiber.Ctx) error {
	all, err := h.oracles.List(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list oracles")
	}
	return c.JSON(all)
}

func (h *handlers) deadLetters(c *fiber.Ctx) error {
	dead, err := h.oracles.DeadLetters(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list dead-lettered oracles")
	}
	return c.JSON(dead)
}

func (h *handlers) getOracle(c *fiber.Ctx) error {
	d, err := h.oracles.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "oracle not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch oracle")
	}
	return c.JSON(d)
}

// ErrorHandler renders every error that reaches Fiber as a JSON body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
