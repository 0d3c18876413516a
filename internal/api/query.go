package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/prismview/prism/internal/engine"
	"github.com/prismview/prism/pkg/models"
)

// chartQueryRequest is the body for chart and scatter queries. Surface
// identifies the view issuing the query so stale responses can be
// discarded client-side.
type chartQueryRequest struct {
	models.QuerySpec
	Surface string `json:"surface,omitempty"`
}

// progressiveQueryRequest adds zoom state to a chart query.
type progressiveQueryRequest struct {
	chartQueryRequest
	ZoomLevel  float64  `json:"zoomLevel"`
	RangeStart *float64 `json:"rangeStart,omitempty"`
	RangeEnd   *float64 `json:"rangeEnd,omitempty"`
}

// tableQueryRequest is the body for table queries.
type tableQueryRequest struct {
	models.TableRequest
	Surface string `json:"surface,omitempty"`
}

// chartQueryHandler executes a standard chart query.
func (s *Server) chartQueryHandler(c *fiber.Ctx) error {
	var req chartQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	gen := s.issueGeneration(req.Surface)
	start := time.Now()
	result, err := s.engine.ExecuteChartQuery(c.Context(), req.QuerySpec)
	if err != nil {
		return s.queryError(c, err)
	}

	s.stampGeneration(&result.Metadata, req.Surface, gen)
	s.logQuery(c, "chart", time.Since(start))
	return c.JSON(result)
}

// progressiveQueryHandler executes a chart query with a zoom-scaled budget
// and optional x-range restriction.
func (s *Server) progressiveQueryHandler(c *fiber.Ctx) error {
	var req progressiveQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	gen := s.issueGeneration(req.Surface)
	start := time.Now()
	result, err := s.engine.ExecuteProgressiveQuery(c.Context(), req.QuerySpec, req.ZoomLevel, req.RangeStart, req.RangeEnd)
	if err != nil {
		return s.queryError(c, err)
	}

	s.stampGeneration(&result.Metadata, req.Surface, gen)
	s.logQuery(c, "progressive", time.Since(start))
	return c.JSON(result)
}

// scatterQueryHandler executes a raw-point scatter query.
func (s *Server) scatterQueryHandler(c *fiber.Ctx) error {
	var req chartQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	gen := s.issueGeneration(req.Surface)
	start := time.Now()
	result, err := s.engine.ExecuteScatterQuery(c.Context(), req.QuerySpec)
	if err != nil {
		return s.queryError(c, err)
	}

	s.stampGeneration(&result.Metadata, req.Surface, gen)
	s.logQuery(c, "scatter", time.Since(start))
	return c.JSON(result)
}

// tableQueryHandler returns a filtered, sorted page of raw rows.
func (s *Server) tableQueryHandler(c *fiber.Ctx) error {
	var req tableQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	gen := s.issueGeneration(req.Surface)
	start := time.Now()
	page, err := s.engine.ExecuteTableQuery(c.Context(), req.TableRequest)
	if err != nil {
		return s.queryError(c, err)
	}

	resp := struct {
		*models.TablePage
		Generation uint64 `json:"generation,omitempty"`
		Stale      bool   `json:"stale,omitempty"`
	}{TablePage: page}
	if req.Surface != "" {
		resp.Generation = gen
		resp.Stale = !s.seq.Latest(req.Surface, gen)
	}

	s.logQuery(c, "table", time.Since(start))
	return c.JSON(resp)
}

// issueGeneration reserves the surface's next generation before the query
// runs. Stamping at issue time rather than completion time is what lets a
// client apply the highest generation and know it is the latest request, not
// merely the last to finish.
func (s *Server) issueGeneration(surface string) uint64 {
	if surface == "" {
		return 0
	}
	return s.seq.Issue(surface)
}

func (s *Server) stampGeneration(meta *models.ChartMeta, surface string, gen uint64) {
	if surface != "" {
		meta.Generation = gen
		meta.Stale = !s.seq.Latest(surface, gen)
	}
}

func (s *Server) logQuery(c *fiber.Ctx, kind string, duration time.Duration) {
	s.logger.Debug().
		Str("kind", kind).
		Dur("duration_ms", duration).
		Str("ip", c.IP()).
		Msg("Query executed")
}

// queryError maps engine errors to HTTP status codes.
func (s *Server) queryError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, engine.ErrNoData):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	case engine.IsValidationError(err):
		return badRequest(c, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Query failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}
