package api

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/prismview/prism/internal/arrowio"
	"github.com/prismview/prism/internal/dataset"
)

// uploadDatasetHandler ingests a dataset and makes it the active snapshot.
// The body is CSV by default; format=arrow accepts an Arrow IPC stream.
// Gzip-compressed bodies are decompressed when Content-Encoding says so.
func (s *Server) uploadDatasetHandler(c *fiber.Ctx) error {
	name := c.Query("name", "dataset")
	format := strings.ToLower(c.Query("format", "csv"))

	body := c.Body()
	if len(body) == 0 {
		return badRequest(c, "empty request body")
	}

	var r io.Reader = bytes.NewReader(body)
	if strings.Contains(c.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return badRequest(c, "invalid gzip body: "+err.Error())
		}
		defer gz.Close()
		r = gz
	}

	start := time.Now()
	ds, err := s.parseDataset(format, name, r)
	if err != nil {
		return badRequest(c, err.Error())
	}

	s.store.Publish(ds)
	if s.cache != nil {
		s.cache.Purge()
	}

	s.logger.Info().
		Str("name", ds.Name()).
		Str("version", ds.Version()).
		Int("rows", ds.Rows()).
		Dur("duration_ms", time.Since(start)).
		Msg("Dataset published")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"name":    ds.Name(),
		"version": ds.Version(),
		"rows":    ds.Rows(),
		"schema":  ds.Schema(),
	})
}

func (s *Server) parseDataset(format, name string, r io.Reader) (*dataset.Dataset, error) {
	switch format {
	case "arrow":
		return arrowio.ReadStream(r, name)
	default:
		return s.loader.Load(name, r)
	}
}

// currentDatasetHandler describes the active dataset.
func (s *Server) currentDatasetHandler(c *fiber.Ctx) error {
	ds, ok := s.store.Current()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no dataset loaded",
		})
	}

	return c.JSON(fiber.Map{
		"name":      ds.Name(),
		"version":   ds.Version(),
		"rows":      ds.Rows(),
		"loaded_at": ds.LoadedAt().UTC().Format(time.RFC3339),
		"schema":    ds.Schema(),
	})
}

// exportDatasetHandler streams the active dataset as Arrow IPC.
func (s *Server) exportDatasetHandler(c *fiber.Ctx) error {
	ds, ok := s.store.Current()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no dataset loaded",
		})
	}

	var buf bytes.Buffer
	if err := arrowio.WriteStream(&buf, ds); err != nil {
		s.logger.Error().Err(err).Msg("Arrow export failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set("Content-Type", "application/vnd.apache.arrow.stream")
	return c.Send(buf.Bytes())
}

// clearDatasetHandler drops the active dataset.
func (s *Server) clearDatasetHandler(c *fiber.Ctx) error {
	s.store.Clear()
	if s.cache != nil {
		s.cache.Purge()
	}

	s.logger.Info().Msg("Dataset cleared")
	return c.JSON(fiber.Map{
		"status": "cleared",
	})
}
