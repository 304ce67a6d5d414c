package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server registers the HTTP surface over a completion service.
type Server struct {
	service *CompletionService
	catalog ModelCatalog
}

// NewServer builds a server. catalog may be nil, in which case
// /v1/models reports only the loaded model.
func NewServer(service *CompletionService, catalog ModelCatalog) *Server {
	return &Server{service: service, catalog: catalog}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/completions", s.handleCompletion)
	e.GET("/v1/models", s.handleListModels)
	e.GET("/healthz", s.handleHealth)

	metrics := promhttp.Handler()
	e.GET("/metrics", func(c *echo.Context) error {
		metrics.ServeHTTP(c.Response(), c.Request())
		return nil
	})
}

func (s *Server) handleCompletion(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "completion service not configured", "", "")
	}
	req, err := decodeJSON[CompletionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	if req.Stream == nil || !*req.Stream {
		resp, err := s.service.Complete(c.Request().Context(), &req, nil)
		if err != nil {
			return completionError(c, err)
		}
		return c.JSON(http.StatusOK, resp)
	}

	writer, err := NewSSEStreamWriter(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if _, err := s.service.Complete(c.Request().Context(), &req, writer); err != nil {
		if writer.Started() {
			writer.Fail(err, accumulatedText(err))
			return nil
		}
		return completionError(c, err)
	}
	return nil
}

func (s *Server) handleListModels(c *echo.Context) error {
	var models []ModelInfo
	if s.catalog != nil {
		models = s.catalog.Models()
	}
	if len(models) == 0 {
		models = []ModelInfo{{
			ID:      s.service.Model(),
			Object:  "model",
			Created: timeNow().Unix(),
			OwnedBy: "local",
		}}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   models,
	})
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"model":  s.service.Model(),
	})
}

// completionError maps a service failure to a response: invalid
// requests get 400, everything else 500 with any text generated before
// the failure preserved.
func completionError(c *echo.Context, err error) error {
	if errors.Is(err, ErrInvalidRequest) {
		return writeBadRequest(c, err.Error())
	}
	if text := accumulatedText(err); text != "" {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error": ResponseError{Message: err.Error(), Type: "server_error"},
			"text":  text,
		})
	}
	return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
}

func accumulatedText(err error) string {
	var genErr *generationError
	if errors.As(err, &genErr) {
		return genErr.text
	}
	return ""
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
