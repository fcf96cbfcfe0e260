package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/keylight/internal/effects"
	"github.com/smazurov/keylight/internal/render"
)

// mapError converts domain errors to HTTP errors.
func (s *Server) mapError(err error) error {
	if errors.Is(err, render.ErrTestPatternRunning) {
		return huma.Error409Conflict("Test pattern already running")
	}

	var e *effects.Error
	if errors.As(err, &e) {
		switch e.Code {
		case effects.ErrCodeValidation:
			return huma.Error422UnprocessableEntity(e.Message)
		case effects.ErrCodeNotFound:
			return huma.Error404NotFound(e.Message)
		case effects.ErrCodeStorage:
			s.logger.Error("Preset storage failed", "error", err)
			return huma.Error500InternalServerError(e.Message)
		}
	}

	s.logger.Error("Unexpected error", "error", err)
	return huma.Error500InternalServerError("Internal server error")
}
