package api

import (
	"errors"
	"net/http"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/config"
	"github.com/wricardo/mcp-training/pathboard/game/service"
	"github.com/wricardo/mcp-training/pathboard/game/session"
)

// statusFor maps service and board errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrConfigNotFound),
		errors.Is(err, config.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, board.ErrOutOfBounds),
		errors.Is(err, board.ErrInvalidSize),
		errors.Is(err, service.ErrTooManyQueries),
		errors.Is(err, config.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrSolidCell),
		errors.Is(err, board.ErrPointsNotPlaced):
		return http.StatusConflict
	case errors.Is(err, session.ErrTooManySessions):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
