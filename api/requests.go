package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/grid"
	"github.com/wricardo/mcp-training/pathboard/game/service"
)

// maxBodyBytes caps request bodies; a full 42x42 preset fits comfortably.
const maxBodyBytes = 1 << 20

var requestValidate = validator.New(validator.WithRequiredStructEnabled())

// errBadRequest marks errors caused by the request itself.
var errBadRequest = errors.New("bad request")

// point is a coordinate pair in a request body. Pointers make a missing
// coordinate distinguishable from zero.
type point struct {
	X *int `json:"x" validate:"required,min=0"`
	Y *int `json:"y" validate:"required,min=0"`
}

func (p point) position() grid.Position {
	return grid.Position{X: *p.X, Y: *p.Y}
}

type createSessionRequest struct {
	ConfigID   string `json:"config_id,omitempty" validate:"omitempty,max=64"`
	ConfigName string `json:"config_name,omitempty" validate:"omitempty,max=64"` // Deprecated, use config_id
}

type regenerateRequest struct {
	Seed int64 `json:"seed,omitempty"`
}

type resizeRequest struct {
	Width  int `json:"width" validate:"required,min=2,max=42"`
	Height int `json:"height" validate:"required,min=2,max=42"`
}

type toggleCellRequest struct {
	point
	// Solid sets the cell explicitly instead of flipping it.
	Solid *bool `json:"solid,omitempty"`
}

type setPointsRequest struct {
	A point `json:"a" validate:"required"`
	B point `json:"b" validate:"required"`
}

type pathQueryRequest struct {
	Start point `json:"start" validate:"required"`
	Goal  point `json:"goal" validate:"required"`
}

type findPathsRequest struct {
	Queries []pathQueryRequest `json:"queries" validate:"required,min=1,max=64,dive"`
}

func (r findPathsRequest) queries() []service.PathQuery {
	out := make([]service.PathQuery, len(r.Queries))
	for i, q := range r.Queries {
		out[i] = service.PathQuery{Start: q.Start.position(), Goal: q.Goal.position()}
	}
	return out
}

// decodeJSON reads a JSON body into dst and validates it. An empty body is
// accepted when allowEmpty is set and leaves dst untouched.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	if r.Body == nil {
		if allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: request body required", errBadRequest)
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body required", errBadRequest)
		}
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}

	return validateRequest(dst)
}

// validateRequest runs the struct's validate tags and turns failures into
// a readable message.
func validateRequest(v any) error {
	err := requestValidate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Namespace())
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", errBadRequest, strings.Join(msgs, "; "))
}

// validatePreset checks the request-level limits of a posted preset before
// the board's own validation runs.
func validatePreset(cfg *board.BoardConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: config name is required", errBadRequest)
	}
	if strings.ContainsAny(cfg.Name, `/\`) {
		return fmt.Errorf("%w: config name must not contain path separators", errBadRequest)
	}
	if err := board.ValidateBoardConfig(cfg); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
