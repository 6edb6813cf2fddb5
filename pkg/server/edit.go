package server

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"

	"inkwell/pkg/utils"
)

type editReq struct {
	Prompt    string `json:"prompt"`
	Selection string `json:"selection"`
}

func (r editReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Prompt, validation.Required),
		validation.Field(&r.Selection, validation.Required),
	)
}

type editResp struct {
	Result string            `json:"result"`
	Diff   []utils.WordDelta `json:"diff"`
}

// handleEdit rewrites a selection with the model. The result is
// returned with a word diff; applying it is a separate PUT on the
// chapter content, so nothing changes unless the author accepts.
func (s *Server) handleEdit(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	var req editReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, diff, err := chapter.Edit(c.Request().Context(), req.Prompt, req.Selection)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, editResp{Result: result, Diff: diff})
}

func (s *Server) handleListEdits(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	edits, err := chapter.Edits()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"edits": edits})
}
