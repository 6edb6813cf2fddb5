package server

import (
	"io"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"

	"inkwell/pkg/importer"
)

type createBookReq struct {
	Title string `json:"title"`
}

func (r createBookReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
	)
}

func (s *Server) handleListBooks(c echo.Context) error {
	titles, err := s.Library.Titles()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"books": titles})
}

func (s *Server) handleCreateBook(c echo.Context) error {
	var req createBookReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if _, err := s.Library.Create(req.Title); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"title": req.Title})
}

// handleImport accepts a multipart manuscript upload and appends its
// chapters to the book.
func (s *Server) handleImport(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}

	upload, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file")
	}
	f, err := upload.Open()
	if err != nil {
		return httpError(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return httpError(err)
	}

	chapters, err := importer.Read(upload.Filename, data)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	for _, chapter := range chapters {
		if _, err := b.Append(chapter.Name, chapter.Content); err != nil {
			return httpError(err)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"imported": len(chapters)})
}

type styleReq struct {
	Style string `json:"style"`
}

func (s *Server) handleGetStyle(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	style, err := b.WritingStyle()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, styleReq{Style: style})
}

func (s *Server) handlePutStyle(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	var req styleReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if err := b.SetWritingStyle(req.Style); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
