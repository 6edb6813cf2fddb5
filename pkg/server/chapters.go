package server

import (
	"net/http"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"

	"inkwell/pkg/schema"
	"inkwell/pkg/store"
)

type chapterInfo struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

type chapterDetail struct {
	Number  int    `json:"number"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (s *Server) handleListChapters(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	numbers, err := b.Numbers()
	if err != nil {
		return httpError(err)
	}

	chapters := make([]chapterInfo, 0, len(numbers))
	for _, n := range numbers {
		chapter, err := b.Chapter(n)
		if err != nil {
			return httpError(err)
		}
		name, err := chapter.Name()
		if err != nil {
			return httpError(err)
		}
		chapters = append(chapters, chapterInfo{Number: n, Name: name})
	}
	return c.JSON(http.StatusOK, map[string]any{"chapters": chapters})
}

type appendChapterReq struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (s *Server) handleAppendChapter(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	var req appendChapterReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}

	chapter, err := b.Append(req.Name, req.Content)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, chapterInfo{Number: chapter.Number, Name: req.Name})
}

type insertChapterReq struct {
	After int `json:"after"`
}

func (r insertChapterReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.After, validation.Min(0)),
	)
}

func (s *Server) handleInsertChapter(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	var req insertChapterReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	chapter, err := b.InsertAfter(req.After)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, chapterInfo{Number: chapter.Number})
}

func (s *Server) handleGetChapter(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	name, err := chapter.Name()
	if err != nil {
		return httpError(err)
	}
	content, err := chapter.Content()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chapterDetail{Number: chapter.Number, Name: name, Content: content})
}

type putChapterReq struct {
	Name    *string `json:"name"`
	Content *string `json:"content"`
}

func (s *Server) handlePutChapter(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	var req putChapterReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}

	if req.Name != nil {
		if err := chapter.SetName(*req.Name); err != nil {
			return httpError(err)
		}
	}
	if req.Content != nil {
		if err := chapter.SetContent(*req.Content); err != nil {
			return httpError(err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteChapter(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid chapter number")
	}
	if err := b.Remove(n); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type renumberReq struct {
	To int `json:"to"`
}

func (r renumberReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.To, validation.Required, validation.Min(1)),
	)
}

func (s *Server) handleRenumberChapter(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid chapter number")
	}
	var req renumberReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := b.Renumber(n, req.To); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleChapterSummary(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	summary, err := chapter.Summary(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"summary": summary})
}

// Evaluation posts return the cached result when one exists; pass
// ?force=true to judge the chapter again.
func (s *Server) handleTechnicalEval(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	var eval *schema.ChapterEval
	if c.QueryParam("force") == "true" {
		eval, err = chapter.ReevaluateTechnical(ctx)
	} else {
		eval, err = chapter.TechnicalEval(ctx)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, eval)
}

func (s *Server) handleEntertainmentEval(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	var eval *schema.ChapterEval
	if c.QueryParam("force") == "true" {
		eval, err = chapter.ReevaluateEntertainment(ctx)
	} else {
		eval, err = chapter.EntertainmentEval(ctx)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, eval)
}

func (s *Server) handleGetEval(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	var kind string
	switch c.Param("kind") {
	case "technical":
		kind = store.EvalTechnical
	case "entertainment":
		kind = store.EvalEntertainment
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown evaluation kind")
	}

	eval, err := chapter.Evaluation(kind)
	if err != nil {
		return httpError(err)
	}
	if eval == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, eval)
}

// handleChapterAudio narrates the chapter, or just the paragraphs named
// in the comma-separated "paragraphs" query.
func (s *Server) handleChapterAudio(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	var requested []int
	if q := c.QueryParam("paragraphs"); q != "" {
		for _, part := range strings.Split(q, ",") {
			p, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid paragraph number")
			}
			requested = append(requested, p)
		}
	}
	data, err := chapter.Audio(c.Request().Context(), requested)
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, "audio/mpeg", data)
}

func (s *Server) handleParagraphAudio(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	p, err := strconv.Atoi(c.Param("p"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid paragraph number")
	}
	data, err := chapter.ParagraphAudio(c.Request().Context(), p)
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, "audio/mpeg", data)
}

func (s *Server) handleClearParagraphAudio(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	p, err := strconv.Atoi(c.Param("p"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid paragraph number")
	}
	if err := chapter.ClearParagraphAudio(p); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
