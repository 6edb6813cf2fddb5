package server

import (
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
)

type characterReq struct {
	Name string `json:"name"`
}

func (r characterReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

func (s *Server) handleChapterCharacters(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	names, err := chapter.Characters(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{"characters": names})
}

func (s *Server) handleAddChapterCharacter(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	var req characterReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := chapter.AddCharacter(req.Name); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusCreated)
}

func (s *Server) handleRemoveChapterCharacter(c echo.Context) error {
	chapter, err := s.chapter(c)
	if err != nil {
		return err
	}
	if err := chapter.RemoveCharacter(c.Param("name")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleCharacterSummary reports everything known about a character up
// to and including the given chapter.
func (s *Server) handleCharacterSummary(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid chapter number")
	}

	summary, err := b.Character(c.Param("name")).Summary(c.Request().Context(), n)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"summary": summary})
}

func (s *Server) handleGetChapterDescription(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid chapter number")
	}
	desc, err := b.Character(c.Param("name")).ChapterDescription(c.Request().Context(), n)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, descriptionReq{Description: desc})
}

func (s *Server) handlePutChapterDescription(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid chapter number")
	}
	var req descriptionReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if err := b.Character(c.Param("name")).SetChapterDescription(n, req.Description); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListCharacters(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	names, err := b.CharacterNames()
	if err != nil {
		return httpError(err)
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{"characters": names})
}

type descriptionReq struct {
	Description string `json:"description"`
}

func (s *Server) handleGetDescription(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	desc, err := b.Character(c.Param("name")).Description()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, descriptionReq{Description: desc})
}

func (s *Server) handlePutDescription(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	var req descriptionReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if err := b.Character(c.Param("name")).SetDescription(req.Description); err != nil {
		return httpError(err)
	}
	// The portrait follows the description.
	s.thumbs.Forget(c.Param("title") + "/" + c.Param("name"))
	return c.NoContent(http.StatusNoContent)
}

type expertiseReq struct {
	Expertise string `json:"expertise"`
}

func (s *Server) handleGetExpertise(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	expertise, err := b.Character(c.Param("name")).Expertise(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, expertiseReq{Expertise: expertise})
}

func (s *Server) handlePutExpertise(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	var req expertiseReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if err := b.Character(c.Param("name")).SetExpertise(req.Expertise); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleThumbnail(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	name := c.Param("name")
	ctx := c.Request().Context()

	data, err := s.thumbs.Do(c.Param("title")+"/"+name, func() ([]byte, error) {
		return b.Character(name).Thumbnail(ctx)
	})
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, "image/webp", data)
}

type renameCharacterReq struct {
	To string `json:"to"`
}

func (r renameCharacterReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.To, validation.Required, validation.Length(1, 200)),
	)
}

func (s *Server) handleRenameCharacter(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	var req renameCharacterReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := b.Character(c.Param("name")).Rename(req.To); err != nil {
		return httpError(err)
	}
	s.thumbs.Forget(c.Param("title") + "/" + c.Param("name"))
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteCharacter(c echo.Context) error {
	b, err := s.book(c)
	if err != nil {
		return err
	}
	if err := b.Character(c.Param("name")).Delete(); err != nil {
		return httpError(err)
	}
	s.thumbs.Forget(c.Param("title") + "/" + c.Param("name"))
	return c.NoContent(http.StatusNoContent)
}
