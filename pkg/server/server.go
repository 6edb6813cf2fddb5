// Package server exposes the manuscript tool over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gommon "github.com/labstack/gommon/log"

	"inkwell/pkg/backend"
	"inkwell/pkg/book"
	"inkwell/pkg/flight"
	"inkwell/pkg/store"
)

type Server struct {
	Echo    *echo.Echo
	Library *book.Library

	// thumbnails are slow to generate; concurrent requests for the
	// same character share one render.
	thumbs *flight.Cache[string, []byte]
}

func NewServer(lib *book.Library) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(gommon.WARN)

	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	s := &Server{
		Echo:    e,
		Library: lib,
		thumbs:  flight.New[string, []byte](),
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.Echo.Group("/api")

	api.GET("/books", s.handleListBooks)
	api.POST("/books", s.handleCreateBook)
	api.POST("/books/:title/import", s.handleImport)

	api.GET("/books/:title/style", s.handleGetStyle)
	api.PUT("/books/:title/style", s.handlePutStyle)

	api.GET("/books/:title/chapters", s.handleListChapters)
	api.POST("/books/:title/chapters", s.handleAppendChapter)
	api.POST("/books/:title/chapters/insert", s.handleInsertChapter)
	api.GET("/books/:title/chapters/:n", s.handleGetChapter)
	api.PUT("/books/:title/chapters/:n", s.handlePutChapter)
	api.DELETE("/books/:title/chapters/:n", s.handleDeleteChapter)
	api.POST("/books/:title/chapters/:n/renumber", s.handleRenumberChapter)

	api.GET("/books/:title/chapters/:n/summary", s.handleChapterSummary)
	api.POST("/books/:title/chapters/:n/eval/technical", s.handleTechnicalEval)
	api.POST("/books/:title/chapters/:n/eval/entertainment", s.handleEntertainmentEval)
	api.GET("/books/:title/chapters/:n/eval/:kind", s.handleGetEval)

	api.GET("/books/:title/chapters/:n/audio", s.handleChapterAudio)
	api.GET("/books/:title/chapters/:n/audio/:p", s.handleParagraphAudio)
	api.DELETE("/books/:title/chapters/:n/audio/:p", s.handleClearParagraphAudio)

	api.POST("/books/:title/chapters/:n/edit", s.handleEdit)
	api.GET("/books/:title/chapters/:n/edits", s.handleListEdits)

	api.GET("/books/:title/chapters/:n/characters", s.handleChapterCharacters)
	api.POST("/books/:title/chapters/:n/characters", s.handleAddChapterCharacter)
	api.DELETE("/books/:title/chapters/:n/characters/:name", s.handleRemoveChapterCharacter)
	api.GET("/books/:title/chapters/:n/characters/:name/summary", s.handleCharacterSummary)
	api.GET("/books/:title/chapters/:n/characters/:name/description", s.handleGetChapterDescription)
	api.PUT("/books/:title/chapters/:n/characters/:name/description", s.handlePutChapterDescription)

	api.GET("/books/:title/characters", s.handleListCharacters)
	api.GET("/books/:title/characters/:name/description", s.handleGetDescription)
	api.PUT("/books/:title/characters/:name/description", s.handlePutDescription)
	api.GET("/books/:title/characters/:name/expertise", s.handleGetExpertise)
	api.PUT("/books/:title/characters/:name/expertise", s.handlePutExpertise)
	api.GET("/books/:title/characters/:name/thumbnail", s.handleThumbnail)
	api.POST("/books/:title/characters/:name/rename", s.handleRenameCharacter)
	api.DELETE("/books/:title/characters/:name", s.handleDeleteCharacter)
}

func (s *Server) Start(addr string) error {
	log.Info("server listening", "addr", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("shutting down server")
	return s.Echo.Shutdown(ctx)
}

// Invalidate drops a cached book after an on-disk change. Wired to the
// store watcher.
func (s *Server) Invalidate(title string) {
	log.Debug("book changed on disk", "book", title)
	s.Library.Drop(title)
}

func (s *Server) book(c echo.Context) (*book.Book, error) {
	b, err := s.Library.Book(c.Param("title"))
	if err != nil {
		return nil, httpError(err)
	}
	return b, nil
}

func (s *Server) chapter(c echo.Context) (*book.Chapter, error) {
	b, err := s.book(c)
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid chapter number")
	}
	chapter, err := b.Chapter(n)
	if err != nil {
		return nil, httpError(err)
	}
	return chapter, nil
}

// httpError maps domain errors onto status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, book.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, book.ErrBadPosition):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, backend.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, book.ErrMalformedResponse):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return err
	}
}
