package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/opcount/internal/zoo"
	"github.com/samcharles93/opcount/pkg/profile"
)

type Server struct {
	store   *ProfileStore
	service *Service
}

func NewServer(store *ProfileStore, service *Service) *Server {
	if store == nil {
		store = NewProfileStore(0)
	}
	return &Server{store: store, service: service}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/profiles", s.handleCreateProfile)
	e.GET("/v1/profiles", s.handleListProfiles)
	e.GET("/v1/profiles/:id", s.handleGetProfile)
	e.DELETE("/v1/profiles/:id", s.handleDeleteProfile)

	e.GET("/v1/models", s.handleListModels)
	e.GET("/v1/models/:id", s.handleGetModel)
	e.GET("/v1/kinds", s.handleListKinds)
}

func (s *Server) handleCreateProfile(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "profile service not configured", "", "")
	}
	req, err := decodeJSON[ProfileRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err)
	}
	p, err := s.service.Run(c.Request().Context(), &req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return writeBadRequest(c, err)
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	if req.Store == nil || *req.Store {
		s.store.Save(p)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleListProfiles(c *echo.Context) error {
	limit, err := intQuery(c, "limit")
	if err != nil {
		return writeBadRequest(c, err)
	}
	return c.JSON(http.StatusOK, ListResponse[Profile]{
		Object: "list",
		Data:   s.store.List(c.QueryParam("model"), limit),
	})
}

func (s *Server) handleGetProfile(c *echo.Context) error {
	p, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "profile not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteProfile(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "profile not found")
	}
	return c.JSON(http.StatusOK, DeleteResponse{
		ID:      id,
		Object:  "profile",
		Deleted: true,
	})
}

func (s *Server) handleListModels(c *echo.Context) error {
	entries := zoo.Entries()
	data := make([]ModelObject, 0, len(entries))
	for _, e := range entries {
		data = append(data, modelObject(e))
	}
	return c.JSON(http.StatusOK, ListResponse[ModelObject]{Object: "list", Data: data})
}

func (s *Server) handleGetModel(c *echo.Context) error {
	e := zoo.Lookup(c.Param("id"))
	if e.Name == "" {
		return writeNotFound(c, "model not found")
	}
	return c.JSON(http.StatusOK, modelObject(e))
}

func (s *Server) handleListKinds(c *echo.Context) error {
	reg := profile.DefaultRegistry()
	data := make([]KindObject, 0, len(reg))
	for _, k := range reg.Kinds() {
		data = append(data, KindObject{ID: string(k), Object: "kind", Free: reg[k] == nil})
	}
	return c.JSON(http.StatusOK, ListResponse[KindObject]{Object: "list", Data: data})
}

func modelObject(e zoo.Entry) ModelObject {
	return ModelObject{
		ID:          e.Name,
		Object:      "model",
		Description: e.Description,
		Input:       e.Input,
	}
}
