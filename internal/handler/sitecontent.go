package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/altamontana/booking-api/internal/model"
	"github.com/altamontana/booking-api/internal/repository"
)

type SiteContentStore interface {
	List(ctx context.Context) ([]model.SiteContent, error)
	Create(ctx context.Context, sc *model.SiteContent) error
	Update(ctx context.Context, sc *model.SiteContent) error
}

// SiteContentHandler serves the editable text blocks of the public site.
type SiteContentHandler struct {
	Store  SiteContentStore
	Purge  func(ctx context.Context) error
	Logger *zap.Logger
}

func NewSiteContentHandler(s SiteContentStore, purge func(context.Context) error, logger *zap.Logger) *SiteContentHandler {
	return &SiteContentHandler{Store: s, Purge: purge, Logger: logger}
}

type siteContentReq struct {
	ID    uint64 `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *SiteContentHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	items, err := h.Store.List(ctx)
	if err != nil {
		h.Logger.Error("list site content", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list site content failed"})
	}
	return c.JSON(http.StatusOK, items)
}

func (h *SiteContentHandler) Create(c echo.Context) error {
	var req siteContentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "key is required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	sc := model.SiteContent{Key: req.Key, Value: req.Value}
	if err := h.Store.Create(ctx, &sc); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "key already exists"})
		}
		h.Logger.Error("create site content", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create site content failed"})
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, sc)
}

// Update PUT /api/sitecontent/:id
func (h *SiteContentHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req siteContentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ID != 0 && req.ID != id {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id mismatch"})
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "key is required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	sc := model.SiteContent{ID: id, Key: req.Key, Value: req.Value}
	switch err := h.Store.Update(ctx, &sc); {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "site content not found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "key already exists"})
	case err != nil:
		h.Logger.Error("update site content", zap.Uint64("id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update site content failed"})
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}

func (h *SiteContentHandler) purge(ctx context.Context) {
	if h.Purge == nil {
		return
	}
	if err := h.Purge(ctx); err != nil {
		h.Logger.Warn("purge response cache", zap.Error(err))
	}
}
