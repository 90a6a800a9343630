package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/altamontana/booking-api/internal/model"
	"github.com/altamontana/booking-api/internal/repository"
)

// maxUploadBytes caps an experience image upload.
const maxUploadBytes = 5 << 20

var allowedImageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// ExperienceStore is the catalog persistence the handler needs.
type ExperienceStore interface {
	List(ctx context.Context) ([]model.Experience, error)
	GetByID(ctx context.Context, id uint64) (*model.Experience, error)
	Create(ctx context.Context, e *model.Experience) error
	Update(ctx context.Context, e *model.Experience) error
	Delete(ctx context.Context, id uint64) error
}

// ExperienceHandler serves the public catalog and its admin writes.  Purge
// drops cached GET responses after a write; it may be nil.
type ExperienceHandler struct {
	Store      ExperienceStore
	UploadsDir string
	Purge      func(ctx context.Context) error
	Logger     *zap.Logger
}

func NewExperienceHandler(s ExperienceStore, uploadsDir string, purge func(context.Context) error, logger *zap.Logger) *ExperienceHandler {
	return &ExperienceHandler{Store: s, UploadsDir: uploadsDir, Purge: purge, Logger: logger}
}

type experienceReq struct {
	ID          uint64          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Location    string          `json:"location"`
	Duration    string          `json:"duration"`
}

func (r experienceReq) validate() string {
	if strings.TrimSpace(r.Title) == "" {
		return "title is required"
	}
	if r.Price.IsNegative() {
		return "price must not be negative"
	}
	return ""
}

func (r experienceReq) model(id uint64) model.Experience {
	return model.Experience{
		ID:          id,
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Price:       r.Price,
		ImageURL:    r.ImageURL,
		Location:    r.Location,
		Duration:    r.Duration,
	}
}

// List GET /api/experiences
func (h *ExperienceHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	items, err := h.Store.List(ctx)
	if err != nil {
		h.Logger.Error("list experiences", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list experiences failed"})
	}
	return c.JSON(http.StatusOK, items)
}

// Get GET /api/experiences/:id
func (h *ExperienceHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	e, err := h.Store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "experience not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load experience failed"})
	}
	return c.JSON(http.StatusOK, e)
}

// Create POST /api/experiences
func (h *ExperienceHandler) Create(c echo.Context) error {
	var req experienceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	e := req.model(0)
	if err := h.Store.Create(ctx, &e); err != nil {
		h.Logger.Error("create experience", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create experience failed"})
	}
	h.purge(ctx)
	return c.JSON(http.StatusCreated, e)
}

// Update PUT /api/experiences/:id.  The body id must match the path.
func (h *ExperienceHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req experienceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ID != 0 && req.ID != id {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id mismatch"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	e := req.model(id)
	if err := h.Store.Update(ctx, &e); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "experience not found"})
		}
		h.Logger.Error("update experience", zap.Uint64("id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update experience failed"})
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}

// Delete DELETE /api/experiences/:id.  Experiences with bookings are kept.
func (h *ExperienceHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	switch err := h.Store.Delete(ctx, id); {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "experience not found"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "experience has bookings"})
	case err != nil:
		h.Logger.Error("delete experience", zap.Uint64("id", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete experience failed"})
	}
	h.purge(ctx)
	return c.NoContent(http.StatusNoContent)
}

// Upload POST /api/experiences/upload (multipart field "file").  The image is
// stored under a random name and served from /uploads.
func (h *ExperienceHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no file uploaded"})
	}
	if fh.Size > maxUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedImageExt[ext] {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unsupported file type"})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "read upload failed"})
	}
	defer src.Close()

	if err := os.MkdirAll(h.UploadsDir, 0o755); err != nil {
		h.Logger.Error("create uploads dir", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store upload failed"})
	}
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(h.UploadsDir, name))
	if err != nil {
		h.Logger.Error("create upload file", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store upload failed"})
	}
	defer dst.Close()
	if _, err := io.Copy(dst, io.LimitReader(src, maxUploadBytes)); err != nil {
		h.Logger.Error("write upload", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store upload failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"url": "/uploads/" + name})
}

func (h *ExperienceHandler) purge(ctx context.Context) {
	if h.Purge == nil {
		return
	}
	if err := h.Purge(ctx); err != nil {
		h.Logger.Warn("purge response cache", zap.Error(err))
	}
}
