package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/dto"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/service"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// FilesHandler exposes file-metadata endpoints.
type FilesHandler struct {
	files *service.FileService
}

// NewFilesHandler constructs handler.
func NewFilesHandler(fileService *service.FileService) *FilesHandler {
	return &FilesHandler{files: fileService}
}

// Create handles POST /files.
func (h *FilesHandler) Create(c *fiber.Ctx) error {
	secCtx, ok := auth.ContextFromRequest(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.CreateFileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Name == "" || req.SizeBytes < 0 {
		return fiber.NewError(http.StatusBadRequest, "name required, size must be non-negative")
	}

	file, err := h.files.Create(c.Context(), secCtx, req.Name, req.ContentType, req.SizeBytes, req.Checksum)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewFileResponse(file)})
}

// List handles GET /files.
func (h *FilesHandler) List(c *fiber.Ctx) error {
	secCtx, ok := auth.ContextFromRequest(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	files, err := h.files.ListOwn(c.Context(), secCtx, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return apperrors.MapError(err)
	}

	resp := make([]dto.FileResponse, 0, len(files))
	for _, file := range files {
		resp = append(resp, dto.NewFileResponse(file))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Get handles GET /files/:id.
func (h *FilesHandler) Get(c *fiber.Ctx) error {
	secCtx, ok := auth.ContextFromRequest(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	file, err := h.files.Get(c.Context(), secCtx, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewFileResponse(file)})
}

// Delete handles DELETE /files/:id.
func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	secCtx, ok := auth.ContextFromRequest(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.files.Delete(c.Context(), secCtx, id); err != nil {
		return apperrors.MapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}
