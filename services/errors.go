package services

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Error taxonomy shared by all services. Handlers map these to HTTP codes:
// NotFound → 404, Validation → 400, Conflict → 409, StorageUnavailable → 503.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrConflict           = errors.New("conflict")
)

// storageErr wraps a driver error into the taxonomy, keeping the cause.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

// notFoundOrStorage distinguishes a missing row from a broken store.
func notFoundOrStorage(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	return storageErr(op, err)
}

// StatusForError maps the taxonomy onto HTTP codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// respondProgressionError renders a taxonomy error the way the routes do.
// Client-caused errors carry the cause; server-side ones get a generic
// "try again" so the client never assumes the action landed.
func respondProgressionError(c *fiber.Ctx, err error) error {
	status := StatusForError(err)
	if status == fiber.StatusServiceUnavailable || status == fiber.StatusConflict {
		return c.Status(status).JSON(fiber.Map{"error": "progress could not be saved, try again"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
