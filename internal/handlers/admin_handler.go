package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"registration-service/internal/services"
)

const RegistrationNotFoundError = "registration not found"

// AdminHandler defines handlers for the admin dashboard endpoints.
type AdminHandler struct {
	Service *services.AdminService
}

// NewAdminHandler creates a new AdminHandler with the given AdminService.
func NewAdminHandler(service *services.AdminService) *AdminHandler {
	return &AdminHandler{Service: service}
}

// ListRegistrations handles GET /admin/registrations.
// @Summary List all registrations
// @Description Gets all registrations, newest first
// @Tags admin
// @Produce json
// @Success 200 {array} models.Registration "List of registrations"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /admin/registrations [get]
func (h *AdminHandler) ListRegistrations(c *fiber.Ctx) error {
	registrations, err := h.Service.ListRegistrations()
	if err != nil {
		log.Printf("Error listing registrations: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	log.Printf("Successfully listed %d registrations", len(registrations))
	return c.JSON(registrations)
}

// GetRegistration handles GET /admin/registrations/:id.
// @Summary Get a registration by ID
// @Description Get details of a specific registration
// @Tags admin
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} models.Registration "Registration found"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Registration not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /admin/registrations/{id} [get]
func (h *AdminHandler) GetRegistration(c *fiber.Ctx) error {
	idStr := c.Params("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Printf("Invalid UUID format: %s - Error: %v", idStr, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": InvalidUuidError,
		})
	}

	registration, err := h.Service.GetRegistration(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": true, "message": RegistrationNotFoundError,
			})
		}
		log.Printf("Error fetching registration: ID=%s, Error=%v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	return c.JSON(registration)
}

// VerifyRegistration handles PATCH /admin/registrations/:id/verify.
// @Summary Verify a registration
// @Description Marks a pending registration as verified
// @Tags admin
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} models.Registration "Updated registration"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Registration not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /admin/registrations/{id}/verify [patch]
func (h *AdminHandler) VerifyRegistration(c *fiber.Ctx) error {
	idStr := c.Params("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Printf("Invalid UUID format for verify: %s - Error: %v", idStr, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": InvalidUuidError,
		})
	}

	registration, err := h.Service.VerifyRegistration(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": true, "message": RegistrationNotFoundError,
			})
		}
		log.Printf("Error verifying registration: ID=%s, Error=%v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	log.Printf("Successfully verified registration: ID=%s", id)
	return c.JSON(registration)
}

// DeleteRegistration handles DELETE /admin/registrations/:id.
// @Summary Delete a registration
// @Description Deletes a registration and its stored payment proof
// @Tags admin
// @Param id path string true "Registration ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Registration not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /admin/registrations/{id} [delete]
func (h *AdminHandler) DeleteRegistration(c *fiber.Ctx) error {
	idStr := c.Params("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		log.Printf("Invalid UUID format for delete: %s - Error: %v", idStr, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": InvalidUuidError,
		})
	}

	if err := h.Service.DeleteRegistration(c.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": true, "message": RegistrationNotFoundError,
			})
		}
		log.Printf("Error deleting registration: ID=%s, Error=%v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	log.Printf("Successfully deleted registration: ID=%s", id)
	return c.SendStatus(fiber.StatusNoContent)
}

// GetStats handles GET /admin/stats.
// @Summary Get registration counters
// @Description Returns total, pending and verified registration counts
// @Tags admin
// @Produce json
// @Success 200 {object} services.AdminStats "Counters"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /admin/stats [get]
func (h *AdminHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.Service.Stats()
	if err != nil {
		log.Printf("Error computing registration stats: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	return c.JSON(stats)
}
