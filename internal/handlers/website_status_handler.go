package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"registration-service/internal/repository"
)

// websiteStatusUpdate is the admin payload for toggling the form.
type websiteStatusUpdate struct {
	IsOpen        bool   `json:"is_open"`
	ClosedMessage string `json:"closed_message"`
}

// WebsiteStatusHandler defines the public status read and the admin toggle.
type WebsiteStatusHandler struct {
	Repo repository.WebsiteStatusRepository
}

// NewWebsiteStatusHandler creates a new WebsiteStatusHandler.
func NewWebsiteStatusHandler(repo repository.WebsiteStatusRepository) *WebsiteStatusHandler {
	return &WebsiteStatusHandler{Repo: repo}
}

// GetStatus handles GET /website-status.
// @Summary Get the registration open/closed status
// @Description Returns whether the form accepts submissions and the closed message if not
// @Tags website-status
// @Produce json
// @Success 200 {object} models.WebsiteStatus "Current status"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /website-status [get]
func (h *WebsiteStatusHandler) GetStatus(c *fiber.Ctx) error {
	status, err := h.Repo.Get()
	if err != nil {
		log.Printf("Error reading website status: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	return c.JSON(status)
}

// UpdateStatus handles PUT /admin/website-status.
// @Summary Update the registration open/closed status
// @Description Opens or closes the registration form and sets the closed message
// @Tags admin
// @Accept json
// @Produce json
// @Param status body websiteStatusUpdate true "New status"
// @Success 200 {object} models.WebsiteStatus "Updated status"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /admin/website-status [put]
func (h *WebsiteStatusHandler) UpdateStatus(c *fiber.Ctx) error {
	var update websiteStatusUpdate
	if err := c.BodyParser(&update); err != nil {
		log.Printf("Error parsing website status update: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "Invalid request format",
		})
	}

	status, err := h.Repo.Update(update.IsOpen, update.ClosedMessage)
	if err != nil {
		log.Printf("Error updating website status: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	log.Printf("Website status updated: IsOpen=%v", status.IsOpen)
	return c.JSON(status)
}
