package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"registration-service/internal/location"
	"registration-service/internal/permission"
	"registration-service/internal/services"
)

const InvalidUuidError = "invalid UUID"
const SessionNotFoundError = "session not found"

// locationReport is the payload the browser posts from its geolocation
// callbacks: either a fix or an error code, never both.
type locationReport struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Accuracy    float64 `json:"accuracy"`
	TimestampMs int64   `json:"timestamp_ms"`
	Error       string  `json:"error"`
}

// SessionHandler defines handlers for the per-visitor form session: its
// lifecycle, the device location stream, the permission flow and the
// advisory duplicate verdict.
type SessionHandler struct {
	Manager *services.SessionManager
}

// NewSessionHandler creates a new SessionHandler with the given manager.
func NewSessionHandler(manager *services.SessionManager) *SessionHandler {
	return &SessionHandler{Manager: manager}
}

// CreateSession handles POST /sessions to open a form session.
// @Summary Open a form session
// @Description Creates a session holding the location watch, permission flow and duplicate-check state for one visitor
// @Tags sessions
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{} "Session ID and initial permission state"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /sessions [post]
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	// The session outlives this request; its negotiation runs on a
	// background context.
	sess, err := h.Manager.Create(context.Background())
	if err != nil {
		log.Printf("Error creating form session: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	log.Printf("Opened form session: ID=%s, IP=%s", sess.ID, c.IP())
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id":       sess.ID,
		"permission_state": sess.Negotiator.State(),
	})
}

// CloseSession handles DELETE /sessions/:id to tear a session down.
// @Summary Close a form session
// @Description Stops the session's location watch and discards its state
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Router /sessions/{id} [delete]
func (h *SessionHandler) CloseSession(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": InvalidUuidError,
		})
	}
	h.Manager.Close(id)
	log.Printf("Closed form session: ID=%s", id)
	return c.SendStatus(fiber.StatusNoContent)
}

// ReportLocation handles POST /sessions/:id/location with the output of the
// browser's geolocation callbacks.
// @Summary Report a device location fix or error
// @Description Feeds a geolocation success or error payload into the session's location stream
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param report body locationReport true "Fix coordinates or an error code"
// @Success 200 {object} map[string]interface{} "Current permission state"
// @Failure 400 {object} map[string]interface{} "Invalid UUID or payload"
// @Failure 404 {object} map[string]interface{} "Session not found"
// @Router /sessions/{id}/location [post]
func (h *SessionHandler) ReportLocation(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": InvalidUuidError,
		})
	}
	sess := h.Manager.Get(id)
	if sess == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": true, "message": SessionNotFoundError,
		})
	}

	var report locationReport
	if err := c.BodyParser(&report); err != nil {
		log.Printf("Error parsing location report: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "Invalid request format",
		})
	}

	if report.Error != "" {
		reason, ok := parseFailureReason(report.Error)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": true, "message": "unknown geolocation error code: " + report.Error,
			})
		}
		sess.Provider.ReportFailure(reason)
	} else {
		fix := location.Fix{
			Latitude:  report.Latitude,
			Longitude: report.Longitude,
			Accuracy:  report.Accuracy,
		}
		if report.TimestampMs > 0 {
			fix.Timestamp = time.UnixMilli(report.TimestampMs)
		}
		sess.Provider.Report(fix)
	}

	return c.JSON(fiber.Map{
		"permission_state": sess.Negotiator.State(),
	})
}

// GetAdvisory handles GET /sessions/:id/advisory to fetch the monitor's
// latest display-only duplicate verdict.
// @Summary Get the advisory duplicate verdict
// @Description Returns the latest background location check result for the session; never blocks submission
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} map[string]interface{} "Verdict and freshest sample"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Session not found"
// @Router /sessions/{id}/advisory [get]
func (h *SessionHandler) GetAdvisory(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": InvalidUuidError,
		})
	}
	sess := h.Manager.Get(id)
	if sess == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": true, "message": SessionNotFoundError,
		})
	}
	return c.JSON(fiber.Map{
		"verdict": sess.Monitor.CurrentVerdict(),
		"sample":  sess.Monitor.CurrentSample(),
	})
}

// GetPermission handles GET /sessions/:id/permission.
// @Summary Get the permission negotiation state
// @Description Returns the session's location-permission state; Denied includes remediation instructions
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} map[string]interface{} "Permission state"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Session not found"
// @Router /sessions/{id}/permission [get]
func (h *SessionHandler) GetPermission(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": InvalidUuidError,
		})
	}
	sess := h.Manager.Get(id)
	if sess == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": true, "message": SessionNotFoundError,
		})
	}

	state := sess.Negotiator.State()
	resp := fiber.Map{"state": state}
	if state == permission.StateDenied {
		resp["instructions"] = permission.RemediationInstructions
	}
	return c.JSON(resp)
}

// RetryPermission handles POST /sessions/:id/permission/retry on explicit
// user action after a denial.
// @Summary Retry the permission request after a denial
// @Description Re-enters the prompting state; only valid from Denied, a no-op otherwise
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 202 {object} map[string]interface{} "Retry accepted"
// @Failure 400 {object} map[string]interface{} "Invalid UUID"
// @Failure 404 {object} map[string]interface{} "Session not found"
// @Router /sessions/{id}/permission/retry [post]
func (h *SessionHandler) RetryPermission(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": InvalidUuidError,
		})
	}
	sess := h.Manager.Get(id)
	if sess == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": true, "message": SessionNotFoundError,
		})
	}

	// Retry blocks until the device answers or the request times out, so it
	// runs detached from this request.
	go sess.Negotiator.Retry(context.Background())
	log.Printf("Permission retry triggered: SessionID=%s", id)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"state": sess.Negotiator.State(),
	})
}

// parseFailureReason maps the browser's geolocation error codes onto
// failure reasons.
func parseFailureReason(code string) (location.FailureReason, bool) {
	switch code {
	case "permission_denied":
		return location.ReasonPermissionDenied, true
	case "position_unavailable":
		return location.ReasonPositionUnavailable, true
	case "timeout":
		return location.ReasonTimeout, true
	case "unsupported":
		return location.ReasonUnsupported, true
	default:
		return "", false
	}
}
