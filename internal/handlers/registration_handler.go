package handlers

import (
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"registration-service/internal/models"
	"registration-service/internal/repository"
	"registration-service/internal/services"
)

// RegistrationHandler defines the public form submission endpoint.
type RegistrationHandler struct {
	Service *services.RegistrationService
	Manager *services.SessionManager
	Status  repository.WebsiteStatusRepository
}

// NewRegistrationHandler creates a new RegistrationHandler.
func NewRegistrationHandler(service *services.RegistrationService, manager *services.SessionManager, status repository.WebsiteStatusRepository) *RegistrationHandler {
	return &RegistrationHandler{Service: service, Manager: manager, Status: status}
}

// SubmitRegistration handles POST /registrations with the multipart form.
// @Summary Submit a registration
// @Description Runs the full submission gate: identity check, freshest-location duplicate check, proof upload and insert
// @Tags registrations
// @Accept multipart/form-data
// @Produce json
// @Param full_name formData string true "Attendee full name"
// @Param whatsapp formData string true "WhatsApp number"
// @Param vehicles formData string false "JSON array of {vehicle_type, plate_number}"
// @Param category formData string false "Attendee category"
// @Param package_type formData string false "Package type"
// @Param session_id formData string false "Form session ID"
// @Param latitude formData number false "Device latitude at submit time"
// @Param longitude formData number false "Device longitude at submit time"
// @Param accuracy formData number false "Fix accuracy in meters"
// @Param proof formData file true "Payment proof image"
// @Success 201 {object} services.SubmitResult "Registration stored"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 409 {object} services.SubmitResult "Duplicate identity or location"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Failure 503 {object} map[string]interface{} "Registration closed"
// @Router /registrations [post]
func (h *RegistrationHandler) SubmitRegistration(c *fiber.Ctx) error {
	status, err := h.Status.Get()
	if err != nil {
		log.Printf("Error reading website status: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": err.Error(),
		})
	}
	if !status.IsOpen {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": true, "message": closedMessage(status),
		})
	}

	fullName := strings.TrimSpace(c.FormValue("full_name"))
	whatsapp := strings.TrimSpace(c.FormValue("whatsapp"))
	if fullName == "" || whatsapp == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "full_name and whatsapp are required",
		})
	}

	var vehicles []models.Vehicle
	if raw := c.FormValue("vehicles"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &vehicles); err != nil {
			log.Printf("Error parsing vehicles field: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": true, "message": "vehicles must be a JSON array",
			})
		}
	}

	fileHeader, err := c.FormFile("proof")
	if err != nil {
		log.Printf("Failed to read proof file: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": true, "message": "failed to read proof file: " + err.Error(),
		})
	}
	file, err := fileHeader.Open()
	if err != nil {
		log.Printf("Failed to open proof file: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": true, "message": "failed to open proof file",
		})
	}
	defer file.Close()

	var sess *services.Session
	if sidStr := c.FormValue("session_id"); sidStr != "" {
		sid, err := uuid.Parse(sidStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": true, "message": InvalidUuidError,
			})
		}
		// An expired session is not an error: the gate degrades to a
		// throwaway check engine without live location.
		sess = h.Manager.Get(sid)
	}

	sample := parseSubmittedSample(c)

	log.Printf("Processing registration: Name=%s, Vehicles=%d, Session=%v, Sample=%v, IP=%s",
		fullName, len(vehicles), sess != nil, sample != nil, c.IP())

	result, err := h.Service.Submit(c.Context(), services.SubmitInput{
		FullName:         fullName,
		Whatsapp:         whatsapp,
		Vehicles:         vehicles,
		Category:         c.FormValue("category"),
		PackageType:      c.FormValue("package_type"),
		Proof:            file,
		ProofSize:        fileHeader.Size,
		ProofContentType: fileHeader.Header.Get("Content-Type"),
		ProofFilename:    fileHeader.Filename,
		Sample:           sample,
	}, sess)
	if err != nil {
		log.Printf("Registration submission failed: Name=%s, Error=%v", fullName, err)
		return c.Status(fiber.StatusInternalServerError).JSON(result)
	}

	switch result.Outcome {
	case services.OutcomeProceeded:
		log.Printf("Registration stored: ID=%s, Name=%s", result.Registration.ID, fullName)
		return c.Status(fiber.StatusCreated).JSON(result)
	case services.OutcomeAlreadyRegistered, services.OutcomeLocationUsed:
		log.Printf("Registration blocked as duplicate: Name=%s, Outcome=%s", fullName, result.Outcome)
		return c.Status(fiber.StatusConflict).JSON(result)
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(result)
	}
}

// parseSubmittedSample reads the optional device coordinate from the form.
// The payload is untrusted: out-of-range values are logged and ignored so
// the gate falls back to the session's monitored sample instead.
func parseSubmittedSample(c *fiber.Ctx) *models.LocationSample {
	latStr := c.FormValue("latitude")
	lngStr := c.FormValue("longitude")
	if latStr == "" || lngStr == "" {
		return nil
	}
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lng, errLng := strconv.ParseFloat(lngStr, 64)
	if errLat != nil || errLng != nil {
		log.Printf("Ignoring non-numeric submitted coordinate: %q,%q", latStr, lngStr)
		return nil
	}
	var acc float64
	if accStr := c.FormValue("accuracy"); accStr != "" {
		if val, err := strconv.ParseFloat(accStr, 64); err == nil {
			acc = val
		}
	}
	coordinate := models.Coordinate{Latitude: lat, Longitude: lng, AccuracyMeters: acc}
	if !coordinate.Valid() {
		log.Printf("Ignoring out-of-range submitted coordinate: %f,%f", lat, lng)
		return nil
	}
	return &models.LocationSample{Coordinate: coordinate, CapturedAt: time.Now()}
}

func closedMessage(status *models.WebsiteStatus) string {
	if status.ClosedMessage != "" {
		return status.ClosedMessage
	}
	return "Registration is currently closed."
}
