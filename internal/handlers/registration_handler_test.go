package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"registration-service/internal/models"
	"registration-service/internal/services"
)

// memRepo extends memReader with the write side used by the gate.
type memRepo struct {
	memReader
	created []*models.Registration
}

func (m *memRepo) Create(r *models.Registration) error {
	r.ID = uuid.New()
	m.created = append(m.created, r)
	m.regs = append(m.regs, *r)
	return nil
}

func (m *memRepo) GetByID(id uuid.UUID) (*models.Registration, error) {
	for i := range m.regs {
		if m.regs[i].ID == id {
			r := m.regs[i]
			return &r, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memRepo) List() ([]models.Registration, error) { return m.regs, nil }

func (m *memRepo) UpdateStatus(id uuid.UUID, status models.RegistrationStatus) error {
	return gorm.ErrRecordNotFound
}

func (m *memRepo) Delete(id uuid.UUID) error { return nil }

func (m *memRepo) Counts() (total, pending, verified int64, err error) {
	return int64(len(m.regs)), int64(len(m.regs)), 0, nil
}

// memProofs stores nothing, returning predictable keys.
type memProofs struct {
	uploads int
}

func (m *memProofs) Upload(_ context.Context, _ io.Reader, _ int64, _, filename string) (string, string, error) {
	m.uploads++
	return "http://minio.local/proofs/" + filename, "proofs/" + filename, nil
}

func (m *memProofs) Remove(context.Context, string) error { return nil }

// memStatus is a fixed website status row.
type memStatus struct {
	open    bool
	message string
}

func (m *memStatus) Get() (*models.WebsiteStatus, error) {
	return &models.WebsiteStatus{ID: 1, IsOpen: m.open, ClosedMessage: m.message}, nil
}

func (m *memStatus) Update(isOpen bool, closedMessage string) (*models.WebsiteStatus, error) {
	m.open, m.message = isOpen, closedMessage
	return m.Get()
}

func newRegistrationApp(t *testing.T, repo *memRepo, status *memStatus) *fiber.App {
	t.Helper()
	gate := services.NewRegistrationService(repo, &memProofs{}, nil, nil, services.GateConfig{
		FallbackTimeout: 100 * time.Millisecond,
		FallbackMaxAge:  time.Minute,
	})
	manager := services.NewSessionManager(repo, nil, nil, testConfig())
	h := NewRegistrationHandler(gate, manager, status)

	app := fiber.New()
	app.Post("/api/registrations", h.SubmitRegistration)
	return app
}

func submitForm(t *testing.T, app *fiber.App, fields map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	part, err := w.CreateFormFile("proof", "proof.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/api/registrations", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var parsed map[string]any
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &parsed))
	}
	return resp, parsed
}

func TestSubmitRegistration_StoresSubmittedCoordinate(t *testing.T) {
	repo := &memRepo{}
	app := newRegistrationApp(t, repo, &memStatus{open: true})

	resp, _ := submitForm(t, app, map[string]string{
		"full_name": "Andi", "whatsapp": "081234567890",
		"vehicles":  `[{"vehicle_type":"Motor","plate_number":"DD 1234 AB"}]`,
		"latitude":  "-5.1477", "longitude": "119.4327", "accuracy": "8",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Len(t, repo.created, 1)
	require.NotNil(t, repo.created[0].Latitude)
	require.InDelta(t, -5.1477, *repo.created[0].Latitude, 1e-9)
	require.Equal(t, "Motor", repo.created[0].VehicleType)
}

func TestSubmitRegistration_SubmittedCoordinateFeedsStrictCheck(t *testing.T) {
	lat, lng := -5.1477, 119.4327
	repo := &memRepo{memReader: memReader{regs: []models.Registration{{
		ID: uuid.New(), FullName: "Budi", Whatsapp: "0811",
		Latitude: &lat, Longitude: &lng, Status: models.StatusPending,
	}}}}
	app := newRegistrationApp(t, repo, &memStatus{open: true})

	// ~11 m from Budi: the form-supplied coordinate must reach the gate and
	// block as a location duplicate.
	resp, body := submitForm(t, app, map[string]string{
		"full_name": "Citra", "whatsapp": "0822",
		"latitude": "-5.1478", "longitude": "119.4327", "accuracy": "5",
	})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	require.Equal(t, "location_used", body["outcome"])
	require.Equal(t, "Budi", body["matched_name"])
	require.Empty(t, repo.created)
}

func TestSubmitRegistration_OutOfRangeCoordinateIgnored(t *testing.T) {
	repo := &memRepo{}
	app := newRegistrationApp(t, repo, &memStatus{open: true})

	resp, _ := submitForm(t, app, map[string]string{
		"full_name": "Andi", "whatsapp": "0812",
		"latitude": "123.0", "longitude": "119.4",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Len(t, repo.created, 1)
	require.Nil(t, repo.created[0].Latitude)
}

func TestSubmitRegistration_RejectedWhileClosed(t *testing.T) {
	repo := &memRepo{}
	app := newRegistrationApp(t, repo, &memStatus{open: false, message: "See you next year"})

	resp, body := submitForm(t, app, map[string]string{
		"full_name": "Andi", "whatsapp": "0812",
	})
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "See you next year", body["message"])
	require.Empty(t, repo.created)
}

func TestSubmitRegistration_MissingIdentityFields(t *testing.T) {
	repo := &memRepo{}
	app := newRegistrationApp(t, repo, &memStatus{open: true})

	resp, _ := submitForm(t, app, map[string]string{"full_name": "Andi"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Empty(t, repo.created)
}
