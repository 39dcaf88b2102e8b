package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"contacts-crm/internal/models"
	"contacts-crm/internal/query"
	"contacts-crm/internal/services"
	"contacts-crm/internal/utils"

	"github.com/gorilla/mux"
)

const (
	maxBodyBytes  = 32 << 20
	defaultQRSize = 256
	maxQRSize     = 1024
)

type HTTPHandler struct {
	contactService *services.ContactService
}

func NewHTTPHandler(contactService *services.ContactService) *HTTPHandler {
	return &HTTPHandler{contactService: contactService}
}

// RegisterRoutes mounts the contact API on router.
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/contacts", h.ListContacts).Methods("GET", "OPTIONS")
	router.HandleFunc("/contacts", h.CreateContacts).Methods("POST")
	router.HandleFunc("/contacts", h.UpdateContact).Methods("PUT")

	router.HandleFunc("/contacts/stats", h.GetStats).Methods("GET", "OPTIONS")
	router.HandleFunc("/contacts/initialize", h.InitializeContacts).Methods("POST", "OPTIONS")
	router.HandleFunc("/contacts/migrate", h.MigrateContacts).Methods("POST", "OPTIONS")
	router.HandleFunc("/contacts/{id}/qrcode", h.GetDialQRCode).Methods("GET", "OPTIONS")
}

// @Summary List contacts
// @Description Page of contacts with filters, free-text search and ordering. With statsOnly=true only the per-status counters are returned.
// @Tags contacts
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param sortBy query string false "updateStatus, updatedNewest, updatedOldest or name" default(updateStatus)
// @Param search query string false "Case-insensitive text matched against company, phone, address, site and notes"
// @Param phone_status query string false "not_contacted, no_answer, callback_needed, contacted or all"
// @Param interesse query string false "yes, maybe, no or all"
// @Param reindirizzato query string false "yes, maybe, no or all"
// @Param isPinned query string false "true, false or all"
// @Param includeStats query bool false "Attach counters computed over the same filter"
// @Param statsOnly query bool false "Return only the counters for the whole collection"
// @Success 200 {object} models.ContactPage
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /contacts [get]
func (h *HTTPHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	if values.Get("statsOnly") == "true" {
		stats, err := h.contactService.Stats(r.Context())
		if err != nil {
			h.respondError(w, "Failed to fetch contacts", err)
			return
		}
		models.RespondWithJSON(w, http.StatusOK, models.TimestampedStats{
			ContactStats: stats,
			Timestamp:    time.Now().UTC(),
		})
		return
	}

	params, err := query.Parse(values)
	if err != nil {
		h.respondError(w, "Invalid query", err)
		return
	}

	page, err := h.contactService.List(r.Context(), params, values.Get("includeStats") == "true")
	if err != nil {
		h.respondError(w, "Failed to fetch contacts", err)
		return
	}

	models.RespondWithJSON(w, http.StatusOK, page)
}

// @Summary Create contacts
// @Description Insert a single contact object or an array of contacts
// @Tags contacts
// @Accept json
// @Produce json
// @Param request body models.Contact true "Contact or array of contacts"
// @Success 200 {object} models.InsertResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /contacts [post]
func (h *HTTPHandler) CreateContacts(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.respondError(w, "Invalid request body", err)
		return
	}

	var contacts []models.Contact
	single := len(body) == 0 || body[0] != '['
	if single {
		var contact models.Contact
		err = json.Unmarshal(body, &contact)
		contacts = []models.Contact{contact}
	} else {
		err = json.Unmarshal(body, &contacts)
	}
	if err != nil {
		utils.LogWarning("Error decoding POST /contacts: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body", err.Error()))
		return
	}

	inserted, ids, err := h.contactService.Create(r.Context(), contacts)
	if err != nil {
		h.respondError(w, "Failed to insert contacts", err)
		return
	}

	response := models.InsertResponse{Inserted: inserted}
	if single && len(ids) == 1 {
		response.ID = ids[0]
	}
	models.RespondWithJSON(w, http.StatusOK, response)
}

// @Summary Update a contact
// @Description Partial update by id. Changing phone_status clears interesse, reindirizzato and callbackAt when the new status does not allow them.
// @Tags contacts
// @Accept json
// @Produce json
// @Param request body models.UpdateContactRequest true "Contact id and fields to change"
// @Success 200 {object} models.UpdateResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /contacts [put]
func (h *HTTPHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.LogWarning("Error decoding PUT /contacts: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body", err.Error()))
		return
	}

	updated, err := h.contactService.Update(r.Context(), req.ID, req.ContactPatch)
	if err != nil {
		h.respondError(w, "Failed to update contact", err)
		return
	}

	models.RespondWithJSON(w, http.StatusOK, models.UpdateResponse{Updated: updated})
}

// @Summary Contact counters
// @Description Total and per phone status counts over the whole collection
// @Tags contacts
// @Produce json
// @Success 200 {object} models.ContactStats
// @Failure 500 {object} models.ErrorResponse
// @Router /contacts/stats [get]
func (h *HTTPHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.contactService.Stats(r.Context())
	if err != nil {
		h.respondError(w, "Failed to fetch contact stats", err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, stats)
}

// @Summary Seed the contact list
// @Description One-time import into an empty collection, from the body or from the configured CSV source
// @Tags maintenance
// @Accept json
// @Produce json
// @Param request body models.InitializeRequest false "Contacts to seed; omit to load the CSV source"
// @Success 200 {object} models.InitializeResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /contacts/initialize [post]
func (h *HTTPHandler) InitializeContacts(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.respondError(w, "Invalid request body", err)
		return
	}

	var req models.InitializeRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body", err.Error()))
			return
		}
	}

	result, err := h.contactService.Initialize(r.Context(), req.Contacts)
	if err != nil {
		h.respondError(w, "Failed to initialize contacts", err)
		return
	}

	models.RespondWithJSON(w, http.StatusOK, result)
}

// @Summary Replace all contacts
// @Description Destructive: deletes every contact and inserts the supplied list. A populated collection requires force=true.
// @Tags maintenance
// @Accept json
// @Produce json
// @Param request body models.MigrateRequest true "Replacement contacts"
// @Success 200 {object} models.MigrateResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /contacts/migrate [post]
func (h *HTTPHandler) MigrateContacts(w http.ResponseWriter, r *http.Request) {
	var req models.MigrateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body", err.Error()))
		return
	}

	result, err := h.contactService.Migrate(r.Context(), req.Contacts, req.Force)
	if err != nil {
		h.respondError(w, "Failed to migrate contacts", err)
		return
	}

	models.RespondWithJSON(w, http.StatusOK, result)
}

// @Summary Dial QR code
// @Description PNG QR code with a tel: link to the contact's phone number
// @Tags contacts
// @Produce png
// @Param id path string true "Contact id"
// @Param size query int false "Image size in pixels" default(256)
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Router /contacts/{id}/qrcode [get]
func (h *HTTPHandler) GetDialQRCode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > maxQRSize {
			models.RespondWithJSON(w, http.StatusBadRequest,
				models.NewErrorResponse("Invalid size", fmt.Sprintf("size must be between 64 and %d", maxQRSize)))
			return
		}
		size = n
	}

	png, err := h.contactService.DialQRCode(r.Context(), id, size)
	if err != nil {
		h.respondError(w, "Failed to generate qr code", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// respondError maps service errors to status codes. Store failures carry
// the underlying error as details.
func (h *HTTPHandler) respondError(w http.ResponseWriter, message string, err error) {
	var validationErr *models.ValidationError
	var paramErr *query.ParamError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.As(err, &validationErr), errors.As(err, &paramErr), errors.Is(err, services.ErrNoContacts):
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse(message, err.Error()))
	case errors.As(err, &maxBytesErr):
		models.RespondWithJSON(w, http.StatusRequestEntityTooLarge, models.NewErrorResponse(message, err.Error()))
	case errors.Is(err, services.ErrContactNotFound):
		models.RespondWithJSON(w, http.StatusNotFound, models.NewErrorResponse("Contact not found", ""))
	case errors.Is(err, services.ErrMigrationRefused):
		models.RespondWithJSON(w, http.StatusConflict, models.NewErrorResponse(message, err.Error()))
	default:
		utils.LogError("%s: %v", message, err)
		models.RespondWithJSON(w, http.StatusInternalServerError, models.NewErrorResponse(message, err.Error()))
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(body), nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}
	return json.Unmarshal(body, v)
}
