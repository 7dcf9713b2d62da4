package http

import (
	"net/http"
	"strings"
	"time"

	"boxrental-backend/internal/config"
	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/inventory"
	"boxrental-backend/internal/security"
	"boxrental-backend/internal/service"

	"github.com/gorilla/mux"
)

type Handler struct {
	rentals    service.RentalService
	inventory  service.InventoryService
	trustProxy bool
}

// NewRouter registers the /v1 REST surface.
func NewRouter(rentals service.RentalService, inv service.InventoryService, tm security.TokenManager, trustProxy bool) *mux.Router {
	h := &Handler{rentals: rentals, inventory: inv, trustProxy: trustProxy}
	auth := &authMiddleware{tokenManager: tm}

	router := mux.NewRouter()
	router.Use(logRequests)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	v1 := router.PathPrefix("/v1").Subrouter()

	// Public
	v1.HandleFunc("/statuses", auth.require(config.SecurityPublic, h.ListStatuses)).Methods("GET")
	v1.HandleFunc("/availability", auth.require(config.SecurityPublic, h.CheckAvailability)).Methods("GET")
	v1.HandleFunc("/quotes", auth.require(config.SecurityPublic, h.Quote)).Methods("POST")
	v1.HandleFunc("/track", auth.require(config.SecurityPublic, h.TrackRental)).Methods("POST")

	// Access protected
	v1.HandleFunc("/rentals", auth.require(config.SecurityAccess, h.CreateRental)).Methods("POST")
	v1.HandleFunc("/rentals", auth.require(config.SecurityAccess, h.ListRentals)).Methods("GET")
	v1.HandleFunc("/rentals/by-master/{code}", auth.require(config.SecurityStaff, h.LookupByMasterCode)).Methods("GET")
	v1.HandleFunc("/rentals/{id:[0-9]+}", auth.require(config.SecurityAccess, h.GetRental)).Methods("GET")
	v1.HandleFunc("/rentals/{id:[0-9]+}", auth.require(config.SecurityAccess, h.AmendRental)).Methods("PATCH")
	v1.HandleFunc("/rentals/{id:[0-9]+}/status", auth.require(config.SecurityAccess, h.UpdateStatus)).Methods("POST")

	// Staff protected
	v1.HandleFunc("/rentals/{id:[0-9]+}/override", auth.require(config.SecurityStaff, h.OverrideStatus)).Methods("POST")
	v1.HandleFunc("/rentals/{id:[0-9]+}/notes", auth.require(config.SecurityStaff, h.AddNote)).Methods("POST")
	v1.HandleFunc("/rentals/{id:[0-9]+}/events", auth.require(config.SecurityStaff, h.ListEvents)).Methods("GET")
	v1.HandleFunc("/boxes", auth.require(config.SecurityStaff, h.RegisterBox)).Methods("POST")
	v1.HandleFunc("/boxes/{id:[0-9]+}/maintenance", auth.require(config.SecurityStaff, h.SetBoxMaintenance)).Methods("POST")
	v1.HandleFunc("/inventory/reconcile", auth.require(config.SecurityStaff, h.Reconcile)).Methods("GET")

	return router
}

func caller(r *http.Request) domain.Caller {
	c, _ := CallerFromContext(r.Context())
	return c
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(field, raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, domain.InvalidInput("%s must be a date like 2027-01-31, got %q", field, raw)
}

func (h *Handler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"statuses": domain.Statuses()})
}

func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseDate("start", q.Get("start"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := parseDate("end", q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	count := int32(1)
	if raw := q.Get("count"); raw != "" {
		n, err := parseID(raw)
		if err != nil {
			writeError(w, r, domain.InvalidInput("count must be a positive number"))
			return
		}
		count = int32(n)
	}
	a, err := h.rentals.CheckAvailability(r.Context(), inventory.Query{
		Size: domain.BoxSize(q.Get("size")), BoxCount: count, Start: start, End: end,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.Public())
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req service.QuoteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.rentals.Quote(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q.Availability = q.Availability.Public()
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) TrackRental(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fragment     string `json:"fragment"`
		TrackingCode string `json:"tracking_code"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.rentals.TrackRental(r.Context(), clientIP(r, h.trustProxy), req.Fragment, req.TrackingCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) CreateRental(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRentalRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := h.rentals.CreateRental(r.Context(), caller(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rt)
}

func (h *Handler) ListRentals(w http.ResponseWriter, r *http.Request) {
	var statuses []domain.RentalStatus
	for _, raw := range r.URL.Query()["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, domain.RentalStatus(s))
			}
		}
	}
	rentals, err := h.rentals.ListRentals(r.Context(), caller(r), statuses)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rentals == nil {
		rentals = []domain.Rental{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rentals": rentals})
}

func (h *Handler) GetRental(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := h.rentals.GetRental(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (h *Handler) AmendRental(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.AmendRentalRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.RentalID = id
	rt, err := h.rentals.AmendRental(r.Context(), caller(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (h *Handler) statusChange(w http.ResponseWriter, r *http.Request) (service.StatusChange, bool) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return service.StatusChange{}, false
	}
	var req service.StatusChange
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return service.StatusChange{}, false
	}
	req.RentalID = id
	return req, true
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := h.statusChange(w, r)
	if !ok {
		return
	}
	rt, err := h.rentals.UpdateStatus(r.Context(), caller(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (h *Handler) OverrideStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := h.statusChange(w, r)
	if !ok {
		return
	}
	rt, err := h.rentals.OverrideStatus(r.Context(), caller(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := h.rentals.AddNote(r.Context(), caller(r), id, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	evts, err := h.rentals.ListEvents(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if evts == nil {
		evts = []domain.RentalEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}

func (h *Handler) LookupByMasterCode(w http.ResponseWriter, r *http.Request) {
	rt, err := h.rentals.LookupByMasterCode(r.Context(), caller(r), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (h *Handler) RegisterBox(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterBoxRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	box, err := h.inventory.RegisterBox(r.Context(), caller(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, box)
}

func (h *Handler) SetBoxMaintenance(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Action service.MaintenanceAction `json:"action"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	box, err := h.inventory.SetBoxMaintenance(r.Context(), caller(r), id, req.Action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, box)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	drift, err := h.inventory.Reconcile(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if drift == nil {
		drift = []inventory.Drift{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"drift": drift})
}
