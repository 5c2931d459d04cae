package ginserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	"roomledger/internal/app/commands"
	"roomledger/internal/app/dto"
	"roomledger/internal/app/engine"
	inventoryapp "roomledger/internal/app/handlers/inventory"
	"roomledger/internal/app/middleware"
	"roomledger/internal/clock"
	domaininventory "roomledger/internal/domain/inventory"
	domainpromo "roomledger/internal/domain/promo"
	"roomledger/internal/domain/shared/errs"
	"roomledger/internal/infra/config"
	"roomledger/internal/infra/obs"
	"roomledger/internal/infra/storage/memory"
	"roomledger/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T, totalUnits int) apiClient {
	t.Helper()
	store := memory.NewStore()
	e := engine.New(engine.Deps{
		UoW:         store,
		Idempotency: memory.NewIdempotencyStore(0),
		Clock:       clock.NewManual(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)),
		HoldTTL:     15 * time.Minute,
		Logger:      obs.Discard(),
	})
	testutil.SeedCatalog(t, t.Context(), store, testutil.RoomTypeSpec{ID: "rt-1", TotalUnits: totalUnits, BasePrice: 1000})
	logger := obs.Discard()
	h := Handlers{
		Availability: AvailabilityHandler{Queries: e.Queries, Logger: logger},
		Booking:      BookingHandler{Commands: e.Commands, Queries: e.Queries, Logger: logger},
		Inventory:    InventoryHandler{Commands: e.Commands, Logger: logger},
		Search:       SearchHandler{Queries: e.Queries, Logger: logger},
		Admin:        AdminHandler{Commands: e.Commands, Logger: logger},
	}
	cfg := config.Config{Env: "test", CORSOrigins: []string{"*"}}
	return apiClient{t: t, router: NewRouter(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{}, h)}
}

type call struct {
	method  string
	path    string
	body    any
	roles   string
	headers map[string]string
}

func (a apiClient) do(c call) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		if err := json.NewEncoder(&buf).Encode(c.body); err != nil {
			a.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.roles != "" {
		req.Header.Set(headerPrincipalID, "user-1")
		req.Header.Set(headerPrincipalRoles, c.roles)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func bookingBody(units int) map[string]any {
	return map[string]any{
		"room_type_id": "rt-1",
		"check_in":     "2026-01-10",
		"check_out":    "2026-01-12",
		"units":        units,
		"adults":       2,
		"guest":        map[string]any{"name": "Ada Lovelace", "email": "ada@example.com"},
	}
}

func TestBookingEndpoints(t *testing.T) {
	api := newAPI(t, 2)

	rec := api.do(call{method: http.MethodPost, path: "/api/v1/availability/check", body: bookingBody(1)})
	if rec.Code != http.StatusOK {
		t.Fatalf("check: %d %s", rec.Code, rec.Body.String())
	}
	if quote := decode[dto.Quote](t, rec); quote.Price.Total.Amount != 2000 {
		t.Fatalf("unexpected quote total %d", quote.Price.Total.Amount)
	}

	rec = api.do(call{method: http.MethodPost, path: "/api/v1/bookings", body: bookingBody(1), headers: map[string]string{"Idempotency-Key": "idem-1"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[dto.Booking](t, rec)
	if created.Status != "confirmed" || created.Total.Amount != 2000 {
		t.Fatalf("unexpected booking %+v", created)
	}

	rec = api.do(call{method: http.MethodPost, path: "/api/v1/bookings", body: bookingBody(1), headers: map[string]string{"Idempotency-Key": "idem-1"}})
	if replay := decode[dto.Booking](t, rec); rec.Code != http.StatusCreated || replay.ID != created.ID {
		t.Fatalf("replay: %d %s", rec.Code, rec.Body.String())
	}

	rec = api.do(call{method: http.MethodGet, path: "/api/v1/room-types/rt-1/availability?from=2026-01-10&to=2026-01-12"})
	if rec.Code != http.StatusOK {
		t.Fatalf("calendar: %d %s", rec.Code, rec.Body.String())
	}
	for _, d := range decode[dto.Calendar](t, rec).Days {
		if d.Available != 1 {
			t.Fatalf("expected 1 unit left on %s, got %d", d.Date, d.Available)
		}
	}

	rec = api.do(call{method: http.MethodPost, path: "/api/v1/bookings", body: bookingBody(2)})
	if rec.Code != http.StatusConflict {
		t.Fatalf("oversell: %d %s", rec.Code, rec.Body.String())
	}
	conflict := decode[errorBody](t, rec)
	if conflict.Code != "unavailable" || conflict.Details["date"] != "2026-01-10" || conflict.Details["available"] != float64(1) {
		t.Fatalf("unexpected conflict body %+v", conflict)
	}

	path := "/api/v1/bookings/" + created.ID
	cases := []struct {
		name   string
		call   call
		status int
	}{
		{"get", call{method: http.MethodGet, path: path}, http.StatusOK},
		{"get unknown", call{method: http.MethodGet, path: "/api/v1/bookings/nope"}, http.StatusNotFound},
		{"check-in without caller", call{method: http.MethodPost, path: path + "/check-in"}, http.StatusUnauthorized},
		{"check-in as channel", call{method: http.MethodPost, path: path + "/check-in", roles: "channel"}, http.StatusForbidden},
		{"check-in too early", call{method: http.MethodPost, path: path + "/check-in", roles: "manager"}, http.StatusConflict},
		{"cancel", call{method: http.MethodPost, path: path + "/cancel", roles: "manager", body: map[string]any{"reason": "changed plans"}}, http.StatusOK},
		{"confirm cancelled", call{method: http.MethodPost, path: path + "/confirm", roles: "billing"}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := api.do(tc.call); rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestBookingRequestValidation(t *testing.T) {
	api := newAPI(t, 2)
	cases := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing dates", func(b map[string]any) { delete(b, "check_in") }},
		{"reversed dates", func(b map[string]any) { b["check_out"] = "2026-01-09" }},
		{"no adults", func(b map[string]any) { b["adults"] = 0 }},
		{"no guest name", func(b map[string]any) { b["guest"] = map[string]any{} }},
		{"unknown source", func(b map[string]any) { b["source"] = "fax" }},
		{"too many guests", func(b map[string]any) { b["adults"] = 9 }},
		{"unknown promo", func(b map[string]any) { b["promo_code"] = "NOPE" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := bookingBody(1)
			tc.mutate(body)
			rec := api.do(call{method: http.MethodPost, path: "/api/v1/bookings", body: body})
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestInventoryEndpoints(t *testing.T) {
	api := newAPI(t, 2)
	if rec := api.do(call{method: http.MethodPost, path: "/api/v1/bookings", body: bookingBody(2)}); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}

	bulk := func(body map[string]any, roles string) *httptest.ResponseRecorder {
		return api.do(call{method: http.MethodPost, path: "/api/v1/room-types/rt-1/availability/bulk", body: body, roles: roles})
	}
	if rec := bulk(map[string]any{"from": "2026-01-12", "to": "2026-01-13", "stop_sell": true}, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous bulk: %d", rec.Code)
	}
	rec := bulk(map[string]any{"from": "2026-01-12", "to": "2026-01-14", "price": 1500}, "manager")
	if rec.Code != http.StatusOK {
		t.Fatalf("price bulk: %d %s", rec.Code, rec.Body.String())
	}
	if res := decode[dto.BulkResult](t, rec); res.Applied != 2 || res.Days[0].Price != 1500 {
		t.Fatalf("unexpected bulk result %+v", res)
	}

	rec = bulk(map[string]any{"from": "2026-01-09", "to": "2026-01-12", "units_delta": -1, "all_or_nothing": true}, "manager")
	if rec.Code != http.StatusConflict {
		t.Fatalf("all or nothing: %d %s", rec.Code, rec.Body.String())
	}
	rejected := decode[struct {
		Code   string         `json:"code"`
		Result dto.BulkResult `json:"result"`
	}](t, rec)
	if rejected.Code != "bulk_rejected" || rejected.Result.Rejected != 2 || !rejected.Result.RolledBack {
		t.Fatalf("unexpected rejection %+v", rejected)
	}

	if rec := bulk(map[string]any{"from": "2026-01-09", "to": "2026-01-10"}, "manager"); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty update: %d %s", rec.Code, rec.Body.String())
	}

	rec = api.do(call{method: http.MethodPost, path: "/api/v1/room-types/rt-1/inventory/rebuild", roles: "manager", body: map[string]any{"from": "2026-01-09", "to": "2026-01-13"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild: %d %s", rec.Code, rec.Body.String())
	}
	if res := decode[dto.RebuildResult](t, rec); res.Days != 4 || res.Repaired != 0 {
		t.Fatalf("unexpected rebuild %+v", res)
	}
}

func TestSearchAndAdminEndpoints(t *testing.T) {
	api := newAPI(t, 2)

	rec := api.do(call{method: http.MethodGet, path: "/api/v1/search?city=lisbon&check_in=2026-02-01&check_out=2026-02-03&guests=2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d %s", rec.Code, rec.Body.String())
	}
	if res := decode[dto.SearchResult](t, rec); len(res.Items) != 1 || res.Items[0].RoomTypeID != "rt-1" {
		t.Fatalf("unexpected search result %+v", res)
	}
	if rec := api.do(call{method: http.MethodGet, path: "/api/v1/search?check_in=2026-02-01&check_out=2026-02-03&lat=38.7"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("lat without lon: %d", rec.Code)
	}

	hotel := map[string]any{"name": "Casa Azul", "city": "Porto", "country": "PT", "rating": 4.2}
	if rec := api.do(call{method: http.MethodPost, path: "/api/v1/hotels", body: hotel}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous hotel create: %d", rec.Code)
	}
	rec = api.do(call{method: http.MethodPost, path: "/api/v1/hotels", body: hotel, roles: "manager"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("hotel create: %d %s", rec.Code, rec.Body.String())
	}
	if created := decode[dto.Hotel](t, rec); created.ID == "" || created.City != "Porto" {
		t.Fatalf("unexpected hotel %+v", created)
	}

	promo := map[string]any{"code": "winter5", "discount_type": "percent", "discount_value": 5, "valid_from": "2026-01-01", "valid_to": "2026-03-31"}
	if rec := api.do(call{method: http.MethodPost, path: "/api/v1/promo-codes", body: promo, roles: "manager"}); rec.Code != http.StatusCreated {
		t.Fatalf("promo create: %d %s", rec.Code, rec.Body.String())
	}
	if rec := api.do(call{method: http.MethodPost, path: "/api/v1/promo-codes", body: promo, roles: "manager"}); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate promo: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	api := newAPI(t, 1)
	for _, path := range []string{"/livez", "/readyz"} {
		if rec := api.do(call{method: http.MethodGet, path: path}); rec.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, rec.Code)
		}
	}
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		err        error
		status     int
		code       string
		retryAfter bool
	}{
		{&domaininventory.ConflictError{RoomTypeID: "rt-1", Requested: 2}, http.StatusConflict, "unavailable", false},
		{&inventoryapp.RejectedError{}, http.StatusConflict, "bulk_rejected", false},
		{fmt.Errorf("lock: %w", errs.ErrConcurrency), http.StatusConflict, "concurrency", true},
		{errs.ErrInvalidTransition, http.StatusConflict, "invalid_transition", false},
		{errs.ErrAlreadyExists, http.StatusConflict, "already_exists", false},
		{middleware.ErrIdempotencyKeyReused, http.StatusConflict, "already_exists", false},
		{domainpromo.ErrExhausted, http.StatusBadRequest, "promo_code", false},
		{errs.ErrValidation, http.StatusBadRequest, "validation", false},
		{errs.ErrNotFound, http.StatusNotFound, "not_found", false},
		{errs.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", false},
		{errs.ErrForbidden, http.StatusForbidden, "forbidden", false},
		{commands.ErrHandlerNotFound, http.StatusServiceUnavailable, "unavailable_operation", false},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal", false},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			writeError(c, obs.Discard(), tc.err)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			body := decode[map[string]any](t, rec)
			if body["code"] != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, body["code"])
			}
			if got := rec.Header().Get("Retry-After") != ""; got != tc.retryAfter {
				t.Fatalf("Retry-After presence = %v", got)
			}
		})
	}
}
