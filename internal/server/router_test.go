package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sunforge/solar-epc/auth"
	"github.com/sunforge/solar-epc/internal/db"
	"github.com/sunforge/solar-epc/internal/handlers"
	"github.com/sunforge/solar-epc/internal/middleware"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/services"
	"github.com/sunforge/solar-epc/internal/store"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const adminPassword = "admin-secret"

type testApp struct {
	t       *testing.T
	db      *gorm.DB
	handler http.Handler
	now     time.Time
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	d, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared&_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := d.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Seed(d, db.SeedOptions{AdminEmail: "admin@example.com", AdminPassword: adminPassword}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	app := &testApp{t: t, db: d, now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	app.handler = New(Options{
		DB:             d,
		Store:          store.New(d),
		Sessions:       auth.NewSessions("test-secret", auth.WithVerifier(handlers.ActiveUser(d))),
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:        middleware.NewMetrics(),
		Limiter:        middleware.NewLimiterRegistry(100, 100),
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 << 20,
		Tokens:         services.NewTokenService(d, services.WithClock(func() time.Time { return app.now })),
	})
	return app
}

// do sends a request and returns the recorder. body may be nil, a string or a value to JSON-encode.
func (a *testApp) do(method, path string, cookie *http.Cookie, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			a.t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) login(email, password string) *http.Cookie {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/login", nil, map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		a.t.Fatalf("login %s: %d %s", email, rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	a.t.Fatal("no session cookie")
	return nil
}

func (a *testApp) userWithProfile(email, profile string) *http.Cookie {
	a.t.Helper()
	var p models.Profile
	if err := a.db.Where("name = ?", profile).First(&p).Error; err != nil {
		a.t.Fatal(err)
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	u := models.User{Email: email, Password: string(hash), Active: true, ProfileID: &p.ID}
	if err := a.db.Create(&u).Error; err != nil {
		a.t.Fatal(err)
	}
	return a.login(email, "password1")
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, want, rec.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)
	expectStatus(t, app.do(http.MethodGet, "/health", nil, nil), http.StatusOK)
	expectStatus(t, app.do(http.MethodGet, "/healthz", nil, nil), http.StatusOK)

	rec := app.do(http.MethodGet, "/metrics", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "solar_epc_http_requests_total") {
		t.Fatal("metrics missing request counter")
	}
}

func TestAPIRequiresSessionAndPermission(t *testing.T) {
	app := newTestApp(t)
	expectStatus(t, app.do(http.MethodGet, "/api/clients", nil, nil), http.StatusUnauthorized)

	rec := app.do(http.MethodPost, "/login", nil, map[string]string{"email": "admin@example.com", "password": "wrong"})
	expectStatus(t, rec, http.StatusUnauthorized)

	viewer := app.userWithProfile("viewer@example.com", "viewer")
	expectStatus(t, app.do(http.MethodGet, "/api/clients", viewer, nil), http.StatusOK)
	expectStatus(t, app.do(http.MethodPost, "/api/clients", viewer, map[string]string{"name": "X"}), http.StatusForbidden)
	expectStatus(t, app.do(http.MethodGet, "/api/tokens", viewer, nil), http.StatusForbidden)
	expectStatus(t, app.do(http.MethodGet, "/api/admin/users", viewer, nil), http.StatusForbidden)

	admin := app.login("admin@example.com", adminPassword)
	expectStatus(t, app.do(http.MethodGet, "/api/admin/users", admin, nil), http.StatusOK)

	expectStatus(t, app.do(http.MethodPost, "/logout", admin, nil), http.StatusOK)
}

func TestQuotationLifecycleAndCascadeDelete(t *testing.T) {
	app := newTestApp(t)
	sales := app.userWithProfile("sales@example.com", "sales")

	rec := app.do(http.MethodPost, "/api/clients", sales, map[string]string{"name": "Asha Patil", "city": "Pune"})
	expectStatus(t, rec, http.StatusCreated)
	client := decodeBody[models.Client](t, rec)

	rec = app.do(http.MethodPost, "/api/quotations", sales, map[string]any{
		"title":    "Rooftop 5kW",
		"clientId": client.ID,
		"items": []map[string]any{
			{"description": "Panel 540Wp", "quantity": 10, "unitPrice": 12000, "taxRate": 0.12},
			{"description": "Inverter 5kW", "quantity": 1, "unitPrice": 45000, "taxRate": 0.18},
		},
	})
	expectStatus(t, rec, http.StatusCreated)
	q := decodeBody[models.Quotation](t, rec)

	rec = app.do(http.MethodPost, fmt.Sprintf("/api/quotations/%d/versions", q.ID), sales, map[string]any{
		"discountPct": 0.1,
		"items":       []map[string]any{{"description": "Panel 540Wp", "quantity": 10, "unitPrice": 11500, "taxRate": 0.12}},
	})
	expectStatus(t, rec, http.StatusCreated)

	rec = app.do(http.MethodGet, fmt.Sprintf("/api/quotations/%d/totals?version=1", q.ID), sales, nil)
	expectStatus(t, rec, http.StatusOK)
	totals := decodeBody[models.Totals](t, rec)
	if totals.Subtotal != 165000 || totals.Total != 187500 {
		t.Fatalf("totals = %+v", totals)
	}

	rec = app.do(http.MethodGet, fmt.Sprintf("/api/quotations/%d/pdf", q.ID), sales, nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("pdf response: %s", ct)
	}

	expectStatus(t, app.do(http.MethodPut, fmt.Sprintf("/api/quotations/%d/status", q.ID), sales, map[string]string{"status": "BOGUS"}), http.StatusBadRequest)
	expectStatus(t, app.do(http.MethodPut, fmt.Sprintf("/api/quotations/%d/status", q.ID), sales, map[string]string{"status": "SENT"}), http.StatusOK)

	rec = app.do(http.MethodDelete, fmt.Sprintf("/api/quotations/%d", q.ID), sales, nil)
	expectStatus(t, rec, http.StatusOK)
	if body := strings.TrimSpace(rec.Body.String()); body != `{"success":true}` {
		t.Fatalf("delete body = %s", body)
	}
	for _, m := range []any{&models.Quotation{}, &models.QuotationVersion{}, &models.QuotationItem{}} {
		var n int64
		app.db.Model(m).Count(&n)
		if n != 0 {
			t.Fatalf("%T rows left: %d", m, n)
		}
	}

	rec = app.do(http.MethodDelete, fmt.Sprintf("/api/quotations/%d", q.ID), sales, nil)
	expectStatus(t, rec, http.StatusNotFound)
	if !strings.Contains(rec.Body.String(), `"not_found"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}

	// A client still referenced by an inquiry cannot be removed.
	app.db.Create(&models.Inquiry{ClientID: client.ID, SystemType: models.SystemOnGrid, Status: models.InquiryNew})
	admin := app.login("admin@example.com", adminPassword)
	rec = app.do(http.MethodDelete, fmt.Sprintf("/api/clients/%d", client.ID), admin, nil)
	expectStatus(t, rec, http.StatusConflict)
}

func TestValidationErrorsCarryDetails(t *testing.T) {
	app := newTestApp(t)
	admin := app.login("admin@example.com", adminPassword)

	rec := app.do(http.MethodPost, "/api/clients", admin, map[string]string{"name": "", "email": "nope", "gstin": "bad"})
	expectStatus(t, rec, http.StatusBadRequest)
	body := decodeBody[struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}](t, rec)
	if body.Error != "validation_failed" || body.Details["name"] == "" || body.Details["email"] == "" || body.Details["gstin"] == "" {
		t.Fatalf("body = %+v", body)
	}

	expectStatus(t, app.do(http.MethodPost, "/api/clients", admin, `{"name":"A","unknown":1}`), http.StatusBadRequest)
	expectStatus(t, app.do(http.MethodGet, "/api/clients/abc", admin, nil), http.StatusBadRequest)
	expectStatus(t, app.do(http.MethodGet, "/api/clients/999", admin, nil), http.StatusNotFound)
}

func uploadDocument(t *testing.T, app *testApp, cookie *http.Cookie, clientID uint, name, content string) models.Document {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("clientId", fmt.Sprint(clientID))
	_ = mw.WriteField("category", "DRAWING")
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(fw, content)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusCreated)
	return decodeBody[models.Document](t, rec)
}

func TestShareTokenFlow(t *testing.T) {
	app := newTestApp(t)
	sales := app.userWithProfile("sales@example.com", "sales")

	client := models.Client{Name: "Ravi Kumar"}
	other := models.Client{Name: "Someone Else"}
	app.db.Create(&client)
	app.db.Create(&other)
	doc := uploadDocument(t, app, sales, client.ID, "layout.pdf", "%PDF-1.4 layout")
	foreign := uploadDocument(t, app, sales, other.ID, "other.pdf", "%PDF-1.4 other")

	rec := app.do(http.MethodPost, "/api/tokens", sales, map[string]any{
		"clientId":      client.ID,
		"allowDownload": false,
		"expiresAt":     "2026-06-02",
	})
	expectStatus(t, rec, http.StatusCreated)
	tok := decodeBody[models.TokenAccess](t, rec)
	if !services.TokenPattern.MatchString(tok.Token) || tok.Client == nil || tok.AllowDownload {
		t.Fatalf("token = %+v", tok)
	}

	// Lower-case input resolves too.
	rec = app.do(http.MethodGet, "/share/"+strings.ToLower(tok.Token), nil, nil)
	expectStatus(t, rec, http.StatusOK)
	view := decodeBody[struct {
		Client        struct{ Name string }
		AllowDownload bool
		Documents     []models.Document
	}](t, rec)
	if view.Client.Name != "Ravi Kumar" || view.AllowDownload || len(view.Documents) != 1 || view.Documents[0].ID != doc.ID {
		t.Fatalf("share view = %+v", view)
	}

	docPath := fmt.Sprintf("/share/%s/documents/%d", tok.Token, doc.ID)
	rec = app.do(http.MethodGet, docPath, nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "inline") || rec.Body.String() != "%PDF-1.4 layout" {
		t.Fatalf("inline view: %q %q", rec.Header().Get("Content-Disposition"), rec.Body.String())
	}
	rec = app.do(http.MethodGet, docPath+"?download=1", nil, nil)
	expectStatus(t, rec, http.StatusForbidden)
	if !strings.Contains(rec.Body.String(), "download_not_allowed") {
		t.Fatalf("body = %s", rec.Body.String())
	}
	expectStatus(t, app.do(http.MethodGet, fmt.Sprintf("/share/%s/documents/%d", tok.Token, foreign.ID), nil, nil), http.StatusNotFound)

	// Enabling downloads takes effect on the next request.
	rec = app.do(http.MethodPut, fmt.Sprintf("/api/tokens/%d", tok.ID), sales, map[string]any{
		"clientId":      client.ID,
		"inquiryId":     nil,
		"allowDownload": true,
		"expiresAt":     "2026-06-02",
	})
	expectStatus(t, rec, http.StatusOK)
	if updated := decodeBody[models.TokenAccess](t, rec); updated.Token != tok.Token || !updated.AllowDownload {
		t.Fatalf("updated = %+v", updated)
	}
	rec = app.do(http.MethodGet, docPath+"?download=1", nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment") {
		t.Fatalf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}

	// Past the expiry instant the token fails closed but the row stays.
	app.now = time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	rec = app.do(http.MethodGet, "/share/"+tok.Token, nil, nil)
	expectStatus(t, rec, http.StatusNotFound)
	if !strings.Contains(rec.Body.String(), "invalid_token") {
		t.Fatalf("body = %s", rec.Body.String())
	}
	var n int64
	app.db.Model(&models.TokenAccess{}).Where("id = ?", tok.ID).Count(&n)
	if n != 1 {
		t.Fatal("expired token row was removed")
	}

	rec = app.do(http.MethodDelete, fmt.Sprintf("/api/tokens/%d", tok.ID), sales, nil)
	expectStatus(t, rec, http.StatusOK)
	expectStatus(t, app.do(http.MethodDelete, fmt.Sprintf("/api/tokens/%d", tok.ID), sales, nil), http.StatusNotFound)
	expectStatus(t, app.do(http.MethodGet, "/share/ZZZZZZZZ", nil, nil), http.StatusNotFound)
}

func TestShareRoutesAreRateLimited(t *testing.T) {
	app := newTestApp(t)
	app.handler = New(Options{
		DB:      app.db,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Limiter: middleware.NewLimiterRegistry(0.001, 2),
	})
	codes := make([]int, 3)
	for i := range codes {
		codes[i] = app.do(http.MethodGet, "/share/DEADBEEF", nil, nil).Code
	}
	if codes[0] != http.StatusNotFound || codes[1] != http.StatusNotFound || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

func TestTaskAssigneePolicy(t *testing.T) {
	app := newTestApp(t)
	admin := app.login("admin@example.com", adminPassword)
	eng := app.userWithProfile("eng@example.com", "engineer")
	other := app.userWithProfile("other@example.com", "engineer")

	var engUser models.User
	app.db.Where("email = ?", "eng@example.com").First(&engUser)

	rec := app.do(http.MethodPost, "/api/tasks", admin, map[string]any{"title": "Site survey", "priority": "HIGH", "assigneeId": engUser.ID})
	expectStatus(t, rec, http.StatusCreated)
	task := decodeBody[models.Task](t, rec)

	rec = app.do(http.MethodGet, "/api/tasks/mine", eng, nil)
	expectStatus(t, rec, http.StatusOK)
	if mine := decodeBody[[]models.Task](t, rec); len(mine) != 1 || mine[0].ID != task.ID {
		t.Fatalf("mine = %+v", mine)
	}

	path := fmt.Sprintf("/api/tasks/%d/status", task.ID)
	expectStatus(t, app.do(http.MethodPut, path, other, map[string]string{"status": "DONE"}), http.StatusForbidden)
	expectStatus(t, app.do(http.MethodPut, path, eng, map[string]string{"status": "IN_PROGRESS"}), http.StatusOK)
	expectStatus(t, app.do(http.MethodDelete, fmt.Sprintf("/api/tasks/%d", task.ID), eng, nil), http.StatusForbidden)
	expectStatus(t, app.do(http.MethodDelete, fmt.Sprintf("/api/tasks/%d", task.ID), admin, nil), http.StatusOK)
}

func TestAdminAssignsProfile(t *testing.T) {
	app := newTestApp(t)
	admin := app.login("admin@example.com", adminPassword)

	rec := app.do(http.MethodPost, "/api/admin/users", admin, map[string]any{"email": "New@Example.com", "password": "longenough"})
	expectStatus(t, rec, http.StatusCreated)
	user := decodeBody[models.User](t, rec)
	if user.Email != "new@example.com" {
		t.Fatalf("email = %q", user.Email)
	}
	expectStatus(t, app.do(http.MethodPost, "/api/admin/users", admin, map[string]any{"email": "new@example.com", "password": "longenough"}), http.StatusConflict)

	cookie := app.login("new@example.com", "longenough")
	expectStatus(t, app.do(http.MethodGet, "/api/clients", cookie, nil), http.StatusForbidden)

	var viewer models.Profile
	app.db.Where("name = ?", "viewer").First(&viewer)
	rec = app.do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d", user.ID), admin, map[string]any{"profileId": viewer.ID})
	expectStatus(t, rec, http.StatusOK)
	expectStatus(t, app.do(http.MethodGet, "/api/clients", cookie, nil), http.StatusOK)

	rec = app.do(http.MethodPut, fmt.Sprintf("/api/admin/users/%d", user.ID), admin, map[string]any{"profileId": viewer.ID, "active": false})
	expectStatus(t, rec, http.StatusOK)
	expectStatus(t, app.do(http.MethodGet, "/api/clients", cookie, nil), http.StatusUnauthorized)
}

func TestDeactivatedUserLosesSessionWithoutExplicitVerifier(t *testing.T) {
	app := newTestApp(t)
	app.handler = New(Options{
		DB:       app.db,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sessions: auth.NewSessions("test-secret"),
	})
	viewer := app.userWithProfile("viewer@example.com", "viewer")
	expectStatus(t, app.do(http.MethodGet, "/api/clients", viewer, nil), http.StatusOK)

	app.db.Model(&models.User{}).Where("email = ?", "viewer@example.com").Update("active", false)
	rec := app.do(http.MethodGet, "/api/clients", viewer, nil)
	expectStatus(t, rec, http.StatusUnauthorized)
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Fatalf("session cookie not cleared: %+v", c)
	}
}

type errorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func TestInquiryLifecycle(t *testing.T) {
	app := newTestApp(t)
	sales := app.userWithProfile("sales@example.com", "sales")
	client := models.Client{Name: "Meera Joshi"}
	app.db.Create(&client)

	rec := app.do(http.MethodPost, "/api/inquiries", sales, map[string]any{
		"clientId": client.ID, "systemType": "WIND", "status": "MAYBE", "capacityKw": -1,
	})
	expectStatus(t, rec, http.StatusBadRequest)
	body := decodeBody[errorBody](t, rec)
	for _, field := range []string{"systemType", "status", "capacityKw"} {
		if body.Details[field] == "" {
			t.Fatalf("missing %s violation: %+v", field, body)
		}
	}

	rec = app.do(http.MethodPost, "/api/inquiries", sales, map[string]any{"clientId": 999})
	expectStatus(t, rec, http.StatusBadRequest)
	if body := decodeBody[errorBody](t, rec); body.Details["clientId"] != "unknown" {
		t.Fatalf("body = %+v", body)
	}

	rec = app.do(http.MethodPost, "/api/inquiries", sales, map[string]any{
		"clientId": client.ID, "siteAddress": "Plot 12, Hadapsar", "capacityKw": 5,
	})
	expectStatus(t, rec, http.StatusCreated)
	inq := decodeBody[models.Inquiry](t, rec)
	if inq.SystemType != models.SystemOnGrid || inq.Status != models.InquiryNew {
		t.Fatalf("defaults not applied: %+v", inq)
	}

	rec = app.do(http.MethodPut, fmt.Sprintf("/api/inquiries/%d", inq.ID), sales, map[string]any{
		"clientId": client.ID, "siteAddress": "Plot 12, Hadapsar", "capacityKw": 7.5, "systemType": "HYBRID", "status": "SITE_SURVEY",
	})
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[models.Inquiry](t, rec); got.CapacityKW != 7.5 || got.SystemType != models.SystemHybrid {
		t.Fatalf("update not applied: %+v", got)
	}

	statusPath := fmt.Sprintf("/api/inquiries/%d/status", inq.ID)
	expectStatus(t, app.do(http.MethodPut, statusPath, sales, map[string]string{"status": "BOGUS"}), http.StatusBadRequest)
	expectStatus(t, app.do(http.MethodPut, statusPath, sales, map[string]string{"status": "WON"}), http.StatusOK)
	expectStatus(t, app.do(http.MethodPut, "/api/inquiries/999/status", sales, map[string]string{"status": "WON"}), http.StatusNotFound)

	rec = app.do(http.MethodGet, fmt.Sprintf("/api/inquiries?status=WON&clientId=%d", client.ID), sales, nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decodeBody[struct {
		Items []models.Inquiry `json:"items"`
		Total int64            `json:"total"`
	}](t, rec); list.Total != 1 || list.Items[0].ID != inq.ID || list.Items[0].Client == nil {
		t.Fatalf("list = %+v", list)
	}

	// The client cannot go while the inquiry references it.
	admin := app.login("admin@example.com", adminPassword)
	rec = app.do(http.MethodDelete, fmt.Sprintf("/api/clients/%d", client.ID), admin, nil)
	expectStatus(t, rec, http.StatusConflict)
	if body := decodeBody[errorBody](t, rec); body.Error != "constraint_violation" {
		t.Fatalf("body = %+v", body)
	}

	// Deleting the inquiry drops tokens scoped to it and detaches quotations.
	rec = app.do(http.MethodPost, "/api/tokens", sales, map[string]any{"clientId": client.ID, "inquiryId": inq.ID})
	expectStatus(t, rec, http.StatusCreated)
	tok := decodeBody[models.TokenAccess](t, rec)
	q := models.Quotation{Title: "Hybrid 7.5kW", Status: models.QuotationDraft, ClientID: client.ID, InquiryID: &inq.ID}
	app.db.Create(&q)

	expectStatus(t, app.do(http.MethodDelete, fmt.Sprintf("/api/inquiries/%d", inq.ID), sales, nil), http.StatusOK)
	expectStatus(t, app.do(http.MethodDelete, fmt.Sprintf("/api/inquiries/%d", inq.ID), sales, nil), http.StatusNotFound)
	expectStatus(t, app.do(http.MethodGet, "/share/"+tok.Token, nil, nil), http.StatusNotFound)
	var kept models.Quotation
	if err := app.db.First(&kept, q.ID).Error; err != nil || kept.InquiryID != nil {
		t.Fatalf("quotation after inquiry delete: %+v %v", kept, err)
	}
}

func TestItemMaster(t *testing.T) {
	app := newTestApp(t)
	admin := app.login("admin@example.com", adminPassword)
	sales := app.userWithProfile("sales@example.com", "sales")

	rec := app.do(http.MethodPost, "/api/items", admin, map[string]any{"name": "", "gstRate": 18, "basePrice": -5})
	expectStatus(t, rec, http.StatusBadRequest)
	body := decodeBody[errorBody](t, rec)
	if body.Details["name"] == "" || body.Details["gstRate"] == "" || body.Details["basePrice"] == "" {
		t.Fatalf("body = %+v", body)
	}

	rec = app.do(http.MethodPost, "/api/items", admin, map[string]any{
		"name": "Mono PERC 540Wp", "category": "PANEL", "brand": "Waaree", "basePrice": 12000, "gstRate": 0.12, "hsnCode": "85414300",
	})
	expectStatus(t, rec, http.StatusCreated)
	item := decodeBody[models.Item](t, rec)
	if !item.Active || item.Unit != "nos" || item.HSNCode != "85414300" || item.GSTRate != 0.12 {
		t.Fatalf("item = %+v", item)
	}

	expectStatus(t, app.do(http.MethodPost, "/api/items", sales, map[string]any{"name": "X"}), http.StatusForbidden)

	rec = app.do(http.MethodPut, fmt.Sprintf("/api/items/%d", item.ID), admin, map[string]any{
		"name": "Mono PERC 545Wp", "category": "PANEL", "unit": "pcs", "basePrice": 12500, "gstRate": 0.12, "hsnCode": "85414300",
	})
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[models.Item](t, rec); got.Name != "Mono PERC 545Wp" || got.Unit != "pcs" || got.BasePrice != 12500 || !got.Active {
		t.Fatalf("updated = %+v", got)
	}

	rec = app.do(http.MethodGet, "/api/items?q=perc", sales, nil)
	expectStatus(t, rec, http.StatusOK)
	if items := decodeBody[[]models.Item](t, rec); len(items) != 1 {
		t.Fatalf("search = %+v", items)
	}

	expectStatus(t, app.do(http.MethodDelete, fmt.Sprintf("/api/items/%d", item.ID), admin, nil), http.StatusOK)
	rec = app.do(http.MethodGet, "/api/items", sales, nil)
	if items := decodeBody[[]models.Item](t, rec); len(items) != 0 {
		t.Fatalf("inactive item listed: %+v", items)
	}
	rec = app.do(http.MethodGet, "/api/items?all=1", sales, nil)
	if items := decodeBody[[]models.Item](t, rec); len(items) != 1 || items[0].Active {
		t.Fatalf("all items = %+v", items)
	}
	expectStatus(t, app.do(http.MethodDelete, "/api/items/999", admin, nil), http.StatusNotFound)
}

func TestCompanySettings(t *testing.T) {
	app := newTestApp(t)
	admin := app.login("admin@example.com", adminPassword)
	sales := app.userWithProfile("sales@example.com", "sales")

	rec := app.do(http.MethodGet, "/api/company", sales, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[models.CompanySettings](t, rec); got.Name != "Solar EPC" {
		t.Fatalf("seeded company = %+v", got)
	}

	update := map[string]any{"name": "Sunforge Energy", "gstin": "27aapfu0939f1zv", "email": "ops@sunforge.in", "city": "Pune", "terms": "50% advance"}
	expectStatus(t, app.do(http.MethodPut, "/api/company", sales, update), http.StatusForbidden)

	rec = app.do(http.MethodPut, "/api/company", admin, map[string]any{"name": "Sunforge Energy", "gstin": "NOTAGSTIN"})
	expectStatus(t, rec, http.StatusBadRequest)
	if body := decodeBody[errorBody](t, rec); body.Details["gstin"] == "" {
		t.Fatalf("body = %+v", body)
	}

	rec = app.do(http.MethodPut, "/api/company", admin, update)
	expectStatus(t, rec, http.StatusOK)
	saved := decodeBody[models.CompanySettings](t, rec)
	if saved.GSTIN != "27AAPFU0939F1ZV" || saved.Terms != "50% advance" {
		t.Fatalf("saved = %+v", saved)
	}

	var n int64
	app.db.Model(&models.CompanySettings{}).Count(&n)
	if n != 1 {
		t.Fatalf("company rows = %d, want 1", n)
	}
	rec = app.do(http.MethodGet, "/api/company", sales, nil)
	if got := decodeBody[models.CompanySettings](t, rec); got.Name != "Sunforge Energy" || got.City != "Pune" {
		t.Fatalf("company = %+v", got)
	}
}

func TestTokenUpdateRules(t *testing.T) {
	app := newTestApp(t)
	sales := app.userWithProfile("sales@example.com", "sales")
	client := models.Client{Name: "Ravi Kumar"}
	app.db.Create(&client)
	inq := models.Inquiry{ClientID: client.ID, SystemType: models.SystemOnGrid, Status: models.InquiryNew}
	app.db.Create(&inq)

	rec := app.do(http.MethodPost, "/api/tokens", sales, map[string]any{
		"clientId": client.ID, "inquiryId": inq.ID, "expiresAt": "2026-06-02",
	})
	expectStatus(t, rec, http.StatusCreated)
	tok := decodeBody[models.TokenAccess](t, rec)
	path := fmt.Sprintf("/api/tokens/%d", tok.ID)

	// Leaving out inquiryId or expiresAt must not widen the token.
	rec = app.do(http.MethodPut, path, sales, map[string]any{"clientId": client.ID, "allowDownload": false})
	expectStatus(t, rec, http.StatusBadRequest)
	body := decodeBody[errorBody](t, rec)
	if body.Details["inquiryId"] != "required" || body.Details["expiresAt"] != "required" {
		t.Fatalf("body = %+v", body)
	}
	expectStatus(t, app.do(http.MethodPut, path, sales, `{"clientId":1,"inquiryId":null,"expiresAt":null,"extra":1}`), http.StatusBadRequest)
	var stored models.TokenAccess
	app.db.First(&stored, tok.ID)
	if stored.InquiryID == nil || *stored.InquiryID != inq.ID || stored.ExpiresAt == nil {
		t.Fatalf("rejected update changed the row: %+v", stored)
	}

	// Explicit nulls widen to the whole client and drop the expiry.
	rec = app.do(http.MethodPut, path, sales, map[string]any{"clientId": client.ID, "inquiryId": nil, "expiresAt": nil})
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[models.TokenAccess](t, rec); got.InquiryID != nil || got.ExpiresAt != nil {
		t.Fatalf("updated = %+v", got)
	}

	// Once expired, a token cannot be revived.
	rec = app.do(http.MethodPut, path, sales, map[string]any{"clientId": client.ID, "inquiryId": nil, "expiresAt": "2026-06-01T13:00:00Z"})
	expectStatus(t, rec, http.StatusOK)
	app.now = time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)
	expectStatus(t, app.do(http.MethodGet, "/share/"+tok.Token, nil, nil), http.StatusNotFound)
	rec = app.do(http.MethodPut, path, sales, map[string]any{"clientId": client.ID, "inquiryId": nil, "expiresAt": "2027-01-01"})
	expectStatus(t, rec, http.StatusConflict)
	if body := decodeBody[errorBody](t, rec); body.Error != "token_expired" {
		t.Fatalf("body = %+v", body)
	}
	expectStatus(t, app.do(http.MethodGet, "/share/"+tok.Token, nil, nil), http.StatusNotFound)
}

func TestSharedHTMLIsNeverInline(t *testing.T) {
	app := newTestApp(t)
	sales := app.userWithProfile("sales@example.com", "sales")
	client := models.Client{Name: "Ravi Kumar"}
	app.db.Create(&client)
	doc := uploadDocument(t, app, sales, client.ID, "drawing.pdf", "<html><body><script>document.cookie</script></body></html>")
	if !strings.HasPrefix(doc.MimeType, "text/html") {
		t.Fatalf("mime = %q", doc.MimeType)
	}

	rec := app.do(http.MethodPost, "/api/tokens", sales, map[string]any{"clientId": client.ID, "allowDownload": false})
	expectStatus(t, rec, http.StatusCreated)
	tok := decodeBody[models.TokenAccess](t, rec)

	rec = app.do(http.MethodGet, fmt.Sprintf("/share/%s/documents/%d", tok.Token, doc.ID), nil, nil)
	expectStatus(t, rec, http.StatusOK)
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Fatalf("disposition = %q", cd)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("nosniff missing")
	}
}
