package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/diagnoclinic/apiserver/config"
	"github.com/diagnoclinic/apiserver/internal/metrics"
	"github.com/diagnoclinic/apiserver/internal/report"
	"github.com/diagnoclinic/apiserver/internal/services"
	"github.com/diagnoclinic/apiserver/internal/session"
	"github.com/diagnoclinic/apiserver/internal/store"
)

type stubModel struct {
	class int
	proba []float64
}

func (m *stubModel) FeatureNames() []string {
	return []string{
		"Fever", "Cough", "Fatigue", "Difficulty Breathing", "Age", "Gender",
		"Blood Pressure", "Cholesterol Level", "Outcome Variable",
	}
}

func (m *stubModel) Predict(ctx context.Context, row []float64) (int, error) {
	return m.class, nil
}

func (m *stubModel) PredictProba(ctx context.Context, row []float64) ([]float64, error) {
	return m.proba, nil
}

type stubRenderer struct{}

func (stubRenderer) Render(ctx context.Context, html []byte) ([]byte, error) {
	return []byte("%PDF-1.4 stub"), nil
}

type testApp struct {
	server  *httptest.Server
	doctors *store.DoctorRepository
	history *store.HistoryRepository
	admin   *services.AdminService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	doctors, err := store.OpenDoctorRepository(filepath.Join(dir, "medecins.json"), 1001)
	if err != nil {
		t.Fatalf("open doctors: %v", err)
	}
	tokens, err := store.OpenResetTokenRepository(filepath.Join(dir, "reset_tokens.json"))
	if err != nil {
		t.Fatalf("open tokens: %v", err)
	}
	activity, err := store.OpenActivityRepository(filepath.Join(dir, "activity.json"), 200)
	if err != nil {
		t.Fatalf("open activity: %v", err)
	}
	catalog, err := store.OpenServiceRepository(filepath.Join(dir, "services.json"))
	if err != nil {
		t.Fatalf("open services: %v", err)
	}
	history := store.NewHistoryRepository(filepath.Join(dir, "patients.json"), 1000)

	if _, err := services.SeedDoctors(ctx, doctors, "password123"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	m := metrics.New()
	rec := services.NewRecorder(activity, nil, m, zerolog.Nop())
	mapping := services.DefaultDiseaseMapping()
	authSvc := services.NewAuthService(doctors, rec)
	adminSvc := services.NewAdminService(doctors, history, activity, tokens, rec, "password123")
	resetSvc := services.NewPasswordResetService(doctors, tokens, rec, 0)
	catalogSvc := services.NewCatalogService(catalog, mapping, rec)
	diagnosisSvc := services.NewDiagnosisService(
		services.NewPredictor(&stubModel{class: 0, proba: []float64{0.8772, 0.1, 0.0228, 0}}, mapping),
		history, rec,
	)

	sessions := session.NewManager(session.NewMemoryStore(), config.SessionConfig{Secret: "test-secret"})
	guards := NewGuards(authSvc, sessions)
	exporter := report.NewExporter(stubRenderer{}, nil, zerolog.Nop())

	router := chi.NewRouter()
	router.Use(RequestLogger(zerolog.Nop()), sessions.Middleware)
	HealthRouter(router, NewHealthHandler(nil, diagnosisSvc.Available, exporter.Available))
	AuthRouter(router, NewAuthHandler(authSvc, resetSvc, sessions, true))
	DiagnosisRouter(router, NewDiagnosisHandler(diagnosisSvc, authSvc, exporter, m, sessions), guards)
	AdminRouter(router, NewAdminHandler(adminSvc, catalogSvc, sessions), guards)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testApp{server: server, doctors: doctors, history: history, admin: adminSvc}
}

func (a *testApp) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) get(t *testing.T, c *http.Client, path string) *http.Response {
	t.Helper()
	resp, err := c.Get(a.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testApp) post(t *testing.T, c *http.Client, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := c.PostForm(a.server.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testApp) postJSON(t *testing.T, c *http.Client, path, body string) *http.Response {
	t.Helper()
	resp, err := c.Post(a.server.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testApp) login(t *testing.T, c *http.Client, username, password string) {
	t.Helper()
	resp := a.post(t, c, "/login", url.Values{"username": {username}, "password": {password}})
	expectRedirect(t, resp, "/")
}

type pageBody struct {
	Page    string `json:"page"`
	Flashes []struct {
		Category string `json:"category"`
		Message  string `json:"message"`
	} `json:"flashes"`
	User *UserView      `json:"user"`
	Data json.RawMessage `json:"data"`
}

func decodePage(t *testing.T, resp *http.Response) pageBody {
	t.Helper()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var page pageBody
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	return page
}

func expectRedirect(t *testing.T, resp *http.Response, target string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != target {
		t.Fatalf("expected redirect to %s, got %s", target, got)
	}
}

func expectFlash(t *testing.T, page pageBody, message string) {
	t.Helper()
	for _, f := range page.Flashes {
		if f.Message == message {
			return
		}
	}
	t.Fatalf("flash %q not found in %+v", message, page.Flashes)
}

func diagnosisForm() url.Values {
	return url.Values{
		"fever":                {"1"},
		"cough":                {"0"},
		"fatigue":              {"1"},
		"difficulty_breathing": {"0"},
		"age":                  {"45"},
		"gender":               {"0"},
		"blood_pressure":       {"120"},
		"cholesterol_level":    {"1"},
		"LastName":             {"Alaoui"},
		"FirstName":            {"Sara"},
		"CNE":                  {"K130"},
	}
}

func TestLoginFlow(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	expectRedirect(t, app.get(t, c, "/"), "/login")
	expectFlash(t, decodePage(t, app.get(t, c, "/login")), msgLoginRequired)

	resp := app.post(t, c, "/login", url.Values{"username": {"dr.martin"}, "password": {"wrong"}})
	expectRedirect(t, resp, "/login")
	expectFlash(t, decodePage(t, app.get(t, c, "/login")), msgLoginFailed)

	app.login(t, c, "dr.martin", "password123")
	page := decodePage(t, app.get(t, c, "/"))
	expectFlash(t, page, msgLoginSuccess)
	if page.User == nil || page.User.Name != "Dr. Martin" || page.User.Specialty != "Pneumologue" || page.User.IsAdmin {
		t.Fatalf("unexpected user %+v", page.User)
	}
	var data IndexData
	if err := json.Unmarshal(page.Data, &data); err != nil || !data.ModelAvailable || !data.PDFAvailable {
		t.Fatalf("unexpected index data %s", page.Data)
	}

	if again := decodePage(t, app.get(t, c, "/")); len(again.Flashes) != 0 {
		t.Fatalf("flashes must be shown once, got %+v", again.Flashes)
	}

	expectRedirect(t, app.get(t, c, "/logout"), "/login")
	expectFlash(t, decodePage(t, app.get(t, c, "/login")), msgLoggedOut)
	expectRedirect(t, app.get(t, c, "/"), "/login")
}

func TestDisabledAccount(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	app.login(t, c, "dr.martin", "password123")

	if _, err := app.admin.ToggleStatus(context.Background(), "dr.smith", "dr.martin"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	expectRedirect(t, app.get(t, c, "/"), "/login")
	expectFlash(t, decodePage(t, app.get(t, c, "/login")), msgAccountDisabled)

	resp := app.post(t, c, "/login", url.Values{"username": {"dr.martin"}, "password": {"password123"}})
	expectRedirect(t, resp, "/login")
	expectFlash(t, decodePage(t, app.get(t, c, "/login")), msgAccountDisabled)
}

func TestAdminGuards(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	if resp := app.get(t, c, "/api/admin/recent-activity"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous API access, got %d", resp.StatusCode)
	}

	app.login(t, c, "dr.martin", "password123")
	expectRedirect(t, app.get(t, c, "/admin"), "/")
	expectFlash(t, decodePage(t, app.get(t, c, "/")), msgForbidden)

	resp := app.post(t, c, "/admin/toggle-status", url.Values{"username": {"dr.smith"}})
	expectRedirect(t, resp, "/")
	if smith, _ := app.doctors.Get(context.Background(), "dr.smith"); !smith.IsActive() {
		t.Fatal("non-admin must not change account state")
	}

	if resp := app.get(t, c, "/api/admin/recent-activity"); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if resp := app.postJSON(t, c, "/admin/add-service", `{"name":"Radiologie"}`); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestDiagnosisAndPDF(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	app.login(t, c, "dr.martin", "password123")

	page := decodePage(t, app.post(t, c, "/result", diagnosisForm()))
	if page.Page != "result" {
		t.Fatalf("unexpected page %q", page.Page)
	}
	var result struct {
		ID         string `json:"id"`
		Diagnostic struct {
			Maladie   string   `json:"maladie"`
			Confiance string   `json:"confiance"`
			Service   string   `json:"service"`
			Examens   []string `json:"examens"`
		} `json:"diagnostic"`
		Medecin struct {
			Nom string `json:"nom"`
		} `json:"medecin"`
	}
	if err := json.Unmarshal(page.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Diagnostic.Maladie != "Pneumonie" || result.Diagnostic.Service != "Service de Pneumologie" ||
		result.Diagnostic.Confiance != "87.7%" || len(result.Diagnostic.Examens) == 0 {
		t.Fatalf("unexpected diagnostic %+v", result.Diagnostic)
	}
	if result.Medecin.Nom != "Dr. Martin" {
		t.Fatalf("unexpected physician %+v", result.Medecin)
	}
	if n, _ := app.history.Count(context.Background()); n != 1 {
		t.Fatalf("expected 1 history record, got %d", n)
	}

	resp := app.post(t, c, "/download-pdf", url.Values{formFieldResultData: {string(page.Data)}})
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected pdf response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.HasPrefix(cd, `attachment; filename="diagnostic_Alaoui_`) {
		t.Fatalf("unexpected disposition %q", cd)
	}

	resp = app.get(t, c, "/history/"+result.ID+"/pdf")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history pdf: %d", resp.StatusCode)
	}

	other := app.client(t)
	app.login(t, other, "dr.dupont", "password123")
	expectRedirect(t, app.get(t, other, "/history/"+result.ID+"/pdf"), "/")
}

func TestDiagnosisFailures(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	app.login(t, c, "dr.martin", "password123")
	decodePage(t, app.get(t, c, "/"))

	form := diagnosisForm()
	form.Set("age", "quarante")
	expectRedirect(t, app.post(t, c, "/result", form), "/")
	expectFlash(t, decodePage(t, app.get(t, c, "/")), msgDiagnosisFailed)

	expectRedirect(t, app.post(t, c, "/download-pdf", url.Values{formFieldResultData: {"{broken"}}), "/")
	expectFlash(t, decodePage(t, app.get(t, c, "/")), msgPDFFailed)
}

func TestAdminDoctorManagement(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	app.login(t, c, "dr.smith", "password123")

	dash := decodePage(t, app.get(t, c, "/admin"))
	if dash.Page != "admin_dashboard" {
		t.Fatalf("unexpected page %q", dash.Page)
	}

	resp := app.post(t, c, "/admin/add-doctor", url.Values{"nom": {"Dr. Salma Haddad"}, "specialite": {"Pneumologue"}})
	expectRedirect(t, resp, "/admin")
	expectFlash(t, decodePage(t, app.get(t, c, "/admin")), msgFieldsRequired)

	resp = app.post(t, c, "/admin/add-doctor", url.Values{
		"nom": {"Dr. Salma Haddad"}, "specialite": {"Pneumologue"}, "email": {"salma@example.org"}, "password": {"pw"},
	})
	expectRedirect(t, resp, "/admin")
	expectFlash(t, decodePage(t, app.get(t, c, "/admin")), msgDoctorAdded)
	if _, err := app.doctors.Get(context.Background(), "dr.salma.haddad"); err != nil {
		t.Fatalf("doctor not created: %v", err)
	}

	resp = app.post(t, c, "/admin/add-doctor", url.Values{
		"username": {"dr.martin"}, "nom": {"X"}, "specialite": {"Y"}, "email": {"x@example.org"}, "password": {"pw"},
	})
	expectRedirect(t, resp, "/admin")
	expectFlash(t, decodePage(t, app.get(t, c, "/admin")), msgDoctorExists)

	expectRedirect(t, app.post(t, c, "/admin/toggle-status", url.Values{"username": {"dr.moreau"}}), "/admin")
	expectFlash(t, decodePage(t, app.get(t, c, "/admin")), "Statut du médecin dr.moreau mis à jour")
	if moreau, _ := app.doctors.Get(context.Background(), "dr.moreau"); moreau.IsActive() {
		t.Fatal("dr.moreau should be disabled")
	}

	expectRedirect(t, app.post(t, c, "/admin/reset-password", url.Values{"username": {"dr.salma.haddad"}}), "/admin")
	expectFlash(t, decodePage(t, app.get(t, c, "/admin")), "Mot de passe réinitialisé pour dr.salma.haddad")
	app.login(t, app.client(t), "dr.salma.haddad", "password123")

	resp = app.get(t, c, "/api/admin/recent-activity?limit=2")
	var activity RecentActivityResponse
	if err := json.NewDecoder(resp.Body).Decode(&activity); err != nil {
		t.Fatalf("decode activity: %v", err)
	}
	if len(activity.RecentActivity) != 2 || activity.RecentActivity[0].Title == "" {
		t.Fatalf("unexpected activity %+v", activity)
	}
}

func TestAdminServicesAPI(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	app.login(t, c, "dr.smith", "password123")

	resp := app.postJSON(t, c, "/admin/add-service", `{"name":"Service de Radiologie","code":"RAD"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil || created.ID == "" {
		t.Fatalf("decode created service: %v", err)
	}

	if resp := app.postJSON(t, c, "/admin/add-service", `{"name":"service de radiologie"}`); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if resp := app.post(t, c, "/admin/add-service", url.Values{"name": {"Service de Cardiologie"}}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("form body: expected 201, got %d", resp.StatusCode)
	}

	if resp := app.postJSON(t, c, "/admin/delete-service", `{"id":"`+created.ID+`"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	if resp := app.postJSON(t, c, "/admin/delete-service", `{"id":"`+created.ID+`"}`); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}

	if resp := app.post(t, c, "/admin/reload-services-from-mapping", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("reload: expected 200, got %d", resp.StatusCode)
	}
	var list ServicesResponse
	if err := json.NewDecoder(app.get(t, c, "/api/admin/services").Body).Decode(&list); err != nil {
		t.Fatalf("decode services: %v", err)
	}
	if len(list.Services) != 3 {
		t.Fatalf("expected catalog rebuilt from mapping, got %+v", list.Services)
	}
}

func TestPasswordRecovery(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	created, err := app.admin.AddDoctor(ctx, "dr.smith", services.AddDoctorInput{
		Name: "Dr. Nadia Fassi", Specialty: "Pneumologue", Email: "nadia@example.org", Password: "old",
	})
	if err != nil {
		t.Fatalf("add doctor: %v", err)
	}
	c := app.client(t)

	resp := app.post(t, c, "/forgot-password", url.Values{"username": {created.Username}, "email": {"other@example.org"}})
	expectRedirect(t, resp, "/forgot-password")
	expectFlash(t, decodePage(t, app.get(t, c, "/forgot-password")), msgResetRejected)

	page := decodePage(t, app.post(t, c, "/forgot-password", url.Values{"username": {created.ID}, "email": {"nadia@example.org"}}))
	var link ForgotPasswordResponse
	if err := json.Unmarshal(page.Data, &link); err != nil || !strings.HasPrefix(link.ResetURL, "/reset-password/") {
		t.Fatalf("unexpected reset link %s", page.Data)
	}

	decodePage(t, app.get(t, c, link.ResetURL))

	resp = app.post(t, c, link.ResetURL, url.Values{"password": {"new"}, "confirm_password": {"nope"}})
	expectRedirect(t, resp, link.ResetURL)
	expectFlash(t, decodePage(t, app.get(t, c, link.ResetURL)), msgResetMismatch)

	resp = app.post(t, c, link.ResetURL, url.Values{"password": {"new"}, "confirm_password": {"new"}})
	expectRedirect(t, resp, "/login")
	app.login(t, app.client(t), created.Username, "new")

	expectRedirect(t, app.get(t, c, link.ResetURL), "/forgot-password")
	resp = app.post(t, c, link.ResetURL, url.Values{"password": {"again"}, "confirm_password": {"again"}})
	expectRedirect(t, resp, "/forgot-password")
}

func TestReadyz(t *testing.T) {
	handler := NewHealthHandler(map[string]HealthChecker{
		"redis":    HealthCheckFunc(func(context.Context) error { return nil }),
		"postgres": HealthCheckFunc(func(context.Context) error { return errors.New("connection refused") }),
	}, func() bool { return false }, nil)

	rec := httptest.NewRecorder()
	handler.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Checks["redis"] != "ok" || body.Checks["postgres"] != "connection refused" || body.ModelAvailable {
		t.Fatalf("unexpected readiness %+v", body)
	}
}
