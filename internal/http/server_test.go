package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"outgo/internal/auth"
	"outgo/internal/core"
	"outgo/internal/storage"
)

// --- fakes ---

type fakeUsers struct {
	byName map[string]core.User
	hashes map[string]string
	nextID int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byName: make(map[string]core.User), hashes: make(map[string]string)}
}

func (f *fakeUsers) CreateUser(_ context.Context, username, passwordHash string) (core.User, error) {
	if _, ok := f.byName[username]; ok {
		return core.User{}, storage.ErrUsernameTaken
	}
	f.nextID++
	u := core.User{ID: f.nextID, Username: username, CreatedAt: time.Now()}
	f.byName[username] = u
	f.hashes[username] = passwordHash
	return u, nil
}

func (f *fakeUsers) GetUserByUsername(_ context.Context, username string) (core.User, string, error) {
	u, ok := f.byName[username]
	if !ok {
		return core.User{}, "", storage.ErrNotFound
	}
	return u, f.hashes[username], nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id int64) (core.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return core.User{}, storage.ErrNotFound
}

type fakeSessions struct {
	sessions map[string]auth.Session
	nextID   int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]auth.Session)}
}

func (f *fakeSessions) Create(userID int64, username string) (auth.Session, error) {
	f.nextID++
	s := auth.Session{
		Token:     fmt.Sprintf("token-%d", f.nextID),
		UserID:    userID,
		Username:  username,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	f.sessions[s.Token] = s
	return s, nil
}

func (f *fakeSessions) Get(token string) (auth.Session, bool, error) {
	s, ok := f.sessions[token]
	return s, ok, nil
}

func (f *fakeSessions) Delete(token string) error {
	delete(f.sessions, token)
	return nil
}

type fakeExpenses struct {
	byUser map[int64][]core.Expense
	nextID int64
	status core.BudgetStatus
}

func newFakeExpenses() *fakeExpenses {
	return &fakeExpenses{byUser: make(map[int64][]core.Expense)}
}

func (f *fakeExpenses) Create(_ context.Context, user core.User, e core.Expense) (int64, core.BudgetStatus, error) {
	f.nextID++
	e.ID = f.nextID
	f.byUser[user.ID] = append(f.byUser[user.ID], e)
	return e.ID, f.status, nil
}

func (f *fakeExpenses) Update(_ context.Context, user core.User, e core.Expense) (core.BudgetStatus, error) {
	for i, existing := range f.byUser[user.ID] {
		if existing.ID == e.ID {
			f.byUser[user.ID][i] = e
			return f.status, nil
		}
	}
	return core.BudgetStatus{}, storage.ErrNotFound
}

func (f *fakeExpenses) Delete(_ context.Context, userID, id int64) error {
	for i, existing := range f.byUser[userID] {
		if existing.ID == id {
			f.byUser[userID] = append(f.byUser[userID][:i], f.byUser[userID][i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeExpenses) List(_ context.Context, userID int64, _ core.Filter) ([]core.Expense, error) {
	return f.byUser[userID], nil
}

type fakeBudgets struct {
	amounts map[string]int64
}

func newFakeBudgets() *fakeBudgets {
	return &fakeBudgets{amounts: make(map[string]int64)}
}

func (f *fakeBudgets) key(userID int64, month core.MonthKey) string {
	return fmt.Sprintf("%d:%s", userID, month)
}

func (f *fakeBudgets) Set(_ context.Context, userID int64, month core.MonthKey, amount core.Money) error {
	f.amounts[f.key(userID, month)] = amount.Cents
	return nil
}

func (f *fakeBudgets) Get(_ context.Context, userID int64, month core.MonthKey) (core.Budget, bool, error) {
	cents, ok := f.amounts[f.key(userID, month)]
	return core.Budget{Month: month, Amount: core.Money{Cents: cents}}, ok, nil
}

func (f *fakeBudgets) Status(_ context.Context, userID int64, month core.MonthKey) (core.BudgetStatus, error) {
	cents, ok := f.amounts[f.key(userID, month)]
	return core.EvaluateBudget(month, ok, cents, 0), nil
}

type fakeReports struct {
	summaryCalls int
	summary      core.PeriodSummary
	shares       []core.CategoryShare
	daily        []core.DailyTotal
	monthly      []core.MonthlyTotal
}

func (f *fakeReports) Summary(context.Context, int64, core.Filter) (core.PeriodSummary, error) {
	f.summaryCalls++
	return f.summary, nil
}

func (f *fakeReports) Categories(context.Context, int64, core.Filter) ([]core.CategoryShare, error) {
	return f.shares, nil
}

func (f *fakeReports) Daily(context.Context, int64, core.Filter) ([]core.DailyTotal, error) {
	return f.daily, nil
}

func (f *fakeReports) Monthly(context.Context, int64, core.Filter) ([]core.MonthlyTotal, error) {
	return f.monthly, nil
}

// --- harness ---

type testEnv struct {
	server   *Server
	users    *fakeUsers
	sessions *fakeSessions
	expenses *fakeExpenses
	budgets  *fakeBudgets
	reports  *fakeReports
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:    newFakeUsers(),
		sessions: newFakeSessions(),
		expenses: newFakeExpenses(),
		budgets:  newFakeBudgets(),
		reports:  &fakeReports{},
	}
	env.server = NewServer(":0", Deps{
		Users:    env.users,
		Sessions: env.sessions,
		Expenses: env.expenses,
		Budgets:  env.budgets,
		Reports:  env.reports,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = env.server.Shutdown(ctx)
	})
	return env
}

// login registers and authenticates a user, returning the session cookie.
func (env *testEnv) login(t *testing.T, username string) (*http.Cookie, core.User) {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u, err := env.users.CreateUser(context.Background(), username, hash)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	session, err := env.sessions.Create(u.ID, u.Username)
	if err != nil {
		t.Fatalf("sessions.Create: %v", err)
	}
	return &http.Cookie{Name: SessionCookieName, Value: session.Token}, u
}

func (env *testEnv) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.10:1234"
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	env.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

// --- tests ---

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}

	rec = env.do(http.MethodGet, "/readyz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}
}

func TestReadyzFailure(t *testing.T) {
	env := newTestEnv(t)
	env.server.deps.Ready = func(context.Context) error { return errors.New("db down") }

	rec := env.do(http.MethodGet, "/readyz", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing check = %d", rec.Code)
	}
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/signup",
		map[string]string{"username": "alice", "password": "password123"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["username"] != "alice" {
		t.Fatalf("body = %v", body)
	}

	// Duplicate username.
	rec = env.do(http.MethodPost, "/api/signup",
		map[string]string{"username": "alice", "password": "password123"}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup = %d", rec.Code)
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"short username", "ab", "password123"},
		{"bad characters", "al ice!", "password123"},
		{"short password", "alice", "pw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/signup",
				map[string]string{"username": tt.username, "password": tt.password}, nil)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("signup = %d", rec.Code)
			}
		})
	}

	rec := env.do(http.MethodGet, "/api/signup", nil, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET signup = %d", rec.Code)
	}
}

func TestLoginAndLogout(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/signup",
		map[string]string{"username": "bob", "password": "password123"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup = %d", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/login",
		map[string]string{"username": "bob", "password": "password123"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body.String())
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("no session cookie set")
	}
	if !sessionCookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}

	rec = env.do(http.MethodGet, "/api/me", nil, sessionCookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("me = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["username"] != "bob" {
		t.Fatalf("me body = %v", body)
	}

	rec = env.do(http.MethodPost, "/api/logout", nil, sessionCookie)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", rec.Code)
	}

	rec = env.do(http.MethodGet, "/api/me", nil, sessionCookie)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d", rec.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	env.do(http.MethodPost, "/api/signup",
		map[string]string{"username": "carol", "password": "password123"}, nil)

	rec := env.do(http.MethodPost, "/api/login",
		map[string]string{"username": "carol", "password": "wrongwrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password = %d", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/login",
		map[string]string{"username": "nobody", "password": "password123"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user = %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{
		"/api/me", "/api/expenses", "/api/budget", "/api/budget/status",
		"/api/reports/summary", "/api/export/csv",
	} {
		rec := env.do(http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without session = %d, want 401", path, rec.Code)
		}
	}
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/categories", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("categories = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	cats, ok := body["categories"].([]any)
	if !ok || len(cats) != len(core.DefaultCategories) {
		t.Fatalf("categories body = %v", body)
	}
}

func TestExpenseCRUDOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	cookie, _ := env.login(t, "dave")

	rec := env.do(http.MethodPost, "/api/expenses", map[string]string{
		"date": "2025-03-14", "category": "Food", "amount": "12.50", "note": "lunch",
	}, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	id := int64(body["id"].(float64))
	if id == 0 {
		t.Fatalf("body = %v", body)
	}
	if _, ok := body["budget_status"]; !ok {
		t.Fatalf("create response missing budget_status: %v", body)
	}

	rec = env.do(http.MethodGet, "/api/expenses", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	listBody := decodeBody(t, rec)
	expenses := listBody["expenses"].([]any)
	if len(expenses) != 1 {
		t.Fatalf("expenses = %v", expenses)
	}
	first := expenses[0].(map[string]any)
	if first["amount"] != "12.50" || first["category"] != "Food" {
		t.Fatalf("expense = %v", first)
	}

	rec = env.do(http.MethodPut, "/api/expenses", map[string]any{
		"id": id, "date": "2025-03-15", "category": "Groceries", "amount": "9.99",
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodDelete, "/api/expenses", map[string]any{"id": id}, cookie)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}

	rec = env.do(http.MethodDelete, "/api/expenses", map[string]any{"id": id}, cookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing = %d", rec.Code)
	}
}

func TestExpenseValidationOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	cookie, _ := env.login(t, "erin")

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad date", map[string]string{"date": "14/03/2025", "category": "Food", "amount": "10"}},
		{"bad amount", map[string]string{"date": "2025-03-14", "category": "Food", "amount": "-5"}},
		{"zero amount", map[string]string{"date": "2025-03-14", "category": "Food", "amount": "0"}},
		{"empty category", map[string]string{"date": "2025-03-14", "category": "", "amount": "10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/expenses", tt.body, cookie)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
			}
		})
	}

	rec := env.do(http.MethodPut, "/api/expenses", map[string]any{
		"id": 999, "date": "2025-03-14", "category": "Food", "amount": "10",
	}, cookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("update unknown id = %d", rec.Code)
	}
}

func TestBudgetEndpoints(t *testing.T) {
	env := newTestEnv(t)
	cookie, _ := env.login(t, "frank")

	rec := env.do(http.MethodGet, "/api/budget?month=2025-03", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("get budget = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["amount"] != nil {
		t.Fatalf("unset budget body = %v", body)
	}

	rec = env.do(http.MethodPut, "/api/budget",
		map[string]string{"month": "2025-03", "amount": "500.00"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("put budget = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/api/budget?month=2025-03", nil, cookie)
	if body := decodeBody(t, rec); body["amount"] != "500.00" {
		t.Fatalf("budget after set = %v", body)
	}

	rec = env.do(http.MethodGet, "/api/budget/status?month=2025-03", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["has_budget"] != true || body["level"] != core.BudgetOK {
		t.Fatalf("status body = %v", body)
	}

	rec = env.do(http.MethodPut, "/api/budget",
		map[string]string{"month": "bad", "amount": "10"}, cookie)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad month = %d", rec.Code)
	}

	// Zero budget is accepted.
	rec = env.do(http.MethodPut, "/api/budget",
		map[string]string{"month": "2025-04", "amount": "0"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("zero budget = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReportSummaryCaching(t *testing.T) {
	env := newTestEnv(t)
	cookie, user := env.login(t, "grace")

	top := core.CategoryTotal{Category: "Food", Amount: core.Money{Cents: 1500}}
	env.reports.summary = core.PeriodSummary{
		Total:        core.Money{Cents: 4000},
		AvgDaily:     core.Money{Cents: 400},
		Transactions: 3,
		TopCategory:  &top,
	}

	rec := env.do(http.MethodGet, "/api/reports/summary?start=2025-03-01&end=2025-03-10", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["total"] != "40.00" || body["transactions"] != float64(3) {
		t.Fatalf("summary body = %v", body)
	}
	tc := body["top_category"].(map[string]any)
	if tc["category"] != "Food" || tc["amount"] != "15.00" {
		t.Fatalf("top category = %v", tc)
	}

	// Second identical request is served from cache.
	env.do(http.MethodGet, "/api/reports/summary?start=2025-03-01&end=2025-03-10", nil, cookie)
	if env.reports.summaryCalls != 1 {
		t.Fatalf("summaryCalls = %d, want 1", env.reports.summaryCalls)
	}

	// A write invalidates the cached report.
	env.server.invalidateReports(user.ID)
	env.do(http.MethodGet, "/api/reports/summary?start=2025-03-01&end=2025-03-10", nil, cookie)
	if env.reports.summaryCalls != 2 {
		t.Fatalf("summaryCalls after invalidation = %d, want 2", env.reports.summaryCalls)
	}
}

func TestReportCategories(t *testing.T) {
	env := newTestEnv(t)
	cookie, _ := env.login(t, "henry")

	env.reports.shares = []core.CategoryShare{
		{Category: "Food", Amount: core.Money{Cents: 4000}, Width: 100},
		{Category: "Travel", Amount: core.Money{Cents: 1000}, Width: 25},
	}

	rec := env.do(http.MethodGet, "/api/reports/categories", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("categories = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	cats := body["categories"].([]any)
	if len(cats) != 2 {
		t.Fatalf("categories = %v", cats)
	}
	first := cats[0].(map[string]any)
	if first["category"] != "Food" || first["width"] != float64(100) {
		t.Fatalf("first = %v", first)
	}
}

func TestReportFilterValidation(t *testing.T) {
	env := newTestEnv(t)
	cookie, _ := env.login(t, "ivy")

	rec := env.do(http.MethodGet, "/api/reports/summary?start=bogus", nil, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad start = %d", rec.Code)
	}

	rec = env.do(http.MethodGet, "/api/reports/summary?start=2025-03-10&end=2025-03-01", nil, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted range = %d", rec.Code)
	}
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t)
	cookie, user := env.login(t, "jack")

	d, _ := core.ParseDate("2025-03-01")
	env.expenses.byUser[user.ID] = []core.Expense{
		{ID: 1, Date: d, Category: "Food", Amount: core.Money{Cents: 1250}, Note: "lunch"},
	}

	rec := env.do(http.MethodGet, "/api/export/csv?start=2025-03-01&end=2025-03-31", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "jack_expenses_2025-03-01_to_2025-03-31.csv") {
		t.Fatalf("content disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "1,2025-03-01,Food,12.50,lunch") {
		t.Fatalf("csv body = %q", rec.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/categories", nil, nil)
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing X-Content-Type-Options")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("missing X-Frame-Options")
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t)

	var last int
	for i := 0; i < 61; i++ {
		rec := env.do(http.MethodPost, "/api/login",
			map[string]string{"username": "nobody", "password": "password123"}, nil)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("61st mutating request = %d, want 429", last)
	}

	// GET requests are not rate limited.
	rec := env.do(http.MethodGet, "/api/categories", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET after limit = %d", rec.Code)
	}
}
