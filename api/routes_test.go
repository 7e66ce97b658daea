package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/jobcard/api"
	"github.com/garnizeh/jobcard/internal/config"
	"github.com/garnizeh/jobcard/internal/idgen"
	"github.com/garnizeh/jobcard/internal/notify"
	"github.com/garnizeh/jobcard/internal/repository/sqlite"
	"github.com/garnizeh/jobcard/internal/service"
	"github.com/garnizeh/jobcard/internal/syncer"
	"github.com/garnizeh/jobcard/pkg/models"
	"github.com/garnizeh/jobcard/pkg/repository/mock"
)

// switchProbe is a connectivity probe the test flips by hand.
type switchProbe struct{ online atomic.Bool }

func (p *switchProbe) IsOnline(context.Context) bool { return p.online.Load() }

type testEnv struct {
	srv    *httptest.Server
	probe  *switchProbe
	remote *mock.Remote
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	local, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "local.db"), nil)
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}

	remote := mock.NewRemote()
	remote.AddDepartment(1, "IT")
	remote.AddDepartment(2, "HR")
	remote.Users = []models.User{{EmpID: "E1", Password: "hunter2", Name: "Ada", DepartmentName: "IT", CanLogin: true}}
	remote.Entities["Device"] = map[int64]string{3: "Device: SN3 (Dell)"}

	p := &switchProbe{}
	p.online.Store(true)
	feed := notify.NewFeed(50, nil)
	clock := func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local) }
	gen := idgen.New(remote, local, p, "abcd", idgen.WithClock(clock))
	svc := service.New(local, remote, gen, p, service.WithNotifier(feed), service.WithClock(clock))
	engine := syncer.New(local, remote, p, "abcd", syncer.WithNotifier(feed), syncer.WithHashCost(bcrypt.MinCost))

	cfg := &config.Config{JWTSecret: "testsecret", TokenDuration: time.Hour}
	router, err := api.SetupRoutes(cfg, "test", "now", api.Deps{
		Service:  svc,
		Engine:   engine,
		Events:   feed,
		DeviceID: "abcd",
	})
	if err != nil {
		t.Fatalf("SetupRoutes: %v", err)
	}

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		local.Close()
	})
	return &testEnv{srv: srv, probe: p, remote: remote}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			raw, _ := json.Marshal(b)
			r = bytes.NewReader(raw)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	return res.StatusCode, data
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	if code, body := e.do(t, http.MethodPost, "/v1/directory/sync", "", nil); code != http.StatusOK {
		t.Fatalf("directory sync: %d %s", code, body)
	}
	code, body := e.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"emp_id": "E1", "password": "hunter2"})
	if code != http.StatusOK {
		t.Fatalf("login: %d %s", code, body)
	}
	var ar struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &ar); err != nil || ar.Token == "" {
		t.Fatalf("login response: %v %s", err, body)
	}
	return ar.Token
}

func TestJobCardFlow(t *testing.T) {
	env := setupServer(t)
	token := env.login(t)

	if code, _ := env.do(t, http.MethodGet, "/v1/jobcards", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}

	// offline creation gets a device-qualified job number
	env.probe.online.Store(false)
	code, body := env.do(t, http.MethodPost, "/v1/jobcards", token, map[string]any{
		"title": "Printer jam", "description": "Tray 2", "department_id": 1, "entity_type": "Device", "entity_id": 3,
	})
	if code != http.StatusCreated {
		t.Fatalf("create: %d %s", code, body)
	}
	var created models.JobCard
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.JobNumber != "IT20250101-0001-Dabcd" {
		t.Fatalf("unexpected job number %q", created.JobNumber)
	}

	if code, body := env.do(t, http.MethodPost, "/v1/sync/upload", token, nil); code != http.StatusServiceUnavailable {
		t.Fatalf("offline upload: expected 503 got %d %s", code, body)
	}

	env.probe.online.Store(true)
	code, body = env.do(t, http.MethodPost, "/v1/sync/upload", token, nil)
	if code != http.StatusOK {
		t.Fatalf("upload: %d %s", code, body)
	}
	var rep syncer.Report
	if err := json.Unmarshal(body, &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Uploaded != 1 {
		t.Fatalf("expected 1 upload, got %+v", rep)
	}

	code, body = env.do(t, http.MethodGet, "/v1/jobcards?status=Open", token, nil)
	if code != http.StatusOK {
		t.Fatalf("list: %d %s", code, body)
	}
	var list struct {
		Total int              `json:"total"`
		Items []models.JobCard `json:"items"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 1 || list.Items[0].JobNumber != "IT20250101-0001" {
		t.Fatalf("unexpected list %+v", list)
	}

	code, body = env.do(t, http.MethodGet, fmt.Sprintf("/v1/jobcards/%d", created.ID), token, nil)
	if code != http.StatusOK || !strings.Contains(string(body), "Device: SN3 (Dell)") {
		t.Fatalf("get: %d %s", code, body)
	}
	if code, _ := env.do(t, http.MethodGet, "/v1/jobcards/42", token, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown card, got %d", code)
	}
	if code, _ := env.do(t, http.MethodGet, "/v1/jobcards?status=Paused", token, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", code)
	}

	var count struct {
		Open int64 `json:"open"`
	}
	code, body = env.do(t, http.MethodGet, "/v1/jobcards/open-count", token, nil)
	if code != http.StatusOK {
		t.Fatalf("open-count: %d %s", code, body)
	}
	if err := json.Unmarshal(body, &count); err != nil || count.Open != 1 {
		t.Fatalf("expected 1 open card centrally, got %s (%v)", body, err)
	}

	env.probe.online.Store(false)
	code, body = env.do(t, http.MethodGet, "/v1/jobcards/open-count", token, nil)
	if code != http.StatusOK {
		t.Fatalf("offline open-count: %d %s", code, body)
	}
	if err := json.Unmarshal(body, &count); err != nil || count.Open != 0 {
		t.Fatalf("expected 0 while offline, got %s (%v)", body, err)
	}
}

func TestCreateJobCardValidation(t *testing.T) {
	env := setupServer(t)
	token := env.login(t)

	cases := map[string]any{
		"not json":        "{",
		"missing title":   map[string]any{"description": "d", "department_id": 1},
		"extra field":     map[string]any{"title": "t", "description": "d", "department_id": 1, "status": "Done"},
		"bad entity type": map[string]any{"title": "t", "description": "d", "department_id": 1, "entity_type": "Boat"},
		"blank title":     map[string]any{"title": "   ", "description": "d", "department_id": 1},
		"unknown dept":    map[string]any{"title": "t", "description": "d", "department_id": 99},
	}
	for name, body := range cases {
		if code, data := env.do(t, http.MethodPost, "/v1/jobcards", token, body); code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d %s", name, code, data)
		}
	}
}

func TestSyncEndpoints(t *testing.T) {
	env := setupServer(t)
	token := env.login(t)
	env.remote.JobCards = []models.JobCard{{
		ID: 1202412310001, JobNumber: "IT20241231-0001", Title: "a", Description: "b",
		Status: models.StatusStarted, CreatedDate: time.Date(2024, 12, 31, 8, 0, 0, 0, time.Local), DepartmentName: "IT",
	}}

	code, body := env.do(t, http.MethodPost, "/v1/sync/download", token, nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"synced":1`) {
		t.Fatalf("download: %d %s", code, body)
	}

	code, body = env.do(t, http.MethodGet, "/v1/sync/status", token, nil)
	if code != http.StatusOK {
		t.Fatalf("status: %d %s", code, body)
	}
	var st struct {
		Online   bool   `json:"online"`
		Busy     bool   `json:"busy"`
		DeviceID string `json:"device_id"`
	}
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.Online || st.Busy || st.DeviceID != "abcd" {
		t.Fatalf("unexpected status %+v", st)
	}

	code, body = env.do(t, http.MethodGet, "/v1/departments", token, nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"name":"IT"`) || strings.Contains(string(body), `"name":"HR"`) {
		t.Fatalf("departments: %d %s", code, body)
	}

	code, body = env.do(t, http.MethodGet, "/v1/entities/Device/3", token, nil)
	if code != http.StatusOK || !strings.Contains(string(body), "SN3") {
		t.Fatalf("entity: %d %s", code, body)
	}

	code, body = env.do(t, http.MethodGet, "/v1/events", token, nil)
	if code != http.StatusOK {
		t.Fatalf("events: %d %s", code, body)
	}
	var evs []notify.Event
	if err := json.Unmarshal(body, &evs); err != nil || len(evs) == 0 {
		t.Fatalf("expected buffered events: %v %s", err, body)
	}
	last := evs[len(evs)-1].Seq
	code, body = env.do(t, http.MethodGet, fmt.Sprintf("/v1/events?since=%d", last), token, nil)
	if code != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("events since last: %d %s", code, body)
	}

	env.probe.online.Store(false)
	if code, _ := env.do(t, http.MethodPost, "/v1/sync/download", token, nil); code != http.StatusServiceUnavailable {
		t.Fatalf("offline download: expected 503 got %d", code)
	}
}
