package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mvidaller/facility-core/internal/audit"
	"github.com/mvidaller/facility-core/internal/auth"
	"github.com/mvidaller/facility-core/internal/infrastructure/config"
	"github.com/mvidaller/facility-core/internal/infrastructure/logging"
	"github.com/mvidaller/facility-core/internal/monitor"
)

const testSecret = "api-test-shared-secret-0123456789ab"

// recorderNotifier captures broadcasts for assertions.
type recorderNotifier struct {
	mu       sync.Mutex
	channels []string
	payloads []any
}

func (n *recorderNotifier) Broadcast(channel string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, channel)
	n.payloads = append(n.payloads, payload)
}

func (n *recorderNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.channels)
}

func (n *recorderNotifier) last() (string, any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.channels) == 0 {
		return "", nil
	}
	return n.channels[len(n.channels)-1], n.payloads[len(n.payloads)-1]
}

// setupTestDB creates a temp SQLite database with the full schema applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "api-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			surname TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			access_level INTEGER NOT NULL DEFAULT 0,
			company TEXT NOT NULL,
			created_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE guests (
			id TEXT PRIMARY KEY,
			token TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL,
			company TEXT NOT NULL,
			access_level INTEGER NOT NULL DEFAULT 0,
			consumed INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE zones (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			name TEXT NOT NULL,
			positions TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE subzones (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			name TEXT NOT NULL,
			positions TEXT NOT NULL DEFAULT '[]',
			zone_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (zone_id) REFERENCES zones(id) ON DELETE CASCADE
		) STRICT;

		CREATE TABLE sites (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			key TEXT NOT NULL,
			name TEXT NOT NULL,
			position TEXT NOT NULL DEFAULT '[]',
			sensors TEXT NOT NULL DEFAULT '{}',
			alarms TEXT NOT NULL DEFAULT '{}',
			timestamp TEXT NOT NULL,
			zone_id TEXT NOT NULL,
			subzone_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (zone_id) REFERENCES zones(id) ON DELETE CASCADE,
			FOREIGN KEY (subzone_id) REFERENCES subzones(id) ON DELETE CASCADE
		) STRICT;

		CREATE TABLE site_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			site_id TEXT NOT NULL,
			sensors TEXT NOT NULL DEFAULT '{}',
			alarms TEXT NOT NULL DEFAULT '{}',
			timestamp TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (site_id) REFERENCES sites(id) ON DELETE CASCADE
		) STRICT;

		CREATE TABLE audit_logs (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			details TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}

	return db
}

// testEnv bundles the pieces most API tests need.
type testEnv struct {
	server   *Server
	ts       *httptest.Server
	db       *sql.DB
	notifier *recorderNotifier
	users    *auth.SQLiteUserRepository
	guests   *auth.SQLiteGuestRepository
	verifier *auth.PepperedVerifier
}

// testServer creates a Server backed by a temp SQLite database and an
// httptest listener. The websocket hub is wired so /ws works too.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	verifier := auth.NewPepperedVerifier(testSecret)
	users := auth.NewUserRepository(db)
	guests := auth.NewGuestRepository(db)
	notifier := &recorderNotifier{}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			Secret:   testSecret,
			TokenTTL: 15,
		},
		Logger:   log,
		Users:    users,
		Guests:   guests,
		Verifier: verifier,
		Monitor:  monitor.NewSQLiteRepository(db),
		Audit:    audit.NewSQLiteRepository(db),
		DB:       db,
		Notifier: notifier,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	srv.hub = NewHub(srv.wsCfg, log)
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return &testEnv{
		server:   srv,
		ts:       ts,
		db:       db,
		notifier: notifier,
		users:    users,
		guests:   guests,
		verifier: verifier,
	}
}

// seedUser inserts a user with the given email and password.
func (e *testEnv) seedUser(t *testing.T, email, password, name string) *auth.User {
	t.Helper()

	hash, err := e.verifier.Hash(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	user := &auth.User{
		Email:        email,
		Name:         name,
		Surname:      "Operator",
		PasswordHash: hash,
		AccessLevel:  2,
		Company:      "acme",
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return user
}

// login authenticates and returns a bearer token.
func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()

	status, body := e.request(t, http.MethodPost, "/authenticate", "",
		map[string]any{"email": email, "password": password})
	if status != http.StatusOK {
		t.Fatalf("authenticate returned %d: %s", status, body)
	}

	var resp authenticateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decoding authenticate response: %v", err)
	}
	return resp.Token
}

// request performs an HTTP request against the test server and returns
// the status code and raw body.
func (e *testEnv) request(t *testing.T, method, path, token string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	return resp.StatusCode, data
}

func TestHealth(t *testing.T) {
	env := testServer(t)

	status, body := env.request(t, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("health returned %d: %s", status, body)
	}

	var resp map[string]any
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decoding health response: %v", err)
	}
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("health = %v", resp)
	}
}

func TestMetrics_RequiresAuth(t *testing.T) {
	env := testServer(t)

	status, _ := env.request(t, http.MethodGet, "/metrics", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("metrics without token returned %d, want 401", status)
	}

	env.seedUser(t, "ops@example.com", "password123", "Jane")
	token := env.login(t, "ops@example.com", "password123")

	status, body := env.request(t, http.MethodGet, "/metrics", token, nil)
	if status != http.StatusOK {
		t.Fatalf("metrics returned %d: %s", status, body)
	}

	var metrics SystemMetrics
	if err := json.Unmarshal(body, &metrics); err != nil {
		t.Fatalf("decoding metrics: %v", err)
	}
	if metrics.Runtime.Goroutines <= 0 {
		t.Error("metrics should report goroutine count")
	}
	if metrics.Version != "test" {
		t.Errorf("metrics version = %q, want %q", metrics.Version, "test")
	}
}

func seededHierarchy(t *testing.T, env *testEnv, token string) (zoneID, subzoneID, siteID string) {
	t.Helper()

	status, body := env.request(t, http.MethodPost, "/companies/acme/zones", token,
		map[string]any{"name": "North Wing", "positions": [][]float64{{1, 2}, {3, 4}}})
	if status != http.StatusOK {
		t.Fatalf("create zone returned %d: %s", status, body)
	}
	var zoneResp struct {
		Zone monitor.Zone `json:"zone"`
	}
	if err := json.Unmarshal(body, &zoneResp); err != nil {
		t.Fatalf("decoding zone: %v", err)
	}
	zone := zoneResp.Zone

	status, body = env.request(t, http.MethodPost, fmt.Sprintf("/companies/acme/%s/subzones", zone.ID), token,
		map[string]any{"name": "Boiler Room", "positions": [][]float64{{1.5, 2.5}}})
	if status != http.StatusOK {
		t.Fatalf("create subzone returned %d: %s", status, body)
	}
	var subzoneResp struct {
		Subzone monitor.Subzone `json:"subzone"`
	}
	if err := json.Unmarshal(body, &subzoneResp); err != nil {
		t.Fatalf("decoding subzone: %v", err)
	}
	subzone := subzoneResp.Subzone

	status, body = env.request(t, http.MethodPost,
		fmt.Sprintf("/companies/acme/%s/%s/sites", zone.ID, subzone.ID), token,
		map[string]any{
			"key":      "boiler-1",
			"name":     "Boiler 1",
			"position": []float64{1.6, 2.6},
			"sensors":  map[string]any{"temp": 21.5},
			"alarms":   map[string]any{"fire": false},
		})
	if status != http.StatusOK {
		t.Fatalf("create site returned %d: %s", status, body)
	}
	var siteResp struct {
		Site monitor.Site `json:"site"`
	}
	if err := json.Unmarshal(body, &siteResp); err != nil {
		t.Fatalf("decoding site: %v", err)
	}
	site := siteResp.Site

	return zone.ID, subzone.ID, site.ID
}
