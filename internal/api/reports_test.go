package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mvidaller/facility-core/internal/monitor"
)

func TestUpdateReport(t *testing.T) {
	env := testServer(t)
	env.seedUser(t, "ops@example.com", "password123", "Jane")
	token := env.login(t, "ops@example.com", "password123")

	_, _, siteID := seededHierarchy(t, env, token)

	status, body := env.request(t, http.MethodPut,
		fmt.Sprintf("/companies/acme/%s/reports", siteID), token,
		map[string]any{
			"sensors": map[string]any{"temp": 24.1},
			"alarms":  map[string]any{"fire": true},
		})
	if status != http.StatusOK {
		t.Fatalf("update report returned %d: %s", status, body)
	}

	var report monitor.Report
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if report.Site.ID != siteID || report.Site.Key != "boiler-1" {
		t.Errorf("report site = %+v", report.Site)
	}
	if report.Zone != "North Wing" || report.Subzone != "Boiler Room" {
		t.Errorf("report zone/subzone = %q/%q", report.Zone, report.Subzone)
	}
	if report.Sensors["temp"] != 24.1 || report.Alarms["fire"] != true {
		t.Errorf("report payload = %v / %v", report.Sensors, report.Alarms)
	}

	// The broadcast carries the same report on the report channel.
	if env.notifier.count() != 1 {
		t.Fatalf("broadcasts = %d, want 1", env.notifier.count())
	}
	channel, payload := env.notifier.last()
	if channel != "report" {
		t.Errorf("channel = %q, want %q", channel, "report")
	}
	sent, ok := payload.(*monitor.Report)
	if !ok {
		t.Fatalf("payload type = %T", payload)
	}
	if sent.Site.ID != siteID {
		t.Errorf("broadcast site = %q, want %q", sent.Site.ID, siteID)
	}
}

func TestUpdateReport_UnknownSite(t *testing.T) {
	env := testServer(t)
	env.seedUser(t, "ops@example.com", "password123", "Jane")
	token := env.login(t, "ops@example.com", "password123")

	status, body := env.request(t, http.MethodPut, "/companies/acme/sit-missing/reports", token,
		map[string]any{"sensors": map[string]any{}, "alarms": map[string]any{}})
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", status, body)
	}

	var apiErr Error
	if err := json.Unmarshal(body, &apiErr); err != nil {
		t.Fatalf("decoding error: %v", err)
	}
	if apiErr.Message != "No site found" {
		t.Errorf("message = %q, want %q", apiErr.Message, "No site found")
	}
	if env.notifier.count() != 0 {
		t.Errorf("broadcasts = %d, want 0", env.notifier.count())
	}
}

func TestSiteHistory(t *testing.T) {
	env := testServer(t)
	env.seedUser(t, "ops@example.com", "password123", "Jane")
	token := env.login(t, "ops@example.com", "password123")

	_, _, siteID := seededHierarchy(t, env, token)

	for i := 0; i < 2; i++ {
		status, body := env.request(t, http.MethodPut,
			fmt.Sprintf("/companies/acme/%s/reports", siteID), token,
			map[string]any{
				"sensors": map[string]any{"temp": 22.0 + float64(i)},
				"alarms":  map[string]any{"fire": false},
			})
		if status != http.StatusOK {
			t.Fatalf("update %d returned %d: %s", i, status, body)
		}
	}

	status, body := env.request(t, http.MethodGet,
		fmt.Sprintf("/companies/acme/%s/reports", siteID), token, nil)
	if status != http.StatusOK {
		t.Fatalf("history returned %d: %s", status, body)
	}

	var history []monitor.Snapshot
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	// Oldest first: the seeded state, then the first update's state.
	if history[0].Sensors["temp"] != 21.5 {
		t.Errorf("first archive = %v", history[0].Sensors)
	}
	if history[1].Sensors["temp"] != 22.0 {
		t.Errorf("second archive = %v", history[1].Sensors)
	}
}

func TestSiteHistory_CompanyScoped(t *testing.T) {
	env := testServer(t)
	env.seedUser(t, "ops@example.com", "password123", "Jane")
	token := env.login(t, "ops@example.com", "password123")

	_, _, siteID := seededHierarchy(t, env, token)

	status, body := env.request(t, http.MethodGet,
		fmt.Sprintf("/companies/globex/%s/reports", siteID), token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", status, body)
	}

	var apiErr Error
	if err := json.Unmarshal(body, &apiErr); err != nil {
		t.Fatalf("decoding error: %v", err)
	}
	if apiErr.Message != "No site found" {
		t.Errorf("message = %q, want %q", apiErr.Message, "No site found")
	}
}

func TestListReports(t *testing.T) {
	env := testServer(t)
	env.seedUser(t, "ops@example.com", "password123", "Jane")
	token := env.login(t, "ops@example.com", "password123")

	_, _, siteID := seededHierarchy(t, env, token)

	status, body := env.request(t, http.MethodPut,
		fmt.Sprintf("/companies/acme/%s/reports", siteID), token,
		map[string]any{
			"sensors": map[string]any{"temp": 25.0},
			"alarms":  map[string]any{"fire": true},
		})
	if status != http.StatusOK {
		t.Fatalf("update returned %d: %s", status, body)
	}

	status, body = env.request(t, http.MethodGet, "/companies/acme/reports", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list reports returned %d: %s", status, body)
	}

	var reportsResp struct {
		Reports []monitor.Report `json:"reports"`
	}
	if err := json.Unmarshal(body, &reportsResp); err != nil {
		t.Fatalf("decoding reports: %v", err)
	}
	reports := reportsResp.Reports
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	if reports[0].Site.Key != "boiler-1" || reports[0].Sensors["temp"] != 25.0 {
		t.Errorf("report = %+v", reports[0])
	}
}

func TestWebSocketReportEvent(t *testing.T) {
	env := testServer(t)
	env.seedUser(t, "ops@example.com", "password123", "Jane")
	token := env.login(t, "ops@example.com", "password123")

	_, _, siteID := seededHierarchy(t, env, token)

	// Route broadcasts through the real hub for this test.
	env.server.notifier = env.server.hub

	status, body := env.request(t, http.MethodPost, "/auth/ws-ticket", token, nil)
	if status != http.StatusOK {
		t.Fatalf("ws-ticket returned %d: %s", status, body)
	}
	var ticketResp struct {
		Ticket string `json:"ticket"`
	}
	if err := json.Unmarshal(body, &ticketResp); err != nil {
		t.Fatalf("decoding ticket: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws?ticket=" + ticketResp.Ticket
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	sub := WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{"report"}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("sending subscribe: %v", err)
	}

	//nolint:errcheck // deadline bounds the test, errors surface on read
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ack WSMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("reading subscribe ack: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("ack = %+v", ack)
	}

	status, body = env.request(t, http.MethodPut,
		fmt.Sprintf("/companies/acme/%s/reports", siteID), token,
		map[string]any{
			"sensors": map[string]any{"temp": 30.2},
			"alarms":  map[string]any{"fire": true},
		})
	if status != http.StatusOK {
		t.Fatalf("update report returned %d: %s", status, body)
	}

	var event WSMessage
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("reading report event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != "report" {
		t.Fatalf("event = %+v", event)
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		t.Fatalf("re-marshalling payload: %v", err)
	}
	var report monitor.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		t.Fatalf("decoding report payload: %v", err)
	}
	if report.Site.ID != siteID || report.Sensors["temp"] != 30.2 {
		t.Errorf("report = %+v", report)
	}
}

func TestWebSocket_RejectsBadTicket(t *testing.T) {
	env := testServer(t)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws?ticket=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial should fail without a valid ticket")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake response = %+v", resp)
	}
}
