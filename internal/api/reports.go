package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mvidaller/facility-core/internal/audit"
	"github.com/mvidaller/facility-core/internal/monitor"
)

// reportChannel is the websocket channel report events are broadcast on.
const reportChannel = "report"

// updateReportRequest is the request body for PUT /companies/{company}/{site}/reports.
type updateReportRequest struct {
	Sensors monitor.Payload `json:"sensors"`
	Alarms  monitor.Payload `json:"alarms"`
}

// handleUpdateReport applies a new reading to a site.
//
// The site's previous state is archived, its current state overwritten,
// and the resulting report fanned out to websocket subscribers, the MQTT
// broker, and the telemetry sink. Fan-out is best-effort; only store
// failures fail the request, and a missing site never broadcasts.
func (s *Server) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	company := chi.URLParam(r, "company")
	siteID := chi.URLParam(r, "site")

	var req updateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	report, err := s.monitor.UpdateReport(r.Context(), company, siteID, req.Sensors, req.Alarms)
	if err != nil {
		if errors.Is(err, monitor.ErrSiteNotFound) {
			writeNotFound(w, "No site found")
			return
		}
		s.logger.Error("report update failed", "company", company, "site", siteID, "error", err)
		writeInternalError(w, "failed to update report")
		return
	}

	s.notifier.Broadcast(reportChannel, report)
	s.publishReport(report)
	s.writeTelemetry(report)

	s.recordAudit(r.Context(), &audit.AuditLog{
		Action:     "report",
		EntityType: "site",
		EntityID:   siteID,
		UserID:     userIDFromContext(r),
		Details:    map[string]any{"company": company, "key": report.Site.Key},
	})

	writeJSON(w, http.StatusOK, report)
}

// handleListReports returns one report per site with the latest state.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	company := chi.URLParam(r, "company")

	reports, err := s.monitor.ListReports(r.Context(), company)
	if err != nil {
		s.logger.Error("report listing failed", "company", company, "error", err)
		writeInternalError(w, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// handleSiteHistory returns a site's archived snapshots in append order.
func (s *Server) handleSiteHistory(w http.ResponseWriter, r *http.Request) {
	company := chi.URLParam(r, "company")
	siteID := chi.URLParam(r, "site")

	// Scope the lookup to the company before exposing history.
	if _, err := s.monitor.GetSite(r.Context(), company, siteID); err != nil {
		if errors.Is(err, monitor.ErrSiteNotFound) {
			writeNotFound(w, "No site found")
			return
		}
		s.logger.Error("site lookup failed", "company", company, "site", siteID, "error", err)
		writeInternalError(w, "failed to load site")
		return
	}

	history, err := s.monitor.History(r.Context(), siteID)
	if err != nil {
		s.logger.Error("history query failed", "site", siteID, "error", err)
		writeInternalError(w, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// publishReport fans the report out to the MQTT broker, if configured.
func (s *Server) publishReport(report *monitor.Report) {
	if s.mqtt == nil {
		return
	}

	payload, err := json.Marshal(report)
	if err != nil {
		s.logger.Warn("report marshal for mqtt failed", "site", report.Site.ID, "error", err)
		return
	}
	if err := s.mqtt.PublishReport(report.Site.Key, payload); err != nil {
		s.logger.Warn("mqtt report publish failed", "site", report.Site.ID, "error", err)
	}
}

// writeTelemetry records numeric sensors and boolean alarms to InfluxDB,
// if configured. Non-numeric payload values are skipped.
func (s *Server) writeTelemetry(report *monitor.Report) {
	if s.influx == nil {
		return
	}

	for sensor, val := range report.Sensors {
		switch v := val.(type) {
		case float64:
			s.influx.WriteSensorMetric(report.Site.Key, sensor, v)
		case bool:
			boolVal := 0.0
			if v {
				boolVal = 1.0
			}
			s.influx.WriteSensorMetric(report.Site.Key, sensor, boolVal)
		}
	}

	for alarm, val := range report.Alarms {
		if active, ok := val.(bool); ok {
			s.influx.WriteAlarmMetric(report.Site.Key, alarm, active)
		}
	}
}
