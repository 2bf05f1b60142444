package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mvidaller/facility-core/internal/audit"
	"github.com/mvidaller/facility-core/internal/monitor"
)

// createZoneRequest is the request body for POST /companies/{company}/zones.
// A subzones array is accepted for wire compatibility but membership is
// derived from subzone back-references, so it is ignored.
type createZoneRequest struct {
	Name      string             `json:"name"`
	Positions []monitor.Position `json:"positions"`
	Subzones  []string           `json:"subzones"`
}

// createSubzoneRequest is the request body for subzone creation.
type createSubzoneRequest struct {
	Name      string             `json:"name"`
	Positions []monitor.Position `json:"positions"`
	Sites     []string           `json:"sites"`
}

// createSiteRequest is the request body for site creation.
type createSiteRequest struct {
	Key      string           `json:"key"`
	Name     string           `json:"name"`
	Position monitor.Position `json:"position"`
	Sensors  monitor.Payload  `json:"sensors"`
	Alarms   monitor.Payload  `json:"alarms"`
}

// handleCreateZone creates a zone within the company.
func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	company := chi.URLParam(r, "company")

	var req createZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	zone := &monitor.Zone{
		Company:   company,
		Name:      req.Name,
		Positions: req.Positions,
	}
	if err := s.monitor.CreateZone(r.Context(), zone); err != nil {
		s.logger.Error("zone creation failed", "company", company, "error", err)
		writeInternalError(w, "failed to create zone")
		return
	}

	s.recordAudit(r.Context(), &audit.AuditLog{
		Action:     "create",
		EntityType: "zone",
		EntityID:   zone.ID,
		UserID:     userIDFromContext(r),
		Details:    map[string]any{"company": company, "name": zone.Name},
	})

	writeJSON(w, http.StatusOK, map[string]any{"zone": zone})
}

// handleListZones lists the company's zones with derived subzone IDs.
func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	company := chi.URLParam(r, "company")

	zones, err := s.monitor.ListZones(r.Context(), company)
	if err != nil {
		s.logger.Error("zone listing failed", "company", company, "error", err)
		writeInternalError(w, "failed to list zones")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": zones})
}

// handleCreateSubzone creates a subzone under a parent zone.
func (s *Server) handleCreateSubzone(w http.ResponseWriter, r *http.Request) {
	company := chi.URLParam(r, "company")
	zoneID := chi.URLParam(r, "zone")

	var req createSubzoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	subzone := &monitor.Subzone{
		Company:   company,
		Name:      req.Name,
		Positions: req.Positions,
		ZoneID:    zoneID,
	}
	if err := s.monitor.CreateSubzone(r.Context(), subzone); err != nil {
		if errors.Is(err, monitor.ErrZoneNotFound) {
			writeNotFound(w, "No zone found")
			return
		}
		s.logger.Error("subzone creation failed", "company", company, "zone", zoneID, "error", err)
		writeInternalError(w, "failed to create subzone")
		return
	}

	s.recordAudit(r.Context(), &audit.AuditLog{
		Action:     "create",
		EntityType: "subzone",
		EntityID:   subzone.ID,
		UserID:     userIDFromContext(r),
		Details:    map[string]any{"company": company, "zone": zoneID, "name": subzone.Name},
	})

	writeJSON(w, http.StatusOK, map[string]any{"subzone": subzone})
}

// handleListSubzones lists the company's subzones with derived site IDs.
func (s *Server) handleListSubzones(w http.ResponseWriter, r *http.Request) {
	company := chi.URLParam(r, "company")

	subzones, err := s.monitor.ListSubzones(r.Context(), company)
	if err != nil {
		s.logger.Error("subzone listing failed", "company", company, "error", err)
		writeInternalError(w, "failed to list subzones")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"subzones": subzones})
}

// handleCreateSite creates a site under a parent subzone.
func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	company := chi.URLParam(r, "company")
	zoneID := chi.URLParam(r, "zone")
	subzoneID := chi.URLParam(r, "subzone")

	var req createSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	site := &monitor.Site{
		Company:   company,
		Key:       req.Key,
		Name:      req.Name,
		Position:  req.Position,
		Sensors:   req.Sensors,
		Alarms:    req.Alarms,
		ZoneID:    zoneID,
		SubzoneID: subzoneID,
	}
	if err := s.monitor.CreateSite(r.Context(), site); err != nil {
		if errors.Is(err, monitor.ErrSubzoneNotFound) {
			writeNotFound(w, "No zone found")
			return
		}
		s.logger.Error("site creation failed", "company", company, "subzone", subzoneID, "error", err)
		writeInternalError(w, "failed to create site")
		return
	}

	s.recordAudit(r.Context(), &audit.AuditLog{
		Action:     "create",
		EntityType: "site",
		EntityID:   site.ID,
		UserID:     userIDFromContext(r),
		Details:    map[string]any{"company": company, "key": site.Key},
	})

	writeJSON(w, http.StatusOK, map[string]any{"site": site})
}

// handleListSites lists the company's sites with their latest state.
func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	company := chi.URLParam(r, "company")

	sites, err := s.monitor.ListSites(r.Context(), company)
	if err != nil {
		s.logger.Error("site listing failed", "company", company, "error", err)
		writeInternalError(w, "failed to list sites")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

// userIDFromContext returns the authenticated user's ID for audit entries.
func userIDFromContext(r *http.Request) string {
	if claims := claimsFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return ""
}
