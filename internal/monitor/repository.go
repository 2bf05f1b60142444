package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for hierarchy and report persistence.
type Repository interface {
	// CreateZone inserts a new zone. The ID is generated if empty.
	CreateZone(ctx context.Context, zone *Zone) error

	// GetZone retrieves a zone by ID within a company.
	// Returns ErrZoneNotFound if it does not exist.
	GetZone(ctx context.Context, company, id string) (*Zone, error)

	// ListZones retrieves all zones for a company with derived subzone IDs.
	ListZones(ctx context.Context, company string) ([]Zone, error)

	// CreateSubzone inserts a new subzone.
	// Returns ErrZoneNotFound if the parent zone is missing from the company.
	CreateSubzone(ctx context.Context, subzone *Subzone) error

	// ListSubzones retrieves all subzones for a company with derived site IDs.
	ListSubzones(ctx context.Context, company string) ([]Subzone, error)

	// CreateSite inserts a new site.
	// Returns ErrSubzoneNotFound if the parent subzone is missing.
	CreateSite(ctx context.Context, site *Site) error

	// GetSite retrieves a site by ID within a company.
	GetSite(ctx context.Context, company, id string) (*Site, error)

	// ListSites retrieves all sites for a company.
	ListSites(ctx context.Context, company string) ([]Site, error)

	// UpdateReport appends the site's current state to its history,
	// overwrites the current sensors/alarms/timestamp, and returns the
	// resulting report. History append and state overwrite happen in one
	// transaction. Returns ErrSiteNotFound if the site is missing.
	UpdateReport(ctx context.Context, company, siteID string, sensors, alarms Payload) (*Report, error)

	// History returns a site's past snapshots in append order.
	History(ctx context.Context, siteID string) ([]Snapshot, error)

	// ListReports returns one report per site in the company, carrying
	// each site's latest state with zone and subzone names resolved.
	ListReports(ctx context.Context, company string) ([]Report, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateZone inserts a new zone.
func (r *SQLiteRepository) CreateZone(ctx context.Context, zone *Zone) error {
	if zone.ID == "" {
		zone.ID = "zon-" + uuid.NewString()[:8]
	}
	if zone.SubzoneIDs == nil {
		zone.SubzoneIDs = []string{}
	}

	positionsJSON, err := marshalPositions(zone.Positions)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	zone.CreatedAt = now
	zone.UpdatedAt = now

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO zones (id, company, name, positions, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		zone.ID, zone.Company, zone.Name, positionsJSON,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting zone: %w", err)
	}
	return nil
}

// GetZone retrieves a zone by ID within a company.
func (r *SQLiteRepository) GetZone(ctx context.Context, company, id string) (*Zone, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, company, name, positions, created_at, updated_at
		 FROM zones WHERE id = ? AND company = ?`, id, company)

	zone, err := scanZone(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrZoneNotFound
		}
		return nil, fmt.Errorf("querying zone: %w", err)
	}

	zone.SubzoneIDs, err = r.childIDs(ctx,
		"SELECT id FROM subzones WHERE zone_id = ? ORDER BY created_at, id", zone.ID)
	if err != nil {
		return nil, err
	}
	return zone, nil
}

// ListZones retrieves all zones for a company.
func (r *SQLiteRepository) ListZones(ctx context.Context, company string) ([]Zone, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, company, name, positions, created_at, updated_at
		 FROM zones WHERE company = ? ORDER BY created_at, id`, company)
	if err != nil {
		return nil, fmt.Errorf("listing zones: %w", err)
	}
	defer rows.Close()

	zones := []Zone{}
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning zone: %w", err)
		}
		zones = append(zones, *z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating zones: %w", err)
	}

	grouped, err := r.groupChildIDs(ctx,
		"SELECT id, zone_id FROM subzones WHERE company = ? ORDER BY created_at, id", company)
	if err != nil {
		return nil, err
	}
	for i := range zones {
		zones[i].SubzoneIDs = grouped[zones[i].ID]
		if zones[i].SubzoneIDs == nil {
			zones[i].SubzoneIDs = []string{}
		}
	}
	return zones, nil
}

// CreateSubzone inserts a new subzone after verifying its parent zone.
func (r *SQLiteRepository) CreateSubzone(ctx context.Context, subzone *Subzone) error {
	if err := r.zoneExists(ctx, subzone.Company, subzone.ZoneID); err != nil {
		return err
	}

	if subzone.ID == "" {
		subzone.ID = "sbz-" + uuid.NewString()[:8]
	}
	if subzone.SiteIDs == nil {
		subzone.SiteIDs = []string{}
	}

	positionsJSON, err := marshalPositions(subzone.Positions)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	subzone.CreatedAt = now
	subzone.UpdatedAt = now

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO subzones (id, company, name, positions, zone_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		subzone.ID, subzone.Company, subzone.Name, positionsJSON, subzone.ZoneID,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting subzone: %w", err)
	}
	return nil
}

// ListSubzones retrieves all subzones for a company.
func (r *SQLiteRepository) ListSubzones(ctx context.Context, company string) ([]Subzone, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, company, name, positions, zone_id, created_at, updated_at
		 FROM subzones WHERE company = ? ORDER BY created_at, id`, company)
	if err != nil {
		return nil, fmt.Errorf("listing subzones: %w", err)
	}
	defer rows.Close()

	subzones := []Subzone{}
	for rows.Next() {
		var sz Subzone
		var positions, createdAt, updatedAt string
		if err := rows.Scan(&sz.ID, &sz.Company, &sz.Name, &positions, &sz.ZoneID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning subzone: %w", err)
		}
		if err := json.Unmarshal([]byte(positions), &sz.Positions); err != nil {
			return nil, fmt.Errorf("unmarshalling positions: %w", err)
		}
		sz.CreatedAt = parseTime(createdAt)
		sz.UpdatedAt = parseTime(updatedAt)
		subzones = append(subzones, sz)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subzones: %w", err)
	}

	grouped, err := r.groupChildIDs(ctx,
		"SELECT id, subzone_id FROM sites WHERE company = ? ORDER BY created_at, id", company)
	if err != nil {
		return nil, err
	}
	for i := range subzones {
		subzones[i].SiteIDs = grouped[subzones[i].ID]
		if subzones[i].SiteIDs == nil {
			subzones[i].SiteIDs = []string{}
		}
	}
	return subzones, nil
}

// CreateSite inserts a new site after verifying its parent subzone.
func (r *SQLiteRepository) CreateSite(ctx context.Context, site *Site) error {
	var zoneID string
	err := r.db.QueryRowContext(ctx,
		"SELECT zone_id FROM subzones WHERE id = ? AND company = ?",
		site.SubzoneID, site.Company).Scan(&zoneID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSubzoneNotFound
		}
		return fmt.Errorf("checking subzone: %w", err)
	}
	if site.ZoneID == "" {
		site.ZoneID = zoneID
	}

	if site.ID == "" {
		site.ID = "sit-" + uuid.NewString()[:8]
	}
	if site.Position == nil {
		site.Position = Position{}
	}
	if site.Sensors == nil {
		site.Sensors = Payload{}
	}
	if site.Alarms == nil {
		site.Alarms = Payload{}
	}

	positionJSON, err := json.Marshal(site.Position)
	if err != nil {
		return fmt.Errorf("marshalling position: %w", err)
	}
	sensorsJSON, err := json.Marshal(site.Sensors)
	if err != nil {
		return fmt.Errorf("marshalling sensors: %w", err)
	}
	alarmsJSON, err := json.Marshal(site.Alarms)
	if err != nil {
		return fmt.Errorf("marshalling alarms: %w", err)
	}

	now := time.Now().UTC()
	if site.Timestamp.IsZero() {
		site.Timestamp = now
	}
	site.CreatedAt = now
	site.UpdatedAt = now

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sites (id, company, key, name, position, sensors, alarms, timestamp, zone_id, subzone_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		site.ID, site.Company, site.Key, site.Name,
		string(positionJSON), string(sensorsJSON), string(alarmsJSON),
		site.Timestamp.Format(time.RFC3339Nano), site.ZoneID, site.SubzoneID,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting site: %w", err)
	}
	return nil
}

// GetSite retrieves a site by ID within a company.
func (r *SQLiteRepository) GetSite(ctx context.Context, company, id string) (*Site, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, company, key, name, position, sensors, alarms, timestamp, zone_id, subzone_id, created_at, updated_at
		 FROM sites WHERE id = ? AND company = ?`, id, company)

	site, err := scanSite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("querying site: %w", err)
	}
	return site, nil
}

// ListSites retrieves all sites for a company.
func (r *SQLiteRepository) ListSites(ctx context.Context, company string) ([]Site, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, company, key, name, position, sensors, alarms, timestamp, zone_id, subzone_id, created_at, updated_at
		 FROM sites WHERE company = ? ORDER BY created_at, id`, company)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	defer rows.Close()

	sites := []Site{}
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning site: %w", err)
		}
		sites = append(sites, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sites: %w", err)
	}
	return sites, nil
}

// UpdateReport archives the site's current state and applies the new one.
func (r *SQLiteRepository) UpdateReport(ctx context.Context, company, siteID string, sensors, alarms Payload) (*Report, error) {
	if sensors == nil {
		sensors = Payload{}
	}
	if alarms == nil {
		alarms = Payload{}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning report update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var siteKey, zoneName, subzoneName string
	var prevSensors, prevAlarms, prevTimestamp string
	err = tx.QueryRowContext(ctx,
		`SELECT s.key, s.sensors, s.alarms, s.timestamp, z.name, sz.name
		 FROM sites s
		 JOIN zones z ON z.id = s.zone_id
		 JOIN subzones sz ON sz.id = s.subzone_id
		 WHERE s.id = ? AND s.company = ?`,
		siteID, company).Scan(&siteKey, &prevSensors, &prevAlarms, &prevTimestamp, &zoneName, &subzoneName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSiteNotFound
		}
		return nil, fmt.Errorf("loading site for report: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO site_reports (site_id, sensors, alarms, timestamp, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		siteID, prevSensors, prevAlarms, prevTimestamp,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("archiving report: %w", err)
	}

	sensorsJSON, err := json.Marshal(sensors)
	if err != nil {
		return nil, fmt.Errorf("marshalling sensors: %w", err)
	}
	alarmsJSON, err := json.Marshal(alarms)
	if err != nil {
		return nil, fmt.Errorf("marshalling alarms: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE sites SET sensors = ?, alarms = ?, timestamp = ?, updated_at = ? WHERE id = ?`,
		string(sensorsJSON), string(alarmsJSON),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), siteID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating site state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing report update: %w", err)
	}

	return &Report{
		Site:      ReportSite{ID: siteID, Key: siteKey},
		Zone:      zoneName,
		Subzone:   subzoneName,
		Timestamp: now,
		Sensors:   sensors,
		Alarms:    alarms,
	}, nil
}

// History returns a site's past snapshots in append order.
func (r *SQLiteRepository) History(ctx context.Context, siteID string) ([]Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT sensors, alarms, timestamp FROM site_reports WHERE site_id = ? ORDER BY id ASC",
		siteID)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	history := []Snapshot{}
	for rows.Next() {
		var sensors, alarms, timestamp string
		if err := rows.Scan(&sensors, &alarms, &timestamp); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		var snap Snapshot
		if err := json.Unmarshal([]byte(sensors), &snap.Sensors); err != nil {
			return nil, fmt.Errorf("unmarshalling sensors: %w", err)
		}
		if err := json.Unmarshal([]byte(alarms), &snap.Alarms); err != nil {
			return nil, fmt.Errorf("unmarshalling alarms: %w", err)
		}
		snap.Timestamp = parseTime(timestamp)
		history = append(history, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return history, nil
}

// ListReports returns one report per site with latest state.
func (r *SQLiteRepository) ListReports(ctx context.Context, company string) ([]Report, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.key, z.name, sz.name, s.timestamp, s.sensors, s.alarms
		 FROM sites s
		 JOIN zones z ON z.id = s.zone_id
		 JOIN subzones sz ON sz.id = s.subzone_id
		 WHERE s.company = ?
		 ORDER BY s.created_at, s.id`, company)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		var rep Report
		var timestamp, sensors, alarms string
		if err := rows.Scan(&rep.Site.ID, &rep.Site.Key, &rep.Zone, &rep.Subzone, &timestamp, &sensors, &alarms); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		if err := json.Unmarshal([]byte(sensors), &rep.Sensors); err != nil {
			return nil, fmt.Errorf("unmarshalling sensors: %w", err)
		}
		if err := json.Unmarshal([]byte(alarms), &rep.Alarms); err != nil {
			return nil, fmt.Errorf("unmarshalling alarms: %w", err)
		}
		rep.Timestamp = parseTime(timestamp)
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return reports, nil
}

// zoneExists verifies a zone is present within the company.
func (r *SQLiteRepository) zoneExists(ctx context.Context, company, id string) error {
	var found string
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM zones WHERE id = ? AND company = ?", id, company).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrZoneNotFound
		}
		return fmt.Errorf("checking zone: %w", err)
	}
	return nil
}

// childIDs collects a single parent's child IDs.
func (r *SQLiteRepository) childIDs(ctx context.Context, query string, parentID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("querying child ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning child id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating child ids: %w", err)
	}
	return ids, nil
}

// groupChildIDs collects child IDs keyed by parent ID for a whole company.
func (r *SQLiteRepository) groupChildIDs(ctx context.Context, query, company string) (map[string][]string, error) {
	rows, err := r.db.QueryContext(ctx, query, company)
	if err != nil {
		return nil, fmt.Errorf("querying child ids: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]string)
	for rows.Next() {
		var id, parentID string
		if err := rows.Scan(&id, &parentID); err != nil {
			return nil, fmt.Errorf("scanning child id: %w", err)
		}
		grouped[parentID] = append(grouped[parentID], id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating child ids: %w", err)
	}
	return grouped, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanZone(s scanner) (*Zone, error) {
	var z Zone
	var positions, createdAt, updatedAt string
	if err := s.Scan(&z.ID, &z.Company, &z.Name, &positions, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(positions), &z.Positions); err != nil {
		return nil, fmt.Errorf("unmarshalling positions: %w", err)
	}
	z.CreatedAt = parseTime(createdAt)
	z.UpdatedAt = parseTime(updatedAt)
	return &z, nil
}

func scanSite(s scanner) (*Site, error) {
	var site Site
	var position, sensors, alarms, timestamp, createdAt, updatedAt string
	err := s.Scan(&site.ID, &site.Company, &site.Key, &site.Name,
		&position, &sensors, &alarms, &timestamp,
		&site.ZoneID, &site.SubzoneID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(position), &site.Position); err != nil {
		return nil, fmt.Errorf("unmarshalling position: %w", err)
	}
	if err := json.Unmarshal([]byte(sensors), &site.Sensors); err != nil {
		return nil, fmt.Errorf("unmarshalling sensors: %w", err)
	}
	if err := json.Unmarshal([]byte(alarms), &site.Alarms); err != nil {
		return nil, fmt.Errorf("unmarshalling alarms: %w", err)
	}
	site.Timestamp = parseTime(timestamp)
	site.CreatedAt = parseTime(createdAt)
	site.UpdatedAt = parseTime(updatedAt)
	return &site, nil
}

func marshalPositions(positions []Position) (string, error) {
	if positions == nil {
		positions = []Position{}
	}
	b, err := json.Marshal(positions)
	if err != nil {
		return "", fmt.Errorf("marshalling positions: %w", err)
	}
	return string(b), nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s) //nolint:errcheck // format is controlled
	return t
}
