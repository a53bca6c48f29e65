package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/docdex/docdex"
)

// Compile-time interface verification.
var _ docdex.SiteService = (*SiteService)(nil)

// SiteService implements docdex.SiteService using SQLite.
type SiteService struct {
	db *DB
}

// NewSiteService creates a new SiteService.
func NewSiteService(db *DB) *SiteService {
	return &SiteService{db: db}
}

const siteColumns = `id, index_url, base_url, name, version, indexed_date, status,
	progress_percent, total_pages, indexed_pages, error_message, created_date, last_heartbeat`

// CreateSite registers a new site with status pending.
func (s *SiteService) CreateSite(ctx context.Context, site *docdex.Site) error {
	if err := site.Validate(); err != nil {
		return err
	}

	if site.BaseURL == "" {
		site.BaseURL = docdex.BaseURLFor(site.IndexURL)
	}
	if site.Status == "" {
		site.Status = docdex.SiteStatusPending
	}
	site.CreatedDate = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sites (index_url, base_url, name, version, status, created_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`, site.IndexURL, site.BaseURL, site.Name, site.Version, string(site.Status),
		formatTime(site.CreatedDate))
	if err != nil {
		return mapError(err)
	}

	site.ID, err = res.LastInsertId()
	return err
}

// FindSiteByID retrieves a site by ID.
func (s *SiteService) FindSiteByID(ctx context.Context, id int64) (*docdex.Site, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE id = ?`, id)
	return scanSite(row)
}

// FindSiteByName retrieves a site by name.
func (s *SiteService) FindSiteByName(ctx context.Context, name string) (*docdex.Site, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE name = ? ORDER BY created_date DESC LIMIT 1`, name)
	return scanSite(row)
}

// FindSites retrieves all sites ordered by creation date.
func (s *SiteService) FindSites(ctx context.Context) ([]*docdex.Site, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+siteColumns+` FROM sites ORDER BY created_date, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var sites []*docdex.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// UpdateSite applies upd to the site.
func (s *SiteService) UpdateSite(ctx context.Context, id int64, upd docdex.SiteUpdate) (*docdex.Site, error) {
	site, err := s.FindSiteByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Status != nil {
		site.Status = *upd.Status
	}
	if upd.ErrorMessage != nil {
		site.ErrorMessage = *upd.ErrorMessage
	}
	if upd.IndexedDate != nil {
		t := upd.IndexedDate.UTC()
		site.IndexedDate = &t
	}

	var indexedDate any
	if site.IndexedDate != nil {
		indexedDate = formatTime(*site.IndexedDate)
	}
	var errorMessage any
	if site.ErrorMessage != "" {
		errorMessage = site.ErrorMessage
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE sites SET status = ?, error_message = ?, indexed_date = ? WHERE id = ?
	`, string(site.Status), errorMessage, indexedDate, id)
	if err != nil {
		return nil, mapError(err)
	}
	return site, nil
}

// UpdateSiteProgress records crawl progress and recomputes the percent.
func (s *SiteService) UpdateSiteProgress(ctx context.Context, id int64, indexedPages, totalPages int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sites SET indexed_pages = ?, total_pages = ?, progress_percent = ? WHERE id = ?
	`, indexedPages, totalPages, docdex.ProgressPercentFor(indexedPages, totalPages), id)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(res, "site")
}

// TouchSiteHeartbeat stamps the site's last_heartbeat.
func (s *SiteService) TouchSiteHeartbeat(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sites SET last_heartbeat = ? WHERE id = ?`, formatTime(time.Now()), id)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(res, "site")
}

// DeleteSite permanently removes a site. Queue entries and chunks
// cascade via foreign keys.
func (s *SiteService) DeleteSite(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(res, "site")
}

// requireRowsAffected converts a zero-row update into ENOTFOUND.
func requireRowsAffected(res sql.Result, entity string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return docdex.Errorf(docdex.ENOTFOUND, "%s not found", entity)
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSite scans a site row in siteColumns order.
func scanSite(row rowScanner) (*docdex.Site, error) {
	var site docdex.Site
	var status, createdDate string
	var indexedDate, errorMessage, lastHeartbeat sql.NullString

	err := row.Scan(&site.ID, &site.IndexURL, &site.BaseURL, &site.Name, &site.Version,
		&indexedDate, &status, &site.ProgressPercent, &site.TotalPages, &site.IndexedPages,
		&errorMessage, &createdDate, &lastHeartbeat)
	if err == sql.ErrNoRows {
		return nil, docdex.Errorf(docdex.ENOTFOUND, "site not found")
	}
	if err != nil {
		return nil, mapError(err)
	}

	site.Status = docdex.SiteStatus(status)
	site.ErrorMessage = errorMessage.String

	if site.CreatedDate, err = parseRFC3339(createdDate, "created_date"); err != nil {
		return nil, err
	}
	if site.IndexedDate, err = parseNullableTime(indexedDate, "indexed_date"); err != nil {
		return nil, err
	}
	if site.LastHeartbeat, err = parseNullableTime(lastHeartbeat, "last_heartbeat"); err != nil {
		return nil, err
	}

	return &site, nil
}
