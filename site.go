package docdex

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// SiteStatus describes where a site is in its indexing lifecycle.
type SiteStatus string

// Valid site statuses. A site only progresses along
// pending -> indexing -> {completed | failed}; an update re-enters
// pending after its pages are purged.
const (
	SiteStatusPending   SiteStatus = "pending"
	SiteStatusIndexing  SiteStatus = "indexing"
	SiteStatusCompleted SiteStatus = "completed"
	SiteStatusFailed    SiteStatus = "failed"
)

// Site represents a logical documentation corpus registered for indexing.
type Site struct {
	ID int64 `json:"id"`

	// IndexURL is the exact URL the user supplied.
	IndexURL string `json:"indexUrl"`

	// BaseURL is IndexURL with any trailing filename stripped. It is the
	// scope prefix for crawling: only URLs under it are enqueued.
	BaseURL string `json:"baseUrl"`

	Name    string `json:"name"`
	Version string `json:"version"`

	Status          SiteStatus `json:"status"`
	ProgressPercent int        `json:"progressPercent"`
	TotalPages      int        `json:"totalPages"`
	IndexedPages    int        `json:"indexedPages"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`

	CreatedDate   time.Time  `json:"createdDate"`
	IndexedDate   *time.Time `json:"indexedDate,omitempty"`
	LastHeartbeat *time.Time `json:"lastHeartbeat,omitempty"`
}

// Validate returns an error if the site contains invalid fields.
func (s *Site) Validate() error {
	if s.Name == "" {
		return Errorf(EINVALID, "site name required")
	}
	if s.IndexURL == "" {
		return Errorf(EINVALID, "site index URL required")
	}
	u, err := url.Parse(s.IndexURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Errorf(EINVALID, "site index URL %q is not an absolute URL", s.IndexURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Errorf(EINVALID, "site index URL scheme %q not supported", u.Scheme)
	}
	return nil
}

// BaseURLFor derives the crawl scope prefix from an index URL by
// stripping any trailing filename. "https://a/docs/index.html" becomes
// "https://a/docs/".
func BaseURLFor(indexURL string) string {
	u, err := url.Parse(indexURL)
	if err != nil {
		return indexURL
	}
	u.Fragment = ""
	u.RawQuery = ""
	if last := strings.LastIndex(u.Path, "/"); last >= 0 {
		tail := u.Path[last+1:]
		if strings.Contains(tail, ".") {
			u.Path = u.Path[:last+1]
		}
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// ProgressPercentFor computes the floor of 100*indexed/total, or 0 when
// total is zero.
func ProgressPercentFor(indexedPages, totalPages int) int {
	if totalPages <= 0 {
		return 0
	}
	return 100 * indexedPages / totalPages
}

// SiteUpdate represents mutable site fields applied by the indexer.
type SiteUpdate struct {
	Status       *SiteStatus
	ErrorMessage *string
	IndexedDate  *time.Time
}

// SiteService manages site records.
type SiteService interface {
	// CreateSite registers a new site. Assigns ID and CreatedDate.
	// Returns ECONFLICT if the index URL or (name, version) pair is
	// already registered.
	CreateSite(ctx context.Context, site *Site) error

	// FindSiteByID retrieves a site by ID.
	// Returns ENOTFOUND if the site does not exist.
	FindSiteByID(ctx context.Context, id int64) (*Site, error)

	// FindSiteByName retrieves a site by name.
	// Returns ENOTFOUND if the site does not exist.
	FindSiteByName(ctx context.Context, name string) (*Site, error)

	// FindSites retrieves all sites ordered by creation date.
	FindSites(ctx context.Context) ([]*Site, error)

	// UpdateSite applies upd to the site.
	// Returns ENOTFOUND if the site does not exist.
	UpdateSite(ctx context.Context, id int64, upd SiteUpdate) (*Site, error)

	// UpdateSiteProgress records crawl progress. ProgressPercent is
	// recomputed from the page counts.
	UpdateSiteProgress(ctx context.Context, id int64, indexedPages, totalPages int) error

	// TouchSiteHeartbeat stamps the site's last_heartbeat with the
	// current UTC time.
	TouchSiteHeartbeat(ctx context.Context, id int64) error

	// DeleteSite permanently removes a site. Queue entries and chunks
	// cascade; the caller is responsible for purging the vector store.
	// Returns ENOTFOUND if the site does not exist.
	DeleteSite(ctx context.Context, id int64) error
}
