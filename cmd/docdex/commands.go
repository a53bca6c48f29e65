package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"

	"github.com/docdex/docdex"
	"github.com/docdex/docdex/config"
	"github.com/docdex/docdex/crawl"
	"github.com/docdex/docdex/mcp"
)

// Run executes the config command.
func (c *ConfigCmd) Run(deps *Dependencies) error {
	path := config.ConfigPath(deps.DataDir)

	if c.Show {
		data, err := toml.Marshal(deps.Config)
		if err != nil {
			return err
		}
		fmt.Fprintf(deps.Stdout, "# %s\n%s", path, data)
		return nil
	}

	if err := deps.Config.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(deps.Stdout, "Wrote %s\n", path)
	return nil
}

// Run executes the add command: register the site, seed its queue, and
// run the indexer until the queue drains.
func (c *AddCmd) Run(deps *Dependencies) error {
	name := c.Name
	if name == "" {
		u, err := url.Parse(c.URL)
		if err != nil || u.Host == "" {
			return docdex.Errorf(docdex.EINVALID, "invalid URL %q", c.URL)
		}
		name = u.Host
	}

	site := &docdex.Site{
		IndexURL: c.URL,
		Name:     name,
		Version:  c.Version,
	}
	if err := deps.Sites.CreateSite(deps.Ctx, site); err != nil {
		return err
	}
	if _, err := deps.Queue.Enqueue(deps.Ctx, site.ID, crawl.NormalizeURL(site.IndexURL)); err != nil {
		return err
	}
	fmt.Fprintf(deps.Stdout, "Added site %q (id %d), indexing %s\n", site.Name, site.ID, site.BaseURL)

	if err := deps.Indexer.Run(deps.Ctx); err != nil {
		return err
	}

	final, err := deps.Sites.FindSiteByID(deps.Ctx, site.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(deps.Stdout, "Site %q: %s (%d/%d pages)\n",
		final.Name, final.Status, final.IndexedPages, final.TotalPages)
	if final.Status == docdex.SiteStatusFailed {
		return docdex.Errorf(docdex.EINTERNAL, "indexing failed: %s", final.ErrorMessage)
	}
	return nil
}

// Run executes the list command.
func (c *ListCmd) Run(deps *Dependencies) error {
	sites, err := deps.Sites.FindSites(deps.Ctx)
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		fmt.Fprintln(deps.Stdout, "No sites registered. Add one with 'docdex add <url>'.")
		return nil
	}

	w := tabwriter.NewWriter(deps.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVERSION\tSTATUS\tPROGRESS\tPAGES\tURL")
	for _, s := range sites {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d%%\t%d/%d\t%s\n",
			s.ID, s.Name, s.Version, s.Status, s.ProgressPercent,
			s.IndexedPages, s.TotalPages, s.IndexURL)
	}
	return w.Flush()
}

// Run executes the delete command: purge the vector store then the
// site row, which cascades queue entries and chunks.
func (c *DeleteCmd) Run(deps *Dependencies) error {
	site, err := resolveSite(deps.Ctx, deps, c.Site)
	if err != nil {
		return err
	}

	if err := deps.Vectors.DeleteWhere(deps.Ctx, &docdex.VectorFilter{SiteID: &site.ID}); err != nil {
		return err
	}
	if err := deps.Sites.DeleteSite(deps.Ctx, site.ID); err != nil {
		return err
	}
	fmt.Fprintf(deps.Stdout, "Deleted site %q (id %d)\n", site.Name, site.ID)
	return nil
}

// Run executes the update command: purge indexed content, re-enter
// pending, re-seed, and index again.
func (c *UpdateCmd) Run(deps *Dependencies) error {
	site, err := resolveSite(deps.Ctx, deps, c.Site)
	if err != nil {
		return err
	}

	if err := deps.Vectors.DeleteWhere(deps.Ctx, &docdex.VectorFilter{SiteID: &site.ID}); err != nil {
		return err
	}
	if err := deps.Chunks.DeleteChunksBySite(deps.Ctx, site.ID); err != nil {
		return err
	}
	if err := deps.Queue.DeleteQueueBySite(deps.Ctx, site.ID); err != nil {
		return err
	}

	pending := docdex.SiteStatusPending
	empty := ""
	if _, err := deps.Sites.UpdateSite(deps.Ctx, site.ID, docdex.SiteUpdate{Status: &pending, ErrorMessage: &empty}); err != nil {
		return err
	}
	if err := deps.Sites.UpdateSiteProgress(deps.Ctx, site.ID, 0, 0); err != nil {
		return err
	}
	if _, err := deps.Queue.Enqueue(deps.Ctx, site.ID, crawl.NormalizeURL(site.IndexURL)); err != nil {
		return err
	}
	fmt.Fprintf(deps.Stdout, "Purged site %q, re-indexing\n", site.Name)

	return deps.Indexer.Run(deps.Ctx)
}

// Run executes the status command.
func (c *StatusCmd) Run(deps *Dependencies) error {
	hb, err := deps.Heartbeats.ReadHeartbeat(deps.Ctx)
	switch {
	case docdex.ErrorCode(err) == docdex.ENOTFOUND:
		fmt.Fprintln(deps.Stdout, "Indexer: never run")
	case err != nil:
		return err
	default:
		fmt.Fprintf(deps.Stdout, "Indexer: %s (heartbeat %s ago, pid %d)\n",
			hb.Status, time.Since(hb.LastHeartbeat).Round(time.Second), hb.ProcessID)
	}

	fmt.Fprintf(deps.Stdout, "Vector store: %d embeddings", deps.Vectors.Count())
	if dim := deps.Vectors.Dimension(); dim > 0 {
		fmt.Fprintf(deps.Stdout, " (dimension %d)", dim)
	}
	fmt.Fprintln(deps.Stdout)

	if err := deps.Embedder.HealthCheck(deps.Ctx); err != nil {
		fmt.Fprintf(deps.Stdout, "Embedding service: unreachable (%s)\n", docdex.ErrorMessage(err))
	} else {
		fmt.Fprintln(deps.Stdout, "Embedding service: ok")
	}

	return (&ListCmd{}).Run(deps)
}

// Run executes the serve command: the MCP server on stdio with the
// background indexer alongside it.
func (c *ServeCmd) Run(deps *Dependencies) error {
	srv, err := mcp.NewServer(deps.Search)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(deps.Ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		// Another process may own the indexer lock; serving search is
		// still useful, so a conflict is not fatal here.
		err := deps.Indexer.Run(ctx)
		if docdex.ErrorCode(err) == docdex.ECONFLICT {
			fmt.Fprintln(deps.Stderr, "indexer already running elsewhere; serving search only")
			return nil
		}
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	})
	return g.Wait()
}

// resolveSite finds a site by numeric ID or name.
func resolveSite(ctx context.Context, deps *Dependencies, identifier string) (*docdex.Site, error) {
	if identifier == "" {
		return nil, docdex.Errorf(docdex.EINVALID, "site identifier required")
	}
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		if id <= 0 {
			return nil, docdex.Errorf(docdex.EINVALID, "site ID must be positive")
		}
		return deps.Sites.FindSiteByID(ctx, id)
	}
	return deps.Sites.FindSiteByName(ctx, identifier)
}
