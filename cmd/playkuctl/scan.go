package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/playku/playku/internal/storefront"
	"github.com/playku/playku/internal/storefront/htmldom"
)

const maxPageBytes = 10 << 20

// fallbackSelectors are used when neither --selectors nor the proxy
// supplies any.
var fallbackSelectors = []string{
	"img[src*='/products/']",
	".card img",
	".product-card img",
}

type scanOptions struct {
	selectors   string
	concurrency int
}

type pageResult struct {
	url      string
	found    []storefront.Discovery
	playlist *storefront.Playlist
	err      error
}

func newScanCmd(root *rootOptions) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan <url>...",
		Short: "Scan storefront pages for product images and their audio",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), root, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.selectors, "selectors", "", "override selectors, a JSON array or comma separated list")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "pages fetched in parallel")
	return cmd
}

func runScan(ctx context.Context, out, errOut io.Writer, root *rootOptions, opts *scanOptions, urls []string) error {
	if root.proxy != "" && root.theme == "" {
		return fmt.Errorf("--theme is required with --proxy")
	}

	httpClient := &http.Client{Timeout: root.timeout}

	catalog := storefront.NewCache(nil)
	var payload storefront.Payload
	if root.proxy != "" {
		catalog = storefront.NewCache(storefront.NewProxyClient(root.proxy, httpClient))
		payload = catalog.Load(ctx, root.theme)
		if len(payload.Catalog) == 0 {
			warn(errOut, "catalog is empty or unavailable, no product will have audio")
		}
	}

	selectors := payload.Selectors
	if opts.selectors != "" {
		parsed, err := parseSelectorFlag(opts.selectors)
		if err != nil {
			return err
		}
		selectors = parsed
	}
	if len(selectors) == 0 {
		selectors = fallbackSelectors
	}

	results := make([]pageResult, len(urls))
	bar := newBar(errOut, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.concurrency, 1))
	for i, u := range urls {
		g.Go(func() error {
			results[i] = scanPage(gctx, httpClient, catalog, selectors, u)
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	failed := 0
	for _, r := range results {
		printResult(out, r)
		if r.err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d pages could not be scanned", failed, len(urls))
	}
	return nil
}

func scanPage(ctx context.Context, client *http.Client, catalog *storefront.Cache, selectors []string, pageURL string) pageResult {
	result := pageResult{url: pageURL}

	doc, err := fetchPage(ctx, client, pageURL)
	if err != nil {
		result.err = err
		return result
	}

	result.found = storefront.NewScanner(nil).Scan(doc, selectors)
	tracks := make([]storefront.Track, 0, len(result.found))
	for _, d := range result.found {
		if entry, ok := catalog.Entry(d.Handle); ok {
			tracks = append(tracks, storefront.Track{CatalogEntry: entry, Image: d.Image})
		}
	}
	result.playlist = storefront.NewPlaylist(tracks)
	return result
}

func fetchPage(ctx context.Context, client *http.Client, pageURL string) (*htmldom.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "playkuctl")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	return htmldom.Parse(io.LimitReader(resp.Body, maxPageBytes))
}

// parseSelectorFlag accepts either a JSON array or a comma separated list.
// Commas inside a selector need the JSON form.
func parseSelectorFlag(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var selectors []string
		if err := json.Unmarshal([]byte(raw), &selectors); err != nil {
			return nil, fmt.Errorf("parse --selectors: %w", err)
		}
		return selectors, nil
	}
	return strings.Split(raw, ","), nil
}

func printResult(w io.Writer, r pageResult) {
	header := color.New(color.Bold)
	if r.err != nil {
		_, _ = header.Fprintln(w, r.url)
		_, _ = color.New(color.FgRed).Fprintf(w, "  error: %v\n\n", r.err)
		return
	}

	_, _ = header.Fprintf(w, "%s  (%d products, %d with audio)\n", r.url, len(r.found), r.playlist.Len())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	hasAudio := color.New(color.FgGreen).SprintFunc()
	noAudio := color.New(color.FgYellow).SprintFunc()
	for _, d := range r.found {
		if track, ok := r.playlist.Track(d.Handle); ok {
			title := track.Title
			if title == "" {
				title = track.AudioURL
			}
			fmt.Fprintf(tw, "  %s\t%s\n", hasAudio(d.Handle), title)
			continue
		}
		fmt.Fprintf(tw, "  %s\t%s\n", noAudio(d.Handle), "no audio")
	}
	_ = tw.Flush()

	if handles := r.playlist.Handles(); len(handles) > 0 {
		fmt.Fprintf(w, "  playlist: %s\n", strings.Join(handles, " > "))
	}
	fmt.Fprintln(w)
}

// newBar returns a progress bar for multi-page scans on a terminal.
func newBar(w io.Writer, total int) *progressbar.ProgressBar {
	if total < 2 || !isTerminal(w) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Scanning pages"),
		progressbar.OptionSetWidth(15),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func warn(w io.Writer, msg string) {
	_, _ = color.New(color.FgYellow).Fprintf(w, "warning: %s\n", msg)
}
