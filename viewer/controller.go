package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goliatone/go-tableview/dataset"
	"github.com/goliatone/go-tableview/export"
)

// Fetcher loads a record set from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (dataset.RecordSet, error)
}

// FetcherFunc adapts a function to a Fetcher.
type FetcherFunc func(ctx context.Context, rawURL string) (dataset.RecordSet, error)

func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (dataset.RecordSet, error) {
	return f(ctx, rawURL)
}

// Config wires a Controller.
type Config struct {
	Fetcher       Fetcher
	Runner        *export.Runner
	Logger        export.Logger
	Metrics       export.MetricsHook
	RenderOptions export.RenderOptions
	Filename      string
	Now           func() time.Time
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	URL       string
	Records   dataset.RecordSet
	Loading   bool
	Err       error
	Seq       uint64
	UpdatedAt time.Time
}

// HasData reports whether a record set is held. An empty set counts as data
// with no rows.
func (s Snapshot) HasData() bool {
	return s.Records != nil
}

// Exportable reports whether exports would produce a file.
func (s Snapshot) Exportable() bool {
	return len(s.Records) > 0
}

// Columns returns the header derived from the first record.
func (s Snapshot) Columns() []string {
	return s.Records.Columns()
}

// ErrorKind returns the kind of the last fetch failure.
func (s Snapshot) ErrorKind() export.ErrorKind {
	return export.KindFromError(s.Err)
}

// Controller is safe for concurrent use.
type Controller struct {
	fetcher  Fetcher
	runner   *export.Runner
	logger   export.Logger
	metrics  export.MetricsHook
	opts     export.RenderOptions
	filename string
	now      func() time.Time

	mu        sync.Mutex
	url       string
	records   dataset.RecordSet
	loading   bool
	err       error
	seq       uint64
	updatedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	closed    bool
}

// NewController creates a controller in the idle, no-data state.
func NewController(cfg Config) *Controller {
	c := &Controller{
		fetcher:  cfg.Fetcher,
		runner:   cfg.Runner,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		opts:     cfg.RenderOptions,
		filename: cfg.Filename,
		now:      cfg.Now,
	}
	if c.runner == nil {
		c.runner = export.NewRunner()
	}
	if c.logger == nil {
		c.logger = export.NopLogger{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// SetURL records the URL text.
func (c *Controller) SetURL(rawURL string) {
	c.mu.Lock()
	c.url = rawURL
	c.mu.Unlock()
}

// URL returns the current URL text.
func (c *Controller) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// Start begins fetching the current URL and returns the fetch's sequence
// token. A fetch already in flight is canceled and its result discarded.
// Existing data stays in place until the new fetch resolves. The fetch is
// detached from ctx cancellation so it outlives the request that started it.
func (c *Controller) Start(ctx context.Context) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if c.loading && c.done != nil {
		close(c.done)
	}

	c.seq++
	token := c.seq
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.loading = true
	c.done = make(chan struct{})

	if c.closed || c.fetcher == nil {
		err := export.NewError(export.KindInternal, "fetcher is not configured", nil)
		if c.closed {
			err = export.NewError(export.KindCanceled, "controller closed", context.Canceled)
		}
		go c.resolve(fetchCtx, token, c.url, nil, err, c.now())
		return token
	}

	go c.run(fetchCtx, token, c.url, c.now())
	return token
}

// Fetch starts a fetch and waits for the latest fetch to resolve.
func (c *Controller) Fetch(ctx context.Context) (Snapshot, error) {
	c.Start(ctx)
	snap, err := c.Wait(ctx)
	if err != nil {
		return snap, err
	}
	return snap, snap.Err
}

// Wait blocks until no fetch is in flight.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	for {
		c.mu.Lock()
		if !c.loading {
			snap := c.snapshotLocked()
			c.mu.Unlock()
			return snap, nil
		}
		done := c.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		URL:       c.url,
		Records:   c.records,
		Loading:   c.loading,
		Err:       c.err,
		Seq:       c.seq,
		UpdatedAt: c.updatedAt,
	}
}

// Close cancels any in-flight fetch. Later fetches resolve as canceled.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Controller) run(ctx context.Context, token uint64, rawURL string, started time.Time) {
	set, err := c.fetcher.Fetch(ctx, rawURL)
	c.resolve(ctx, token, rawURL, set, err, started)
}

func (c *Controller) resolve(ctx context.Context, token uint64, rawURL string, set dataset.RecordSet, err error, started time.Time) {
	c.mu.Lock()
	if token != c.seq {
		c.mu.Unlock()
		c.logger.Debugf("discarding fetch %d for %s: superseded by %d", token, rawURL, c.currentSeq())
		return
	}

	c.loading = false
	c.cancel = nil
	c.updatedAt = c.now()
	if err != nil {
		c.records = nil
		c.err = err
	} else {
		if set == nil {
			set = dataset.RecordSet{}
		}
		c.records = set
		c.err = nil
	}
	close(c.done)
	c.mu.Unlock()

	name := "fetch.completed"
	if err != nil {
		name = "fetch.failed"
		c.logger.Errorf("fetch %s failed (%s): %v", rawURL, export.KindFromError(err), err)
	} else {
		c.logger.Infof("fetched %d records from %s", len(set), rawURL)
	}
	c.emit(context.WithoutCancel(ctx), name, rawURL, int64(len(set)), started, err)
}

func (c *Controller) currentSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Export renders the current record set. With no data it writes nothing and
// returns export.ErrNoData.
func (c *Controller) Export(ctx context.Context, format export.Format, w io.Writer) (export.ExportResult, error) {
	format = export.NormalizeFormat(format)
	snap := c.Snapshot()
	if !snap.Exportable() {
		c.runner.Skip(ctx, format, snap.URL, export.ErrNoData)
		return export.ExportResult{}, export.ErrNoData
	}
	if !c.Supports(format) {
		return export.ExportResult{}, export.NewError(export.KindNotFound, fmt.Sprintf("export format %q is not available", format), nil)
	}

	return c.runner.Run(ctx, export.ExportRequest{
		Format:        format,
		Filename:      c.filename,
		Source:        snap.URL,
		Schema:        snap.Records.Schema(),
		Rows:          snap.Records.Iterator(),
		Output:        w,
		RenderOptions: c.opts,
	})
}

// Supports reports whether format has a registered renderer.
func (c *Controller) Supports(format export.Format) bool {
	if c.runner.Renderers == nil {
		return false
	}
	_, ok := c.runner.Renderers.Resolve(export.NormalizeFormat(format))
	return ok
}

// Filename returns the download name an export in format would use.
func (c *Controller) Filename(format export.Format) (string, error) {
	return export.Filename(c.filename, export.NormalizeFormat(format), c.URL(), c.now())
}

func (c *Controller) emit(ctx context.Context, name, rawURL string, rows int64, started time.Time, err error) {
	if c.metrics == nil {
		return
	}
	now := c.now()
	kind := export.ErrorKind("")
	if err != nil {
		kind = export.KindFromError(err)
	}
	if emitErr := c.metrics.Emit(ctx, export.MetricsEvent{
		Name:      name,
		Source:    rawURL,
		Rows:      rows,
		Duration:  now.Sub(started),
		ErrorKind: kind,
		Timestamp: now,
	}); emitErr != nil && !errors.Is(emitErr, context.Canceled) {
		c.logger.Debugf("metrics emit %s failed: %v", name, emitErr)
	}
}
