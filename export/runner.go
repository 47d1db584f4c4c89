package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Runner orchestrates export execution.
type Runner struct {
	Renderers   *RendererRegistry
	Logger      Logger
	Metrics     MetricsHook
	Now         func() time.Time
	IDGenerator func() string
}

// NewRunner creates a runner with the built in renderers registered.
func NewRunner() *Runner {
	renderers := NewRendererRegistry()
	_ = renderers.Register(FormatCSV, CSVRenderer{})
	_ = renderers.Register(FormatJSON, JSONRenderer{})
	_ = renderers.Register(FormatXLSX, XLSXRenderer{})

	return &Runner{
		Renderers:   renderers,
		Logger:      NopLogger{},
		Now:         time.Now,
		IDGenerator: uuid.NewString,
	}
}

// Run executes an export request. Rows come from req.Rows when set,
// otherwise from req.RowSource.
func (r *Runner) Run(ctx context.Context, req ExportRequest) (ExportResult, error) {
	if r == nil {
		return ExportResult{}, NewError(KindInternal, "runner is nil", nil)
	}
	if r.Renderers == nil {
		return ExportResult{}, NewError(KindInternal, "runner renderers are not configured", nil)
	}
	if r.Now == nil {
		r.Now = time.Now
	}
	if r.Logger == nil {
		r.Logger = NopLogger{}
	}
	if r.IDGenerator == nil {
		r.IDGenerator = uuid.NewString
	}

	req.Format = NormalizeFormat(req.Format)
	if req.Output == nil {
		return ExportResult{}, NewError(KindValidation, "output writer is required", nil)
	}

	renderer, ok := r.Renderers.Resolve(req.Format)
	if !ok {
		return ExportResult{}, NewError(KindNotFound, fmt.Sprintf("renderer %q not registered", req.Format), nil)
	}

	filename, err := Filename(req.Filename, req.Format, req.Source, r.Now())
	if err != nil {
		return ExportResult{}, err
	}

	ctx, cancel := applyMaxDuration(ctx, r.Now, req.MaxDuration)
	if cancel != nil {
		defer cancel()
	}

	info := runInfo{
		exportID:  r.IDGenerator(),
		source:    req.Source,
		format:    req.Format,
		startedAt: r.Now(),
	}

	rows, schema, err := r.openRows(ctx, req)
	if err != nil {
		r.fail(ctx, info, err)
		return ExportResult{}, err
	}
	defer rows.Close()

	output := req.Output
	if req.MaxBytes > 0 {
		output = newLimitedWriter(output, req.MaxBytes)
	}

	r.Logger.Debugf("export %s started: format=%s columns=%d", info.exportID, req.Format, len(schema.Columns))
	stats, err := renderer.Render(ctx, schema, rows, output, req.RenderOptions)
	if err != nil {
		r.fail(ctx, info, err)
		return ExportResult{}, err
	}

	r.Logger.Infof("export %s completed: format=%s rows=%d bytes=%d file=%s", info.exportID, req.Format, stats.Rows, stats.Bytes, filename)
	r.emitMetrics(ctx, info, "export.completed", stats, nil)

	return ExportResult{
		ID:          info.exportID,
		Format:      req.Format,
		Rows:        stats.Rows,
		Bytes:       stats.Bytes,
		Filename:    filename,
		ContentType: ContentTypeForFormat(req.Format),
	}, nil
}

// Skip records an export that was not performed, such as one requested
// while no data is loaded.
func (r *Runner) Skip(ctx context.Context, format Format, source string, reason error) {
	if r == nil {
		return
	}
	if r.Now == nil {
		r.Now = time.Now
	}
	if r.Logger == nil {
		r.Logger = NopLogger{}
	}
	info := runInfo{source: source, format: NormalizeFormat(format), startedAt: r.Now()}
	r.Logger.Debugf("export skipped: format=%s reason=%v", info.format, reason)
	r.emitMetrics(ctx, info, "export.noop", RenderStats{}, reason)
}

func (r *Runner) openRows(ctx context.Context, req ExportRequest) (RowIterator, Schema, error) {
	if req.Rows != nil {
		if len(req.Schema.Columns) == 0 {
			req.Rows.Close()
			return nil, Schema{}, NewError(KindValidation, "schema is required", nil)
		}
		return req.Rows, req.Schema, nil
	}
	if req.RowSource == nil {
		return nil, Schema{}, NewError(KindValidation, "rows or row source is required", nil)
	}

	rows, schema, err := req.RowSource.Open(ctx, req)
	if err != nil {
		return nil, Schema{}, err
	}
	if len(req.Schema.Columns) > 0 {
		schema = req.Schema
	}
	if len(schema.Columns) == 0 {
		rows.Close()
		return nil, Schema{}, ErrNoData
	}
	return rows, schema, nil
}

func (r *Runner) fail(ctx context.Context, info runInfo, err error) {
	if errors.Is(err, context.Canceled) {
		r.Logger.Debugf("export %s canceled", info.exportID)
		r.emitMetrics(ctx, info, "export.canceled", RenderStats{}, err)
		return
	}
	r.Logger.Errorf("export %s failed: format=%s kind=%s err=%v", info.exportID, info.format, KindFromError(err), err)
	r.emitMetrics(ctx, info, "export.failed", RenderStats{}, err)
}

func (r *Runner) emitMetrics(ctx context.Context, info runInfo, name string, stats RenderStats, err error) {
	if r.Metrics == nil {
		return
	}
	now := r.Now()
	kind := ErrorKind("")
	if err != nil {
		kind = KindFromError(err)
	}
	_ = r.Metrics.Emit(ctx, MetricsEvent{
		Name:      name,
		ExportID:  info.exportID,
		Source:    info.source,
		Format:    info.format,
		Rows:      stats.Rows,
		Bytes:     stats.Bytes,
		Duration:  now.Sub(info.startedAt),
		ErrorKind: kind,
		Timestamp: now,
	})
}

type runInfo struct {
	exportID  string
	source    string
	format    Format
	startedAt time.Time
}

func applyMaxDuration(ctx context.Context, nowFn func() time.Time, limit time.Duration) (context.Context, context.CancelFunc) {
	if limit <= 0 {
		return ctx, nil
	}
	now := time.Now
	if nowFn != nil {
		now = nowFn
	}
	deadline := now().Add(limit)
	if existing, ok := ctx.Deadline(); ok && existing.Before(deadline) {
		return ctx, nil
	}
	return context.WithDeadline(ctx, deadline)
}
