package main

import (
	"errors"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	exportlogrus "github.com/goliatone/go-tableview/adapters/logrus"
	exportmetrics "github.com/goliatone/go-tableview/adapters/metrics"
	exportpdf "github.com/goliatone/go-tableview/adapters/pdf"
	"github.com/goliatone/go-tableview/adapters/session"
	exportsqlite "github.com/goliatone/go-tableview/adapters/sqlite"
	exporttemplate "github.com/goliatone/go-tableview/adapters/template"
	exportpongo2 "github.com/goliatone/go-tableview/adapters/template/pongo2"
	"github.com/goliatone/go-tableview/adapters/viewerapi"
	"github.com/goliatone/go-tableview/cmd/tableview/config"
	"github.com/goliatone/go-tableview/export"
	exporthttpjson "github.com/goliatone/go-tableview/sources/httpjson"
	"github.com/goliatone/go-tableview/viewer"
)

// App holds the wired components shared by the serve and export commands.
type App struct {
	Config    config.Config
	Log       *logrus.Logger
	Runner    *export.Runner
	Fetcher   *exporthttpjson.Fetcher
	Sessions  *session.Store
	Templates *exportpongo2.Executor
	Registry  *prometheus.Registry
	Metrics   export.MetricsHook
	Formats   []export.Format

	closers []func() error
}

// NewApp wires the runner, fetcher, session store and metrics from cfg.
func NewApp(cfg config.Config, out io.Writer) (*App, error) {
	log, err := exportlogrus.New(cfg.Log.Level, cfg.Log.Format, out)
	if err != nil {
		return nil, err
	}
	templates, err := exportpongo2.NewExecutor()
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		Log:       log,
		Templates: templates,
	}

	if cfg.Metrics.Enabled {
		app.Registry = prometheus.NewRegistry()
		app.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		hook, err := exportmetrics.NewHook(app.Registry, cfg.Metrics.Namespace)
		if err != nil {
			return nil, err
		}
		app.Metrics = hook
	}

	if err := app.setupRunner(); err != nil {
		app.Close()
		return nil, err
	}

	app.Fetcher = exporthttpjson.NewFetcher(exporthttpjson.Config{
		Timeout:      cfg.Fetch.Timeout,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		UserAgent:    cfg.Fetch.UserAgent,
		Logger:       exportlogrus.Wrap(log, "fetch"),

		DenyPrivateNetworks: cfg.Fetch.DenyPrivateNetworks,
	})
	app.Sessions = session.NewStore(session.Config{
		TTL:        cfg.Session.TTL,
		Capacity:   cfg.Session.Capacity,
		Controller: app.newController,
		Logger:     exportlogrus.Wrap(log, "session"),
	})
	app.Formats = app.offeredFormats()
	return app, nil
}

func (a *App) setupRunner() error {
	a.Runner = export.NewRunner()
	a.Runner.Logger = exportlogrus.Wrap(a.Log, "export")
	a.Runner.Metrics = a.Metrics

	renderers := a.Runner.Renderers
	if err := renderers.Register(export.FormatTemplate, exporttemplate.Renderer{
		Enabled:      true,
		Templates:    a.Templates,
		TemplateName: exportpongo2.TemplateDocument,
	}); err != nil {
		return err
	}
	if err := renderers.Register(export.FormatSQLite, exportsqlite.Renderer{
		Enabled:   true,
		TableName: a.Config.Export.SQLiteTable,
	}); err != nil {
		return err
	}

	engine, err := a.pdfEngine()
	if err != nil {
		return err
	}
	if engine == nil {
		a.Log.Infof("pdf export disabled")
		return nil
	}
	pdf, err := exportpdf.NewRenderer(engine)
	if err != nil {
		return err
	}
	if a.Config.PDF.LandscapeColumns > 0 {
		pdf.LandscapeColumns = a.Config.PDF.LandscapeColumns
	}
	return renderers.Register(export.FormatPDF, pdf)
}

func (a *App) pdfEngine() (exportpdf.Engine, error) {
	cfg := a.Config.PDF
	switch strings.ToLower(strings.TrimSpace(cfg.Engine)) {
	case "", config.PDFEngineChromium:
		engine := &exportpdf.ChromiumEngine{
			BrowserPath: cfg.ChromiumPath,
			Headless:    cfg.Headless,
			Timeout:     cfg.Timeout,
			Args:        cfg.Args,
			Defaults:    pdfDefaults(cfg),
			FitColumns:  cfg.FitColumns,
		}
		a.closers = append(a.closers, engine.Close)
		return engine, nil
	case config.PDFEngineWKHTMLTOPDF:
		return exportpdf.WKHTMLTOPDFEngine{
			Command:  cfg.WKHTMLTOPDFPath,
			Timeout:  cfg.Timeout,
			Defaults: pdfDefaults(cfg),
		}, nil
	case config.PDFEngineNone:
		return nil, nil
	default:
		return nil, export.NewError(export.KindValidation, "unknown pdf engine "+cfg.Engine, nil)
	}
}

func pdfDefaults(cfg config.PDFConfig) export.PDFOptions {
	pageNumbers := cfg.PageNumbers
	return export.PDFOptions{
		PageSize:     cfg.PageSize,
		MarginTop:    cfg.MarginTop,
		MarginBottom: cfg.MarginBottom,
		MarginLeft:   cfg.MarginLeft,
		MarginRight:  cfg.MarginRight,
		PageNumbers:  &pageNumbers,
	}
}

// offeredFormats keeps the configured formats that have a renderer.
func (a *App) offeredFormats() []export.Format {
	var formats []export.Format
	for _, raw := range a.Config.Export.Formats {
		format := export.NormalizeFormat(export.Format(raw))
		if _, ok := a.Runner.Renderers.Resolve(format); !ok {
			a.Log.Warnf("export format %q is not available, skipping", raw)
			continue
		}
		formats = append(formats, format)
	}
	if len(formats) == 0 {
		formats = []export.Format{export.FormatCSV}
	}
	return formats
}

func (a *App) renderOptions() export.RenderOptions {
	return export.RenderOptions{
		Format: export.FormatOptions{Timezone: a.Config.Export.Timezone},
		SQLite: export.SQLiteOptions{TableName: a.Config.Export.SQLiteTable},
		Template: export.TemplateOptions{
			Title: viewerapi.TableTitle,
		},
	}
}

func (a *App) newController() *viewer.Controller {
	return viewer.NewController(viewer.Config{
		Fetcher:       a.Fetcher,
		Runner:        a.Runner,
		Logger:        exportlogrus.Wrap(a.Log, "viewer"),
		Metrics:       a.Metrics,
		RenderOptions: a.renderOptions(),
		Filename:      a.Config.Export.Filename,
	})
}

// ViewerConfig configures the page and API transport.
func (a *App) ViewerConfig() viewerapi.Config {
	return viewerapi.Config{
		Sessions:     a.Sessions,
		Templates:    a.Templates,
		BasePath:     a.Config.Server.BasePath,
		Formats:      a.Formats,
		CookieName:   a.Config.Session.CookieName,
		FetchTimeout: a.Config.Fetch.WaitTimeout,
		MaxBodyBytes: a.Config.Server.MaxBodyBytes,
		Logger:       exportlogrus.Wrap(a.Log, "http"),
	}
}

// Close drops every session and releases the PDF engine.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	var errs []error
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
