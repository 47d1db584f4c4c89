package main

import (
	"context"
	"io"
	"os"

	"github.com/goliatone/go-command/dispatcher"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-tableview/command"
	"github.com/goliatone/go-tableview/export"
	"github.com/goliatone/go-tableview/viewer"
)

type exportOptions struct {
	URL    string
	Format string
	Out    string
}

// runExport fetches opts.URL once and writes it in opts.Format. An empty
// record set writes nothing. Out "-" writes to stdout and an empty Out
// writes table_data.{ext} in the working directory.
func runExport(ctx context.Context, app *App, opts exportOptions, stdout io.Writer) error {
	subs, err := command.RegisterHandlers(nil, app.Sessions)
	if err != nil {
		return err
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	id, ctrl, err := app.Sessions.Create()
	if err != nil {
		return err
	}

	snap, err := dispatcher.DispatchWithResult[command.FetchRecords, viewer.Snapshot](ctx, command.FetchRecords{
		SessionID: id,
		URL:       opts.URL,
	})
	if err != nil {
		return err
	}
	if !snap.Exportable() {
		app.Log.Warnf("no records at %s, nothing exported", opts.URL)
		return nil
	}

	format := export.NormalizeFormat(export.Format(opts.Format))
	if !ctrl.Supports(format) {
		return export.NewError(export.KindNotFound, "export format "+string(format)+" is not available", nil)
	}

	out := opts.Out
	var w io.Writer = stdout
	if out != "-" {
		if out == "" {
			if out, err = ctrl.Filename(format); err != nil {
				return err
			}
		}
		file, err := os.Create(out)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}

	result, err := dispatcher.DispatchWithResult[command.ExportRecords, export.ExportResult](ctx, command.ExportRecords{
		SessionID: id,
		Format:    format,
		Output:    w,
	})
	if err != nil {
		if out != "-" {
			_ = os.Remove(out)
		}
		return err
	}

	app.Log.WithFields(logrus.Fields{
		"format": result.Format,
		"rows":   result.Rows,
		"bytes":  result.Bytes,
		"out":    out,
	}).Info("export written")
	return nil
}
