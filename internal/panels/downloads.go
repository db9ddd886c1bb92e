package panels

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/internal/export"
)

const (
	msgNothingToExport = "No hay datos para exportar."
	msgGenerating      = "Generando archivos..."
)

type DownloadsView struct {
	Session  analysis.Session  `json:"session"`
	Series   int               `json:"series_rows"`
	Samples  int               `json:"sample_rows"`
	Files    map[string]string `json:"files,omitempty"`
	Messages Messages          `json:"messages"`
}

func (v *DownloadsView) messages() Messages {
	if v == nil {
		return nil
	}
	return v.Messages
}

// Downloads writes the export tables for s under resultDir/<locality>/ and
// lists the files by kind. Empty tables produce no file.
func (d *Dashboard) Downloads(ctx context.Context, s analysis.Session) (view *DownloadsView, err error) {
	if err := d.validate(s); err != nil {
		return nil, err
	}
	start := time.Now()
	view = &DownloadsView{Session: s}
	defer func() { d.record(PanelDownloads, start, view.messages(), err) }()

	p := d.pipeline(ctx, &view.Messages)
	if p == nil {
		return view, nil
	}
	view.Messages.add(LevelInfo, msgGenerating)
	tables, err := p.Downloads(ctx, s)
	if userFacing(err, &view.Messages, msgNothingToExport) {
		return view, nil
	}
	if err != nil {
		return nil, err
	}
	view.Series, view.Samples = len(tables.Series), len(tables.Samples)
	if view.Series == 0 && view.Samples == 0 {
		view.Messages.add(LevelWarning, msgNothingToExport)
		return view, nil
	}

	written, err := export.WriteFiles(filepath.Join(d.resultDir, s.Locality), s.Locality, tables)
	if err != nil {
		return nil, err
	}
	view.Files = map[string]string{}
	for _, path := range written {
		view.Files[fileKind(path)] = path
	}
	view.Messages.add(LevelSuccess, "%d archivos listos para descargar.", len(written))
	return view, nil
}

func fileKind(path string) string {
	base := filepath.Base(path)
	for _, kind := range []string{export.KindSeries, export.KindSamples} {
		if strings.HasPrefix(base, kind) {
			if ext := filepath.Ext(base); ext != ".csv" {
				return kind + ext
			}
			return kind
		}
	}
	return base
}
