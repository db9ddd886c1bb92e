// Package panels turns pipeline results into the dashboard sections: map,
// graphics, comparison, downloads and info. Every section returns a view
// model with the status messages the user should see.
package panels

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/internal/metrics"
	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelToast   Level = "toast"
)

type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Messages collects what a panel tells the user.
type Messages []Message

func (m *Messages) add(level Level, format string, args ...any) {
	*m = append(*m, Message{Level: level, Text: fmt.Sprintf(format, args...)})
}

// Has reports whether any message has the given level.
func (m Messages) Has(level Level) bool {
	for _, msg := range m {
		if msg.Level == level {
			return true
		}
	}
	return false
}

func (m Messages) outcome() string {
	switch {
	case m.Has(LevelToast):
		return "unavailable"
	case m.Has(LevelError):
		return "error"
	case m.Has(LevelWarning):
		return "warning"
	case m.Has(LevelInfo) && !m.Has(LevelSuccess):
		return "info"
	}
	return "ok"
}

const (
	PanelMap        = "mapas"
	PanelGraphics   = "graficas"
	PanelComparison = "comparativa"
	PanelDownloads  = "descargas"
	PanelInfo       = "info"
)

// Dashboard renders the panels against whatever backend the Connection
// hands out. Charts and legends go to resultDir/<locality>/.
type Dashboard struct {
	conn      *Connection
	asset     string
	resultDir string
	metrics   *metrics.Collector
	log       logrus.FieldLogger
	now       func() time.Time
}

type Option func(*Dashboard)

func WithMetrics(m *metrics.Collector) Option {
	return func(d *Dashboard) { d.metrics = m }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Dashboard) { d.log = l }
}

// WithClock fixes "today" for session validation.
func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) { d.now = now }
}

func NewDashboard(conn *Connection, localitiesAsset, resultDir string, opts ...Option) *Dashboard {
	d := &Dashboard{
		conn:      conn,
		asset:     localitiesAsset,
		resultDir: resultDir,
		log:       logrus.StandardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dashboard) Connection() *Connection { return d.conn }

// ChartPath is where a chart or legend of a locality is written.
func (d *Dashboard) ChartPath(locality, chart string) string {
	return filepath.Join(d.resultDir, locality, chart+".png")
}

func (d *Dashboard) localityDir(locality string) (string, error) {
	dir := filepath.Join(d.resultDir, locality)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("error creating result directory: %w", err)
	}
	return dir, nil
}

// pipeline connects on demand. A failed connection is reported through
// msgs and returns nil.
func (d *Dashboard) pipeline(ctx context.Context, msgs *Messages) *analysis.Pipeline {
	ev, err := d.conn.Evaluator(ctx)
	if err != nil {
		cause := d.conn.LastError()
		if cause == nil {
			cause = err
		}
		msgs.add(LevelError, "Error GEE: %v", cause)
		return nil
	}
	return analysis.NewPipeline(ev, d.asset, d.log)
}

func (d *Dashboard) validate(s analysis.Session) error {
	return s.Validate(d.now())
}

func (d *Dashboard) record(panel string, start time.Time, msgs Messages, err error) {
	outcome := msgs.outcome()
	if err != nil {
		outcome = "failed"
	}
	if d.metrics != nil {
		d.metrics.RecordPanel(panel, outcome, time.Since(start))
	}
	entry := d.log.WithFields(logrus.Fields{
		"panel":    panel,
		"outcome":  outcome,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("panel failed")
		return
	}
	entry.Debug("panel rendered")
}

// userFacing converts the expected pipeline conditions into messages and
// reports whether err was one of them.
func userFacing(err error, msgs *Messages, noData string) bool {
	switch {
	case errors.Is(err, analysis.ErrLocalityNotFound):
		msgs.add(LevelError, "%s", analysis.ErrLocalityNotFound.Error())
	case errors.Is(err, analysis.ErrNoCleanImagery):
		msgs.add(LevelWarning, "%s", noData)
	default:
		return false
	}
	return true
}
