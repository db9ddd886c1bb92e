package ui

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/internal/earthengine"
	"github.com/itss-sierra/islas-calor/internal/panels"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// script feeds lines to the menu and captures what it prints.
func script(t *testing.T, lines ...string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	oldIn, oldOut, oldNow := in, out, timeNow
	in = bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	out = &buf
	timeNow = func() time.Time { return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { in, out, timeNow = oldIn, oldOut, oldNow })
	return &buf
}

func offlineApp(t *testing.T, notified *[]string) *App {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	conn := panels.NewConnection(func(context.Context) (earthengine.Evaluator, error) {
		return nil, errors.New("sin credenciales")
	}, log, nil)
	clock := func() time.Time { return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC) }
	dash := panels.NewDashboard(conn, "areas_urbanas", t.TempDir(), panels.WithLogger(log), panels.WithClock(clock))
	return NewApp(context.Background(), dash, analysis.DefaultSession(), func(msg string) error {
		*notified = append(*notified, msg)
		return nil
	})
}

func TestMenuInfoAndExit(t *testing.T) {
	buf := script(t, "6", "11")
	var notified []string
	offlineApp(t, &notified).ShowMenu()

	assert.Contains(t, buf.String(), "Adrian Lara Vázquez (Residente)")
	assert.Contains(t, buf.String(), "Saliendo...")
}

func TestMenuStopsAtEndOfInput(t *testing.T) {
	script(t, "99")
	var notified []string
	app := offlineApp(t, &notified)
	app.ShowMenu()
	assert.Empty(t, notified)
}

func TestMenuChangesSession(t *testing.T) {
	buf := script(t,
		"7", "16", // Teapa
		"8", "2023-03-01", "2023-04-15",
		"8", "2023-05-01", "2023-04-15", // rejected
		"9", "20",
		"11",
	)
	var notified []string
	app := offlineApp(t, &notified)
	app.ShowMenu()

	s := app.Session()
	assert.Equal(t, "Teapa", s.Locality)
	assert.Equal(t, "2023-03-01 a 2023-04-15", s.Dates.String())
	assert.Equal(t, 20.0, s.CloudCeiling)
	assert.Contains(t, buf.String(), "Localidad seleccionada: Teapa")
	assert.Contains(t, buf.String(), "Error: ")
	assert.Empty(t, notified)
}

func TestMapOfflineShowsBaseMaps(t *testing.T) {
	buf := script(t, "1", "11")
	var notified []string
	offlineApp(t, &notified).ShowMenu()

	assert.Contains(t, buf.String(), panels.MsgBaseMapOnly)
	assert.Contains(t, buf.String(), "Error GEE: sin credenciales")
	assert.Contains(t, buf.String(), "Esri Satellite")
	assert.Empty(t, notified, "a missing backend is not reported as a failure")
}

func TestComparisonSelection(t *testing.T) {
	buf := script(t, "4", "4", "11")
	var notified []string
	app := offlineApp(t, &notified)
	app.ShowMenu()

	assert.Equal(t, []string{"Villahermosa"}, app.Session().Compare)
	assert.Contains(t, buf.String(), "Selecciona exactamente 2 ciudades.")
}

func TestParseSelection(t *testing.T) {
	names, err := ParseSelection("4, 16")
	require.NoError(t, err)
	assert.Equal(t, []string{"Villahermosa", "Teapa"}, names)

	_, err = ParseSelection("4,18")
	assert.Error(t, err)
	_, err = ParseSelection("x")
	assert.Error(t, err)
}
