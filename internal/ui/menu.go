package ui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/internal/panels"
)

type menuOption struct {
	title   string
	handler func()
}

// App holds the terminal session: the dashboard and the current selection.
type App struct {
	dash    *panels.Dashboard
	session analysis.Session
	ctx     context.Context
	notify  func(string) error
}

// NewApp starts from session s. notify receives unexpected panel failures.
func NewApp(ctx context.Context, dash *panels.Dashboard, s analysis.Session, notify func(string) error) *App {
	if notify == nil {
		notify = func(string) error { return nil }
	}
	return &App{dash: dash, session: s, ctx: ctx, notify: notify}
}

func (a *App) Session() analysis.Session { return a.session }

func (a *App) printSession() {
	fmt.Fprintf(out, "%s\nLocalidad: %s | Periodo: %s | Nubosidad < %.0f%%%s\n",
		ColorCyan, a.session.Locality, a.session.Dates, a.session.CloudCeiling, ColorReset)
}

// ShowMenu displays the main menu and handles user input until the user
// exits or the input ends.
func (a *App) ShowMenu() {
	exit := false
	menuOptions := []menuOption{
		{"Mapas: calor superficial, zonas críticas y refugios verdes", a.ShowMap},
		{"Gráficas: dispersión, histograma y serie de tiempo", a.ShowGraphics},
		{"Gráficas: evolución anual", a.ShowAnnual},
		{"Comparativa entre dos ciudades", a.ShowComparison},
		{"Descargas CSV", a.ShowDownloads},
		{"Info del proyecto", a.ShowInfo},
		{"Cambiar localidad", a.ChangeLocality},
		{"Cambiar fechas", a.ChangeDates},
		{"Cambiar nubosidad máxima", a.ChangeCloudCeiling},
		{"Recargar conexión", a.Reload},
		{"Salir", func() { fmt.Fprintln(out, "Saliendo..."); exit = true }},
	}

	for !exit {
		a.printSession()
		fmt.Fprintln(out, "\033[34m===================\033[0m")
		for i, opt := range menuOptions {
			fmt.Fprintf(out, "\033[34m%d. %s\033[0m\n", i+1, opt.title)
		}

		choice, err := ReadInt("Elige una opción: ", 1, len(menuOptions))
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			PrintError(err.Error())
			continue
		}
		menuOptions[choice-1].handler()
	}
}

// fail reports an unexpected panel error and forwards it to the webhook.
func (a *App) fail(panel string, err error) {
	PrintError(err.Error())
	if !errors.Is(err, analysis.ErrInvalidSession) {
		if nerr := a.notify(fmt.Sprintf("Panel %s (%s, %s): %s", panel, a.session.Locality, a.session.Dates, err)); nerr != nil {
			PrintError("No se pudo enviar la notificación: " + nerr.Error())
		}
	}
}

func (a *App) ChangeLocality() {
	name, err := SelectLocality("Número de la localidad: ")
	if err != nil {
		PrintError(err.Error())
		return
	}
	a.session.Locality = name
	PrintSuccess("Localidad seleccionada: " + name)
}

func (a *App) ChangeDates() {
	dates, err := ReadDateRange(a.session.Dates)
	if err != nil {
		PrintError(err.Error())
		return
	}
	next := a.session
	next.Dates = dates
	if err := next.Validate(timeNow()); err != nil {
		PrintError(err.Error())
		return
	}
	a.session = next
	PrintSuccess("Periodo: " + dates.String())
}

func (a *App) ChangeCloudCeiling() {
	v, err := ReadFloat(fmt.Sprintf("Nubosidad máxima en %% (actual %.0f): ", a.session.CloudCeiling))
	if err != nil {
		PrintError(err.Error())
		return
	}
	next := a.session
	next.CloudCeiling = v
	if err := next.Validate(timeNow()); err != nil {
		PrintError(err.Error())
		return
	}
	a.session = next
	PrintSuccess(fmt.Sprintf("Nubosidad máxima: %.0f%%", v))
}

func (a *App) Reload() {
	a.dash.Connection().Reload()
	PrintSuccess("Conexión reiniciada. Se reconectará en el siguiente panel.")
}
