package ui

import (
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/internal/panels"
)

var timeNow = time.Now

func printCharts(charts map[string]string) {
	names := make([]string, 0, len(charts))
	for name := range charts {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s- %s: %s%s\n", ColorGreen, name, charts[name], ColorReset)
	}
}

func printMetrics(metrics []panels.Metric) {
	for _, m := range metrics {
		fmt.Fprintf(out, "%s%s: %s%s\n", ColorCyan, m.Label, m.Value, ColorReset)
	}
}

func (a *App) ShowMap() {
	view, err := a.dash.Map(a.ctx, a.session)
	if err != nil {
		a.fail(panels.PanelMap, err)
		return
	}
	PrintMessages(view.Messages)
	printMetrics(view.Metrics)

	fmt.Fprintf(out, "%s\nCentro: %.4f, %.4f (zoom %d)%s\n", ColorGreen, view.Center.Lat(), view.Center.Lon(), view.Zoom, ColorReset)
	fmt.Fprintf(out, "%sMapas base:%s\n", ColorGreen, ColorReset)
	for _, b := range view.Basemaps {
		fmt.Fprintf(out, "%s- %s: %s%s\n", ColorGreen, b.Name, b.URL, ColorReset)
	}
	if len(view.Layers) == 0 {
		return
	}
	fmt.Fprintf(out, "%sCapas:%s\n", ColorGreen, ColorReset)
	for _, l := range view.Layers {
		fmt.Fprintf(out, "%s- %s: %s%s\n", ColorGreen, l.Name, l.URL, ColorReset)
	}
	printCharts(view.Legends)

	for ReadYesNo("¿Inspeccionar un punto?") {
		lat, err := ReadFloat("Latitud: ")
		if err != nil {
			PrintError(err.Error())
			continue
		}
		lon, err := ReadFloat("Longitud: ")
		if err != nil {
			PrintError(err.Error())
			continue
		}
		iv, err := a.dash.Inspect(a.ctx, a.session, lon, lat)
		if err != nil {
			a.fail(panels.PanelMap, err)
			return
		}
		PrintSuccess(iv.Title)
		PrintMessages(iv.Messages)
		printMetrics(iv.Metrics)
	}
}

func (a *App) ShowGraphics() {
	view, err := a.dash.Graphics(a.ctx, a.session)
	if err != nil {
		a.fail(panels.PanelGraphics, err)
		return
	}
	PrintMessages(view.Messages)
	if len(view.Charts) > 0 {
		fmt.Fprintf(out, "%sGráficas generadas (%d imágenes, %d puntos):%s\n", ColorGreen, view.Scenes, len(view.Samples), ColorReset)
		printCharts(view.Charts)
	}
}

func (a *App) ShowAnnual() {
	view, err := a.dash.Annual(a.ctx, a.session)
	if err != nil {
		a.fail(panels.PanelGraphics, err)
		return
	}
	PrintMessages(view.Messages)
	for _, p := range view.Points {
		fmt.Fprintf(out, "%s%d: %.2f °C%s\n", ColorCyan, p.Year, p.LST, ColorReset)
	}
	printCharts(view.Charts)
}

func (a *App) ShowComparison() {
	for i, name := range analysis.Localities {
		fmt.Fprintf(out, "%s%d. %s%s\n", ColorGreen, i+1, name, ColorReset)
	}
	input, err := ReadString(fmt.Sprintf("Números de las ciudades a comparar, ej. 4,16 (Enter mantiene %v): ", a.session.Compare))
	if err != nil {
		PrintError(err.Error())
		return
	}
	if input != "" {
		cities, err := ParseSelection(input)
		if err != nil {
			PrintError(err.Error())
			return
		}
		a.session.Compare = cities
	}

	view, err := a.dash.Comparison(a.ctx, a.session)
	if err != nil {
		a.fail(panels.PanelComparison, err)
		return
	}
	PrintMessages(view.Messages)
	if len(view.Rows) > 0 {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "Ciudad\tMétrica\tValor")
		for _, r := range view.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Locality, r.Metric, analysis.FormatValue(r.Value, "%.2f"))
		}
		tw.Flush()
	}
	printCharts(view.Charts)
}

func (a *App) ShowDownloads() {
	view, err := a.dash.Downloads(a.ctx, a.session)
	if err != nil {
		a.fail(panels.PanelDownloads, err)
		return
	}
	PrintMessages(view.Messages)
	printCharts(view.Files)
}

func (a *App) ShowInfo() {
	info := a.dash.Info()
	PrintSuccess(info.Title)
	fmt.Fprintln(out, info.Description)
	fmt.Fprintf(out, "%s\nAutores:%s\n", ColorGreen, ColorReset)
	for _, p := range info.Authors {
		fmt.Fprintf(out, "%s- %s (%s)%s\n", ColorGreen, p.Name, p.Role, ColorReset)
	}
	for _, inst := range info.Institutions {
		fmt.Fprintf(out, "%s%s%s\n", ColorCyan, inst, ColorReset)
	}
}
