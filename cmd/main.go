package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/internal/logging"
	"github.com/itss-sierra/islas-calor/internal/metrics"
	"github.com/itss-sierra/islas-calor/internal/notification"
	"github.com/itss-sierra/islas-calor/internal/panels"
	"github.com/itss-sierra/islas-calor/internal/properties"
	"github.com/itss-sierra/islas-calor/internal/server"
	"github.com/itss-sierra/islas-calor/internal/ui"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func printBanner() {
	figure1 := figure.NewFigure("Islas de", "isometric1", true)
	figure2 := figure.NewFigure("Calor", "isometric1", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

// recoverPanic reports a crash with its location to the error webhook.
func recoverPanic(command string) {
	r := recover()
	if r == nil {
		return
	}
	pc, file, line, ok := runtime.Caller(3) // 3 levels up is often the panic source
	location := "Unknown location"
	if ok {
		location = fmt.Sprintf("%s:%d in %s", file, line, runtime.FuncForPC(pc).Name())
	}

	fmt.Printf("\n\033[31mPANIC: %v\033[0m\n", r)
	fmt.Printf("\033[31mLocation: %s\033[0m\n", location)
	fmt.Printf("\033[31mExiting...\033[0m\n")

	errMessage := fmt.Sprintf("Islas de Calor %s panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", command, r, location, debug.Stack())
	if err := notification.SendDiscordErrorNotification(errMessage); err != nil {
		fmt.Printf("\033[31mFailed to send notification: %s\033[0m\n", err.Error())
	}
	os.Exit(2)
}

// runtimeDeps is what every command shares: logger, metrics and a dashboard
// bound to the configured backend.
type runtimeDeps struct {
	log     *logrus.Logger
	metrics *metrics.Collector
	health  *server.Health
	dash    *panels.Dashboard
}

func setup() *runtimeDeps {
	log := logging.Setup(properties.LogLevel(), os.Stderr)
	m := metrics.NewCollector("islas_calor", prometheus.DefaultRegisterer)
	health := server.NewHealth()

	conn := panels.NewConnection(connector(properties.Backend(), log, m), log, func(available bool) {
		health.SetBackend(available)
		m.SetBackendAvailable(available)
	})
	dash := panels.NewDashboard(conn, properties.LocalitiesAsset(), properties.ResultPath(),
		panels.WithMetrics(m), panels.WithLogger(log))
	return &runtimeDeps{log: log, metrics: m, health: health, dash: dash}
}

func defaultSession() analysis.Session {
	s := analysis.DefaultSession()
	s.CloudCeiling = properties.MaxCloudCover()
	return s
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "islas-calor",
		Short: "Islas de calor urbano en localidades de Tabasco",
		Long:  "Temperatura superficial (LST) y NDVI de Landsat 8/9 para las localidades urbanas de Tabasco.",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer recoverPanic("CLI")
			deps := setup()
			printBanner()
			ui.NewApp(cmd.Context(), deps.dash, defaultSession(), notification.SendDiscordErrorNotification).ShowMenu()
			return nil
		},
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newExportCmd(), newCatalogCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var httpPort, grpcPort int
	var origins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Publica el tablero por HTTP y la salud del backend por gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer recoverPanic("server")
			deps := setup()

			opts := []server.Option{
				server.WithLayers(properties.LayersPath()),
				server.WithMetrics(deps.metrics, prometheus.DefaultGatherer),
				server.WithLogger(deps.log),
			}
			if len(origins) > 0 {
				opts = append(opts, server.WithAllowedOrigins(origins...))
			}
			srv := server.New(deps.dash, opts...)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Connect eagerly so the health status is meaningful before the first request.
			if _, err := deps.dash.Connection().Evaluator(ctx); err != nil {
				deps.log.WithError(err).Warn("backend unavailable at startup")
			}

			err := server.Run(ctx, fmt.Sprintf(":%d", httpPort), fmt.Sprintf(":%d", grpcPort), srv.Routes(), deps.health, deps.log)
			if err != nil {
				if nerr := notification.SendDiscordErrorNotification("Servidor detenido: " + err.Error()); nerr != nil {
					deps.log.WithError(nerr).Error("failed to send notification")
				}
			}
			return err
		},
	}
	cmd.Flags().IntVar(&httpPort, "port", properties.HTTPPort(), "puerto HTTP")
	cmd.Flags().IntVar(&grpcPort, "grpc-port", properties.DefaultGrpcPort(), "puerto gRPC de salud")
	cmd.Flags().StringSliceVar(&origins, "allowed-origins", nil, "orígenes CORS permitidos")
	return cmd
}

func newExportCmd() *cobra.Command {
	var locality, start, end string
	var cloud float64
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Genera los CSV y GeoJSON de una localidad sin abrir el menú",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer recoverPanic("export")
			s := defaultSession()
			s.Locality = locality
			s.CloudCeiling = cloud
			var err error
			if start != "" {
				if s.Dates.Start, err = analysis.ParseDate(start); err != nil {
					return err
				}
			}
			if end != "" {
				if s.Dates.End, err = analysis.ParseDate(end); err != nil {
					return err
				}
			}

			deps := setup()
			view, err := deps.dash.Downloads(cmd.Context(), s)
			if err != nil {
				return err
			}
			ui.PrintMessages(view.Messages)
			if len(view.Files) == 0 {
				return fmt.Errorf("no se generaron archivos para %s", s.Locality)
			}
			for kind, path := range view.Files {
				fmt.Printf("\033[32m- %s: %s\033[0m\n", kind, path)
			}
			msg := fmt.Sprintf("Exportación %s (%s): %d filas de serie, %d puntos.", s.Locality, s.Dates, view.Series, view.Samples)
			if err := notification.SendDiscordSuccessNotification(msg); err != nil {
				deps.log.WithError(err).Warn("failed to send notification")
			}
			return nil
		},
	}
	def := analysis.DefaultSession()
	cmd.Flags().StringVar(&locality, "locality", def.Locality, "localidad (NOMGEO)")
	cmd.Flags().StringVar(&start, "start", "", "fecha inicial YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "fecha final YYYY-MM-DD")
	cmd.Flags().Float64Var(&cloud, "cloud", properties.MaxCloudCover(), "nubosidad máxima en %")
	return cmd
}

func loadEnv() {
	for _, path := range []string{"../../.env", "../.env", ".env"} {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
	fmt.Println("\033[33mNo .env file found, using the process environment\033[0m")
}

func main() {
	loadEnv()
	ctx := context.Background()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
