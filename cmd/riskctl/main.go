// Command riskctl runs one-off aggregations and inspects configuration for
// the wildfire risk service.
//
// Usage:
//
//	riskctl run --high-risk
//	riskctl nearest --lat 34.05 --lon -118.24
//	riskctl model-info
//	riskctl weather --lat 34.05 --lon -118.24
//	riskctl catalog validate --file areas.yaml --incidents incidents.yaml
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wildfire-risk-service/internal/adapter/predict"
	"github.com/couchcryptid/wildfire-risk-service/internal/catalog"
	"github.com/couchcryptid/wildfire-risk-service/internal/config"
	"github.com/couchcryptid/wildfire-risk-service/internal/domain"
	"github.com/couchcryptid/wildfire-risk-service/internal/incident"
	"github.com/couchcryptid/wildfire-risk-service/internal/observability"
	"github.com/couchcryptid/wildfire-risk-service/internal/pipeline"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	logLevel string
	asJSON   bool
	cfg      *config.Config
	logger   *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "riskctl",
	Short:        "Wildfire risk aggregation tool",
	Long:         "riskctl runs wildfire risk aggregations against the prediction service and validates area catalogs.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = sharedobs.NewLogger(logLevel, "text")

		// Validation works on files only.
		if cmd.Name() == "validate" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	runCmd.Flags().Bool("high-risk", false, "Only print areas at high or extreme risk")
	runCmd.Flags().String("incidents", "", "Incident YAML file (defaults to INCIDENTS_PATH)")

	nearestCmd.Flags().Float64("lat", 0, "Latitude")
	nearestCmd.Flags().Float64("lon", 0, "Longitude")
	nearestCmd.Flags().String("incidents", "", "Incident YAML file (defaults to INCIDENTS_PATH)")
	_ = nearestCmd.MarkFlagRequired("lat")
	_ = nearestCmd.MarkFlagRequired("lon")

	weatherCmd.Flags().Float64("lat", 0, "Latitude")
	weatherCmd.Flags().Float64("lon", 0, "Longitude")
	_ = weatherCmd.MarkFlagRequired("lat")
	_ = weatherCmd.MarkFlagRequired("lon")

	validateCmd.Flags().String("file", "", "Catalog YAML file (defaults to the embedded catalog)")
	validateCmd.Flags().String("incidents", "", "Incident YAML file to check against the catalog")
	validateCmd.Flags().Int("batch-size", pipeline.DefaultBatchSize, "Areas per prediction request to plan with (PREDICTION_BATCH_SIZE)")
	catalogCmd.AddCommand(validateCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(nearestCmd)
	rootCmd.AddCommand(modelInfoCmd)
	rootCmd.AddCommand(weatherCmd)
	rootCmd.AddCommand(catalogCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one aggregation over the area catalog and print the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		incidentsPath, _ := cmd.Flags().GetString("incidents")
		highRisk, _ := cmd.Flags().GetBool("high-risk")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		coord, err := newCoordinator(incidentsPath)
		if err != nil {
			return err
		}

		snap, err := coord.Run(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", snap.Status, err)
		}

		preds := snap.Predictions
		if highRisk {
			preds = pipeline.FilterHighRisk(preds)
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), preds)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %s\n\n", snap.RunID, snap.Status)
		return printPredictions(cmd.OutOrStdout(), preds)
	},
}

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "Print the prediction for the area closest to a coordinate",
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		incidentsPath, _ := cmd.Flags().GetString("incidents")

		coord, err := parseCoordinate(lat, lon)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := newCoordinator(incidentsPath)
		if err != nil {
			return err
		}
		p, ok, err := c.Nearest(ctx, coord)
		if err != nil {
			return fmt.Errorf("%s: %w", predict.UserMessage(err), err)
		}
		if !ok {
			return fmt.Errorf("no prediction for the area nearest %v", coord)
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), p)
		}
		return printPredictions(cmd.OutOrStdout(), []domain.AreaFireRiskPrediction{p})
	},
}

var modelInfoCmd = &cobra.Command{
	Use:   "model-info",
	Short: "Print the prediction service's health and model metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := predict.NewClient(cfg.PredictionBaseURL, cfg.PredictionTimeout, nil, logger, observability.NewUnregisteredMetrics())

		health, err := client.Health(ctx)
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}
		details, err := client.FetchModelInfo(ctx)
		if err != nil {
			return fmt.Errorf("model info: %w", err)
		}

		if asJSON {
			return printJSON(cmd.OutOrStdout(), map[string]any{"health": health, "model": details})
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Service: %s (model %s)\n", health.APIStatus, health.ModelStatus)
		fmt.Fprintf(out, "Model: %s\n", details.ModelType)
		fmt.Fprintf(out, "  Accuracy: %s  Precision: %s  Recall: %s\n", details.Accuracy, details.Precision, details.Recall)
		fmt.Fprintf(out, "  Features: %d\n", details.FeaturesCount)
		fmt.Fprintf(out, "  Components: %v\n", details.ModelComponents)
		fmt.Fprintf(out, "Weather provider: %s\n", details.WeatherProvider)
		return nil
	},
}

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Print the prediction service's current fire weather at a coordinate",
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		coord, err := parseCoordinate(lat, lon)
		if err != nil {
			return err
		}

		client := predict.NewClient(cfg.PredictionBaseURL, cfg.PredictionTimeout, nil, logger, observability.NewUnregisteredMetrics())
		w, err := client.Weather(cmd.Context(), coord)
		if err != nil {
			return fmt.Errorf("%s: %w", predict.UserMessage(err), err)
		}

		if asJSON {
			return printJSON(cmd.OutOrStdout(), w)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Temperature: %.0fF (%.1fC)\n", w.TemperatureF, w.TemperatureC)
		fmt.Fprintf(out, "Humidity: %.0f%%\n", w.Humidity)
		fmt.Fprintf(out, "Wind: %.0f mph from %.0f degrees\n", w.WindSpeedMph, w.WindDirection)
		fmt.Fprintf(out, "Fire weather index: %.1f\n", w.FireWeatherIndex)
		fmt.Fprintf(out, "Red flag warning: %t\n", w.RedFlagWarning)
		return nil
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect area catalogs",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a catalog file and, optionally, an incident file for problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		incidentsPath, _ := cmd.Flags().GetString("incidents")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		if failed := validateFiles(cmd.OutOrStdout(), file, incidentsPath, batchSize); failed > 0 {
			return fmt.Errorf("%d validation phase(s) failed", failed)
		}
		return nil
	},
}

// newCoordinator wires a coordinator for a single process-local run: the
// configured catalog, a static incident list, and the remote prediction
// service. Predictions are not published.
func newCoordinator(incidentsPath string) (*pipeline.Coordinator, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	if incidentsPath == "" {
		incidentsPath = cfg.IncidentsPath
	}
	incidents, err := incident.LoadFile(incidentsPath)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewUnregisteredMetrics()
	client := predict.NewClient(cfg.PredictionBaseURL, cfg.PredictionTimeout, predict.NewMemoryStore(), logger, metrics,
		predict.WithRequestsPerMinute(cfg.PredictionRequestsPerMinute),
	)
	return pipeline.New(cat, incidents, client, logger, metrics,
		pipeline.WithBatchSize(cfg.PredictionBatchSize),
		pipeline.WithBatchDelay(cfg.PredictionBatchDelay),
		pipeline.WithLocator(catalog.NewLocator(cat, 64)),
		pipeline.WithUniformWeights(cfg.ReconcileUniformWeights),
	), nil
}

func parseCoordinate(lat, lon float64) (domain.Coordinate, error) {
	coord := domain.Coordinate{Lat: lat, Lon: lon}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return coord, fmt.Errorf("coordinate %v out of range", coord)
	}
	return coord, nil
}

func printPredictions(w io.Writer, preds []domain.AreaFireRiskPrediction) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AREA\tRISK\tSCORE\tCONFIDENCE\tNEARBY FIRES\tEVACUATION")
	for _, p := range preds {
		evac := "-"
		if len(p.EvacuationRoutes) > 0 {
			evac = p.EvacuationRoutes[0]
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%d\t%s\n",
			p.AreaName(), p.RiskLevel, p.RiskScore, p.Confidence, len(p.NearbyFires), evac)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
