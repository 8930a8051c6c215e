package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/iwvelando/solar-forecast/internal/config"
	"github.com/iwvelando/solar-forecast/internal/forecast"
	"github.com/iwvelando/solar-forecast/internal/irradiance"
	"github.com/iwvelando/solar-forecast/internal/logging"
	"github.com/iwvelando/solar-forecast/pkg/constants"
	"github.com/iwvelando/solar-forecast/pkg/output"
	"github.com/iwvelando/solar-forecast/pkg/validation"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, json")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	lat := flag.Float64("lat", 0, "latitude override")
	lon := flag.Float64("lon", 0, "longitude override")
	flag.Parse()

	// A missing .env is fine; SOLAR_* variables may come from the environment.
	_ = godotenv.Load()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := logging.New(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lat":
			conf.Location = irradiance.Location{Latitude: *lat, Longitude: conf.Location.Longitude}
		case "lon":
			conf.Location = irradiance.Location{Latitude: conf.Location.Latitude, Longitude: *lon}
		}
	})

	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}

	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	if err := conf.Validate(); err != nil {
		logger.Fatal("invalid configuration",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := forecast.GetForecast(ctx, logger, *conf, forecast.NewProvider(logger, *conf))
	if err != nil {
		logger.Fatal("failed to compute forecast",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}

	switch outputFormat {
	case constants.OutputFormatPretty:
		output.PrettyFormat(os.Stdout, results)
	case constants.OutputFormatCSV:
		err = output.CsvFormat(os.Stdout, results)
	case constants.OutputFormatJSON:
		err = output.JSONFormat(os.Stdout, results)
	}
	if err != nil {
		logger.Fatal("failed to write output",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}
