package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/citybrief/citybrief/internal/config"
	"github.com/citybrief/citybrief/internal/news"
	"github.com/citybrief/citybrief/internal/weather"
)

var (
	riskHorizon  string
	riskActivity string
)

var riskCmd = &cobra.Command{
	Use:   "risk <place>",
	Short: "One-shot risk assessment for a place (no agent, no session)",
	Args:  cobra.ExactArgs(1),
	RunE:  runRisk,
}

func init() {
	riskCmd.Flags().StringVar(&riskHorizon, "horizon", "today", "forecast horizon (today, tomorrow)")
	riskCmd.Flags().StringVar(&riskActivity, "activity", "", "planned activity to mention in the assessment")
	rootCmd.AddCommand(riskCmd)
}

func runRisk(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "risk",
		trace.WithAttributes(attribute.String("place", args[0])))
	defer span.End()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	d, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer d.store.Close()

	place := args[0]
	horizon := weather.ParseHorizon(riskHorizon)

	var summary *weather.Summary
	countryCode := ""
	d.weatherBucket.Acquire()
	if loc, err := d.weatherClient.Geocode(ctx, place); err == nil {
		countryCode = loc.CountryCode
		if s, err := d.weatherClient.SummaryAt(ctx, loc, horizon); err == nil {
			summary = s
		} else {
			log.Warn().Err(err).Msg("weather_unavailable")
		}
	} else {
		log.Warn().Err(err).Msg("geocode_failed")
	}

	var headlines []news.Item
	d.newsBucket.Acquire()
	if items, err := d.newsClient.Fetch(ctx, place, countryCode); err == nil {
		headlines = items
	} else {
		log.Warn().Err(err).Msg("news_unavailable")
	}

	assessment := d.scorer.Score(summary, headlines, place, riskActivity)
	fmt.Println(assessment.Message())

	if verbose && summary != nil {
		fmt.Println(summary.Line())
		for _, h := range headlines {
			fmt.Println("- " + h.Line())
		}
	}
	return nil
}
