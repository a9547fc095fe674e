package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retiscan/retiscan/internal/client"
	"github.com/retiscan/retiscan/internal/device"
	"github.com/retiscan/retiscan/internal/filter"
	"github.com/retiscan/retiscan/internal/models"
)

var (
	historyClassification int
	historyAgeMin         int
	historyAgeMax         int
	historyGender         string
	historyPeriod         string
	historyQuery          string
	historyTrendFor       string
	historyTrendEye       string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse the detection history with filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		c := client.New(newAPIClient(cfg), device.NewLocalPicker(""), device.Grant(), device.NewAutoCropper())
		ctx := cmd.Context()
		if err := c.Initialize(ctx); err != nil {
			return err
		}
		defer c.Dispose()

		c.SetFilter(buildPredicate())

		records, err := c.History(ctx, false)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No detections match.")
		}
		for _, r := range records {
			fmt.Printf("%s  %-10s %-5s grade %d (%s, %.2f)  %s\n",
				r.CapturedAt.Format("2006-01-02 15:04"),
				r.PatientCode, r.EyeSide, r.Classification, r.PredictedLabel, r.Confidence, r.PatientName)
		}

		if historyTrendFor != "" {
			trend, err := c.TrendFor(ctx, historyTrendFor, models.EyeSide(historyTrendEye))
			if err != nil {
				return err
			}
			fmt.Printf("Trend for %s (%s eye): %s\n", historyTrendFor, historyTrendEye, trend)
		}
		return nil
	},
}

func buildPredicate() filter.Predicate {
	var p filter.Predicate
	if historyClassification >= 0 {
		v := historyClassification
		p.Classification = &v
	}
	if historyAgeMin >= 0 {
		v := historyAgeMin
		p.AgeMin = &v
	}
	if historyAgeMax >= 0 {
		v := historyAgeMax
		p.AgeMax = &v
	}
	if historyGender != "" {
		v := historyGender
		p.Gender = &v
	}
	p.Period = filter.Period(historyPeriod)
	p.TextQuery = historyQuery
	return p
}

func init() {
	historyCmd.Flags().IntVar(&historyClassification, "classification", -1, "filter by grade 0-4")
	historyCmd.Flags().IntVar(&historyAgeMin, "age-min", -1, "minimum patient age")
	historyCmd.Flags().IntVar(&historyAgeMax, "age-max", -1, "maximum patient age")
	historyCmd.Flags().StringVar(&historyGender, "gender", "", "filter by patient gender")
	historyCmd.Flags().StringVar(&historyPeriod, "period", "", "filter by period: week, month or year")
	historyCmd.Flags().StringVar(&historyQuery, "query", "", "text search over patient name and code")
	historyCmd.Flags().StringVar(&historyTrendFor, "trend-for", "", "also print the severity trend for this patient code")
	historyCmd.Flags().StringVar(&historyTrendEye, "trend-eye", string(models.EyeLeft), "eye side for --trend-for")
}
