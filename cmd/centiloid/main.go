package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"centiloid/internal/models"
	"centiloid/pkg/config"
	"centiloid/pkg/pipeline"
	"centiloid/pkg/report"
	"centiloid/pkg/suvr"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "centiloid.yaml", "YAML configuration file (defaults are used if it does not exist)")
	initConfig := flag.Bool("init-config", false, "Write a default configuration to -config and exit")
	roiMask := flag.String("roi", "", "Target region mask (overrides masks.roi)")
	refMask := flag.String("ref", "", "Reference region mask (overrides masks.reference)")
	ycDir := flag.String("yc", "", "Young-control anchor directory (overrides the anchor_low cohort)")
	adDir := flag.String("ad", "", "Alzheimer's disease anchor directory (overrides the anchor_high cohort)")
	subjectsDir := flag.String("subjects", "", "Additional directory of subjects to calibrate")
	prefix := flag.String("prefix", "", "File name prefix of normalized images (default \"w\")")
	referenceTable := flag.String("reference", "", "Reference SUVR/CL table for validation (CSV, TSV or XLS)")
	numCores := flag.Int("cores", 0, "Number of subjects processed concurrently (default: from config)")
	nanPolicy := flag.String("nan-policy", "", "NaN voxel handling: zero or exclude (default: from config)")
	output := flag.String("out", "", "CSV file for calibrated results (overrides output.resultsFile)")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Command line values take precedence over the config file
	if *roiMask != "" {
		cfg.Masks.ROI = *roiMask
	}
	if *refMask != "" {
		cfg.Masks.Reference = *refMask
	}
	if *ycDir != "" {
		setCohortDir(cfg, models.RoleAnchorLow, "YC", *ycDir)
	}
	if *adDir != "" {
		setCohortDir(cfg, models.RoleAnchorHigh, "AD", *adDir)
	}
	if *subjectsDir != "" {
		cfg.Cohorts = append(cfg.Cohorts, config.CohortConfig{Name: "subjects", Role: models.RoleUnlabeled, Dir: *subjectsDir})
	}
	if *prefix != "" {
		for i := range cfg.Cohorts {
			cfg.Cohorts[i].Prefix = *prefix
		}
	}
	if *referenceTable != "" {
		cfg.Validation.ReferenceTable = *referenceTable
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *nanPolicy != "" {
		cfg.Processing.NaNPolicy = *nanPolicy
	}
	if *output != "" {
		cfg.Output.ResultsFile = *output
	}
	if *verbose {
		cfg.Output.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	policy, err := suvr.ParseNaNPolicy(cfg.Processing.NaNPolicy)
	if err != nil {
		log.Fatalf("%v", err)
	}

	level := slog.LevelInfo
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}

	params := &pipeline.Params{
		ROIMask:        cfg.Masks.ROI,
		RefMask:        cfg.Masks.Reference,
		ReferenceTable: cfg.Validation.ReferenceTable,
		NumCores:       cfg.Processing.NumCores,
		NaNPolicy:      policy,
		Logger:         NewLogger(level),
	}
	for _, c := range cfg.Cohorts {
		params.Cohorts = append(params.Cohorts, pipeline.CohortSpec{
			Name:   c.Name,
			Role:   c.Role,
			Dir:    c.Dir,
			Prefix: c.Prefix,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := pipeline.New(params).Process(ctx)
	if err != nil {
		log.Fatalf("Calibration failed: %v", err)
	}

	printResult(result)

	if cfg.Output.ResultsFile != "" {
		if err := report.SaveCSV(cfg.Output.ResultsFile, result.Records); err != nil {
			log.Fatalf("Failed to write results: %v", err)
		}
		fmt.Printf("\nResults saved to: %s\n", cfg.Output.ResultsFile)
	}

	if len(result.Failures()) > 0 {
		os.Exit(2)
	}
}

// setCohortDir points the cohort with the given role at dir, adding one if
// the config has none.
func setCohortDir(cfg *config.Config, role models.Role, name, dir string) {
	for i := range cfg.Cohorts {
		if cfg.Cohorts[i].Role == role {
			cfg.Cohorts[i].Dir = dir
			return
		}
	}
	cfg.Cohorts = append(cfg.Cohorts, config.CohortConfig{Name: name, Role: role, Dir: dir})
}

func printResult(result *pipeline.Result) {
	fmt.Println("================================")
	fmt.Println("CENTILOID CALIBRATION")
	fmt.Println("================================")
	fmt.Printf("Low anchor mean SUVR:  %.4f\n", result.Model.MeanLow)
	fmt.Printf("High anchor mean SUVR: %.4f\n", result.Model.MeanHigh)
	fmt.Printf("CL = %.3f * (SUVR - %.4f)\n", result.Model.Slope(), result.Model.MeanLow)

	fmt.Println("\nCohorts:")
	for _, c := range result.Cohorts {
		fmt.Printf("- %s (%s): %d subjects, %d failed\n", c.Cohort.Name, c.Cohort.Role, len(c.Cohort.Records), len(c.Failures))
		if c.SUVRSummary.N == 0 {
			continue
		}
		fmt.Printf("    SUVR mean %.3f (SD %.3f, median %.3f, range %.3f-%.3f)\n",
			c.SUVRSummary.Mean, c.SUVRSummary.StdDev, c.SUVRSummary.Median, c.SUVRSummary.Min, c.SUVRSummary.Max)
		fmt.Printf("    CL   mean %.1f (SD %.1f, median %.1f, range %.1f-%.1f)\n",
			c.CentiloidSummary.Mean, c.CentiloidSummary.StdDev, c.CentiloidSummary.Median, c.CentiloidSummary.Min, c.CentiloidSummary.Max)
	}

	if failures := result.Failures(); len(failures) > 0 {
		fmt.Println("\nFailed subjects:")
		for _, f := range failures {
			fmt.Printf("- %v\n", f)
		}
	}

	switch {
	case result.Validation != nil:
		v := result.Validation
		fmt.Println("\nValidation against reference table:")
		fmt.Printf("SUVR: y=%.3fx%+.3f & r²=%.3f (n=%d)\n", v.SUVR.Slope, v.SUVR.Intercept, v.SUVR.RSquared, v.SUVR.N)
		fmt.Printf("CL:   y=%.3fx%+.3f & r²=%.3f (n=%d)\n", v.CL.Slope, v.CL.Intercept, v.CL.RSquared, v.CL.N)
	case result.ValidationErr != nil:
		fmt.Printf("\nValidation skipped: %v\n", result.ValidationErr)
	}

	fmt.Printf("\nCompleted in %.2f seconds\n", result.Elapsed.Seconds())
}
