package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gocausal/app"
	"gocausal/domain/causal"
	"gocausal/internal"
	"gocausal/internal/config"
	"gocausal/internal/report"
	"gocausal/internal/testkit"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags are shared by every estimation command
type globalFlags struct {
	estimatorConfig string
	logLevel        string
	format          string
	output          string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "gocausal",
		Short:         "Estimate treatment effects from observational data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.estimatorConfig, "estimator-config", "", "YAML file overriding learner defaults (default $ESTIMATOR_DEFAULTS_FILE)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "ERROR, WARN, INFO, DEBUG or TRACE (default $LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVarP(&g.format, "report", "r", "md", "Output format: md, html or json")
	rootCmd.PersistentFlags().StringVarP(&g.output, "output", "o", "", "Write the report to a file instead of stdout")

	rootCmd.AddCommand(
		newPSMCmd(g),
		newDMLCmd(g),
		newDemoCmd(g),
	)
	return rootCmd
}

func newPSMCmd(g *globalFlags) *cobra.Command {
	var src sourceFlags
	var roles roleFlags
	req := causal.DefaultPSMRequest()
	var noScale bool

	cmd := &cobra.Command{
		Use:   "psm",
		Short: "Propensity score matching (ATT, ATC, ATE)",
		Long: `Fit a logistic propensity model, match treated and control rows by
nearest propensity score, and report ATT, ATC, and their weighted ATE.

Example: gocausal psm --data visits.csv --treatment received_campaign --outcome spend --confounders age,income,region`,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, logger, err := g.service()
			if err != nil {
				return err
			}
			req.ColumnRoles = roles.roles()
			req.ScaleFeatures = !noScale
			req.Data, err = src.load(cmd.Context(), req.ColumnRoles, logger)
			if err != nil {
				return err
			}

			run, err := service.RunPSM(cmd.Context(), req)
			if err != nil {
				return err
			}
			header := report.Header{RunID: run.RunID, Fingerprint: run.Fingerprint.Short(), Treatment: req.Treatment, Outcome: req.Outcome, Confounders: req.Confounders}
			return g.write(cmd, run.Result, report.PSMMarkdown(header, run.Result))
		},
	}

	src.register(cmd)
	roles.register(cmd)
	cmd.Flags().IntVar(&req.NNeighbors, "neighbors", req.NNeighbors, "Matches per row")
	cmd.Flags().Int64Var(&req.RandomState, "seed", req.RandomState, "Random seed")
	cmd.Flags().BoolVar(&noScale, "no-scale", false, "Do not standardize confounders")
	cmd.Flags().BoolVar(&req.UseCaliper, "use-caliper", false, "Reject matches farther than --caliper")
	cmd.Flags().Float64Var(&req.Caliper, "caliper", req.Caliper, "Maximum propensity score distance")
	cmd.Flags().BoolVar(&req.ShowMatchedPairHist, "matched-hist", false, "Include matched outcome distributions")
	return cmd
}

func newDMLCmd(g *globalFlags) *cobra.Command {
	var src sourceFlags
	var roles roleFlags
	req := causal.DefaultDMLRequest()
	var noScale bool

	cmd := &cobra.Command{
		Use:   "dml",
		Short: "Double machine learning (ATE, ATT)",
		Long: `Cross-fit random forest nuisance models, residualize treatment and
outcome, and regress the residuals to estimate ATE and ATT.

Example: gocausal dml --data visits.xlsx --treatment received_campaign --outcome spend --confounders age,income --splits 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, logger, err := g.service()
			if err != nil {
				return err
			}
			req.ColumnRoles = roles.roles()
			req.ScaleFeatures = !noScale
			req.Data, err = src.load(cmd.Context(), req.ColumnRoles, logger)
			if err != nil {
				return err
			}

			run, err := service.RunDML(cmd.Context(), req)
			if err != nil {
				return err
			}
			header := report.Header{RunID: run.RunID, Fingerprint: run.Fingerprint.Short(), Treatment: req.Treatment, Outcome: req.Outcome, Confounders: req.Confounders}
			return g.write(cmd, run.Result, report.DMLMarkdown(header, run.Result))
		},
	}

	src.register(cmd)
	roles.register(cmd)
	cmd.Flags().IntVar(&req.NSplits, "splits", req.NSplits, "Cross-fitting folds")
	cmd.Flags().Int64Var(&req.RandomState, "seed", req.RandomState, "Random seed")
	cmd.Flags().BoolVar(&noScale, "no-scale", false, "Do not standardize confounders")
	cmd.Flags().BoolVar(&req.ScaleWithinFolds, "scale-within-folds", false, "Fit the scaler on each training fold")
	return cmd
}

func newDemoCmd(g *globalFlags) *cobra.Command {
	cfg := testkit.DefaultObservationalConfig()
	var method string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run an estimator on synthetic data with a known effect",
		Long: `Generate a confounded marketing campaign dataset where the true effect
is known, then estimate it. The report is followed by the ground truth.

Example: gocausal demo --method dml --rows 2000 --effect 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, err := testkit.NewObservationalGenerator(cfg).Generate()
			if err != nil {
				return err
			}
			service, _, err := g.service()
			if err != nil {
				return err
			}
			header := report.Header{Treatment: obs.Treatment, Outcome: obs.Outcome, Confounders: obs.Confounders}
			roles := causal.ColumnRoles{Treatment: obs.Treatment, Outcome: obs.Outcome, Confounders: obs.Confounders}

			var md string
			var result interface{}
			switch strings.ToLower(method) {
			case app.MethodPSM:
				req := causal.DefaultPSMRequest()
				req.Data, req.ColumnRoles = obs.Rows, roles
				run, err := service.RunPSM(cmd.Context(), req)
				if err != nil {
					return err
				}
				header.RunID, header.Fingerprint = run.RunID, run.Fingerprint.Short()
				md, result = report.PSMMarkdown(header, run.Result), run.Result
			case app.MethodDML:
				req := causal.DefaultDMLRequest()
				req.Data, req.ColumnRoles = obs.Rows, roles
				run, err := service.RunDML(cmd.Context(), req)
				if err != nil {
					return err
				}
				header.RunID, header.Fingerprint = run.RunID, run.Fingerprint.Short()
				md, result = report.DMLMarkdown(header, run.Result), run.Result
			default:
				return fmt.Errorf("unknown method %q (use psm or dml)", method)
			}

			md += fmt.Sprintf("\n## Ground truth\n\n| | Value |\n|---|---|\n| True ATE | %.4f |\n| True ATT | %.4f |\n| Naive difference | %.4f |\n",
				obs.TrueATE, obs.TrueATT, obs.NaiveDifference)
			return g.write(cmd, result, md)
		},
	}

	cmd.Flags().StringVar(&method, "method", app.MethodPSM, "Estimator: psm or dml")
	cmd.Flags().IntVar(&cfg.Rows, "rows", cfg.Rows, "Rows to generate")
	cmd.Flags().Float64Var(&cfg.Effect, "effect", cfg.Effect, "True treatment effect")
	cmd.Flags().Float64Var(&cfg.LoyalEffectShift, "loyal-shift", cfg.LoyalEffectShift, "Extra effect for loyal customers")
	cmd.Flags().Float64Var(&cfg.NoiseSigma, "noise", cfg.NoiseSigma, "Outcome noise standard deviation")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Generator seed")
	return cmd
}

// service builds an estimation service from the environment plus flag overrides
func (g *globalFlags) service() (*app.EstimationService, *internal.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if g.estimatorConfig != "" {
		est, err := config.LoadEstimatorConfig(g.estimatorConfig)
		if err != nil {
			return nil, nil, err
		}
		cfg.Estimator = *est
	}
	level := cfg.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}
	logger := internal.NewLogger(internal.ParseLogLevel(level))
	return app.NewEstimationService(cfg, nil, logger), logger, nil
}
