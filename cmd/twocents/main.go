package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/malfrine/two-cents-sub000/internal/config"
	"github.com/malfrine/two-cents-sub000/internal/domain"
	"github.com/malfrine/two-cents-sub000/internal/planner"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(os.Stdout, "twocents %s (commit %s, built %s)\n", version, commit, date)
			if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
				fmt.Fprintln(os.Stdout, bi.Main.Path)
			}
		},
	}
}

var rootCmd = &cobra.Command{
	Use:   "twocents",
	Short: "Personal finance planning engine",
	Long:  "Builds month-by-month financial plans that jointly optimize loan paydown, investment allocation, tax-aware withdrawals, and goal funding",
}

var planCmd = &cobra.Command{
	Use:   "plan [input-file]",
	Short: "Build and compare financial plans for a finances file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		inputFile := args[0]

		params := config.DefaultParameters()
		if paramsFile, _ := cmd.Flags().GetString("params"); paramsFile != "" {
			var err error
			params, err = config.LoadParameters(paramsFile)
			if err != nil {
				log.Fatal(err)
			}
		}
		if bin, _ := cmd.Flags().GetString("solver-bin"); bin != "" {
			params.SolverBinary = bin
		}

		logger := buildLogger(cmd)
		defer logger.Sync()

		parser := config.NewInputParser()
		fin, err := parser.LoadFromFile(inputFile)
		if err != nil {
			log.Fatal(err)
		}

		p := planner.New(params, nil, logger)
		ctx := context.Background()

		var sol *domain.Solution
		names, _ := cmd.Flags().GetStringSlice("strategies")
		if len(names) > 0 {
			sol, err = p.RunExplicit(ctx, fin, names)
		} else {
			sol, err = p.RunAuto(ctx, fin)
		}
		if err != nil {
			log.Fatal(err)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			printJSON(sol)
			return
		}
		printComparison(sol)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [input-file]",
	Short: "Validate a finances file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		inputFile := args[0]

		parser := config.NewInputParser()
		if _, err := parser.LoadFromFile(inputFile); err != nil {
			log.Fatal(err)
		}

		fmt.Printf("Finances file %s is valid\n", inputFile)
	},
}

func buildLogger(cmd *cobra.Command) *zap.Logger {
	debugMode, _ := cmd.Flags().GetBool("debug")
	var logger *zap.Logger
	var err error
	if debugMode {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal(err)
	}
	return logger
}

func printJSON(sol *domain.Solution) {
	summaries := make(map[string]domain.PlanSummary, len(sol.Plans))
	for name, plan := range sol.Plans {
		summaries[name] = plan.Summary()
	}
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(data))
}

func printComparison(sol *domain.Solution) {
	names := make([]string, 0, len(sol.Plans))
	for name := range sol.Plans {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("FINANCIAL PLAN COMPARISON")
	fmt.Println("=========================")
	fmt.Printf("%-18s %16s %10s %16s %14s\n",
		"STRATEGY", "FINAL NET WORTH", "DEBT-FREE", "INTEREST PAID", "TAXES PAID")
	fmt.Println(strings.Repeat("-", 78))
	for _, name := range names {
		s := sol.Plans[name].Summary()
		debtFree := "never"
		if s.DebtFreeMonth >= 0 {
			debtFree = fmt.Sprintf("month %d", s.DebtFreeMonth)
		}
		fmt.Printf("%-18s %16s %10s %16s %14s\n",
			s.StrategyName,
			"$"+s.FinalNetWorth.StringFixed(2),
			debtFree,
			"$"+s.TotalLoanInterestPaid.StringFixed(2),
			"$"+s.TotalTaxesPaid.StringFixed(2))
	}
	fmt.Println()

	best := ""
	for _, name := range names {
		if best == "" || sol.Plans[name].FinalNetWorth().GreaterThan(sol.Plans[best].FinalNetWorth()) {
			best = name
		}
	}
	fmt.Printf("Best final net worth: %s ($%s)\n", best, sol.Plans[best].FinalNetWorth().StringFixed(2))
}

func init() {
	planCmd.Flags().StringSlice("strategies", nil, "Comma-separated strategy names to run (default: automatic selection). Available: "+strings.Join(planner.StrategyNames(), ", "))
	planCmd.Flags().String("params", "", "Path to a YAML parameters file")
	planCmd.Flags().String("solver-bin", "", "Path to a CBC-compatible solver binary")
	planCmd.Flags().Bool("json", false, "Emit plan summaries as JSON")
	planCmd.Flags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
