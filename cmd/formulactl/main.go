// Command formulactl evaluates LaTeX formulas from the command line.
//
//	formulactl eval '\frac{\beta_i}{2} \cdot x' --var beta_i=2 --var x=3
//	formulactl canonical '2x^{2} + \sum_{i=1}^{3}(i)'
//	formulactl batch cases.yaml
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/aescanero/dago-node-formula/internal/batch"
	"github.com/aescanero/dago-node-formula/internal/eval/template"
	"github.com/aescanero/dago-node-formula/internal/formula"
)

type options struct {
	vars        []string
	timeout     time.Duration
	maxSumTerms int
	concurrency int
	rule        string
	verbose     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "formulactl",
		Short:        "Evaluate LaTeX trading formulas",
		SilenceUsage: true,
	}
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Second, "time budget per formula")
	root.PersistentFlags().IntVar(&opts.maxSumTerms, "max-sum-terms", formula.DefaultLimits().MaxSumTerms, "largest summation range")

	evalCmd := &cobra.Command{
		Use:   "eval FORMULA",
		Short: "Evaluate one formula and print the rounded result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, opts, args[0])
		},
	}
	evalCmd.Flags().StringArrayVar(&opts.vars, "var", nil, "variable binding as name=value (repeatable)")

	canonicalCmd := &cobra.Command{
		Use:   "canonical FORMULA",
		Short: "Print the canonical expression a formula translates to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCanonical(cmd, opts, args[0])
		},
	}
	canonicalCmd.Flags().StringArrayVar(&opts.vars, "var", nil, "variable binding as name=value (repeatable)")

	batchCmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Evaluate a JSON or YAML list of cases and print the outcomes as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, args[0])
		},
	}
	batchCmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "cases evaluated at once")
	batchCmd.Flags().StringVar(&opts.rule, "rule", "", "CEL admission rule every case must satisfy")
	batchCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log each case to stderr")

	root.AddCommand(evalCmd, canonicalCmd, batchCmd)
	return root
}

func (o *options) limits() formula.Limits {
	return formula.Limits{Timeout: o.timeout, MaxSumTerms: o.maxSumTerms}
}

func (o *options) bindings() (formula.Bindings, error) {
	vars := make(formula.Bindings, len(o.vars))
	for _, kv := range o.vars {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --var %q: want name=value", kv)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --var %q: %w", kv, err)
		}
		vars[strings.TrimSpace(name)] = v
	}
	return vars, nil
}

func runEval(cmd *cobra.Command, opts *options, raw string) error {
	vars, err := opts.bindings()
	if err != nil {
		return err
	}
	v, err := formula.NewEvaluator(opts.limits()).Evaluate(cmd.Context(), raw, vars)
	if err != nil {
		return renderError(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(batch.Round(v), 'f', -1, 64))
	return nil
}

func runCanonical(cmd *cobra.Command, opts *options, raw string) error {
	vars, err := opts.bindings()
	if err != nil {
		return err
	}
	s, err := formula.NewEvaluator(opts.limits()).Canonicalize(cmd.Context(), raw, vars)
	if err != nil {
		return renderError(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), s)
	return nil
}

func runBatch(cmd *cobra.Command, opts *options, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	logger := zap.NewNop()
	if opts.verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		if logger, err = cfg.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
	}

	svc, err := batch.NewService(batch.Options{
		Limits:        opts.limits(),
		Concurrency:   opts.concurrency,
		AdmissionRule: opts.rule,
	}, logger)
	if err != nil {
		return err
	}

	var outcomes []batch.Outcome
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var cases []batch.Case
		if err := yaml.Unmarshal(data, &cases); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}
		outcomes = svc.EvaluateAll(cmd.Context(), cases)
	default:
		if outcomes, err = svc.EvaluateJSON(cmd.Context(), data); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}

// renderError formats a pipeline failure the way the service reports it.
func renderError(err error) error {
	catalog, cerr := template.NewCatalog(template.NewEngine(), nil)
	if cerr != nil {
		return err
	}
	return errors.New(catalog.Render(err))
}
