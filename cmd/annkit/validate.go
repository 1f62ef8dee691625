package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/annkit"
	"github.com/hupe1980/annkit/config"
)

var (
	validatePhase  string
	validateParams string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a parameter document for a phase",
	Long: `Run a parameter document through the validation pipeline of an index
kind for one or more phases, and print the resolved parameter values.

Phases are TRAIN, SEARCH, RANGE_SEARCH, FEDER, DESERIALIZE and
DESERIALIZE_FROM_FILE, combined with '|'.`,
	Example: `  annkit validate --kind HNSW --phase SEARCH --params '{"k": 10, "ef": 64}'
  annkit validate --kind FLAT --phase RANGE_SEARCH --params range.yaml`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validatePhase, "phase", "TRAIN", "phase to validate for")
	validateCmd.Flags().StringVarP(&validateParams, "params", "p", "", "inline JSON document or path to a JSON/YAML file")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	kind, err := annkit.ParseKind(kindName)
	if err != nil {
		return err
	}
	phase, err := config.ParsePhase(validatePhase)
	if err != nil {
		return err
	}
	doc, err := loadDocument(validateParams)
	if err != nil {
		return err
	}
	cfg, err := annkit.NewConfig(kind)
	if err != nil {
		return err
	}

	if err := config.Prepare(cfg, doc, phase); err != nil {
		var pe *config.ParamError
		if errors.As(err, &pe) {
			return fmt.Errorf("param %s: %w (%s)", pe.Param, pe.Code, pe.Msg)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s parameters valid for %s\n", kind, phase)
	for _, e := range cfg.Schema().Entries() {
		if e.Phases&phase == 0 {
			continue
		}
		fmt.Fprintf(out, "  %s = %s\n", e.Name, valueText(e.Value))
	}
	return nil
}

func valueText(v any) string {
	if v == nil {
		return "<unset>"
	}
	return fmt.Sprint(v)
}
