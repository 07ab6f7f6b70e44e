package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
	"github.com/gyndok/lancet-obesity-compass/internal/service"
)

// readPatient loads a patient document. "-" reads stdin. Files ending in
// .json are parsed as JSON; everything else as YAML.
func readPatient(cmd *cobra.Command, path string) (*domain.PatientData, error) {
	if path == "" {
		return nil, fmt.Errorf("--file is required")
	}

	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading patient file: %w", err)
	}

	parser := service.NewInputParserService()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return parser.ParsePatientJSON(raw)
	}
	return parser.ParsePatientYAML(raw)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func evaluateCmd(opts *globalOptions) *cobra.Command {
	var file, patientRef, visitType string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Classify the patient in a JSON or YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, err := readPatient(cmd, file)
			if err != nil {
				return err
			}

			classifier := service.NewClassifierService(opts.logger, nil)
			out, err := classifier.EvaluatePatient(cmd.Context(), &service.EvaluatePatientParams{
				Patient:    *patient,
				PatientRef: patientRef,
				VisitType:  domain.VisitType(visitType),
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, out)
			}
			if !out.Assessed {
				fmt.Fprintln(w, out.Message)
				return nil
			}

			fmt.Fprintf(w, "Classification: %s\n", out.Result.Classification.Label())
			fmt.Fprintf(w, "Confidence: %s\n", out.Result.Confidence)
			if out.BMI != nil {
				fmt.Fprintf(w, "BMI: %.1f (%s)\n", out.BMI.BMI, out.BMI.Category)
			}
			fmt.Fprintf(w, "\n%s\n", out.Result.Reasoning)
			if len(out.Result.AffectedSystems) > 0 {
				fmt.Fprintf(w, "Affected systems: %s\n", strings.Join(out.Result.AffectedSystems, ", "))
			}
			if len(out.Result.Recommendations) > 0 {
				fmt.Fprintln(w, "\nRecommendations:")
				for _, r := range out.Result.Recommendations {
					fmt.Fprintf(w, "  - %s\n", r)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "patient file (.json or .yaml), - for stdin")
	cmd.Flags().StringVar(&patientRef, "patient-ref", "", "patient reference")
	cmd.Flags().StringVar(&visitType, "visit-type", string(domain.INITIAL_VISIT), "initial or return")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func bmiCmd() *cobra.Command {
	var height, feet, inches, weight float64

	cmd := &cobra.Command{
		Use:   "bmi",
		Short: "Calculate BMI from height and weight",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("height") {
				if !cmd.Flags().Changed("feet") {
					return fmt.Errorf("--height or --feet is required")
				}
				h, err := service.HeightFromFeetInches(feet, inches)
				if err != nil {
					return err
				}
				height = h
			}

			summary, err := service.CalculateBMI(height, weight)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "BMI: %.1f (%s)\n", summary.BMI, summary.Category)
			if summary.WeightToLose != nil {
				fmt.Fprintf(w, "Target weight: %.0f lbs\n", *summary.TargetWeight)
				fmt.Fprintf(w, "Weight to lose: %.1f lbs (about %d weeks)\n", *summary.WeightToLose, *summary.WeeksToGoal)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&height, "height", 0, "height in inches")
	cmd.Flags().Float64Var(&feet, "feet", 0, "height feet, with --inches")
	cmd.Flags().Float64Var(&inches, "inches", 0, "height inches, with --feet")
	cmd.Flags().Float64Var(&weight, "weight", 0, "weight in pounds")
	_ = cmd.MarkFlagRequired("weight")
	return cmd
}

func reportCmd(opts *globalOptions) *cobra.Command {
	var file, format, clinician, date, output string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a diagnostic report for the patient in a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, err := readPatient(cmd, file)
			if err != nil {
				return err
			}

			result, ok := service.NewObesityRuleEngine(opts.logger, nil).Evaluate(patient)
			if !ok {
				return domain.NewMissingDataError(patient.Anthropometrics)
			}

			reports := service.NewReportGenerator()
			report := reports.BuildReport(result, patient, clinician, date)

			var body []byte
			switch format {
			case "text":
				body = []byte(reports.RenderText(report))
			case "html":
				body, err = reports.RenderHTML(report)
			case "json":
				body, err = json.MarshalIndent(report, "", "  ")
			default:
				return fmt.Errorf("unknown format %q: use text, html or json", format)
			}
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(output, body, 0644); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "patient file (.json or .yaml), - for stdin")
	cmd.Flags().StringVar(&format, "format", "text", "text, html or json")
	cmd.Flags().StringVar(&clinician, "clinician", "", "clinician named on the report")
	cmd.Flags().StringVar(&date, "date", "", "assessment date (default today)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}
