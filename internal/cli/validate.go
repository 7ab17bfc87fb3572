package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/courseswap/internal/harness"
	"github.com/roach88/courseswap/internal/seed"
)

// ValidationError describes one invalid file.
type ValidationError struct {
	File    string `json:"file"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate school definitions and scenarios without running them",
		Long: `Validate school definitions (.cue) and conformance scenarios (.yaml,
.yml) without opening a database.

School files are checked against the school schema; scenarios are parsed
strictly, so misspelled keys are reported.

Examples:
  courseswap validate school.cue
  courseswap validate scenarios/*.yaml --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result := ValidationResult{Files: len(files)}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		if verr := validateFile(file); verr != nil {
			result.Errors = append(result.Errors, *verr)
		}
	}
	result.Valid = len(result.Errors) == 0

	if result.Valid {
		return formatter.Success(result, fmt.Sprintf("✓ %d file(s) valid", result.Files))
	}

	if opts.Format == "json" {
		if err := formatter.Error("E_INVALID", fmt.Sprintf("%d file(s) invalid", len(result.Errors)), result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, e := range result.Errors {
			if e.Line > 0 {
				fmt.Fprintf(w, "✗ %s:%d: %s\n", e.File, e.Line, e.Message)
			} else {
				fmt.Fprintf(w, "✗ %s: %s\n", e.File, e.Message)
			}
		}
	}
	return &ExitError{
		Code:     ExitFailure,
		Message:  fmt.Sprintf("%d file(s) invalid", len(result.Errors)),
		Reported: true,
	}
}

// validateFile checks one file by extension.
func validateFile(file string) *ValidationError {
	switch filepath.Ext(file) {
	case ".cue":
		if _, err := seed.LoadFile(file); err != nil {
			verr := &ValidationError{File: file, Message: err.Error()}
			var loadErr *seed.LoadError
			if errors.As(err, &loadErr) {
				verr.Field = loadErr.Field
				verr.Message = loadErr.Message
				if loadErr.Pos.IsValid() {
					verr.Line = loadErr.Pos.Line()
				}
			}
			return verr
		}
	case ".yaml", ".yml":
		if _, err := harness.LoadScenario(file); err != nil {
			return &ValidationError{File: file, Message: err.Error()}
		}
	default:
		return &ValidationError{File: file, Message: "unknown file type (want .cue, .yaml or .yml)"}
	}
	return nil
}
