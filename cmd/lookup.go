package main

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/school-cli/internal/resolve"
)

var (
	lookupFormat      string
	lookupConcurrency int
)

// notFoundMessage is the error body for an unknown school.
const notFoundMessage = "No information found"

var lookupCmd = &cobra.Command{
	Use:   "lookup <aff-no>...",
	Short: "Resolve one or more schools by affiliation number",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "lookup")
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := lookupConcurrency
		if concurrency == 0 {
			concurrency = cfg.Resolve.Concurrency
		}

		batch, err := env.Resolver.ResolveAll(ctx, args, concurrency)
		if err != nil {
			return err
		}

		if err := writeResults(cmd.OutOrStdout(), lookupFormat, batch.Results); err != nil {
			return err
		}
		if batch.Failed > 0 {
			return eris.Errorf("%d of %d lookups failed", batch.Failed, len(args))
		}
		return nil
	},
}

// lookupOutput is one printed lookup result.
type lookupOutput struct {
	AffNo string `json:"aff_no" yaml:"aff_no"`
	Error string `json:"error" yaml:"error"`
}

func resultValue(res resolve.Result) any {
	if res.Err == nil {
		return res.Profile
	}
	msg := res.Err.Error()
	if errors.Is(res.Err, resolve.ErrNotFound) {
		msg = notFoundMessage
	}
	return lookupOutput{AffNo: res.AffNo, Error: msg}
}

// writeResults prints a single result as an object and several as a list.
func writeResults(w io.Writer, format string, results []resolve.Result) error {
	var out any
	if len(results) == 1 {
		out = resultValue(results[0])
	} else {
		list := make([]any, len(results))
		for i, res := range results {
			list[i] = resultValue(res)
		}
		out = list
	}

	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return eris.Wrap(enc.Encode(out), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	default:
		return eris.Errorf("unsupported format %q (want json or yaml)", format)
	}
}

func init() {
	lookupCmd.Flags().StringVar(&lookupFormat, "format", "json", "output format: json or yaml")
	lookupCmd.Flags().IntVar(&lookupConcurrency, "concurrency", 0, "parallel lookups (default from config)")
	rootCmd.AddCommand(lookupCmd)
}
