package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/school-cli/internal/roster"
)

var (
	rosterFile        string
	rosterSchoolID    string
	rosterSchoolName  string
	rosterClassOffset int
	rosterOut         string
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Convert a student registration sheet into the upload CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("roster"); err != nil {
			return err
		}

		in, err := os.Open(rosterFile)
		if err != nil {
			return eris.Wrap(err, "open registration sheet")
		}
		defer in.Close() //nolint:errcheck

		entries, err := roster.Prepare(in, roster.Options{
			SchoolID:    rosterSchoolID,
			SchoolName:  rosterSchoolName,
			ClassOffset: rosterClassOffset,
		})
		if err != nil {
			return err
		}

		outPath := rosterOut
		if outPath == "" {
			outPath = roster.FileName(rosterSchoolName)
		}
		out, err := os.Create(outPath)
		if err != nil {
			return eris.Wrap(err, "create roster csv")
		}
		if err := roster.WriteCSV(out, entries); err != nil {
			_ = out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return eris.Wrap(err, "close roster csv")
		}

		zap.L().Info("roster written",
			zap.String("path", outPath),
			zap.Int("students", len(entries)),
		)
		return nil
	},
}

func init() {
	rosterCmd.Flags().StringVar(&rosterFile, "file", "", "registration sheet (.xlsx)")
	rosterCmd.Flags().StringVar(&rosterSchoolID, "school-id", "", "school id written on every row")
	rosterCmd.Flags().StringVar(&rosterSchoolName, "school-name", "", "school name, used for the default output name")
	rosterCmd.Flags().IntVar(&rosterClassOffset, "class-offset", 0, "added to each parsed class number")
	rosterCmd.Flags().StringVar(&rosterOut, "out", "", "output path (default <school_name>.csv)")
	_ = rosterCmd.MarkFlagRequired("file")
	_ = rosterCmd.MarkFlagRequired("school-id")
	_ = rosterCmd.MarkFlagRequired("school-name")
	rootCmd.AddCommand(rosterCmd)
}
