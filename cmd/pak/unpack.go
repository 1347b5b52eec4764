package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calyptra/pak"
)

type unpackOptions struct {
	entry string
}

func newUnpackCommand(verbose *bool) *cobra.Command {
	var opts unpackOptions

	cmd := &cobra.Command{
		Use:   "unpack <archive> <output-dir>",
		Short: "Extract an archive to a directory",
		Long: `Unpack extracts every entry to <output-dir>, recreating the packed
directory tree. Content hashes are verified during extraction; a corrupt
entry aborts with an error naming it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnpack(cmd, args[0], args[1], opts, *verbose)
		},
	}

	cmd.Flags().StringVarP(&opts.entry, "entry", "e", "", "Extract a single entry by path")

	return cmd
}

func runUnpack(cmd *cobra.Command, archivePath, destDir string, opts unpackOptions, verbose bool) error {
	a, err := pak.Open(archivePath, pak.OpenWithLogger(newLogger(verbose)))
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.entry != "" {
		if err := a.ExtractEntry(cmd.Context(), opts.entry, destDir); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "extracted %s to %s\n", opts.entry, destDir)
		return nil
	}

	if err := a.Extract(cmd.Context(), destDir); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "extracted %d entries to %s\n", a.Len(), destDir)
	return nil
}
