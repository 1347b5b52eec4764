package main

import (
	"encoding/hex"
	"fmt"
	"text/tabwriter"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/calyptra/pak"
)

type listOptions struct {
	long bool
}

func newListCommand() *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "List the entries of an archive",
		Long: `List parses the archive header and index and prints every entry.
The data region is never read, so listing large archives is cheap.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.long, "long", "l", false, "Show offsets and content hashes")

	return cmd
}

func runList(cmd *cobra.Command, archivePath string, opts listOptions) error {
	a, err := pak.Open(archivePath)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if a.Mount() != "" {
		fmt.Fprintf(out, "mount: %s\n", a.Mount())
	}

	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	if opts.long {
		fmt.Fprintln(w, "SIZE\tSTORED\tCOMP\tOFFSET\tSHA1\tPATH")
	} else {
		fmt.Fprintln(w, "SIZE\tSTORED\tCOMP\tPATH")
	}
	for entry := range a.Entries() {
		size := units.HumanSize(float64(entry.UncompressedSize))
		stored := units.HumanSize(float64(entry.CompressedSize))
		if opts.long {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				size, stored, entry.Compression, entry.Offset,
				hex.EncodeToString(entry.Hash[:]), entry.Path)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", size, stored, entry.Compression, entry.Path)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d entries, %s data\n", a.Len(), units.HumanSize(float64(a.DataSize())))
	return nil
}
