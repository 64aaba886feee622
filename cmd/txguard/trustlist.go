package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var errInvalidTrustList = errors.New("trust list has invalid entries")

func newTrustListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trustlist [file]",
		Short: "Validate and summarize a trust list.",
		Long:  `Checks every entry of a trust list file, or the built in list when no file is given.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) > 0 {
				path = args[0]
			}
			return runTrustList(cmd.OutOrStdout(), path)
		},
	}
}

func runTrustList(out io.Writer, path string) error {
	lists, err := loadTrustList(path)
	if err != nil {
		return err
	}

	name := path
	if len(name) == 0 {
		name = "built in trust list"
	}
	fmt.Fprintln(out, titleStyle.Render(name))

	stats := lists.Stats()
	fmt.Fprintf(out, "  trusted programs:  %d\n", stats.Programs)
	fmt.Fprintf(out, "  trusted addresses: %d\n", stats.Addresses)
	fmt.Fprintf(out, "  flagged addresses: %d\n", stats.Flagged)

	invalid := lists.Validate()
	if len(invalid) == 0 {
		fmt.Fprintln(out, safeStyle.Render("  all entries are valid addresses"))
		return nil
	}

	for _, entry := range invalid {
		fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("  %s: %q is not a valid address", entry.Section, entry.Key)))
	}
	return errors.Wrapf(errInvalidTrustList, "%d invalid", len(invalid))
}
