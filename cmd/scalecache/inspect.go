package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/scalecache/internal/wire"
)

func newInspectCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print a snapshot export or a raw wire stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), args[0], format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "snapshot encoding; guessed from the extension when empty")
	return cmd
}

func runInspect(w io.Writer, path, format string) error {
	head := make([]byte, 4)
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	n, _ := io.ReadFull(fh, head)
	fh.Close()

	if n == 4 && bytes.Equal(head, []byte("SCRS")) {
		return inspectStack(w, path)
	}

	ex, err := readExport(path, exportFormat(format, path))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "snapshot v%d: %d entries\n", ex.Version, len(ex.Entries))
	for _, r := range ex.Entries {
		mark := " "
		if r.Original {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-48s %4dx%-4d %10s %s\n",
			mark, r.Description, r.Width, r.Height, humanize.IBytes(uint64(r.Bytes)), r.Checksum)
	}
	return nil
}

func inspectStack(w io.Writer, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	items, err := wire.DecodeStack(b)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(w, "stack: %d rasters\n", len(items))
	for _, it := range items {
		fmt.Fprintf(w, "  %-48s %-7s %4dx%-4d %016x\n",
			it.Name, it.Raster.Format, it.Raster.Width, it.Raster.Height, it.Raster.Checksum())
	}
	return nil
}
