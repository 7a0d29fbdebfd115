package main

import (
	"archive/zip"
	"fmt"

	"github.com/datawire/dlib/derror"
	"github.com/spf13/cobra"

	"github.com/go-python/wheelinstall/pkg/wheelrecord"
	"github.com/go-python/wheelinstall/pkg/wheelsource"
)

func init() {
	cmd := &cobra.Command{
		Use:   "verify [flags] IN_WHEELFILE.whl",
		Short: "Check that a wheel's contents match its own RECORD",
		Long: "Opens a wheel file, reads its own RECORD manifest, and re-hashes " +
			"every listed file to confirm the archive hasn't been tampered with or " +
			"corrupted. Exits non-zero and lists every mismatch found; does not " +
			"install anything.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wheelPath := args[0]
			zr, err := zip.OpenReader(wheelPath)
			if err != nil {
				return err
			}
			defer zr.Close()

			src, err := wheelsource.Open(&zr.Reader, wheelPath)
			if err != nil {
				return fmt.Errorf("%s: %w", wheelPath, err)
			}

			elems, err := src.ContentElements()
			if err != nil {
				return err
			}

			algorithms := wheelrecord.DefaultHashAlgorithms()
			var errs derror.MultiError
			for _, elem := range elems {
				if elem.RecordHash == "" {
					continue
				}
				fh, err := elem.Open()
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", elem.RecordPath, err))
					continue
				}
				ok, err := wheelrecord.ValidateStream(wheelrecord.RecordEntry{
					Path: elem.RecordPath,
					Hash: elem.RecordHash,
					Size: elem.RecordSize,
				}, fh, algorithms)
				fh.Close()
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", elem.RecordPath, err))
					continue
				}
				if !ok {
					errs = append(errs, fmt.Errorf("%s: content does not match RECORD", elem.RecordPath))
				}
			}
			if len(errs) > 0 {
				return errs
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d files verified)\n", wheelPath, len(elems))
			return nil
		},
	}
	argparser.AddCommand(cmd)
}
