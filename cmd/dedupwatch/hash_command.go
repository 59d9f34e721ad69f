package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Ning0612/dedupwatch/internal/adapter/local"
	"github.com/Ning0612/dedupwatch/internal/core/checksum"
)

func newHashCommand() *cobra.Command {
	var algo string
	cmd := &cobra.Command{
		Use:         "hash <file>...",
		Short:       "Print the fingerprint sent to the store for each file",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, arg := range args {
				digest, err := hashFile(cmd, arg, checksum.Algorithm(algo))
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", arg, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", digest, arg)
			}
			if failed > 0 {
				return fmt.Errorf("%d file(s) could not be hashed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&algo, "algo", string(checksum.MD5), "Digest algorithm (md5 or sha256); the store only matches md5")
	return cmd
}

func hashFile(cmd *cobra.Command, path string, algo checksum.Algorithm) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	files, err := local.New(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	fp, err := checksum.NewFingerprinterWithAlgorithm(files, algo)
	if err != nil {
		return "", err
	}
	return fp.Fingerprint(cmd.Context(), abs)
}
