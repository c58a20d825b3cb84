package main

import (
	"fmt"

	"github.com/AntanasZilinskas/fd2p/infrastructure/provider"
	"github.com/spf13/cobra"
)

func downloadModelCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "download-model [dest]",
		Short: "Download the built-in embedding model",
		Long: `Download the ` + provider.LocalModelRepository + ` ONNX model used when no
embedding endpoint is configured. The destination defaults to MODEL_DIR.
An existing model is reused.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := ""
			if len(args) == 1 {
				dest = args[0]
			} else {
				cfg, err := loadConfig(envFile)
				if err != nil {
					return err
				}
				dest = cfg.ModelDir()
			}

			path, err := provider.DownloadModel(dest)
			if err != nil {
				return fmt.Errorf("download model: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Model ready at %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")

	return cmd
}
