package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alana-ai/alana/pkg/fingerprint"
	"github.com/alana-ai/alana/pkg/index"
)

func newIngestCmd() *cobra.Command {
	var clearFirst bool

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Add documents to the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !clearFirst {
				return fmt.Errorf("no files given")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			idx, err := openIndex(cfg, logger)
			if err != nil {
				return err
			}
			fp := fingerprint.New(cfg.Index.Root, cfg.Index.MarkerPath, fingerprint.Mode(cfg.Index.Fingerprint))

			changed := false
			if clearFirst {
				n, err := idx.Clear()
				if err != nil {
					return err
				}
				fmt.Printf("Removed %d documents.\n", n)
				changed = n > 0
			}

			failed := 0
			for _, path := range args {
				n, err := ingestPath(cmd.Context(), idx, path)
				if err != nil {
					fmt.Printf("✗ %s: %v\n", filepath.Base(path), err)
					failed++
					continue
				}
				fmt.Printf("✓ %s (%d chunks)\n", filepath.Base(path), n)
				changed = true
			}

			if changed {
				if err := fp.Reset(); err != nil {
					logger.Warn("reset corpus marker", zap.Error(err))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearFirst, "clear", false, "remove every indexed document first")
	return cmd
}

func ingestPath(ctx context.Context, idx *index.Index, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	doc, err := idx.Ingest(ctx, filepath.Base(path), f, info.Size())
	if err != nil {
		return 0, err
	}
	return len(doc.Chunks), nil
}
