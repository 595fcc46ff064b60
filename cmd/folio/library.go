package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/output"
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Import a document into the library",
	Long: `Import an EPUB or PDF into the folio library.

The document is copied into the library directory under a content-derived
ID, so importing the same file twice is a no-op and reading positions
survive re-imports.

Examples:
  folio add walden.epub
  folio add ~/papers/thesis.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, cleanup, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		doc, err := svcs.Library.Add(ctx, args[0])
		if err != nil {
			return err
		}
		return output.Print(doc)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, cleanup, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		docs, err := svcs.Library.List(ctx)
		if err != nil {
			return err
		}
		return output.Print(docs)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <document-id>",
	Short: "Show document details",
	Long:  `Show a document's metadata. The ID may be any unique prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, cleanup, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		doc, err := svcs.Library.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		return output.Print(doc)
	},
}

var tocCmd = &cobra.Command{
	Use:   "toc <document-id>",
	Short: "Show a document's table of contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, svcs, cleanup, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		doc, err := svcs.Library.Resolve(ctx, args[0])
		if err != nil {
			return err
		}

		p, err := svcs.Registry.Open(doc.Path)
		if err != nil {
			return err
		}
		defer p.Close()

		toc, err := p.TableOfContents(ctx)
		if err != nil {
			return err
		}
		return output.Print(toc)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(tocCmd)
}
