package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/output"
	"github.com/jackzampolin/folio/internal/restore"
	"github.com/jackzampolin/folio/internal/session"
	"github.com/jackzampolin/folio/internal/windowing"
)

var (
	readChapter int
	readPages   int
)

// pageView is the per-page record emitted by the read command.
type pageView struct {
	GlobalPage int    `json:"global_page" yaml:"global_page"`
	Chapter    int    `json:"chapter" yaml:"chapter"`
	Title      string `json:"title" yaml:"title"`
	InPage     int    `json:"in_page" yaml:"in_page"`
	Preview    string `json:"preview" yaml:"preview"`
}

var readCmd = &cobra.Command{
	Use:   "read <document-id>",
	Short: "Read a document from the saved position",
	Long: `Open a document and page through it from the command line.

The session starts at the saved reading position (or the beginning for a
new document), emits one record per page turn, and saves the final
position on exit.

Examples:
  folio read 3fa8            # resume, show the current page
  folio read 3fa8 --pages 10 # resume and turn ten pages
  folio read 3fa8 --chapter 4`,
	Args: cobra.ExactArgs(1),
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

		sess, err := session.New(session.Config{
			DocumentID: doc.ID,
			Title:      doc.Title,
			Provider:   p,
			Positions:  svcs.Positions,
			Reader:     svcs.ConfigManager.Get().Reader,
			Logger:     svcs.Logger,
		})
		if err != nil {
			return err
		}
		if err := sess.Start(ctx); err != nil {
			return err
		}
		defer sess.Close(ctx)

		if cmd.Flags().Changed("chapter") {
			if _, err := sess.GoToChapter(ctx, windowing.ChapterIndex(readChapter), 0); err != nil {
				return err
			}
		}

		if err := printPage(sess); err != nil {
			return err
		}
		for i := 0; i < readPages; i++ {
			before := sess.Location()
			loc, err := sess.NextPage(ctx)
			if err != nil {
				return err
			}
			if loc == before {
				fmt.Println("-- end of document --")
				break
			}
			if err := printPage(sess); err != nil {
				return err
			}
		}
		return nil
	},
}

func printPage(sess *session.Session) error {
	loc := sess.Location()
	preview := ""
	if content, ok := sess.Paginator().PageContent(loc.GlobalPage); ok {
		preview = content.Text
	}
	return output.Print(pageView{
		GlobalPage: loc.GlobalPage,
		Chapter:    int(loc.Chapter),
		Title:      sess.Paginator().ChapterTitle(loc.Chapter),
		InPage:     loc.InPage,
		Preview:    restore.PreviewText(preview, 0),
	})
}

func init() {
	readCmd.Flags().IntVar(&readChapter, "chapter", 0, "start at this chapter instead of the saved position")
	readCmd.Flags().IntVar(&readPages, "pages", 0, "number of pages to turn")

	rootCmd.AddCommand(readCmd)
}
