package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/quire-reader/quire/internal/config"
)

func openCmd() *cobra.Command {
	var page int
	var showPages bool

	command := &cobra.Command{
		Use:   "open <file>",
		Short: "open a document, prefetch around a page and print the manifest",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				color.Red("error reading %s: %v", args[0], err)
				return
			}

			r, _, cleanup := buildReader(config.LoadConfig())
			defer cleanup()
			defer r.Close()

			doc, err := r.Open(context.Background(), data, "", filepath.Base(args[0]))
			if err != nil {
				color.Red("error opening %s: %v", args[0], err)
				return
			}

			r.SetActivePage(page)
			r.Prefetch(context.Background())

			color.Green("%s: %d pages, reading at page %d", doc.Name, doc.PageCount, r.ActivePage()+1)

			if showPages {
				table := tablewriter.NewWriter(os.Stdout)
				table.SetHeader([]string{"Page", "Source", "Width", "Height", "Resolved"})
				images := r.PageImages()
				for i, p := range doc.Pages {
					resolved := ""
					if _, ok := images[i]; ok {
						resolved = "yes"
					}
					table.Append([]string{
						strconv.Itoa(i + 1), p.Label,
						strconv.Itoa(p.Width), strconv.Itoa(p.Height),
						resolved,
					})
				}
				table.Render()
			} else {
				fmt.Printf("%d pages decoded around the reading position\n", len(r.PageImages()))
			}
		},
	}

	command.Flags().IntVarP(&page, "page", "n", 0, "0-based page to open at")
	command.Flags().BoolVar(&showPages, "pages", false, "print the full page manifest")

	return command
}
