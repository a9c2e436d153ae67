package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/quire-reader/quire/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "source cache commands",
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	cacheCmd.AddCommand(listCacheCmd())
	cacheCmd.AddCommand(cacheUsageCmd())
	cacheCmd.AddCommand(clearCacheCmd())
}

func listCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list cached sources, oldest access first",
		Run: func(cmd *cobra.Command, args []string) {
			r, _, cleanup := buildReader(config.LoadConfig())
			defer cleanup()
			defer r.Close()

			entries := r.CacheEntries(context.Background())
			if len(entries) == 0 {
				fmt.Println("cache is empty")
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"File ID", "Name", "Size", "Last Access"})
			for _, entry := range entries {
				table.Append([]string{
					entry.FileID,
					entry.Name,
					formatBytes(entry.Size),
					entry.LastAccess.Format(time.RFC3339),
				})
			}
			table.Render()
		},
	}
}

func cacheUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "print total cached bytes",
		Run: func(cmd *cobra.Command, args []string) {
			cnf := config.LoadConfig()
			r, _, cleanup := buildReader(cnf)
			defer cleanup()
			defer r.Close()

			usage := r.CacheUsage(context.Background())
			fmt.Printf("%s of %s used\n", formatBytes(usage), formatBytes(cnf.CacheLimit))
		},
	}
}

func clearCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "delete every cached source",
		Run: func(cmd *cobra.Command, args []string) {
			r, _, cleanup := buildReader(config.LoadConfig())
			defer cleanup()
			defer r.Close()

			if err := r.ClearCache(context.Background()); err != nil {
				color.Red("error clearing cache: %v", err)
				return
			}
			color.Green("cache cleared")
		},
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
