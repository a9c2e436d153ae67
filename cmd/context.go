package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFileName = "quire"
)

var contextCommand = &cobra.Command{
	Use:   "context",
	Short: "context commands",
}

func init() {
	rootCmd.AddCommand(contextCommand)
	contextCommand.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	contextCommand.AddCommand(setContextCommand())
	contextCommand.AddCommand(currentContextCommand())
	contextCommand.AddCommand(resetContextCommand())
}

// Context is the CLI's saved defaults: where the reader data lives and
// which api instance the frontend talks to.
type Context struct {
	DataDir string `json:"dataDir"`
	Server  string `json:"server"`
}

// saves the context info to the config file in ~/.config/quire
func setContextCommand() *cobra.Command {
	var dataDir string
	var serverURL string

	command := &cobra.Command{
		Use:   "set",
		Short: "set context",
		Run: func(cmd *cobra.Command, args []string) {
			if dataDir == "" && serverURL == "" {
				color.Red(`missing: --data-dir or --server`)
				return
			}

			ctx := readContext()
			if dataDir != "" {
				ctx.DataDir = dataDir
			}
			if serverURL != "" {
				ctx.Server = serverURL
			}

			writeContext(ctx)
			fmt.Println("context saved")
		},
	}

	command.Flags().StringVarP(&dataDir, "data-dir", "d", "", "reader data directory")
	command.Flags().StringVarP(&serverURL, "server", "s", "", "reader api url")

	return command
}

func currentContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "current context",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := readContext()
			fmt.Printf("data-dir: %s\nserver: %s\n", ctx.DataDir, ctx.Server)
		},
	}
}

func resetContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "reset context",
		Run: func(cmd *cobra.Command, args []string) {
			writeContext(Context{})
			fmt.Println("context reset")
		},
	}
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "quire")
}

func writeContext(ctx Context) {
	dir := configDir()
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		fmt.Println("error creating config dir: ", err)
		return
	}

	viper.SetConfigName(configFileName)
	viper.AddConfigPath(dir)
	viper.SetConfigType("yml")
	viper.Set("context", ctx)

	if err := viper.SafeWriteConfig(); err != nil {
		if err := viper.WriteConfig(); err != nil {
			fmt.Println("error writing config file: ", err)
		}
	}
}

func readContext() Context {
	var ctx Context

	viper.SetConfigName(configFileName)
	viper.AddConfigPath(configDir())
	viper.SetConfigType("yml")

	if err := viper.ReadInConfig(); err != nil {
		return ctx
	}

	if err := viper.UnmarshalKey("context", &ctx); err != nil {
		fmt.Println("error unmarshalling config file: ", err)
	}

	return ctx
}
