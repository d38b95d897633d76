package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PabloGalante/chat-relay/internal/config"
	"github.com/PabloGalante/chat-relay/internal/observability"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string

	root := &cobra.Command{
		Use:          "chat-relay",
		Short:        "HTTP relay between a chat client and a conversational AI service",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := godotenv.Load(); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("loading .env: %w", err)
				}
				observability.Logger().Debug("no .env file found, using process environment")
			}
			return readConfigFile(v, cfgFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (yaml, toml or json)")

	root.AddCommand(newServeCmd(v))
	return root
}

func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	return v.ReadInConfig()
}
