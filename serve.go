package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Keepitcity/proof/services"
)

func NewServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and live call websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			config := services.LoadConfig()
			if port != "" {
				config.Server.Port = port
			}

			store, err := services.OpenStore(config.Database, config.Team.EmailDomain)
			if err != nil {
				return err
			}
			if store != nil && config.Database.Seed {
				if err := services.NewDatabaseSeeder(store).SeedDatabase(ctx); err != nil {
					slog.Error("Database seeding finished with errors", "error", err)
				}
			}

			server := services.NewServer(config)
			if store != nil {
				server.SetStore(store)
			}
			if err := server.InitializeServices(ctx); err != nil {
				return err
			}
			server.Start()
			return nil
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (overrides SERVER_PORT)")
	return cmd
}
