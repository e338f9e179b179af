package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wincLei/customer-service-sub000/internal/config"
	"github.com/wincLei/customer-service-sub000/internal/db"
)

func main() {
	root := &cobra.Command{
		Use:   "supportd",
		Short: "Customer-support messaging service",
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and event consumers",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := db.Migrate(cfg.Postgres); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
