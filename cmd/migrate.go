package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/vocabdrill-backend/internal/app"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Migrate(log)
		},
	}
}
