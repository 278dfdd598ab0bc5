package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/foodplanner/backend/internal/app"
	"github.com/foodplanner/backend/internal/scrapers"
	"github.com/foodplanner/backend/internal/service"
	"github.com/foodplanner/backend/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedPassword string

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "testpassword123", "Password for every seeded user")
	rootCmd.AddCommand(seedCmd)
}

var seedEmails = []string{
	"john.doe@example.com",
	"jane.smith@example.com",
	"admin@example.com",
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the REMA 1000 store and test users who prefer it",
	RunE: func(*cobra.Command, []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.Ingest.EnsureStore(ctx, scrapers.Rema1000StoreID, a.Rema); err != nil {
				return err
			}
			for _, email := range seedEmails {
				user, _, err := a.Auth.Register(ctx, email, seedPassword)
				if errors.Is(err, service.ErrUserExists) {
					fmt.Printf("Skipped %s: already exists\n", email)
					continue
				}
				if err != nil {
					return fmt.Errorf("create %s: %w", email, err)
				}
				_, err = a.Stores.AddPreference(ctx, user.ID, &types.StorePreferenceRequest{
					StoreID:  scrapers.Rema1000StoreID,
					Priority: 50,
				})
				if err != nil {
					a.Logger.Warn("failed to add store preference", zap.String("email", email), zap.Error(err))
				}
				fmt.Printf("Created %s\n", email)
			}
			return nil
		})
	},
}
