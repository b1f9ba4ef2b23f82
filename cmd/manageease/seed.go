package main

import (
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"manageease/internal/apperr"
	"manageease/internal/auth"
	"manageease/internal/models"
	"manageease/internal/storage/sqlite"
	"manageease/internal/tasks"
	"manageease/internal/users"
)

func seedCmd(opts *options) *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo admin account with a few sample tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger()
			store, err := sqlite.Open(opts.dbPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			// No tokens are issued while seeding.
			userSvc := users.NewService(store, auth.NewPasswordHasher(auth.DefaultBcryptCost), auth.NewTokenManager(auth.TokenConfig{}), logger)
			taskSvc := tasks.NewService(store, store, logger)

			ctx := cmd.Context()
			admin, err := userSvc.Register(ctx, users.RegisterInput{
				FirstName: "Admin",
				LastName:  "User",
				Email:     email,
				Password:  password,
			})
			if errors.Is(err, apperr.ErrConflict) {
				logger.Info("admin account already exists; nothing to seed", slog.String("email", email))
				return nil
			}
			if err != nil {
				return err
			}

			r := models.Requester{UserID: admin.ID, IsActive: true}
			due := time.Now().UTC().AddDate(0, 0, 7)
			samples := []tasks.CreateInput{
				{Title: "Welcome to ManageEase", Description: "Open a task to see its details.", Priority: "low", Tags: []string{"onboarding"}},
				{Title: "Invite your team", Description: "Register teammates so tasks can be assigned to them.", Priority: "high", DueDate: &due},
				{Title: "Try completing a task", Priority: "medium", Status: "completed", Tags: []string{"onboarding"}},
			}
			for _, in := range samples {
				if _, err := taskSvc.Create(ctx, r, in); err != nil {
					return err
				}
			}
			logger.Info("seed data created", slog.String("email", email), slog.Int("tasks", len(samples)))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "admin@manageease.local", "Admin account email")
	cmd.Flags().StringVar(&password, "password", "Admin123!", "Admin account password")
	return cmd
}
