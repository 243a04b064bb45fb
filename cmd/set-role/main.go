package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/courseware-backend/internal/bootstrap"
	"github.com/stemsi/courseware-backend/internal/config"
	"github.com/stemsi/courseware-backend/internal/logger"
	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/service"
)

func main() {
	var email, role string
	flag.StringVar(&email, "email", "", "Email of the user to update")
	flag.StringVar(&role, "role", string(model.RoleTeacher), "New role: student, teacher or admin")
	flag.Parse()

	if email == "" {
		fmt.Println("Usage: set-role -email <email> [-role teacher]")
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Open Stores ───────────────────────────────────────────────────
	stores, closeStores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer closeStores()

	authService := service.NewAuthService(cfg, stores.Users, log)

	fmt.Println("=== Set User Role ===")
	if err := authService.SetRole(ctx, email, model.Role(role)); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			fmt.Printf("Error: no user with email %s\n", email)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Failed to set role")
	}
	fmt.Printf("Success! %s is now %s\n", email, role)
}
