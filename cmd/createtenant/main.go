package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/models"
	"github.com/facegate/facegate/internal/repository"
	"github.com/facegate/facegate/internal/service"
	"github.com/facegate/facegate/pkg/database"
)

func main() {
	var (
		name       = flag.String("name", "", "Tenant name (required)")
		confidence = flag.Float64("confidence", models.DefaultConfidenceThreshold, "Confidence threshold")
		fallback   = flag.Float64("fallback", models.DefaultFallbackThreshold, "Fallback threshold")
	)
	flag.Parse()

	if *name == "" {
		fmt.Println("usage: createtenant -name <tenant-name> [-confidence N] [-fallback N]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database connection
	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	apiToken, err := service.GenerateAPIToken()
	if err != nil {
		slog.Error("Failed to generate app token", "error", err)
		os.Exit(1)
	}

	repo := repository.NewTenantsRepository(db)

	tenant, err := repo.Create(ctx, *name, apiToken, *confidence, *fallback)
	if err != nil {
		slog.Error("Failed to create tenant", "error", err)
		os.Exit(1)
	}

	fmt.Println("✓ Tenant ready!")
	fmt.Println()
	fmt.Println("ID:", tenant.ID)
	fmt.Println("Name:", tenant.Name)
	fmt.Println("Confidence threshold:", tenant.ConfidenceThreshold)
	fmt.Println("Fallback threshold:", tenant.FallbackThreshold)
	fmt.Println("Created:", tenant.CreatedAt)
	fmt.Println()
	fmt.Println("App token (shown once, store it safely):", tenant.APIToken)
	fmt.Println()
	fmt.Println("Example curl commands:")
	fmt.Println()
	fmt.Printf("# Register a user with a face image\n")
	fmt.Printf("curl -X POST -F email=ada@example.com -F full_name=\"Ada Lovelace\" \\\n")
	fmt.Printf("  -F password=secret -F image=@face.jpg \\\n")
	fmt.Printf("  http://localhost:8080/v1/apps/%s/users\n", tenant.APIToken)
	fmt.Println()
	fmt.Printf("# Classify a login capture\n")
	fmt.Printf("curl -X POST -F image=@capture.jpg http://localhost:8080/v1/apps/%s/login\n", tenant.APIToken)
}
