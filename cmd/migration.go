package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	clientsRepo "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/repository"
	coreconfig "github.com/uzzaidev/ChatBot-Oficial-sub002/core/config"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/core/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	Long: `Runs AutoMigrate for every table. With --seed the tenants declared in the
YAML file are upserted into the tenants table, secrets encrypted with APP_SECRET_KEY.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().String("seed", "", "YAML tenants file to upsert after migrating")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	db, err := openDatabase(coreconfig.Global)
	if err != nil {
		return err
	}
	defer db.Close()

	logrus.Info("[MIGRATION] Migrating tables...")
	if err := migrateSchema(ctx, db); err != nil {
		return err
	}

	if seed, _ := cmd.Flags().GetString("seed"); seed != "" {
		count, err := seedTenants(ctx, db, seed)
		if err != nil {
			return err
		}
		logrus.Infof("[MIGRATION] %d tenants seeded from %s", count, seed)
	}
	logrus.Info("[MIGRATION] Done")
	return nil
}

// seedTenants copies the tenants of a YAML file into the database.
func seedTenants(ctx context.Context, db *database.Client, path string) (int, error) {
	file, err := clientsRepo.NewTenantFileRepository(path)
	if err != nil {
		return 0, err
	}
	repo := clientsRepo.NewTenantGormRepository(db)
	tenants := file.All()
	for i := range tenants {
		if err := repo.Upsert(ctx, &tenants[i]); err != nil {
			return i, fmt.Errorf("seed tenant %q: %w", tenants[i].ID, err)
		}
	}
	return len(tenants), nil
}
