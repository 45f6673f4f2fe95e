package db_fx

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"zapmenu/internal/config"
	"zapmenu/internal/infra"
	"zapmenu/internal/repositories"
)

var Module = fx.Provide(
	provideDB, provideBillingStores, provideAccountRepo)

func provideDB(lc fx.Lifecycle, cfg *config.Config) (*gorm.DB, error) {
	db, err := infra.InitPostgresql(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			infra.ClosePostgresql(db)
			return nil
		},
	})
	return db, nil
}

type billingStores struct {
	fx.Out

	Store    repositories.BillingStore
	Overview repositories.BillingOverviewRepository
}

// provideBillingStores selects the billing backend from BILLING_STORE.
func provideBillingStores(lc fx.Lifecycle, cfg *config.Config, db *gorm.DB) (billingStores, error) {
	switch cfg.BillingStore {
	case config.StorePostgres:
		return billingStores{
			Store:    repositories.NewBillingRepository(db),
			Overview: repositories.NewBillingOverviewRepository(db),
		}, nil
	case config.StoreMongo:
		client, database, err := infra.InitMongo(context.Background(), cfg)
		if err != nil {
			return billingStores{}, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				infra.CloseMongo(client)
				return nil
			},
		})
		repo := repositories.NewMongoBillingRepository(database)
		if err := repo.EnsureIndexes(context.Background()); err != nil {
			return billingStores{}, err
		}
		return billingStores{Store: repo, Overview: repo}, nil
	default:
		return billingStores{}, fmt.Errorf("unknown BILLING_STORE %q", cfg.BillingStore)
	}
}

func provideAccountRepo(db *gorm.DB) repositories.AccountRepository {
	return repositories.NewAccountRepository(db)
}
