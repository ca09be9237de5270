package main

import (
	"context"
	"delivery-batch-service/internal/adapters/repositories"
	"delivery-batch-service/internal/config"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/platform/db"
	"flag"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// dbtool prepares the configured store: it creates the schema (or indexes)
// and loads the seed orders.
func main() {
	seed := flag.Bool("seed", true, "load orders from SEED_PATH after preparing the schema")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var orders []domain.Order
	if *seed {
		if orders, err = repositories.LoadOrdersJSON(cfg.SeedPath); err != nil {
			log.Fatal(err)
		}
	}

	switch cfg.StoreDriver {
	case "postgres":
		err = preparePostgres(ctx, cfg.DatabaseURL, orders)
	case "mongo":
		err = prepareMongo(ctx, cfg.MongoURI, cfg.MongoDB, orders)
	default:
		log.Fatalf("STORE_DRIVER %q has nothing to prepare (want postgres or mongo)", cfg.StoreDriver)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func preparePostgres(ctx context.Context, databaseURL string, orders []domain.Order) error {
	sqlDB, err := db.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	log.Println("Initializing database schema...")
	if err := repositories.InitSchema(ctx, sqlDB); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	log.Println("Schema ready.")

	if len(orders) == 0 {
		return nil
	}
	log.Printf("Seeding %d orders...", len(orders))
	if err := repositories.SeedOrders(ctx, sqlDB, orders); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	log.Println("Seeding complete.")
	return nil
}

func prepareMongo(ctx context.Context, uri, database string, orders []domain.Order) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	mdb := client.Database(database)
	log.Println("Creating indexes...")
	if err := repositories.EnsureMongoIndexes(ctx, mdb); err != nil {
		return err
	}
	log.Println("Indexes ready.")

	if len(orders) == 0 {
		return nil
	}
	log.Printf("Seeding %d orders...", len(orders))
	if err := repositories.NewMongoOrderRepository(mdb).Upsert(ctx, orders); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	log.Println("Seeding complete.")
	return nil
}
