package repositories

import (
	"context"
	"delivery-batch-service/internal/domain"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoConfirmationLogAppend(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("first append", func(mt *mtest.T) {
		log := &MongoConfirmationLog{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		if err := log.Append(context.Background(), testConfirmation()); err != nil {
			mt.Fatalf("append: %v", err)
		}
	})

	mt.Run("duplicate stop", func(mt *mtest.T) {
		log := &MongoConfirmationLog{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		err := log.Append(context.Background(), testConfirmation())
		if !errors.Is(err, domain.ErrAlreadyDelivered) {
			mt.Fatalf("err = %v, want ErrAlreadyDelivered", err)
		}
	})
}

func TestMongoConfirmationLogGetMissing(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("no document", func(mt *mtest.T) {
		log := &MongoConfirmationLog{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "delivery.delivery_confirmations", mtest.FirstBatch))

		if _, err := log.Get(context.Background(), "ORD-404"); !errors.Is(err, domain.ErrNotFound) {
			mt.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestMongoBatchRepositoryPutRejectsOrderInTwoBatches(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate order", func(mt *mtest.T) {
		repo := &MongoBatchRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: delivery_batches index: uniq_stop_order",
		}))

		err := repo.Put(context.Background(), testBatch(mt.T, domain.Monday, "o1"))
		if err == nil {
			mt.Fatal("expected duplicate key error")
		}
	})

	mt.Run("delete", func(mt *mtest.T) {
		repo := &MongoBatchRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		if err := repo.Delete(context.Background(), "BATCH-MONDAY-2026-01-12"); err != nil {
			mt.Fatalf("delete: %v", err)
		}
	})
}
