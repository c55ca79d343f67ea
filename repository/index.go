package repository

import (
	"context"
	"fmt"
	"time"

	"gradient/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func SetupIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		ProjectsCollection: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetName("project_name"),
			},
		},
		TasksCollection: {
			// Cascade delete and per-project listeners filter on projectId
			{
				Keys:    bson.D{{Key: "projectId", Value: 1}},
				Options: options.Index().SetName("task_project"),
			},
			{
				Keys: bson.D{
					{Key: "projectId", Value: 1},
					{Key: "dueDate", Value: 1},
				},
				Options: options.Index().SetName("task_project_due"),
			},
		},
		NotesCollection: {
			{
				Keys:    bson.D{{Key: "projectId", Value: 1}},
				Options: options.Index().SetName("note_project"),
			},
			{
				Keys: bson.D{
					{Key: "projectId", Value: 1},
					{Key: "createdAt", Value: -1},
				},
				Options: options.Index().SetName("note_project_date"),
			},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", collection, err)
		}
	}

	utils.Component("mongo-store").Info("Successfully created all indexes")
	return nil
}
