package repository

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fernpond/rumble/rumble-backend/config"
	"github.com/fernpond/rumble/rumble-backend/models"
)

var (
	MongoDBClient *mongo.Client
)

func ConnectMongoDB(cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal(err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal(err)
	}
	MongoDBClient = client

	log.Println("Successfully connected to MongoDB")
}

func matchCollection(client *mongo.Client) *mongo.Collection {
	return client.Database("rumble").Collection("matches")
}

// SaveMatchRecord stores a finished match's action log and returns the hex id
// used to index it in PostgreSQL.
func SaveMatchRecord(ctx context.Context, client *mongo.Client, record *models.MatchRecord) (string, error) {
	result, err := matchCollection(client).InsertOne(ctx, record)
	if err != nil {
		return "", err
	}
	return result.InsertedID.(primitive.ObjectID).Hex(), nil
}

// FindMatchRecord fetches one match action log by its hex id. Returns
// (nil, nil) when no such match exists.
func FindMatchRecord(ctx context.Context, client *mongo.Client, hexID string) (*models.MatchRecord, error) {
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return nil, err
	}

	var record models.MatchRecord
	err = matchCollection(client).FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
