package db

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	UserCollection     *mongo.Collection
	PostsCollection    *mongo.Collection
	CommentsCollection *mongo.Collection
	Client             *mongo.Client
)

// Initialize MongoDB connection
func Init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	clientOptions := options.Client().ApplyURI(uri)
	var err error
	Client, err = mongo.Connect(context.TODO(), clientOptions)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	dbName := os.Getenv("MONGODB_DB")
	if dbName == "" {
		dbName = "pixelfeed"
	}

	UserCollection = Client.Database(dbName).Collection("users")
	PostsCollection = Client.Database(dbName).Collection("posts")
	CommentsCollection = Client.Database(dbName).Collection("comments")
}
