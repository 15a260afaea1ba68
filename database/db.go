package database

import (
	"context"
	"log"
	"strings"
	"time"

	"schoolfees/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoClient is the global MongoDB client instance.
var MongoClient *mongo.Client

// TransactionsEnabled reports whether multi-document transactions are used for
// the allocation step. Resolved once by InitDB.
var TransactionsEnabled bool

// InitDB initializes the MongoDB connection.
func InitDB() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(config.AppConfig.DatabaseURL)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Fatalf("failed to ping MongoDB: %v", err)
	}
	MongoClient = client
	TransactionsEnabled = resolveTransactions(ctx, client, config.AppConfig.MongoTransactions)
	log.Printf("Connected to MongoDB successfully! (transactions enabled: %v)", TransactionsEnabled)
}

// DB returns the configured application database.
func DB() *mongo.Database {
	return MongoClient.Database(config.AppConfig.DatabaseName)
}

// resolveTransactions honours an explicit on/off setting and otherwise asks the
// server whether it is a replica set member or a mongos.
func resolveTransactions(ctx context.Context, client *mongo.Client, mode string) bool {
	switch strings.ToLower(mode) {
	case "on", "true":
		return true
	case "off", "false":
		return false
	}

	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		log.Printf("could not determine MongoDB topology, using compensating writes: %v", err)
		return false
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid"
}
