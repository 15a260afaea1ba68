package utils

import (
	"context"
	"fmt"

	"schoolfees/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMClient is nil until FirebaseInit succeeds.
var FCMClient *messaging.Client

// FirebaseInit initializes the Firebase App and Messaging client from the configured
// service account file. An empty path leaves push notifications disabled.
func FirebaseInit(ctx context.Context) error {
	path := config.AppConfig.FirebaseCredentialsFile
	if path == "" {
		return nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(path))
	if err != nil {
		return fmt.Errorf("firebase: error initializing app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("firebase: error getting Messaging client: %w", err)
	}

	FCMClient = client
	return nil
}
