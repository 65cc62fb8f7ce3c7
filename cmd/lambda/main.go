package main

import (
	"context"
	"log"

	"github.com/ammiranda/tree_changelist/internal/app"
	"github.com/ammiranda/tree_changelist/internal/lambda"

	awslambda "github.com/aws/aws-lambda-go/lambda"
)

func main() {
	ctx := context.Background()

	provider, err := app.Provider(ctx)
	if err != nil {
		log.Fatal("Failed to create config provider:", err)
	}

	// Storage stays open for the lifetime of the execution environment
	application, err := app.New(ctx, provider)
	if err != nil {
		log.Fatal("Failed to initialize admin:", err)
	}

	handler := lambda.NewHandler(application.Registry, application.Logger)

	// Start Lambda
	awslambda.Start(handler.Handle)
}
