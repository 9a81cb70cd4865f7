package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http
//
// Streaming chat responses are buffered by API Gateway; clients receive the
// full answer once the turn completes.

import (
	"context"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"pdfchat-backend/internal/bootstrap"
	"pdfchat-backend/internal/shared/config"
	"pdfchat-backend/internal/shared/telemetry"
)

const bootstrapFailedBody = `{"error":{"code":"internal_error","message":"service unavailable"}}`

var (
	initOnce  sync.Once
	initErr   error
	ginLambda *ginadapter.GinLambdaV2
)

func initApp() {
	cfg := config.Load()
	telemetry.SetLevel(cfg.LogLevel)
	app, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	ginLambda = ginadapter.NewV2(app.Router)
	telemetry.Info("lambda.http.ready", map[string]any{"env": cfg.Env})
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil || ginLambda == nil {
		fields := map[string]any{"request_id": req.RequestContext.RequestID}
		if initErr != nil {
			fields["error"] = initErr
		}
		telemetry.Error("lambda.http.bootstrap_failed", fields)
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       bootstrapFailedBody,
			Headers:    map[string]string{"Content-Type": "application/json"},
		}, nil
	}
	resp, err := ginLambda.ProxyWithContext(ctx, req)
	telemetry.Sync()
	return resp, err
}

func main() {
	lambda.Start(handler)
}
