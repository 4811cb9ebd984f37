// Package main is the Lambda entry point for the design refinement API.
//
// It wraps the refiner pipeline behind API Gateway:
//
//	GET  /api/health  health check
//	POST /api/refine  {instruction, imageUrl} -> refined image + plan
//
// Cold start wires DynamoDB-backed chain and generation-cache stores, the
// generation service REST client, and (when configured) the Gemini direct
// editor with an S3 re-hosting bucket.
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/design-refine/internal/chain"
	"github.com/fpang/design-refine/internal/genservice"
	"github.com/fpang/design-refine/internal/lambdaboot"
	"github.com/fpang/design-refine/internal/logging"
	"github.com/fpang/design-refine/internal/refiner"
)

// Default SSM parameter paths, overridable via SSM_*_PARAM env vars.
const (
	defaultServiceKeyParam = "/design-refine/prod/genservice-api-key"
	defaultGeminiKeyParam  = "/design-refine/prod/gemini-api-key"
)

var pipeline *refiner.Refiner

func init() {
	initStart := time.Now()
	logging.Init()

	clients := lambdaboot.InitAWS()

	chainStore := lambdaboot.InitChainStore(clients.Config, "REFINE_TABLE_NAME")
	genCache := lambdaboot.InitGenCache(clients.Config, "REFINE_TABLE_NAME")
	images := lambdaboot.InitImageStore(clients.Config, "REFINE_BUCKET_NAME")

	serviceURL := os.Getenv("GENSERVICE_BASE_URL")
	if serviceURL == "" {
		log.Fatal().Msg("GENSERVICE_BASE_URL environment variable is required")
	}
	lambdaboot.LoadParam(clients.SSM, "GENSERVICE_API_KEY", "SSM_GENSERVICE_KEY_PARAM", defaultServiceKeyParam)
	service := genservice.NewHTTPService(serviceURL, os.Getenv("GENSERVICE_API_KEY"))

	pipeline = refiner.New(service, chain.NewManager(chainStore), genCache)

	directEdit := false
	if images != nil && lambdaboot.LoadParamOptional(clients.SSM, "GEMINI_API_KEY", "SSM_GEMINI_KEY_PARAM", defaultGeminiKeyParam) {
		editor, err := genservice.NewGeminiEditor(context.Background(), os.Getenv("GEMINI_API_KEY"))
		if err != nil {
			log.Warn().Err(err).Msg("Gemini editor init failed; direct-edit fallback disabled")
		} else {
			pipeline.WithDirectEdit(editor, images)
			directEdit = true
		}
	}

	logging.NewStartupLogger("refine-lambda").
		DynamoTable("refine", os.Getenv("REFINE_TABLE_NAME")).
		S3Bucket("refined", os.Getenv("REFINE_BUCKET_NAME")).
		SSMParam("genserviceKey", logging.EnvOrDefault("SSM_GENSERVICE_KEY_PARAM", defaultServiceKeyParam)).
		SSMParam("geminiKey", logging.EnvOrDefault("SSM_GEMINI_KEY_PARAM", defaultGeminiKeyParam)).
		Endpoint("genservice", serviceURL).
		Feature("directEdit", directEdit).
		InitDuration(time.Since(initStart)).
		Log()
}

func main() {
	mux := refiner.NewMux(pipeline)
	adapter := httpadapter.NewV2(mux)
	lambda.Start(adapter.ProxyWithContext)
}
