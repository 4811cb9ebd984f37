// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// The refine Lambda needs AWS config, DynamoDB stores for chains and the
// generation cache, an S3 client for re-hosting direct edits, and SSM
// parameter fetches for API keys. This package extracts the common init
// patterns so the Lambda's init() is a short composition of helpers.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/design-refine/internal/chain"
	"github.com/fpang/design-refine/internal/gencache"
	"github.com/fpang/design-refine/internal/imagestore"
)

// AWSClients holds the core AWS SDK clients used at cold start.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitChainStore creates the DynamoDB chain store from the table name in
// the given environment variable. Fatals if the env var is empty.
func InitChainStore(cfg aws.Config, tableEnvVar string) *chain.DynamoStore {
	tableName := os.Getenv(tableEnvVar)
	if tableName == "" {
		log.Fatal().Str("envVar", tableEnvVar).Msg("DynamoDB table environment variable is required")
	}
	ddbClient := dynamodb.NewFromConfig(cfg)
	return chain.NewDynamoStore(ddbClient, tableName)
}

// InitGenCache creates the DynamoDB generation cache from the table name in
// the given environment variable. Both stores share one table; the PK
// prefixes keep the record spaces apart.
func InitGenCache(cfg aws.Config, tableEnvVar string) *gencache.DynamoCache {
	tableName := os.Getenv(tableEnvVar)
	if tableName == "" {
		log.Fatal().Str("envVar", tableEnvVar).Msg("DynamoDB table environment variable is required")
	}
	ddbClient := dynamodb.NewFromConfig(cfg)
	return gencache.NewDynamoCache(ddbClient, tableName)
}

// InitImageStore creates the S3 image store from the bucket name in the
// given environment variable. Returns nil (with a warning) if not
// configured; the direct-edit rung is disabled without it.
func InitImageStore(cfg aws.Config, bucketEnvVar string) *imagestore.Store {
	bucket := os.Getenv(bucketEnvVar)
	if bucket == "" {
		log.Warn().Str("envVar", bucketEnvVar).Msg("Image bucket not set; direct-edit re-hosting disabled")
		return nil
	}
	return imagestore.NewStore(s3.NewFromConfig(cfg), bucket)
}

// LoadParam fetches an SSM parameter into the given environment variable if
// it is not already set. paramEnvVar names the env var that overrides the
// parameter name; defaultParam is used when it is empty. Fatals on error.
func LoadParam(ssmClient *ssm.Client, targetEnvVar, paramEnvVar, defaultParam string) {
	if os.Getenv(targetEnvVar) != "" {
		return
	}
	paramName := os.Getenv(paramEnvVar)
	if paramName == "" {
		paramName = defaultParam
	}
	ssmStart := time.Now()
	result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		log.Fatal().Err(err).Str("param", paramName).Msg("Failed to read parameter from SSM")
	}
	os.Setenv(targetEnvVar, *result.Parameter.Value)
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Parameter loaded from SSM")
}

// LoadParamOptional is LoadParam for parameters whose absence only disables
// a feature. Returns true if the env var ends up set.
func LoadParamOptional(ssmClient *ssm.Client, targetEnvVar, paramEnvVar, defaultParam string) bool {
	if os.Getenv(targetEnvVar) != "" {
		return true
	}
	paramName := os.Getenv(paramEnvVar)
	if paramName == "" {
		paramName = defaultParam
	}
	result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		log.Warn().Err(err).Str("param", paramName).Msg("Optional parameter not found in SSM")
		return false
	}
	os.Setenv(targetEnvVar, *result.Parameter.Value)
	return true
}
