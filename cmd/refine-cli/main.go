// Package main is the design-refine command line tool.
//
// It compiles refinement instructions offline (plan), runs the full
// pipeline against a configured generation service (refine), and inspects
// the refinement chain store (chain show / chain clear).
//
// Configuration comes from the environment; a .env file in the working
// directory is loaded first when present. REFINE_TABLE_NAME switches the
// chain and cache stores from in-memory to DynamoDB.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/design-refine/internal/chain"
	"github.com/fpang/design-refine/internal/compile"
	"github.com/fpang/design-refine/internal/gencache"
	"github.com/fpang/design-refine/internal/genservice"
	"github.com/fpang/design-refine/internal/logging"
	"github.com/fpang/design-refine/internal/refiner"
)

// CLI flags
var (
	imageURLFlag   string
	vocabularyFlag string
)

var rootCmd = &cobra.Command{
	Use:   "refine-cli",
	Short: "Compile and run design refinement instructions",
	Long: `refine-cli turns free-text edit instructions ("make the hat red and
add sunglasses") into validated atomic operations and, when a generation
service is configured, applies them to an image.

Examples:
  refine-cli plan "change the background to a city and add a hat"
  refine-cli refine "make the teeth gold" --image https://example.com/skull.png
  refine-cli chain show https://example.com/skull.png
  refine-cli chain clear https://example.com/skull.png`,
}

var planCmd = &cobra.Command{
	Use:   "plan <instruction>",
	Short: "Compile an instruction and print the operation plan",
	Args:  cobra.ExactArgs(1),
	Run:   runPlan,
}

var refineCmd = &cobra.Command{
	Use:   "refine <instruction>",
	Short: "Run the full refinement pipeline against an image",
	Args:  cobra.ExactArgs(1),
	Run:   runRefine,
}

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Inspect the refinement chain store",
}

var chainShowCmd = &cobra.Command{
	Use:   "show <imageUrl>",
	Short: "Show the chain resolved for an image URL",
	Args:  cobra.ExactArgs(1),
	Run:   runChainShow,
}

var chainClearCmd = &cobra.Command{
	Use:   "clear <imageUrl>",
	Short: "Delete the chain stored for an image URL",
	Args:  cobra.ExactArgs(1),
	Run:   runChainClear,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&vocabularyFlag, "vocabulary", "", "YAML file with synonym and verb overrides")
	refineCmd.Flags().StringVarP(&imageURLFlag, "image", "i", "", "Source image URL (required)")
	chainCmd.AddCommand(chainShowCmd, chainClearCmd)
	rootCmd.AddCommand(planCmd, refineCmd, chainCmd)
}

func main() {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg(".env loaded")
	}
	logging.Init()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadVocabulary() {
	if vocabularyFlag == "" {
		return
	}
	if err := compile.LoadVocabulary(vocabularyFlag); err != nil {
		log.Fatal().Err(err).Str("path", vocabularyFlag).Msg("Failed to load vocabulary overrides")
	}
	log.Info().Str("path", vocabularyFlag).Msg("Vocabulary overrides loaded")
}

func runPlan(cmd *cobra.Command, args []string) {
	loadVocabulary()
	plan := compile.Compile(args[0])
	printJSON(plan)
}

func runRefine(cmd *cobra.Command, args []string) {
	loadVocabulary()
	if imageURLFlag == "" {
		log.Fatal().Msg("--image is required")
	}

	serviceURL := os.Getenv("GENSERVICE_BASE_URL")
	if serviceURL == "" {
		log.Fatal().Msg("GENSERVICE_BASE_URL environment variable is required")
	}
	service := genservice.NewHTTPService(serviceURL, os.Getenv("GENSERVICE_API_KEY"))

	manager, cache := buildStores()
	pipeline := refiner.New(service, manager, cache)

	result, err := pipeline.Refine(context.Background(), args[0], imageURLFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Refinement failed")
	}
	printJSON(result)
}

func runChainShow(cmd *cobra.Command, args []string) {
	manager, _ := buildStores()
	lookup, err := manager.Lookup(context.Background(), args[0])
	if err != nil {
		log.Fatal().Err(err).Msg("Chain lookup failed")
	}
	printJSON(lookup)
}

func runChainClear(cmd *cobra.Command, args []string) {
	manager, _ := buildStores()
	if err := manager.Clear(context.Background(), args[0]); err != nil {
		log.Fatal().Err(err).Msg("Chain clear failed")
	}
	log.Info().Str("imageUrl", args[0]).Msg("Chain cleared")
}

// buildStores returns DynamoDB-backed stores when REFINE_TABLE_NAME is set,
// in-memory stores otherwise. The in-memory stores only persist for one
// process, which covers the plan/refine development loop.
func buildStores() (*chain.Manager, gencache.Cache) {
	tableName := os.Getenv("REFINE_TABLE_NAME")
	if tableName == "" {
		log.Debug().Msg("REFINE_TABLE_NAME not set; using in-memory stores")
		return chain.NewManager(chain.NewMemoryStore()), gencache.NewMemoryCache()
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	ddbClient := dynamodb.NewFromConfig(cfg)
	return chain.NewManager(chain.NewDynamoStore(ddbClient, tableName)),
		gencache.NewDynamoCache(ddbClient, tableName)
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal output")
	}
	fmt.Println(string(out))
}
