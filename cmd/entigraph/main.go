package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/entigraph/entigraph"
	"github.com/entigraph/entigraph/helper"
	"github.com/entigraph/entigraph/model"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// A missing .env file is fine, the environment may be set directly.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "entigraph",
		Usage: "Query the unified entity registry and relationship graph",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "embedding-dim",
				Usage: "Vector dimension of the deployment's embedding column",
				Value: 384,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Hybrid search over text rank, vector similarity and quality",
				ArgsUsage: "<query text>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "max-results",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.Float64Flag{
						Name:  "min-quality",
						Usage: "Minimum quality score, 0 disables the floor",
					},
					&cli.StringSliceFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Restrict results to the given entity types",
					},
				},
			},
			{
				Name:      "similar",
				Usage:     "Rank entities by embedding similarity to a given entity",
				ArgsUsage: "<entity-id>",
				Action:    similarCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "model",
						Aliases:  []string{"m"},
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "max-results",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum cosine similarity to include",
					},
				},
			},
			{
				Name:      "related",
				Usage:     "List entities reachable within a bounded number of hops",
				ArgsUsage: "<entity-id>",
				Action:    relatedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-hops",
						Usage: "Maximum traversal depth",
						Value: 2,
					},
					&cli.StringSliceFlag{
						Name:  "edge-type",
						Usage: "Restrict traversal to the given relationship types",
					},
					&cli.Float64Flag{
						Name:  "min-confidence",
						Usage: "Skip edges below this confidence",
					},
				},
			},
			{
				Name:      "resolve",
				Usage:     "Resolve a name or alias to ranked entity candidates",
				ArgsUsage: "<name>",
				Action:    resolveCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "max-results",
						Aliases: []string{"n"},
						Usage:   "Maximum number of candidates",
						Value:   5,
					},
				},
			},
			{
				Name:   "summary",
				Usage:  "Show the most connected entities from the graph summary",
				Action: summaryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top",
						Aliases: []string{"n"},
						Usage:   "Number of entities to show",
						Value:   20,
					},
				},
			},
			{
				Name:      "recompute-quality",
				Usage:     "Recompute quality scores for all entities of a type",
				ArgsUsage: "<entity-type>",
				Action:    recomputeQualityCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entities to process",
						Value: 1000,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Worker pool size",
						Value: 4,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newRegistry(c *cli.Context) (*entigraph.Registry, error) {
	config, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	return entigraph.NewRegistry(config, c.Int("embedding-dim"))
}

func searchCommand(c *cli.Context) error {
	queryText := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if queryText == "" {
		return fmt.Errorf("query text is required")
	}

	registry, err := newRegistry(c)
	if err != nil {
		return err
	}
	defer registry.Close()

	config := model.DefaultQueryConfig()
	config.MaxResults = c.Int("max-results")
	config.MinQuality = c.Float64("min-quality")
	config.EntityTypes = c.StringSlice("type")

	results, err := registry.Search(context.Background(), queryText, nil, uuid.Nil, &config)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	for i, result := range results {
		fmt.Printf("%2d. %-40s score=%.3f text=%.3f vector=%.3f quality=%.3f\n",
			i+1, result.Entity.CanonicalName, result.Score, result.TextRank, result.VectorSimilarity, result.QualityScore)
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}

	return nil
}

func similarCommand(c *cli.Context) error {
	entityID, err := uuid.Parse(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid entity id: %w", err)
	}

	registry, err := newRegistry(c)
	if err != nil {
		return err
	}
	defer registry.Close()

	embeddingModel, err := registry.Embeddings.SelectModelByName(c.String("model"))
	if err != nil {
		return fmt.Errorf("unknown embedding model %q: %w", c.String("model"), err)
	}

	config := model.DefaultQueryConfig()
	config.MaxResults = c.Int("max-results")
	config.SimilarityThreshold = c.Float64("threshold")

	results, err := registry.SimilarTo(context.Background(), entityID, embeddingModel.ID, &config)
	if err != nil {
		return fmt.Errorf("similarity search failed: %w", err)
	}

	for i, result := range results {
		fmt.Printf("%2d. %-40s similarity=%.3f\n", i+1, result.Entity.CanonicalName, result.Similarity)
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}

	return nil
}

func relatedCommand(c *cli.Context) error {
	entityID, err := uuid.Parse(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid entity id: %w", err)
	}

	registry, err := newRegistry(c)
	if err != nil {
		return err
	}
	defer registry.Close()

	config := model.DefaultQueryConfig()
	config.MaxHops = c.Int("max-hops")
	config.MinConfidence = c.Float64("min-confidence")
	for _, edgeType := range c.StringSlice("edge-type") {
		config.EdgeTypes = append(config.EdgeTypes, model.RelationshipType(edgeType))
	}

	nodes, err := registry.RelatedWithin(context.Background(), entityID, &config)
	if err != nil {
		return fmt.Errorf("traversal failed: %w", err)
	}

	for _, node := range nodes {
		fmt.Printf("hop %d  %-40s via %s\n", node.HopDistance, node.CanonicalName, strings.Join(node.Path, " -> "))
	}
	if len(nodes) == 0 {
		fmt.Println("no related entities")
	}

	return nil
}

func resolveCommand(c *cli.Context) error {
	name := strings.TrimSpace(c.Args().First())
	if name == "" {
		return fmt.Errorf("name is required")
	}

	registry, err := newRegistry(c)
	if err != nil {
		return err
	}
	defer registry.Close()

	matches, err := registry.ResolveAlias(name, c.Int("max-results"))
	if err != nil {
		return fmt.Errorf("alias resolution failed: %w", err)
	}

	for _, match := range matches {
		kind := "alias"
		if match.IsCanonical {
			kind = "canonical"
		}
		fmt.Printf("%-40s %s  confidence=%.2f  %s\n", match.CanonicalName, match.EntityID, match.Confidence, kind)
	}
	if len(matches) == 0 {
		fmt.Println("no matches")
	}

	return nil
}

func summaryCommand(c *cli.Context) error {
	registry, err := newRegistry(c)
	if err != nil {
		return err
	}
	defer registry.Close()

	if err := registry.RefreshSummary(); err != nil {
		return fmt.Errorf("summary refresh failed: %w", err)
	}

	snapshot := registry.Summary.Snapshot()
	for _, summary := range snapshot.TopConnected(c.Int("top")) {
		fmt.Printf("%-40s in=%d out=%d predicates=[%s]\n",
			summary.CanonicalName, summary.InDegree, summary.OutDegree, strings.Join(summary.Predicates, ", "))
	}
	if snapshot.Len() == 0 {
		fmt.Println("graph is empty")
	}

	return nil
}

func recomputeQualityCommand(c *cli.Context) error {
	entityType := strings.TrimSpace(c.Args().First())
	if entityType == "" {
		return fmt.Errorf("entity type is required")
	}

	registry, err := newRegistry(c)
	if err != nil {
		return err
	}
	defer registry.Close()

	succeeded, err := registry.RecomputeQualityScoresByType(entityType, c.Int("limit"), c.Int("workers"))
	if err != nil {
		return fmt.Errorf("quality recompute failed: %w", err)
	}

	fmt.Printf("recomputed quality for %d entities\n", succeeded)

	return nil
}
