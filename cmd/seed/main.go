package main

import (
	"context"
	"flag"
	"log"

	"github.com/ammiranda/tree_changelist/config"
	"github.com/ammiranda/tree_changelist/internal/app"
	"github.com/ammiranda/tree_changelist/repository"

	"github.com/joho/godotenv"
)

type seedNode struct {
	label    string
	children []seedNode
}

var sampleForest = []seedNode{
	{"Home", []seedNode{
		{"About", []seedNode{{"Team", nil}, {"History", nil}}},
		{"Contact", nil},
	}},
	{"Blog", []seedNode{{"Archive", nil}}},
	{"Shop", []seedNode{
		{"Catalog", []seedNode{{"New arrivals", nil}}},
		{"Cart", nil},
	}},
}

func main() {
	entity := flag.String("entity", "nodes", "entity to populate")
	reset := flag.Bool("reset", false, "delete existing nodes first")
	flag.Parse()

	_ = godotenv.Load()
	ctx := context.Background()

	provider, err := app.Provider(ctx)
	if err != nil {
		log.Fatal("Failed to create config provider:", err)
	}
	cfg, err := config.LoadAppConfig(ctx, provider)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger := config.NewLogger(log.Writer(), cfg.Environment, cfg.LogLevel)

	repos, cleanup, err := repository.Open(ctx, repository.Options{
		Backend:    cfg.StorageBackend,
		SQLitePath: cfg.SQLitePath,
		BoltPath:   cfg.BoltPath,
		Provider:   provider,
	}, []string{*entity})
	if err != nil {
		log.Fatal("Failed to open storage:", err)
	}
	defer cleanup(ctx)
	repo := repos[*entity]

	if *reset {
		nodes, err := repo.ListNodes(ctx)
		if err != nil {
			log.Fatal("Failed to list nodes:", err)
		}
		for _, n := range nodes {
			if n.IsRoot() {
				if err := repo.DeleteNode(ctx, n.ID); err != nil {
					log.Fatal("Failed to delete node:", err)
				}
			}
		}
	}

	created, err := seed(ctx, repo, nil, sampleForest)
	if err != nil {
		log.Fatal("Failed to seed nodes:", err)
	}
	logger.Info("seeded entity", "entity", *entity, "nodes", created)
}

func seed(ctx context.Context, repo repository.Repository, parentID *int64, nodes []seedNode) (int, error) {
	created := 0
	for _, n := range nodes {
		id, err := repo.CreateNode(ctx, n.label, parentID)
		if err != nil {
			return created, err
		}
		created++

		count, err := seed(ctx, repo, &id, n.children)
		created += count
		if err != nil {
			return created, err
		}
	}
	return created, nil
}
