package bootstrap

import (
	"context"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/index"
)

// IndexComponents holds the Elasticsearch client and the document index.
type IndexComponents struct {
	Client *es.Client
	Index  *index.ElasticsearchIndex
}

// SetupIndex connects to Elasticsearch and creates the document index when
// it is missing.
func SetupIndex(ctx context.Context, deps *CommandDeps) (*IndexComponents, error) {
	client, err := index.NewClient(ctx, deps.Config.Index, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	idx := index.NewElasticsearchIndex(client, deps.Config.Index, deps.Logger)
	if ensureErr := idx.EnsureIndex(ctx); ensureErr != nil {
		return nil, fmt.Errorf("failed to ensure index: %w", ensureErr)
	}

	return &IndexComponents{Client: client, Index: idx}, nil
}

// Ping checks the cluster is reachable.
func (c *IndexComponents) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}
