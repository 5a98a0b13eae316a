// Package graphstore persists the drawing knowledge graph in Neo4j and
// exposes the traversal queries the graph retrieval channel runs on.
package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jcfg "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	"buildrag/internal/config"
	"buildrag/internal/logging"
)

// Counters summarizes what a write changed.
type Counters struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
}

func (c Counters) add(other Counters) Counters {
	return Counters{
		NodesCreated:         c.NodesCreated + other.NodesCreated,
		NodesDeleted:         c.NodesDeleted + other.NodesDeleted,
		RelationshipsCreated: c.RelationshipsCreated + other.RelationshipsCreated,
		RelationshipsDeleted: c.RelationshipsDeleted + other.RelationshipsDeleted,
		PropertiesSet:        c.PropertiesSet + other.PropertiesSet,
	}
}

// Client is the Neo4j connection. All statements run inside managed
// transactions, which retry transient failures up to the configured bound.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	logger   logging.Logger
}

// NewClient connects to Neo4j. Call VerifyConnectivity before first use.
func NewClient(cfg *config.Neo4jConfig) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4jcfg.Config) {
			if cfg.MaxRetrySecond > 0 {
				c.MaxTransactionRetryTime = time.Duration(cfg.MaxRetrySecond) * time.Second
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	return &Client{
		driver:   driver,
		database: cfg.Database,
		logger:   logging.WithComponent("graphstore"),
	}, nil
}

// VerifyConnectivity checks the server is reachable.
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j connectivity check failed: %w", err)
	}
	return nil
}

// ExecuteQuery runs a read statement and returns the records as maps keyed by
// the returned column names.
func (c *Client) ExecuteQuery(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer func() { _ = session.Close(ctx) }()

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, len(records))
		for i, record := range records {
			out[i] = record.AsMap()
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph query failed: %w", err)
	}
	return rows.([]map[string]any), nil
}

// ExecuteWrite runs a write statement in a managed transaction and returns
// the change counters.
func (c *Client) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Counters, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer func() { _ = session.Close(ctx) }()

	counters, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		summary, err := result.Consume(ctx)
		if err != nil {
			return nil, err
		}
		sc := summary.Counters()
		return Counters{
			NodesCreated:         sc.NodesCreated(),
			NodesDeleted:         sc.NodesDeleted(),
			RelationshipsCreated: sc.RelationshipsCreated(),
			RelationshipsDeleted: sc.RelationshipsDeleted(),
			PropertiesSet:        sc.PropertiesSet(),
		}, nil
	})
	if err != nil {
		return Counters{}, fmt.Errorf("graph write failed: %w", err)
	}
	return counters.(Counters), nil
}

// Close releases the driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}
