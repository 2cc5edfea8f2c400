// Package vectorutils is the vector collection utility package
package vectorutils

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/meridianlabs/mnemo/pkg/embeddings"
	"github.com/meridianlabs/mnemo/pkg/vector"
	"github.com/meridianlabs/mnemo/pkg/vector/qdrant"
	"github.com/meridianlabs/mnemo/pkg/vector/sqlitevec"
)

type NewCollectionOpts struct {
	// ProviderType selects the backend: "sqlitevec" or "qdrant".
	ProviderType string

	// Target is the db path for sqlitevec, or host:port for qdrant.
	Target string

	// Name is the collection name (e.g. "episodic", "semantic").
	Name string

	Dimensions uint
	Embedder   embeddings.Embedder
	Logger     *slog.Logger
}

func NewCollection(ctx context.Context, o *NewCollectionOpts) (vector.Collection, error) {
	switch o.ProviderType {
	case "sqlitevec", "sqlite":
		return sqlitevec.NewCollection(sqlitevec.Config{
			DBPath:     o.Target,
			Name:       o.Name,
			Dimensions: o.Dimensions,
			Embedder:   o.Embedder,
			Logger:     o.Logger,
		})

	case "qdrant":
		host, port, err := splitHostPort(o.Target)
		if err != nil {
			return nil, err
		}
		return qdrant.NewCollection(ctx, qdrant.Config{
			Host:       host,
			Port:       port,
			Name:       o.Name,
			Dimensions: o.Dimensions,
			Embedder:   o.Embedder,
			Logger:     o.Logger,
		})

	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

func splitHostPort(target string) (string, int, error) {
	if target == "" {
		return "", 0, nil
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// A bare host is fine; the driver applies its default port.
		return target, 0, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid vector store port %q: %w", portStr, err)
	}
	return host, port, nil
}
