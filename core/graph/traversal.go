// Package graph implements bounded multi-hop traversal over the
// relationship graph. The walk runs in Go over a narrow store interface so
// hop semantics, visited-set handling and capacity bounds stay explicit and
// testable instead of hiding in a recursive SQL query.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/entigraph/entigraph/model"
	"github.com/google/uuid"
)

// GraphStore defines the store operations traversal needs
type GraphStore interface {
	GetEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error)
	GetEdgesFromEntity(ctx context.Context, entityID uuid.UUID, relationshipType model.RelationshipType) ([]*model.Edge, error)
}

// Options bounds and filters a traversal
type Options struct {
	MaxHops       int
	EdgeTypes     []model.RelationshipType // Empty means all types
	MinConfidence float64                  // Edges below this confidence are not followed
	MaxVisited    int                      // Hard cap on visited entities, 0 disables
}

// OptionsFromQueryConfig derives traversal options from a query config
func OptionsFromQueryConfig(config *model.QueryConfig) Options {
	return Options{
		MaxHops:       config.MaxHops,
		EdgeTypes:     config.EdgeTypes,
		MinConfidence: config.MinConfidence,
		MaxVisited:    config.MaxVisited,
	}
}

// RelatedWithin performs a bounded breadth-first expansion from the start
// entity. Every reached entity is reported once, at its minimum hop distance,
// with one witness path (the ordered predicate sequence that first reached
// it). The start entity itself is never included, and maxHops = 0 yields an
// empty result. Results are ordered by (hop distance asc, canonical name
// asc). When the visited cap is exceeded the walk stops with
// model.ErrCapacityExceeded rather than returning a silently truncated
// result.
func RelatedWithin(ctx context.Context, store GraphStore, startID uuid.UUID, options Options) ([]*model.TraversalNode, error) {
	// Verify the start entity exists before walking.
	_, err := store.GetEntity(ctx, startID)
	if err != nil {
		return nil, err
	}

	if options.MaxHops <= 0 {
		return []*model.TraversalNode{}, nil
	}

	type queueEntry struct {
		entityID uuid.UUID
		hop      int
		path     []string
	}

	visited := map[uuid.UUID]bool{startID: true}
	queue := []queueEntry{{entityID: startID, hop: 0, path: nil}}

	var nodes []*model.TraversalNode

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.hop >= options.MaxHops {
			continue
		}

		edges, err := edgesForTypes(ctx, store, current.entityID, options.EdgeTypes)
		if err != nil {
			return nil, err
		}

		for _, edge := range edges {
			if edge.ConfidenceScore < options.MinConfidence {
				continue
			}

			targetID := edge.ObjectEntityID
			// BFS guarantees the first visit is at minimum hop distance,
			// so an already visited node is never re-emitted.
			if visited[targetID] {
				continue
			}

			if options.MaxVisited > 0 && len(visited) >= options.MaxVisited {
				return nil, fmt.Errorf("%w: traversal visited %d entities", model.ErrCapacityExceeded, len(visited))
			}
			visited[targetID] = true

			target, err := store.GetEntity(ctx, targetID)
			if err != nil {
				// A concurrently deleted endpoint is skipped, not fatal.
				// Any other store failure aborts the walk, a partial
				// result must never look complete.
				if errors.Is(err, model.ErrNotFound) {
					continue
				}
				return nil, err
			}

			path := make([]string, len(current.path), len(current.path)+1)
			copy(path, current.path)
			path = append(path, edge.Predicate)

			nodes = append(nodes, &model.TraversalNode{
				EntityID:      targetID,
				CanonicalName: target.CanonicalName,
				HopDistance:   current.hop + 1,
				Path:          path,
			})

			queue = append(queue, queueEntry{
				entityID: targetID,
				hop:      current.hop + 1,
				path:     path,
			})
		}
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].HopDistance != nodes[j].HopDistance {
			return nodes[i].HopDistance < nodes[j].HopDistance
		}
		return nodes[i].CanonicalName < nodes[j].CanonicalName
	})

	return nodes, nil
}

// Neighbors retrieves the immediate (1-hop) neighbors of an entity
func Neighbors(ctx context.Context, store GraphStore, entityID uuid.UUID, options Options) ([]*model.TraversalNode, error) {
	options.MaxHops = 1
	return RelatedWithin(ctx, store, entityID, options)
}

func edgesForTypes(ctx context.Context, store GraphStore, entityID uuid.UUID, edgeTypes []model.RelationshipType) ([]*model.Edge, error) {
	if len(edgeTypes) == 0 {
		return store.GetEdgesFromEntity(ctx, entityID, "")
	}

	var edges []*model.Edge
	for _, edgeType := range edgeTypes {
		typed, err := store.GetEdgesFromEntity(ctx, entityID, edgeType)
		if err != nil {
			return nil, err
		}
		edges = append(edges, typed...)
	}
	return edges, nil
}
