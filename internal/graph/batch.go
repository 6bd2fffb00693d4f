package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/codegraphhq/codegraph/internal/model"
)

// Batched writes are grouped by entity label / relationship type so every
// write transaction targets a single label: this bounds transaction size and
// avoids cross-type lock contention on the server.

// CreateEntities upserts a batch of entities, one UNWIND write per label,
// and returns qualified name -> store element id for stitching relationships
// created in the same run.
func (c *Client) CreateEntities(ctx context.Context, entities []model.Entity) (map[string]string, error) {
	byLabel := make(map[model.Label][]model.Entity)
	for _, e := range entities {
		byLabel[e.Label()] = append(byLabel[e.Label()], e)
	}

	ids := make(map[string]string, len(entities))
	for _, label := range sortedLabels(byLabel) {
		group := byLabel[label]
		batch := make([]map[string]any, 0, len(group))
		for _, e := range group {
			batch = append(batch, map[string]any{
				"qualified_name": e.ID(),
				"props":          e.Props(),
			})
		}

		cypher := fmt.Sprintf(`UNWIND $batch AS row
MERGE (n:%s {qualified_name: row.qualified_name})
SET n += row.props
RETURN row.qualified_name AS qualified_name, elementId(n) AS element_id`, label)

		rows, err := c.Run(ctx, cypher, map[string]any{"batch": batch})
		if err != nil {
			return nil, fmt.Errorf("create %s batch (%d records): %w", label, len(group), err)
		}
		for _, row := range rows {
			qn, _ := row["qualified_name"].(string)
			id, _ := row["element_id"].(string)
			if qn != "" {
				ids[qn] = id
			}
		}
		slog.Debug("graph.batch.nodes", "label", label, "count", len(group))
	}
	return ids, nil
}

// CreateRelationships upserts a batch of relationships, one UNWIND write per
// type, and returns the number of relationships written. The source must
// exist; unresolved targets are retained as placeholder nodes keyed by the
// raw symbol, so best-effort edges are never dropped.
func (c *Client) CreateRelationships(ctx context.Context, rels []model.Relationship) (int, error) {
	byType := make(map[model.RelType][]model.Relationship)
	for _, r := range rels {
		byType[r.Type] = append(byType[r.Type], r)
	}

	total := 0
	for _, relType := range sortedTypes(byType) {
		group := byType[relType]
		batch := make([]map[string]any, 0, len(group))
		for _, r := range group {
			props := r.Properties
			if props == nil {
				props = map[string]any{}
			}
			batch = append(batch, map[string]any{
				"source": r.SourceID,
				"target": r.TargetID,
				"props":  props,
			})
		}

		cypher := fmt.Sprintf(`UNWIND $batch AS row
MATCH (a {qualified_name: row.source})
MERGE (b {qualified_name: row.target})
MERGE (a)-[r:%s]->(b)
SET r += row.props
RETURN count(r) AS created`, relType)

		rows, err := c.Run(ctx, cypher, map[string]any{"batch": batch})
		if err != nil {
			return total, fmt.Errorf("create %s batch (%d records): %w", relType, len(group), err)
		}
		created := 0
		if len(rows) > 0 {
			created = asInt(rows[0]["created"])
		}
		total += created
		slog.Debug("graph.batch.rels", "type", relType, "count", created)
	}
	return total, nil
}

func sortedLabels(m map[model.Label][]model.Entity) []model.Label {
	labels := make([]model.Label, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

func sortedTypes(m map[model.RelType][]model.Relationship) []model.RelType {
	types := make([]model.RelType, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// asInt converts the driver's integer representation (int64) to int.
func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
