package graph

import (
	"context"
	"fmt"

	"github.com/codegraphhq/codegraph/internal/model"
)

// Counts is the aggregate completion signal surfaced after a run.
type Counts struct {
	Nodes int
	Edges int
}

// Counts returns the total node and relationship counts.
func (c *Client) Counts(ctx context.Context) (Counts, error) {
	rows, err := c.Read(ctx, `MATCH (n) RETURN count(n) AS c`, nil)
	if err != nil {
		return Counts{}, fmt.Errorf("count nodes: %w", err)
	}
	out := Counts{}
	if len(rows) > 0 {
		out.Nodes = asInt(rows[0]["c"])
	}

	rows, err = c.Read(ctx, `MATCH ()-[r]->() RETURN count(r) AS c`, nil)
	if err != nil {
		return Counts{}, fmt.Errorf("count edges: %w", err)
	}
	if len(rows) > 0 {
		out.Edges = asInt(rows[0]["c"])
	}
	return out, nil
}

// LabelHistogram returns per-label node counts for the fixed label set, in
// the model's canonical order.
func (c *Client) LabelHistogram(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(model.AllLabels()))
	for _, label := range model.AllLabels() {
		rows, err := c.Read(ctx, fmt.Sprintf(`MATCH (n:%s) RETURN count(n) AS c`, label), nil)
		if err != nil {
			return nil, fmt.Errorf("label histogram %s: %w", label, err)
		}
		if len(rows) > 0 {
			out[string(label)] = asInt(rows[0]["c"])
		}
	}
	return out, nil
}

// TypeHistogram returns per-type relationship counts for the fixed type set.
func (c *Client) TypeHistogram(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(model.AllRelTypes()))
	for _, relType := range model.AllRelTypes() {
		rows, err := c.Read(ctx, fmt.Sprintf(`MATCH ()-[r:%s]->() RETURN count(r) AS c`, relType), nil)
		if err != nil {
			return nil, fmt.Errorf("type histogram %s: %w", relType, err)
		}
		if len(rows) > 0 {
			out[string(relType)] = asInt(rows[0]["c"])
		}
	}
	return out, nil
}

// IntegrityReport is the lightweight schema check result.
type IntegrityReport struct {
	MissingIdentity int // nodes without a qualified_name or name
	Orphans         int // definition nodes with no CONTAINS parent
}

// CheckIntegrity scans for entities missing required identity fields and
// structurally orphaned definition nodes.
func (c *Client) CheckIntegrity(ctx context.Context) (IntegrityReport, error) {
	report := IntegrityReport{}

	rows, err := c.Read(ctx,
		`MATCH (n) WHERE n.qualified_name IS NULL OR n.name IS NULL RETURN count(n) AS c`, nil)
	if err != nil {
		return report, fmt.Errorf("integrity identity check: %w", err)
	}
	if len(rows) > 0 {
		report.MissingIdentity = asInt(rows[0]["c"])
	}

	rows, err = c.Read(ctx,
		`MATCH (n) WHERE (n:Class OR n:Function OR n:Attribute) AND NOT ()-[:CONTAINS]->(n) RETURN count(n) AS c`, nil)
	if err != nil {
		return report, fmt.Errorf("integrity orphan check: %w", err)
	}
	if len(rows) > 0 {
		report.Orphans = asInt(rows[0]["c"])
	}
	return report, nil
}

// EnsureSchema creates the uniqueness constraints and lookup indexes.
// Idempotent: safe to call on every run before the first scan.
func (c *Client) EnsureSchema(ctx context.Context) error {
	statements := make([]string, 0, len(model.AllLabels())+2)
	for _, label := range model.AllLabels() {
		statements = append(statements, fmt.Sprintf(
			`CREATE CONSTRAINT codegraph_%s_qn IF NOT EXISTS FOR (n:%s) REQUIRE n.qualified_name IS UNIQUE`,
			label, label))
	}
	statements = append(statements,
		`CREATE INDEX codegraph_function_name IF NOT EXISTS FOR (n:Function) ON (n.name)`,
		`CREATE INDEX codegraph_file_path IF NOT EXISTS FOR (n:File) ON (n.file_path)`,
	)
	for _, stmt := range statements {
		if _, err := c.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
