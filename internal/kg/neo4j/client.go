package neo4j

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/internal/catalog"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/circuitbreaker"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/logger"
	"github.com/iTherapyLLC/Speech-Science-Critical-Reasoning-Mirror-sub000/pkg/retry"
)

// Client stores the course reading list as a graph:
// (Course)-[:HAS_WEEK]->(Week)-[:ASSIGNS]->(Article), with Article nodes
// linked to Author and Topic nodes.
type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.Breaker
	retryConfig retry.Config
}

const courseID = "speech-science"

func NewClient(uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.New("neo4j", circuitbreaker.Config{
		Cooldown:         20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.For("neo4j"),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.For("neo4j"),
	}

	if database == "" {
		database = "neo4j"
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri), zap.String("database", database))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

// SeedWeekCatalog writes the table into the graph. Existing weeks are updated
// in place; weeks missing from the table are left untouched.
func (c *Client) SeedWeekCatalog(ctx context.Context, table *catalog.Table) error {
	if err := table.Validate(); err != nil {
		return err
	}

	courseQuery := `
		MERGE (c:Course {id: $course_id})
		SET c.course_weeks = $course_weeks,
		    c.midterm_week = $midterm_week,
		    c.final_week = $final_week,
		    c.updated_at = timestamp()
	`

	weekQuery := `
		MATCH (c:Course {id: $course_id})
		UNWIND $weeks AS row
		MERGE (w:Week {course_id: $course_id, number: row.week})
		MERGE (c)-[:HAS_WEEK]->(w)
		MERGE (a:Article {course_id: $course_id, week: row.week})
		SET a.title = row.title
		MERGE (w)-[:ASSIGNS]->(a)
		WITH a, row
		OPTIONAL MATCH (a)-[old:WRITTEN_BY|COVERS]->()
		DELETE old
		WITH DISTINCT a, row
		FOREACH (name IN row.authors |
			MERGE (au:Author {name: name})
			MERGE (a)-[:WRITTEN_BY]->(au))
		FOREACH (topic IN row.topics |
			MERGE (t:Topic {name: topic})
			MERGE (a)-[:COVERS]->(t))
	`

	params := catalogParams(table)

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			if _, err := tx.Run(ctx, courseQuery, params); err != nil {
				return nil, err
			}
			return tx.Run(ctx, weekQuery, params)
		})
		if err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Catalog seeded into graph", zap.Int("weeks", len(table.Entries)))
	return nil
}

// LoadWeekCatalog reads the week table back from the graph.
func (c *Client) LoadWeekCatalog(ctx context.Context) (*catalog.Table, error) {
	query := `
		MATCH (c:Course {id: $course_id})-[:HAS_WEEK]->(w:Week)-[:ASSIGNS]->(a:Article)
		OPTIONAL MATCH (a)-[:WRITTEN_BY]->(au:Author)
		OPTIONAL MATCH (a)-[:COVERS]->(t:Topic)
		RETURN c.course_weeks AS course_weeks,
		       c.midterm_week AS midterm_week,
		       c.final_week AS final_week,
		       w.number AS week,
		       a.title AS title,
		       collect(DISTINCT au.name) AS authors,
		       collect(DISTINCT t.name) AS topics
		ORDER BY week
	`

	var rows []map[string]any

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		rows = rows[:0]
		result, err := session.Run(ctx, query, map[string]any{"course_id": courseID})
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		for result.Next(ctx) {
			rows = append(rows, result.Record().AsMap())
		}
		if err = result.Err(); err != nil {
			return fmt.Errorf("error iterating results: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	table, err := tableFromRows(rows)
	if err != nil {
		return nil, err
	}

	logger.Info("Catalog loaded from graph", zap.Int("weeks", len(table.Entries)))
	return table, nil
}

func catalogParams(table *catalog.Table) map[string]any {
	weeks := make([]map[string]any, 0, len(table.Entries))
	for _, e := range table.Entries {
		weeks = append(weeks, map[string]any{
			"week":    int64(e.Week),
			"title":   e.Title,
			"authors": toAnySlice(e.Authors),
			"topics":  toAnySlice(e.Topics),
		})
	}
	return map[string]any{
		"course_id":    courseID,
		"course_weeks": int64(table.CourseWeeks),
		"midterm_week": int64(table.MidtermWeek),
		"final_week":   int64(table.FinalWeek),
		"weeks":        weeks,
	}
}

func tableFromRows(rows []map[string]any) (*catalog.Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: graph holds no weeks", catalog.ErrInvalidTable)
	}

	table := &catalog.Table{
		CourseWeeks: asInt(rows[0]["course_weeks"]),
		MidtermWeek: asInt(rows[0]["midterm_week"]),
		FinalWeek:   asInt(rows[0]["final_week"]),
	}
	for _, row := range rows {
		title, _ := row["title"].(string)
		table.Entries = append(table.Entries, catalog.WeekEntry{
			Week:    asInt(row["week"]),
			Title:   title,
			Authors: asStrings(row["authors"]),
			Topics:  asStrings(row["topics"]),
		})
	}
	sort.SliceStable(table.Entries, func(i, j int) bool {
		return table.Entries[i].Week < table.Entries[j].Week
	})

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func toAnySlice(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

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

// asStrings flattens a collected list and sorts it so loads are stable.
func asStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
