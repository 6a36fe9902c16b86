// Package mysql samples row counts from one MySQL endpoint.
package mysql

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/izerui/mysql-migration-monitor/pkg/types"
)

// Collector issues count queries against one endpoint for every tracked
// schema. The first cycle that yields any usable sample runs in estimate
// mode; later cycles use exact counts. A single table failing never
// suppresses samples for its siblings.
//
// Collect is not safe for concurrent use; the scheduler guarantees at most
// one collection per endpoint is in flight.
type Collector struct {
	endpoint types.Endpoint
	queries  Queries
	schemas  []string
	ignored  []string
	timeout  time.Duration
	log      *logrus.Entry
	now      func() time.Time

	// refined is atomic because the dashboard's manual refresh resets it
	// from another goroutine.
	refined atomic.Bool
	// last successful table list per schema, so a connection failure can
	// still degrade to per-table error samples.
	lastTables map[string][]string
}

// NewCollector wires a collector for one endpoint.
func NewCollector(endpoint types.Endpoint, queries Queries, schemas, ignoredPrefixes []string, queryTimeout time.Duration, log *logrus.Logger) *Collector {
	return &Collector{
		endpoint:   endpoint,
		queries:    queries,
		schemas:    schemas,
		ignored:    ignoredPrefixes,
		timeout:    queryTimeout,
		log:        log.WithField("endpoint", string(endpoint)),
		now:        time.Now,
		lastTables: make(map[string][]string),
	}
}

// Mode reports which counting mode the next Collect call will use.
func (c *Collector) Mode() types.Mode {
	if !c.refined.Load() {
		return types.ModeEstimate
	}
	return types.ModeExact
}

// ResetEstimate drops back to estimate mode so the next cycle is a fast
// full re-scan. Used by the dashboard's manual refresh action.
func (c *Collector) ResetEstimate() {
	c.refined.Store(false)
}

// Ping verifies the endpoint is reachable before scheduling begins.
func (c *Collector) Ping(ctx context.Context) error {
	if len(c.schemas) == 0 {
		return nil
	}
	return c.queries.Ping(ctx, c.schemas[0])
}

// Close releases the endpoint's connection pools.
func (c *Collector) Close() error {
	return c.queries.Close()
}

// Collect samples every non-ignored table in every tracked schema and
// returns one RawSample per table. Failures are captured in the samples,
// never returned.
func (c *Collector) Collect(ctx context.Context) []types.RawSample {
	mode := c.Mode()
	start := c.now()

	var samples []types.RawSample
	for _, schema := range c.schemas {
		samples = append(samples, c.collectSchema(ctx, schema, mode)...)
	}

	for _, s := range samples {
		if !s.Failed() {
			c.refined.Store(true)
			break
		}
	}

	ok, failed := 0, 0
	for _, s := range samples {
		if s.Failed() {
			failed++
		} else {
			ok++
		}
	}
	c.log.WithFields(logrus.Fields{
		"mode":     mode.String(),
		"samples":  ok,
		"failures": failed,
		"duration": c.now().Sub(start).Round(time.Millisecond).String(),
	}).Debug("collection cycle finished")
	return samples
}

func (c *Collector) collectSchema(ctx context.Context, schema string, mode types.Mode) []types.RawSample {
	tables, err := c.queries.ListTables(ctx, schema)
	if err != nil {
		c.log.WithField("schema", schema).WithError(err).Warn("table discovery failed")
		return c.errorSamples(schema, c.lastTables[schema], err)
	}
	tables = filterTables(tables, c.ignored)
	c.lastTables[schema] = tables

	if mode == types.ModeEstimate {
		return c.estimateSchema(ctx, schema, tables)
	}
	return c.exactSchema(ctx, schema, tables)
}

func (c *Collector) estimateSchema(ctx context.Context, schema string, tables []string) []types.RawSample {
	stats, err := c.queries.EstimatedRows(ctx, schema)
	if err != nil {
		c.log.WithField("schema", schema).WithError(err).Warn("statistics read failed")
		return c.errorSamples(schema, tables, err)
	}
	sampledAt := c.now()
	samples := make([]types.RawSample, 0, len(tables))
	for _, table := range tables {
		samples = append(samples, types.RawSample{
			Endpoint:    c.endpoint,
			Schema:      schema,
			RawName:     table,
			RowCount:    stats[table],
			IsEstimated: true,
			SampledAt:   sampledAt,
		})
	}
	return samples
}

func (c *Collector) exactSchema(ctx context.Context, schema string, tables []string) []types.RawSample {
	samples := make([]types.RawSample, 0, len(tables))
	for _, table := range tables {
		tctx, cancel := context.WithTimeout(ctx, c.timeout)
		count, err := c.queries.ExactCount(tctx, schema, table)
		cancel()

		sample := types.RawSample{
			Endpoint:  c.endpoint,
			Schema:    schema,
			RawName:   table,
			RowCount:  count,
			SampledAt: c.now(),
		}
		if err != nil {
			sample.RowCount = 0
			sample.Err = err.Error()
		}
		samples = append(samples, sample)
	}
	return samples
}

// errorSamples marks every known table of a schema as failed. With no
// previously discovered tables there is nothing to mark and the failure
// lives only in the log.
func (c *Collector) errorSamples(schema string, tables []string, cause error) []types.RawSample {
	sampledAt := c.now()
	samples := make([]types.RawSample, 0, len(tables))
	for _, table := range tables {
		samples = append(samples, types.RawSample{
			Endpoint:  c.endpoint,
			Schema:    schema,
			RawName:   table,
			SampledAt: sampledAt,
			Err:       cause.Error(),
		})
	}
	return samples
}

func filterTables(tables, ignoredPrefixes []string) []string {
	kept := make([]string, 0, len(tables))
	for _, table := range tables {
		if hasAnyPrefix(table, ignoredPrefixes) {
			continue
		}
		kept = append(kept, table)
	}
	sort.Strings(kept)
	return kept
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
