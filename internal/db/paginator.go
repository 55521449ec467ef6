package db

import (
	"context"
	"log/slog"

	"github.com/spacesedan/quiznox/internal/apperr"
	"github.com/spacesedan/quiznox/internal/metrics"
	"github.com/spacesedan/quiznox/internal/store"
)

// Paginator follows continuation tokens until a read is exhausted. The store
// caps the size of a single response, so every full read goes through here.
type Paginator struct {
	client  store.Client
	metrics *metrics.Collector
	logger  *slog.Logger
}

func NewPaginator(deps Deps) *Paginator {
	deps = deps.withDefaults()
	return &Paginator{client: deps.Client, metrics: deps.Metrics, logger: deps.Logger}
}

type PartitionQuery struct {
	Table          string
	PartitionKey   string
	PartitionValue string
	PageSize       int32
}

// FetchAllByPartition returns every item of one partition in ascending sort
// key order. Pages are concatenated in arrival order. If any page fails the
// pages read so far are dropped and the error is returned.
func (p *Paginator) FetchAllByPartition(ctx context.Context, q PartitionQuery) ([]store.Item, error) {
	const op = "Paginator.FetchAllByPartition"
	key := q.Table + "/" + q.PartitionValue

	in := store.QueryInput{
		Table:          q.Table,
		PartitionKey:   q.PartitionKey,
		PartitionValue: q.PartitionValue,
		Limit:          q.PageSize,
	}

	var items []store.Item
	pages := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, apperr.StoreUnavailable(op, key, err)
		}

		p.metrics.RecordStoreRequest()
		page, err := p.client.Query(ctx, in)
		if err != nil {
			p.logger.Error("[Paginator] page request failed, discarding partial result",
				slog.String("table", q.Table),
				slog.String("partition", q.PartitionValue),
				slog.Int("pages_read", pages),
				slog.String("error", err.Error()))
			return nil, apperr.StoreUnavailable(op, key, err)
		}

		pages++
		items = append(items, page.Items...)
		if !page.HasMore() {
			break
		}
		in.StartKey = page.LastKey
	}

	p.logger.Debug("[Paginator] partition read",
		slog.String("table", q.Table),
		slog.String("partition", q.PartitionValue),
		slog.Int("pages", pages),
		slog.Int("count", len(items)))
	return items, nil
}

// ScanAtLeast scans a whole table, stopping at the first page boundary at
// which min items have been gathered, or when the table runs out. min <= 0
// reads the whole table.
func (p *Paginator) ScanAtLeast(ctx context.Context, table string, min int, pageSize int32) ([]store.Item, error) {
	const op = "Paginator.ScanAtLeast"

	in := store.ScanInput{Table: table, Limit: pageSize}
	var items []store.Item
	for {
		if err := ctx.Err(); err != nil {
			return nil, apperr.StoreUnavailable(op, table, err)
		}

		p.metrics.RecordStoreRequest()
		page, err := p.client.Scan(ctx, in)
		if err != nil {
			p.logger.Error("[Paginator] scan page failed",
				slog.String("table", table),
				slog.Int("gathered", len(items)),
				slog.String("error", err.Error()))
			return nil, apperr.StoreUnavailable(op, table, err)
		}

		items = append(items, page.Items...)
		if !page.HasMore() || (min > 0 && len(items) >= min) {
			break
		}
		in.StartKey = page.LastKey
	}
	return items, nil
}
