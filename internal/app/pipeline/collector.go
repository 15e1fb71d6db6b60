package pipeline

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"github.com/txp-network/txp/internal/domain"
)

// collector gathers worker snapshots until the results channel closes.
type collector struct {
	order Order
	log   *zap.Logger
}

func newCollector(order Order, log *zap.Logger) collector {
	return collector{order: order, log: log.With(zap.String("component", "collector"))}
}

func (c collector) collect(results <-chan domain.Account) []domain.Account {
	var out []domain.Account
	for a := range results {
		out = append(out, a)
	}

	if c.order == OrderByClient {
		slices.SortFunc(out, func(a, b domain.Account) int {
			return cmp.Compare(a.Client, b.Client)
		})
	}

	c.log.Debug("snapshots collected", zap.Int("accounts", len(out)))
	return out
}
