package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/sqlfence/pkg/adapter"
)

func init() {
	adapter.Register(adapter.Registration{
		Name: "postgres",
		New:  func(logger *slog.Logger) adapter.Adapter { return New(logger) },
	})
}
