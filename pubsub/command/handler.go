package command

import (
	"context"
)

type Synchronizer interface {
	Run(ctx context.Context) (int, error)
	SyncUser(ctx context.Context, userID string) (int, error)
}

type Handler struct {
	synchronizer Synchronizer
}

func NewHandler(synchronizer Synchronizer) Handler {
	if synchronizer == nil {
		panic("missing synchronizer")
	}

	return Handler{synchronizer: synchronizer}
}
