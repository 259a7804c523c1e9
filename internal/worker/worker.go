package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/service"
)

// Workers bundles the background jobs that run beside the API.
type Workers struct {
	Notifications *service.NotificationService
	Reconciler    *OrphanReconciler
}

// Start subscribes the notification handlers and launches the reconciler when one is set.
// The returned WaitGroup completes once every goroutine has observed ctx cancellation.
func Start(ctx context.Context, w Workers, logger *zap.Logger) *sync.WaitGroup {
	var wg sync.WaitGroup
	if w.Notifications != nil {
		w.Notifications.RegisterHandlers()
	}
	if w.Reconciler == nil {
		logger.Info("orphan reconciler disabled")
		return &wg
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Reconciler.Start(ctx)
	}()
	return &wg
}
