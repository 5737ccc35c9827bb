package oauth2

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"credential-manager/internal/common/logging"
	"credential-manager/internal/storage"
)

// leaseDuration bounds how long one process may hold a credential's refresh lock.
const leaseDuration = 2 * time.Minute

// Locker serializes refreshes of one credential across processes. Any
// AcquireLock error means the credential is skipped this cycle.
type Locker interface {
	AcquireLock(ctx context.Context, key string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// Refresher proactively refreshes tokens that expire within the lookahead,
// on a cron schedule. Failures are logged and retried on the next run.
type Refresher struct {
	store     storage.Storage
	lifecycle *LifecycleManager
	schedule  string
	lookahead time.Duration
	locker    Locker
	logger    logging.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRefresher validates the cron schedule. locker may be nil.
func NewRefresher(store storage.Storage, lifecycle *LifecycleManager, schedule string, lookahead time.Duration, locker Locker, logger logging.Logger) (*Refresher, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return &Refresher{
		store:     store,
		lifecycle: lifecycle,
		schedule:  schedule,
		lookahead: lookahead,
		locker:    locker,
		logger:    logger.WithFields(logging.String("component", "token_refresher")),
	}, nil
}

// Start schedules the refresh job. Calling Start twice is a no-op.
func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.schedule, func() { r.RunOnce(r.ctx) }); err != nil {
		r.cancel()
		return fmt.Errorf("failed to schedule token refresh: %w", err)
	}
	c.Start()
	r.cron = c

	r.logger.Info("Token refresher started",
		logging.String("schedule", r.schedule),
		logging.Duration("lookahead", r.lookahead))
	return nil
}

// Stop cancels a running job and waits for it to return.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c, cancel := r.cron, r.cancel
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	r.logger.Info("Token refresher stopped")
}

// RunOnce refreshes every token that expires within the lookahead and holds
// a refresh token. It returns the number of tokens refreshed.
func (r *Refresher) RunOnce(ctx context.Context) int {
	creds, err := r.store.ListCredentials(ctx)
	if err != nil {
		r.logger.Error("Failed to list credentials for proactive refresh", err)
		return 0
	}

	refreshed := 0
	for _, cred := range creds {
		if ctx.Err() != nil {
			return refreshed
		}
		if r.refreshCredential(ctx, cred.ID) {
			refreshed++
		}
	}

	if refreshed > 0 {
		r.logger.Info("Proactive refresh finished", logging.Int("refreshed", refreshed))
	}
	return refreshed
}

func (r *Refresher) refreshCredential(ctx context.Context, credentialID int64) bool {
	logger := r.logger.WithFields(logging.Int64("credential_id", credentialID))

	if !r.due(ctx, logger, credentialID) {
		return false
	}

	if r.locker != nil {
		key := fmt.Sprintf("oauth2:refresh:%d", credentialID)
		lease, err := r.locker.AcquireLock(ctx, key, leaseDuration)
		if err != nil {
			logger.Debug("Skipping credential, refresh lock not acquired", logging.Err(err))
			return false
		}
		defer func() {
			if err := r.locker.ReleaseLock(context.WithoutCancel(ctx), key, lease); err != nil {
				logger.Warn("Failed to release refresh lock", logging.Err(err))
			}
		}()

		// Another process may have refreshed between the check and the lease.
		if !r.due(ctx, logger, credentialID) {
			logger.Debug("Token already refreshed by another holder")
			return false
		}
	}

	if _, err := r.lifecycle.RefreshAccessToken(ctx, credentialID); err != nil {
		logger.Error("Proactive refresh failed", err)
		return false
	}
	return true
}

// due reports whether the stored token expires within the lookahead and can
// be refreshed.
func (r *Refresher) due(ctx context.Context, logger logging.Logger, credentialID int64) bool {
	token, err := r.store.GetTokenByCredentialID(ctx, credentialID)
	if err != nil {
		logger.Error("Failed to load token for proactive refresh", err)
		return false
	}
	return token != nil && token.HasRefreshToken() && r.lifecycle.NeedsRefresh(token, r.lookahead)
}
