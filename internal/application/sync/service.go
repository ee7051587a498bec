// Package sync implements the sales synchronization orchestrator: one entry
// point that locks an integration, walks the upstream pages and records the
// outcome in the run ledger.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/possync/backend/internal/domain/sync"
	"github.com/possync/backend/internal/infrastructure/telemetry"
)

// cleanupTimeout bounds the detached lock-release and run-finalization
// writes. Those must still reach the database after the caller's context has
// been cancelled, or the run stays RUNNING and the lock stays held.
const cleanupTimeout = 10 * time.Second

// Config holds the page-loop parameters of the orchestrator.
type Config struct {
	// PageSize is the upstream limit parameter; offsets advance by it
	PageSize int
	// MaxRequests is the hard cap on upstream requests per run
	MaxRequests int
	// MaxConsecutiveEmpty is the empty-page streak treated as end-of-data
	MaxConsecutiveEmpty int
	// InterPageDelay is the fixed pause after every processed page
	InterPageDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.MaxRequests <= 0 {
		c.MaxRequests = 500
	}
	if c.MaxConsecutiveEmpty <= 0 {
		c.MaxConsecutiveEmpty = 3
	}
	if c.InterPageDelay <= 0 {
		c.InterPageDelay = 500 * time.Millisecond
	}
}

// Service is the sync orchestrator. All failure modes are reported through
// the returned Summary; Sync never returns an error and never panics.
type Service struct {
	integrations domain.IntegrationRepository
	sales        domain.SaleRepository
	ledger       domain.RunLedger
	fetcher      domain.PageFetcher
	config       Config
	logger       *zap.Logger

	// mirror is the optional secondary raw-page archive, best-effort only
	mirror domain.PageArchiver
	// metrics is nil-safe; a nil *SyncMetrics records nothing
	metrics *telemetry.SyncMetrics

	// now is injectable for deterministic tests
	now func() time.Time
}

// NewService creates a sync orchestrator over the given ports.
func NewService(
	integrations domain.IntegrationRepository,
	sales domain.SaleRepository,
	ledger domain.RunLedger,
	fetcher domain.PageFetcher,
	config Config,
	logger *zap.Logger,
) *Service {
	config.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		integrations: integrations,
		sales:        sales,
		ledger:       ledger,
		fetcher:      fetcher,
		config:       config,
		logger:       logger,
		now:          time.Now,
	}
}

// SetPageMirror attaches a secondary archive that receives a copy of every
// raw page. Mirror failures are logged and never abort a run.
func (s *Service) SetPageMirror(mirror domain.PageArchiver) {
	s.mirror = mirror
}

// SetMetrics attaches run/request/sale counters.
func (s *Service) SetMetrics(metrics *telemetry.SyncMetrics) {
	s.metrics = metrics
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

// Sync runs one synchronization for the integration over [start, end].
// overrideStoreID, when non-empty, takes precedence over the integration's
// configured store. The per-integration syncing flag is the sole concurrency
// gate: losing it returns an "already in progress" summary with zero side
// effects, and winning it guarantees a release on every exit path.
func (s *Service) Sync(ctx context.Context, integrationID uuid.UUID, overrideStoreID string, start, end time.Time) domain.Summary {
	startedAt := s.now()
	summary := domain.Summary{
		Period:    domain.Window{Start: start, End: end},
		StartedAt: startedAt,
	}
	fail := func(message string) domain.Summary {
		summary.Message = message
		summary.EndedAt = s.now()
		return summary
	}

	won, err := s.integrations.TryAcquireSyncLock(ctx, integrationID)
	if err != nil {
		s.logger.Error("Failed to acquire sync lock",
			zap.String("integration_id", integrationID.String()),
			zap.Error(err),
		)
		return fail("could not acquire sync lock: " + err.Error())
	}
	if !won {
		return fail(domain.ErrSyncInProgress.Error())
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := s.integrations.ReleaseSyncLock(releaseCtx, integrationID); err != nil {
			s.logger.Error("Failed to release sync lock",
				zap.String("integration_id", integrationID.String()),
				zap.Error(err),
			)
		}
	}()

	integration, err := s.integrations.FindByID(ctx, integrationID)
	if err != nil {
		if errors.Is(err, domain.ErrIntegrationNotFound) {
			return fail(err.Error())
		}
		return fail("could not load integration: " + err.Error())
	}
	if !integration.Enabled {
		return fail(domain.ErrIntegrationDisabled.Error())
	}
	if !integration.Provider.IsValid() {
		return fail(domain.ErrProviderNotSupported.Error())
	}

	storeID := strings.TrimSpace(overrideStoreID)
	if storeID == "" {
		storeID = strings.TrimSpace(integration.StoreID)
	}
	if storeID == "" {
		return fail(domain.ErrMissingStoreID.Error())
	}

	window := domain.Window{Start: start, End: end}
	if err := window.Validate(); err != nil {
		return fail(err.Error())
	}

	token := NormalizeToken(integration.Token)

	run := domain.NewSyncRun(integration, storeID, window, startedAt)
	if err := s.ledger.CreateRun(ctx, run); err != nil {
		s.logger.Error("Failed to create sync run",
			zap.String("integration_id", integrationID.String()),
			zap.Error(err),
		)
		return fail("could not create sync run: " + err.Error())
	}

	s.logger.Info("Sync run started",
		zap.String("run_id", run.ID.String()),
		zap.String("integration_id", integrationID.String()),
		zap.String("store_id", storeID),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
	)

	status, message, progress := s.runPageLoop(ctx, run, integration, token, storeID, window)

	endedAt := s.now()
	s.finalize(run.ID, status, message, progress, endedAt)

	duration := endedAt.Sub(startedAt)
	s.metrics.RecordRun(ctx, storeID, status.String(), duration)
	s.metrics.RecordRequests(ctx, storeID, progress.TotalRequests)

	s.logger.Info("Sync run finished",
		zap.String("run_id", run.ID.String()),
		zap.String("status", status.String()),
		zap.Int("synced", progress.Synced),
		zap.Int("errors", progress.ErrorCount),
		zap.Int("total_requests", progress.TotalRequests),
		zap.Duration("duration", duration),
	)

	summary.Success = status == domain.RunStatusSuccess
	summary.Synced = progress.Synced
	summary.Errors = progress.ErrorCount
	summary.TotalBeforeFilter = progress.TotalBeforeFilter
	summary.TotalAfterFilter = progress.TotalAfterFilter
	summary.TotalRequests = progress.TotalRequests
	summary.LastURL = progress.LastURL
	summary.Message = message
	summary.EndedAt = endedAt
	return summary
}

// ---------------------------------------------------------------------------
// Page loop
// ---------------------------------------------------------------------------

// runPageLoop walks the upstream pages in strictly increasing offset order
// until a termination condition or a fatal fault. It returns the terminal
// status, the failure message (empty on success) and the final counters.
func (s *Service) runPageLoop(
	ctx context.Context,
	run *domain.SyncRun,
	integration *domain.Integration,
	token, storeID string,
	window domain.Window,
) (domain.RunStatus, string, domain.Progress) {
	var progress domain.Progress
	offset := 0
	pageIndex := 0
	emptyStreak := 0

	for {
		// Cancellation is honored at page boundaries only; a page that
		// started processing is carried to completion.
		if ctx.Err() != nil {
			return domain.RunStatusCancelled, "sync cancelled: " + ctx.Err().Error(), progress
		}
		if progress.TotalRequests >= s.config.MaxRequests {
			s.logger.Warn("Request cap reached, ending run",
				zap.String("run_id", run.ID.String()),
				zap.Int("max_requests", s.config.MaxRequests),
			)
			return domain.RunStatusSuccess, "", progress
		}
		if emptyStreak >= s.config.MaxConsecutiveEmpty {
			return domain.RunStatusSuccess, "", progress
		}

		page, err := s.fetcher.FetchPage(ctx, domain.PageRequest{
			Token:   token,
			StoreID: storeID,
			Window:  window,
			Limit:   s.config.PageSize,
			Offset:  offset,
		})
		progress.TotalRequests++
		if page != nil && page.URL != "" {
			progress.LastURL = page.URL
		}

		if err != nil {
			status, message, fatal := s.handleFetchError(ctx, run.ID, storeID, page, pageIndex, offset, err, &progress)
			if fatal {
				return status, message, progress
			}
			// Skippable page: advance the cursor and keep going. A failed
			// fetch says nothing about data presence, so the empty streak is
			// left untouched.
			if page != nil && len(page.RawBody) > 0 {
				s.archivePage(ctx, run.ID, pageIndex, page.RawBody)
				pageIndex++
			}
			offset += s.config.PageSize
			s.updateProgress(ctx, run.ID, progress)
			s.sleep(ctx, s.config.InterPageDelay)
			continue
		}

		// Archive the verbatim body before any trust or filtering decision.
		s.archivePage(ctx, run.ID, pageIndex, page.RawBody)
		pageIndex++

		if page.IsEmpty() {
			emptyStreak++
			offset += s.config.PageSize
			s.updateProgress(ctx, run.ID, progress)
			s.sleep(ctx, s.config.InterPageDelay)
			continue
		}
		emptyStreak = 0

		if suspicious, reason := domain.LooksSuspicious(page.Items); suspicious {
			s.recordError(ctx, run.ID, storeID, fmt.Sprintf("suspicious page at offset %d: %s", offset, reason), string(page.Items[0]), &progress)
			return domain.RunStatusError, domain.ErrSuspiciousPage.Error(), progress
		}

		sales, mapped := domain.NormalizePage(page.Items, storeID, integration.TenantID, window)
		progress.TotalBeforeFilter += len(page.Items)
		progress.TotalAfterFilter += len(sales)
		s.logger.Debug("Page normalized",
			zap.String("run_id", run.ID.String()),
			zap.Int("offset", offset),
			zap.Int("items", len(page.Items)),
			zap.Int("mapped", mapped),
			zap.Int("in_window", len(sales)),
		)

		if len(sales) > 0 {
			if err := s.sales.UpsertBatch(ctx, sales); err != nil {
				s.recordError(ctx, run.ID, storeID, fmt.Sprintf("upsert batch failed at offset %d: %v", offset, err), "", &progress)
				return domain.RunStatusError, "persistence failure: " + err.Error(), progress
			}
			progress.Synced += len(sales)
			s.metrics.RecordSalesUpserted(ctx, storeID, len(sales))
		}

		offset += s.config.PageSize
		s.updateProgress(ctx, run.ID, progress)
		s.sleep(ctx, s.config.InterPageDelay)
	}
}

// handleFetchError classifies a fetch failure. It returns fatal=true with the
// terminal status for faults that abort the run, and fatal=false for pages
// that are merely skipped.
func (s *Service) handleFetchError(
	ctx context.Context,
	runID uuid.UUID,
	storeID string,
	page *domain.Page,
	pageIndex, offset int,
	err error,
	progress *domain.Progress,
) (domain.RunStatus, string, bool) {
	switch {
	case errors.Is(err, domain.ErrUpstreamDown), errors.Is(err, domain.ErrMalformedResponse):
		// Malformed bodies are still archived so the offending payload can
		// be inspected later.
		if page != nil && len(page.RawBody) > 0 {
			s.archivePage(ctx, runID, pageIndex, page.RawBody)
		}
		s.recordError(ctx, runID, storeID, fmt.Sprintf("fatal upstream failure at offset %d: %v", offset, err), rawPreview(page), progress)
		return domain.RunStatusError, err.Error(), true

	case errors.Is(err, domain.ErrPageFailed):
		s.recordError(ctx, runID, storeID, fmt.Sprintf("page fetch failed at offset %d: %v", offset, err), rawPreview(page), progress)
		return "", "", false

	case ctx.Err() != nil:
		return domain.RunStatusCancelled, "sync cancelled: " + ctx.Err().Error(), true

	default:
		s.recordError(ctx, runID, storeID, fmt.Sprintf("unexpected fetch failure at offset %d: %v", offset, err), rawPreview(page), progress)
		return domain.RunStatusError, err.Error(), true
	}
}

// ---------------------------------------------------------------------------
// Ledger helpers
// ---------------------------------------------------------------------------

// archivePage writes the raw body to the ledger and, when configured, to the
// secondary mirror. Both writes are best-effort.
func (s *Service) archivePage(ctx context.Context, runID uuid.UUID, pageIndex int, payload []byte) {
	if err := s.ledger.ArchivePage(ctx, runID, pageIndex, payload); err != nil {
		s.logger.Warn("Failed to archive raw page",
			zap.String("run_id", runID.String()),
			zap.Int("page_index", pageIndex),
			zap.Error(err),
		)
	}
	if s.mirror == nil {
		return
	}
	if err := s.mirror.ArchivePage(ctx, runID, pageIndex, payload); err != nil {
		s.logger.Warn("Failed to mirror raw page",
			zap.String("run_id", runID.String()),
			zap.Int("page_index", pageIndex),
			zap.Error(err),
		)
	}
}

// recordError appends one error row, bumps the counter and the metric.
func (s *Service) recordError(ctx context.Context, runID uuid.UUID, storeID, message, payload string, progress *domain.Progress) {
	progress.ErrorCount++
	s.metrics.RecordError(ctx, storeID)
	if err := s.ledger.AppendError(ctx, runID, message, payload); err != nil {
		s.logger.Error("Failed to append sync error",
			zap.String("run_id", runID.String()),
			zap.String("message", message),
			zap.Error(err),
		)
	}
}

// updateProgress writes the per-page counter snapshot; failures are logged
// because the ledger is an audit surface, not a control surface.
func (s *Service) updateProgress(ctx context.Context, runID uuid.UUID, progress domain.Progress) {
	if err := s.ledger.UpdateProgress(ctx, runID, progress); err != nil {
		s.logger.Warn("Failed to update run progress",
			zap.String("run_id", runID.String()),
			zap.Error(err),
		)
	}
}

// finalize writes the last counter snapshot and the terminal status on a
// detached context, so cancelled runs still get closed out.
func (s *Service) finalize(runID uuid.UUID, status domain.RunStatus, message string, progress domain.Progress, endedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	s.updateProgress(ctx, runID, progress)
	if err := s.ledger.FinalizeRun(ctx, runID, status, message, endedAt); err != nil {
		s.logger.Error("Failed to finalize sync run",
			zap.String("run_id", runID.String()),
			zap.String("status", status.String()),
			zap.Error(err),
		)
	}
}

// sleep pauses between pages but returns early on cancellation; the loop head
// observes the cancelled context on the next iteration.
func (s *Service) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// NormalizeToken trims whitespace and a redundant case-insensitive "Bearer "
// prefix from a configured token. The HTTP client adds its own scheme prefix,
// so a stored "Bearer xyz" must not turn into "Bearer Bearer xyz".
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	const prefix = "bearer "
	if len(token) >= len(prefix) && strings.EqualFold(token[:len(prefix)], prefix) {
		token = strings.TrimSpace(token[len(prefix):])
	}
	return token
}

func rawPreview(page *domain.Page) string {
	if page == nil {
		return ""
	}
	return string(page.RawBody)
}
