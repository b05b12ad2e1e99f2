package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"badge-progress-system/models"
	"badge-progress-system/utils"
)

// MemberChangesResponse is the top-level structure of the membership service response.
type MemberChangesResponse struct {
	Members []models.RemoteMember `json:"members"`
}

// MemberSyncStats reports one poll.
type MemberSyncStats struct {
	Received int
	Upserted int
	Failed   int
}

// MemberSyncWorker mirrors members from the membership service into the local members table.
type MemberSyncWorker struct {
	db           *gorm.DB
	log          *utils.Logger
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client

	// since is the newest remote updated_at seen so far; only touched by the run loop.
	since time.Time
}

func NewMemberSyncWorker(db *gorm.DB, log *utils.Logger, baseURL, endpointPath, serviceToken string, interval time.Duration) *MemberSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &MemberSyncWorker{
		db:           db,
		log:          log.With("worker", "member_sync"),
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *MemberSyncWorker) Start(ctx context.Context) {
	w.log.Info("starting member sync worker", "base_url", w.baseURL, "interval", w.interval)
	go w.run(ctx)
}

func (w *MemberSyncWorker) run(ctx context.Context) {
	// Initial sync backfills from the beginning of time.
	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.Warn("initial member sync failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error("member sync failed", "error", err)
			}
		case <-ctx.Done():
			w.log.Info("member sync worker stopped")
			return
		}
	}
}

// SyncOnce fetches members changed since the last watermark and upserts them by external ID.
// The watermark only advances when the fetch succeeds, and never past a member whose upsert
// failed, so that member is fetched again on the next poll.
func (w *MemberSyncWorker) SyncOnce(ctx context.Context) (MemberSyncStats, error) {
	var stats MemberSyncStats

	remote, err := w.fetch(ctx, w.since)
	if err != nil {
		return stats, err
	}
	stats.Received = len(remote)
	if len(remote) == 0 {
		w.log.Debug("no member changes", "since", w.since)
		return stats, nil
	}

	latest := w.since
	var oldestFailed time.Time
	for _, rm := range remote {
		if rm.ExternalID == "" {
			stats.Failed++
			w.log.Warn("remote member without external id skipped")
			continue
		}
		if err := w.upsert(ctx, rm); err != nil {
			stats.Failed++
			w.log.Warn("member upsert failed", "external_id", rm.ExternalID, "error", err)
			if oldestFailed.IsZero() || rm.UpdatedAt.Before(oldestFailed) {
				oldestFailed = rm.UpdatedAt
			}
			continue
		}
		stats.Upserted++
		if rm.UpdatedAt.After(latest) {
			latest = rm.UpdatedAt
		}
	}
	if !oldestFailed.IsZero() {
		if floor := oldestFailed.Add(-time.Nanosecond); floor.Before(latest) {
			latest = floor
		}
		if latest.Before(w.since) {
			latest = w.since
		}
	}
	w.since = latest

	w.log.Info("members synced",
		"received", stats.Received, "upserted", stats.Upserted, "failed", stats.Failed,
		"watermark", latest.UTC().Format(time.RFC3339))
	return stats, nil
}

func (w *MemberSyncWorker) fetch(ctx context.Context, since time.Time) ([]models.RemoteMember, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid member sync URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build member sync request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("member sync request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("membership service returned %d: %s", resp.StatusCode, body)
	}

	var out MemberChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode member changes: %w", err)
	}
	return out.Members, nil
}

// upsert writes one remote member. Counter totals are only overwritten when the remote side
// reports them, so locally recorded activity is kept for members the service does not track.
func (w *MemberSyncWorker) upsert(ctx context.Context, rm models.RemoteMember) error {
	local := models.Member{
		ExternalMemberID: rm.ExternalID,
		FirstName:        rm.FirstName,
		LastName:         rm.LastName,
		Section:          rm.Section,
		JoinedAt:         rm.JoinedAt,
		TotalNightsAway:  rm.TotalNightsAway,
		TotalHikesAway:   rm.TotalHikesAway,
	}

	columns := []string{"first_name", "last_name", "section", "joined_at", "updated_at"}
	if rm.TotalNightsAway != nil {
		columns = append(columns, "total_nights_away")
	}
	if rm.TotalHikesAway != nil {
		columns = append(columns, "total_hikes_away")
	}

	return w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_member_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&local).Error
}
