package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Mutter0815/CampaignDispatch/internal/dispatch"
)

var ErrCampaignNotFound = errors.New("campaign not found")

// Store writes tracking rows and campaign counters. It never reads them back;
// the open and click endpoints own the rest of their lifecycle.
type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) *Store { return &Store{DB: db} }

var _ dispatch.TrackingStore = (*Store)(nil)

func (s *Store) CreateTrackingRecord(ctx context.Context, rec dispatch.TrackingRecord) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO email_tracking (tracking_id, campaign_id, subscriber_id, email, type, sent_at, opened, clicked)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rec.TrackingID, rec.CampaignID, nullable(rec.SubscriberID), rec.Email, rec.Type, rec.SentAt, rec.Opened, rec.Clicked)
	if err != nil {
		return fmt.Errorf("insert tracking record %s: %w", rec.TrackingID, err)
	}
	return nil
}

func (s *Store) UpdateCampaignStats(ctx context.Context, campaignID string, st dispatch.CampaignStats) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE campaigns
		   SET sent_count=$1, failed_count=$2, status=$3, sent_at=$4
		 WHERE id=$5
	`, st.SentCount, st.FailedCount, st.Status, st.SentAt, campaignID)
	if err != nil {
		return fmt.Errorf("update campaign %s stats: %w", campaignID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update campaign %s stats: %w", campaignID, err)
	}
	if n == 0 {
		return fmt.Errorf("update campaign %s stats: %w", campaignID, ErrCampaignNotFound)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
