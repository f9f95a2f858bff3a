package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bloodlink/internal/domain"
)

// TransitionRepository. Writes are conditioned on the expected current status
// inside one transaction: the losing side of a concurrent transition sees the
// condition fail on a row that exists and gets domain.ErrConflict. The service
// layer has already validated the move against the state machine.

func (db *DB) TransitionRequest(ctx context.Context, id int64, from, to domain.RequestStatus, reason *string) (domain.BloodRequest, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return domain.BloodRequest{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE blood_requests
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING`+requestColumns, id, string(from), string(to))
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BloodRequest{}, db.conflictOrMissing(ctx, tx, `blood_requests`, `blood request`, id)
	}
	if err != nil {
		return domain.BloodRequest{}, err
	}

	if to == domain.RequestFulfilled {
		if err := db.cascadeComplete(ctx, tx, id); err != nil {
			return domain.BloodRequest{}, err
		}
	}

	if err := insertEvent(ctx, tx, "request", id, string(from), string(to), reason); err != nil {
		return domain.BloodRequest{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.BloodRequest{}, err
	}
	return req, nil
}

func (db *DB) TransitionDonation(ctx context.Context, id int64, from, to domain.DonationStatus, reason *string) (domain.Donation, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return domain.Donation{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE donations
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING`+donationColumns, id, string(from), string(to))
	don, err := scanDonation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Donation{}, db.conflictOrMissing(ctx, tx, `donations`, `donation`, id)
	}
	if err != nil {
		return domain.Donation{}, err
	}

	if to == domain.DonationCompleted {
		if err := creditDonor(ctx, tx, don.DonorRef, don.DonationDate); err != nil {
			return domain.Donation{}, err
		}
	}

	if err := insertEvent(ctx, tx, "donation", id, string(from), string(to), reason); err != nil {
		return domain.Donation{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Donation{}, err
	}
	return don, nil
}

// cascadeComplete moves every scheduled donation linked to the request to
// completed and credits each donor, inside the caller's transaction.
func (db *DB) cascadeComplete(ctx context.Context, tx pgx.Tx, requestID int64) error {
	rows, err := tx.Query(ctx, `
		UPDATE donations
		SET status = 'completed', updated_at = now()
		WHERE blood_request_id = $1 AND status = 'scheduled'
		RETURNING id, donor_id, donation_date`, requestID)
	if err != nil {
		return err
	}
	type completed struct {
		id      int64
		donorID int64
		date    time.Time
	}
	var done []completed
	for rows.Next() {
		var c completed
		if err := rows.Scan(&c.id, &c.donorID, &c.date); err != nil {
			rows.Close()
			return err
		}
		done = append(done, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, c := range done {
		if err := creditDonor(ctx, tx, c.donorID, c.date); err != nil {
			return err
		}
		reason := fmt.Sprintf("request %d fulfilled", requestID)
		if err := insertEvent(ctx, tx, "donation", c.id, string(domain.DonationScheduled), string(domain.DonationCompleted), &reason); err != nil {
			return err
		}
	}
	return nil
}

// creditDonor applies the completed-donation side effects: the last donation
// date only moves forward, the first only backward, and the counter goes up
// exactly once per completed donation.
func creditDonor(ctx context.Context, tx pgx.Tx, donorID int64, date time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE donors
		SET last_donation_date = GREATEST(COALESCE(last_donation_date, $2::date), $2::date),
		    first_donation_date = LEAST(COALESCE(first_donation_date, $2::date), $2::date),
		    total_donations = total_donations + 1,
		    updated_at = now()
		WHERE id = $1`, donorID, date)
	return err
}

func insertEvent(ctx context.Context, tx pgx.Tx, kind string, entityID int64, from, to string, reason *string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transition_events (id, entity_kind, entity_id, from_status, to_status, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), kind, entityID, from, to, reason)
	return err
}

func (db *DB) conflictOrMissing(ctx context.Context, tx pgx.Tx, table, label string, id int64) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s %d", domain.ErrNotFound, label, id)
	}
	return fmt.Errorf("%w: %s %d changed status concurrently", domain.ErrConflict, label, id)
}
