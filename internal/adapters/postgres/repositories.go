package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"bloodlink/internal/domain"
	"bloodlink/internal/ports"
)

const donorColumns = `
	id, user_id, gender, blood_type, date_of_birth, weight_kg, height_cm,
	last_donation_date, first_donation_date, total_donations,
	is_eligible, ineligible_until, health_notes`

func scanDonor(row pgx.Row) (domain.Donor, error) {
	var d domain.Donor
	err := row.Scan(&d.ID, &d.UserRef, &d.Gender, &d.BloodType, &d.DateOfBirth,
		&d.WeightKG, &d.HeightCM, &d.LastDonationDate, &d.FirstDonationDate,
		&d.TotalDonations, &d.IsEligible, &d.IneligibleUntil, &d.HealthNotes)
	return d, err
}

// DonorRepository

func (db *DB) GetDonor(ctx context.Context, id int64) (domain.Donor, error) {
	row := db.Pool.QueryRow(ctx, `SELECT`+donorColumns+` FROM donors WHERE id = $1`, id)
	d, err := scanDonor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Donor{}, fmt.Errorf("%w: donor %d", domain.ErrNotFound, id)
	}
	return d, err
}

func (db *DB) ListFlaggedEligible(ctx context.Context, bloodType *domain.BloodType) ([]domain.Donor, error) {
	query := `SELECT` + donorColumns + ` FROM donors WHERE is_eligible`
	args := []any{}
	if bloodType != nil {
		query += ` AND blood_type = $1`
		args = append(args, string(*bloodType))
	}
	rows, err := db.Pool.Query(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donors []domain.Donor
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, err
		}
		donors = append(donors, d)
	}
	return donors, rows.Err()
}

func (db *DB) SetEligibility(ctx context.Context, id int64, eligible bool, until *time.Time, notes *string) (domain.Donor, error) {
	row := db.Pool.QueryRow(ctx, `
		UPDATE donors
		SET is_eligible = $2, ineligible_until = $3, health_notes = $4, updated_at = now()
		WHERE id = $1
		RETURNING`+donorColumns, id, eligible, until, notes)
	d, err := scanDonor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Donor{}, fmt.Errorf("%w: donor %d", domain.ErrNotFound, id)
	}
	return d, err
}

const requestColumns = `
	id, hospital_id, staff_id, blood_type, amount_needed_ml, urgency_level,
	status, request_date, needed_by_date, patient_info, notes`

func scanRequest(row pgx.Row) (domain.BloodRequest, error) {
	var r domain.BloodRequest
	err := row.Scan(&r.ID, &r.HospitalRef, &r.StaffRef, &r.BloodType,
		&r.AmountNeededML, &r.UrgencyLevel, &r.Status, &r.RequestDate,
		&r.NeededByDate, &r.PatientInfo, &r.Notes)
	return r, err
}

// RequestRepository

func (db *DB) GetRequest(ctx context.Context, id int64) (domain.BloodRequest, error) {
	row := db.Pool.QueryRow(ctx, `SELECT`+requestColumns+` FROM blood_requests WHERE id = $1`, id)
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BloodRequest{}, fmt.Errorf("%w: blood request %d", domain.ErrNotFound, id)
	}
	return r, err
}

func (db *DB) ListOpenRequests(ctx context.Context, f ports.OpenRequestFilter) ([]domain.BloodRequest, error) {
	query := `
		SELECT` + requestColumns + `
		FROM blood_requests r
		WHERE r.status IN ('pending', 'approved')`
	args := []any{}
	if f.BloodType != nil {
		args = append(args, string(*f.BloodType))
		query += fmt.Sprintf(` AND r.blood_type = $%d`, len(args))
	}
	if f.Region != nil {
		args = append(args, *f.Region)
		query += fmt.Sprintf(` AND r.hospital_id IN (SELECT id FROM hospitals WHERE region = $%d)`, len(args))
	}
	query += ` ORDER BY r.urgency_level DESC, r.request_date`

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.BloodRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func (db *DB) RequestSummary(ctx context.Context, hospitalID *int64) (ports.RequestSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'fulfilled'),
			COUNT(*) FILTER (WHERE urgency_level >= 4)
		FROM blood_requests`
	args := []any{}
	if hospitalID != nil {
		query += ` WHERE hospital_id = $1`
		args = append(args, *hospitalID)
	}

	var s ports.RequestSummary
	err := db.Pool.QueryRow(ctx, query, args...).
		Scan(&s.TotalRequests, &s.PendingRequests, &s.FulfilledRequests, &s.UrgentRequests)
	if err != nil {
		return ports.RequestSummary{}, err
	}

	byType := `SELECT blood_type, COUNT(*) FROM blood_requests`
	if hospitalID != nil {
		byType += ` WHERE hospital_id = $1`
	}
	byType += ` GROUP BY blood_type`
	rows, err := db.Pool.Query(ctx, byType, args...)
	if err != nil {
		return ports.RequestSummary{}, err
	}
	defer rows.Close()

	s.ByBloodType = map[domain.BloodType]int{}
	for rows.Next() {
		var bt domain.BloodType
		var n int
		if err := rows.Scan(&bt, &n); err != nil {
			return ports.RequestSummary{}, err
		}
		s.ByBloodType[bt] = n
	}
	return s, rows.Err()
}

const donationColumns = `
	id, donor_id, hospital_id, blood_request_id, blood_amount_ml, blood_type,
	status, donation_date, notes`

func scanDonation(row pgx.Row) (domain.Donation, error) {
	var d domain.Donation
	err := row.Scan(&d.ID, &d.DonorRef, &d.HospitalRef, &d.RequestRef,
		&d.BloodAmountML, &d.BloodType, &d.Status, &d.DonationDate, &d.Notes)
	return d, err
}

// DonationRepository

func (db *DB) GetDonation(ctx context.Context, id int64) (domain.Donation, error) {
	row := db.Pool.QueryRow(ctx, `SELECT`+donationColumns+` FROM donations WHERE id = $1`, id)
	d, err := scanDonation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Donation{}, fmt.Errorf("%w: donation %d", domain.ErrNotFound, id)
	}
	return d, err
}

func (db *DB) ListByRequest(ctx context.Context, requestID int64) ([]domain.Donation, error) {
	return db.listDonations(ctx, `blood_request_id = $1`, requestID)
}

func (db *DB) ListByDonor(ctx context.Context, donorID int64) ([]domain.Donation, error) {
	return db.listDonations(ctx, `donor_id = $1`, donorID)
}

func (db *DB) listDonations(ctx context.Context, where string, arg any) ([]domain.Donation, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT`+donationColumns+` FROM donations WHERE `+where+` ORDER BY donation_date DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donations []domain.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}

func (db *DB) CollectedByRequests(ctx context.Context, requestIDs []int64) (map[int64]int, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT blood_request_id, COALESCE(SUM(blood_amount_ml), 0)
		FROM donations
		WHERE status = 'completed' AND blood_request_id = ANY($1)
		GROUP BY blood_request_id`, requestIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collected := map[int64]int{}
	for rows.Next() {
		var id int64
		var ml int
		if err := rows.Scan(&id, &ml); err != nil {
			return nil, err
		}
		collected[id] = ml
	}
	return collected, rows.Err()
}

// HospitalRepository

const hospitalColumns = `id, name, hospital_type, address, city, region, country`

func scanHospital(row pgx.Row) (domain.Hospital, error) {
	var h domain.Hospital
	err := row.Scan(&h.ID, &h.Name, &h.Type, &h.Address, &h.City, &h.Region, &h.Country)
	return h, err
}

func (db *DB) GetHospital(ctx context.Context, id int64) (domain.Hospital, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+hospitalColumns+` FROM hospitals WHERE id = $1`, id)
	h, err := scanHospital(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Hospital{}, fmt.Errorf("%w: hospital %d", domain.ErrNotFound, id)
	}
	return h, err
}

func (db *DB) ListHospitals(ctx context.Context, ids []int64) (map[int64]domain.Hospital, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+hospitalColumns+` FROM hospitals WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hospitals := map[int64]domain.Hospital{}
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, err
		}
		hospitals[h.ID] = h
	}
	return hospitals, rows.Err()
}

func (db *DB) HospitalStats(ctx context.Context, id int64) (ports.HospitalStats, error) {
	h, err := db.GetHospital(ctx, id)
	if err != nil {
		return ports.HospitalStats{}, err
	}
	stats := ports.HospitalStats{HospitalID: h.ID, Name: h.Name}
	err = db.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM hospital_staff WHERE hospital_id = $1),
			(SELECT COUNT(*) FROM blood_requests WHERE hospital_id = $1),
			(SELECT COUNT(*) FROM blood_requests WHERE hospital_id = $1 AND status = 'pending'),
			(SELECT COUNT(*) FROM donations WHERE hospital_id = $1 AND status = 'scheduled'),
			(SELECT COUNT(*) FROM donations WHERE hospital_id = $1 AND status = 'completed')`,
		id).Scan(&stats.StaffCount, &stats.BloodRequestCount, &stats.ActiveRequests,
		&stats.ScheduledDonations, &stats.CompletedDonations)
	return stats, err
}
