package postgres

import (
	"context"
	"fmt"

	"bloodlink/internal/domain"
	"bloodlink/internal/ports"
)

// PatternRepository. Each query builds every entity's set in a single pass so
// the similarity scorer can intersect them in memory.

func (db *DB) HospitalRequestPatterns(ctx context.Context, months, minRequests int) ([]ports.EntityPattern, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT h.id, h.name, h.city, h.region,
		       array_agg(DISTINCT r.blood_type), COUNT(r.id)
		FROM hospitals h
		JOIN blood_requests r ON r.hospital_id = h.id
		WHERE r.request_date > now() - make_interval(months => $1)
		GROUP BY h.id, h.name, h.city, h.region
		HAVING COUNT(r.id) >= $2
		ORDER BY h.id`, months, minRequests)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []ports.EntityPattern
	for rows.Next() {
		var p ports.EntityPattern
		var types []string
		if err := rows.Scan(&p.EntityID, &p.Name, &p.City, &p.Region, &types, &p.ActivityCount); err != nil {
			return nil, err
		}
		if p.BloodTypes, err = parseBloodTypes(types); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func (db *DB) StaffRequestPatterns(ctx context.Context, months, minBloodTypes int) ([]ports.EntityPattern, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT s.id, u.first_name || ' ' || u.last_name, h.city, h.region,
		       array_agg(DISTINCT r.blood_type), COUNT(r.id)
		FROM hospital_staff s
		JOIN users u ON u.id = s.user_id
		JOIN hospitals h ON h.id = s.hospital_id
		JOIN blood_requests r ON r.staff_id = s.id
		WHERE r.request_date > now() - make_interval(months => $1)
		GROUP BY s.id, u.first_name, u.last_name, h.city, h.region
		HAVING COUNT(DISTINCT r.blood_type) >= $2
		ORDER BY s.id`, months, minBloodTypes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []ports.EntityPattern
	for rows.Next() {
		var p ports.EntityPattern
		var types []string
		if err := rows.Scan(&p.EntityID, &p.Name, &p.City, &p.Region, &types, &p.ActivityCount); err != nil {
			return nil, err
		}
		if p.BloodTypes, err = parseBloodTypes(types); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// DoctorDonorSets collects, per doctor, the distinct donors whose completed
// donations landed on that doctor's requests.
func (db *DB) DoctorDonorSets(ctx context.Context, hospitalID *int64, minDonors int) ([]ports.DonorSet, error) {
	query := `
		SELECT s.id, u.first_name || ' ' || u.last_name, h.id, h.name,
		       array_agg(DISTINCT d.donor_id)
		FROM hospital_staff s
		JOIN users u ON u.id = s.user_id
		JOIN hospitals h ON h.id = s.hospital_id
		JOIN blood_requests r ON r.staff_id = s.id
		JOIN donations d ON d.blood_request_id = r.id AND d.status = 'completed'
		WHERE s.role = 'doctor'`
	args := []any{minDonors}
	if hospitalID != nil {
		args = append(args, *hospitalID)
		query += fmt.Sprintf(` AND s.hospital_id = $%d`, len(args))
	}
	query += `
		GROUP BY s.id, u.first_name, u.last_name, h.id, h.name
		HAVING COUNT(DISTINCT d.donor_id) >= $1
		ORDER BY s.id`

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []ports.DonorSet
	for rows.Next() {
		var s ports.DonorSet
		if err := rows.Scan(&s.StaffID, &s.StaffName, &s.HospitalID, &s.HospitalName, &s.DonorIDs); err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

// HospitalShortageProfiles derives, per hospital, the blood types whose open
// requests over the window are short by at least the given percentage.
func (db *DB) HospitalShortageProfiles(ctx context.Context, days int, minShortagePercent float64) ([]ports.ShortageProfile, error) {
	rows, err := db.Pool.Query(ctx, `
		WITH type_fulfillment AS (
			SELECT r.hospital_id, r.blood_type,
			       SUM(r.amount_needed_ml) AS needed_ml,
			       COALESCE(SUM(c.collected_ml), 0) AS collected_ml
			FROM blood_requests r
			LEFT JOIN LATERAL (
				SELECT SUM(d.blood_amount_ml) AS collected_ml
				FROM donations d
				WHERE d.blood_request_id = r.id AND d.status = 'completed'
			) c ON true
			WHERE r.status IN ('pending', 'approved')
			  AND r.request_date > now() - make_interval(days => $1)
			GROUP BY r.hospital_id, r.blood_type
		)
		SELECT h.id, h.name, h.city, h.region, array_agg(tf.blood_type)
		FROM type_fulfillment tf
		JOIN hospitals h ON h.id = tf.hospital_id
		WHERE tf.needed_ml > 0
		  AND (1 - LEAST(1, tf.collected_ml::float / tf.needed_ml)) * 100 >= $2
		GROUP BY h.id, h.name, h.city, h.region
		ORDER BY h.id`, days, minShortagePercent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []ports.ShortageProfile
	for rows.Next() {
		var p ports.ShortageProfile
		var types []string
		if err := rows.Scan(&p.HospitalID, &p.Name, &p.City, &p.Region, &types); err != nil {
			return nil, err
		}
		if p.ShortTypes, err = parseBloodTypes(types); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (db *DB) RegionDonationStats(ctx context.Context, q ports.RegionStatsQuery) ([]ports.RegionStats, error) {
	query := `
		WITH hospital_stats AS (
			SELECT h.region, h.name AS hospital_name, h.id AS hospital_id,
			       d.blood_type,
			       COUNT(d.id) AS donation_count,
			       SUM(d.blood_amount_ml) AS collected_ml,
			       COUNT(DISTINCT d.donor_id) AS donor_count,
			       AVG(d.blood_amount_ml) AS avg_ml
			FROM hospitals h
			JOIN donations d ON d.hospital_id = h.id
			WHERE d.status = 'completed'
			  AND d.donation_date > now() - make_interval(months => $1)
			  AND h.region IS NOT NULL`
	args := []any{q.Months, q.MinDonations, q.MinTotalML, q.Limit}
	if q.BloodType != nil {
		args = append(args, string(*q.BloodType))
		query += fmt.Sprintf(` AND d.blood_type = $%d`, len(args))
	}
	query += `
			GROUP BY h.region, h.name, h.id, d.blood_type
			HAVING COUNT(d.id) >= $2 AND SUM(d.blood_amount_ml) >= $3
		)
		SELECT region, blood_type,
		       SUM(donation_count), SUM(collected_ml),
		       COUNT(DISTINCT hospital_id), SUM(donor_count),
		       ROUND(AVG(avg_ml)::numeric, 2),
		       array_agg(hospital_name ORDER BY hospital_name)
		FROM hospital_stats
		GROUP BY region, blood_type
		ORDER BY SUM(collected_ml) DESC, region
		LIMIT $4`

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ports.RegionStats
	for rows.Next() {
		var s ports.RegionStats
		if err := rows.Scan(&s.Region, &s.BloodType, &s.DonationCount, &s.CollectedML,
			&s.HospitalCount, &s.DonorCount, &s.AvgDonationML, &s.Hospitals); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// StaffPerformance ranks staff by the share of their requests that reached
// fulfilled within the window.
func (db *DB) StaffPerformance(ctx context.Context, q ports.StaffPerformanceQuery) ([]ports.StaffPerformanceRow, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT s.id, u.first_name || ' ' || u.last_name, h.name, s.role,
		       COUNT(r.id),
		       COUNT(r.id) FILTER (WHERE r.status = 'fulfilled'),
		       ROUND((COUNT(r.id) FILTER (WHERE r.status = 'fulfilled'))::numeric * 100 / COUNT(r.id), 2)
		FROM hospital_staff s
		JOIN users u ON u.id = s.user_id
		JOIN hospitals h ON h.id = s.hospital_id
		JOIN blood_requests r ON r.staff_id = s.id
		WHERE r.request_date > now() - make_interval(months => $1)
		GROUP BY s.id, u.first_name, u.last_name, h.name, s.role
		HAVING COUNT(r.id) >= $2
		   AND (COUNT(r.id) FILTER (WHERE r.status = 'fulfilled'))::float * 100 / COUNT(r.id) >= $3
		ORDER BY 7 DESC, 5 DESC
		LIMIT $4`, q.Months, q.MinRequests, q.MinFulfillmentRate, q.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.StaffPerformanceRow
	for rows.Next() {
		var r ports.StaffPerformanceRow
		if err := rows.Scan(&r.StaffID, &r.StaffName, &r.HospitalName, &r.Role,
			&r.RequestCount, &r.FulfilledCount, &r.FulfillmentRate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SeasonalDemand buckets requests by meteorological season and blood type.
// The per-season percentage is computed over the buckets that survive the
// minimum-count filter.
func (db *DB) SeasonalDemand(ctx context.Context, q ports.SeasonalQuery) ([]ports.SeasonalPatternRow, error) {
	query := `
		WITH seasonal AS (
			SELECT CASE
			         WHEN EXTRACT(MONTH FROM r.request_date) IN (12, 1, 2) THEN 'winter'
			         WHEN EXTRACT(MONTH FROM r.request_date) IN (3, 4, 5) THEN 'spring'
			         WHEN EXTRACT(MONTH FROM r.request_date) IN (6, 7, 8) THEN 'summer'
			         ELSE 'autumn'
			       END AS season,
			       r.blood_type, r.amount_needed_ml, r.urgency_level, r.hospital_id
			FROM blood_requests r
			JOIN hospitals h ON h.id = r.hospital_id
			WHERE r.request_date > now() - make_interval(years => $1)`
	args := []any{q.Years, q.MinRequestCount, q.Limit}
	if q.Region != nil {
		args = append(args, *q.Region)
		query += fmt.Sprintf(` AND h.region = $%d`, len(args))
	}
	query += `
		)
		SELECT season, blood_type,
		       COUNT(*), SUM(amount_needed_ml), COUNT(DISTINCT hospital_id),
		       ROUND(AVG(urgency_level)::numeric, 2),
		       ROUND(COUNT(*)::numeric * 100 / SUM(COUNT(*)) OVER (PARTITION BY season), 2)
		FROM seasonal
		GROUP BY season, blood_type
		HAVING COUNT(*) >= $2
		ORDER BY season, 3 DESC
		LIMIT $3`

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.SeasonalPatternRow
	for rows.Next() {
		var r ports.SeasonalPatternRow
		if err := rows.Scan(&r.Season, &r.BloodType, &r.RequestCount, &r.TotalNeededML,
			&r.HospitalCount, &r.AvgUrgency, &r.PercentOfSeason); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func parseBloodTypes(raw []string) ([]domain.BloodType, error) {
	types := make([]domain.BloodType, len(raw))
	for i, s := range raw {
		bt, err := domain.ParseBloodType(s)
		if err != nil {
			return nil, err
		}
		types[i] = bt
	}
	return types, nil
}
