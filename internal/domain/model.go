package domain

import (
	"fmt"
	"time"
)

// Core domain models. Records are independent and keyed by id; the repository
// layer joins them explicitly instead of embedding back-references.

type Donor struct {
	ID          int64     `json:"id"`
	UserRef     int64     `json:"user_id"`
	Gender      string    `json:"gender"`
	BloodType   BloodType `json:"blood_type"`
	DateOfBirth time.Time `json:"date_of_birth"`
	WeightKG    float64   `json:"weight_kg"`
	HeightCM    float64   `json:"height_cm"`

	LastDonationDate  *time.Time `json:"last_donation_date,omitempty"`
	FirstDonationDate *time.Time `json:"first_donation_date,omitempty"`
	TotalDonations    int        `json:"total_donations"`

	IsEligible      bool       `json:"is_eligible"`
	IneligibleUntil *time.Time `json:"ineligible_until,omitempty"`
	HealthNotes     *string    `json:"health_notes,omitempty"`
}

// Age in whole years as of the given date.
func (d Donor) Age(asOf time.Time) int {
	years := asOf.Year() - d.DateOfBirth.Year()
	if asOf.Month() < d.DateOfBirth.Month() ||
		(asOf.Month() == d.DateOfBirth.Month() && asOf.Day() < d.DateOfBirth.Day()) {
		years--
	}
	return years
}

func (d Donor) Validate() error {
	if d.WeightKG < 50 {
		return fmt.Errorf("%w: weight %.1fkg below 50kg minimum", ErrValidation, d.WeightKG)
	}
	if d.HeightCM < 120 || d.HeightCM > 220 {
		return fmt.Errorf("%w: height %.1fcm outside 120-220cm", ErrValidation, d.HeightCM)
	}
	_, err := ParseBloodType(string(d.BloodType))
	return err
}

type BloodRequest struct {
	ID             int64         `json:"id"`
	HospitalRef    int64         `json:"hospital_id"`
	StaffRef       int64         `json:"staff_id"`
	BloodType      BloodType     `json:"blood_type"`
	AmountNeededML int           `json:"amount_needed_ml"`
	UrgencyLevel   int           `json:"urgency_level"`
	Status         RequestStatus `json:"status"`
	RequestDate    time.Time     `json:"request_date"`
	NeededByDate   *time.Time    `json:"needed_by_date,omitempty"`
	PatientInfo    *string       `json:"patient_info,omitempty"`
	Notes          *string       `json:"notes,omitempty"`
}

func (r BloodRequest) Validate() error {
	if r.AmountNeededML < 100 || r.AmountNeededML > 10000 {
		return fmt.Errorf("%w: amount needed %dml outside 100-10000ml", ErrValidation, r.AmountNeededML)
	}
	if r.UrgencyLevel < 1 || r.UrgencyLevel > 5 {
		return fmt.Errorf("%w: urgency %d outside 1-5", ErrValidation, r.UrgencyLevel)
	}
	_, err := ParseBloodType(string(r.BloodType))
	return err
}

type Donation struct {
	ID            int64          `json:"id"`
	DonorRef      int64          `json:"donor_id"`
	HospitalRef   int64          `json:"hospital_id"`
	RequestRef    *int64         `json:"blood_request_id,omitempty"` // a donation may exist independent of any request
	BloodAmountML int            `json:"blood_amount_ml"`
	BloodType     BloodType      `json:"blood_type"`
	Status        DonationStatus `json:"status"`
	DonationDate  time.Time      `json:"donation_date"`
	Notes         *string        `json:"notes,omitempty"`
}

func (d Donation) Validate() error {
	if d.BloodAmountML < 100 || d.BloodAmountML > 1000 {
		return fmt.Errorf("%w: blood amount %dml outside 100-1000ml", ErrValidation, d.BloodAmountML)
	}
	_, err := ParseBloodType(string(d.BloodType))
	return err
}

// Hospital and StaffProfile carry only the context the engine groups by.

type Hospital struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Type    string  `json:"hospital_type"`
	Address *string `json:"address,omitempty"`
	City    *string `json:"city,omitempty"`
	Region  *string `json:"region,omitempty"`
	Country string  `json:"country"`
}

type StaffProfile struct {
	ID          int64   `json:"id"`
	UserRef     int64   `json:"user_id"`
	HospitalRef int64   `json:"hospital_id"`
	Role        string  `json:"role"`
	Department  *string `json:"department,omitempty"`
}

// TransitionEvent is the audit record written for every winning status
// transition.
type TransitionEvent struct {
	ID         string // uuid
	EntityKind string // "request" | "donation"
	EntityID   int64
	FromStatus string
	ToStatus   string
	Reason     *string
	OccurredAt time.Time
}
