package domain

import "fmt"

// RequestStatus is the blood request lifecycle state.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestCanceled  RequestStatus = "canceled"
)

// DonationStatus is the donation lifecycle state.
type DonationStatus string

const (
	DonationScheduled DonationStatus = "scheduled"
	DonationCompleted DonationStatus = "completed"
	DonationCanceled  DonationStatus = "canceled"
	DonationRejected  DonationStatus = "rejected"
)

func ParseRequestStatus(s string) (RequestStatus, error) {
	st := RequestStatus(s)
	switch st {
	case RequestPending, RequestApproved, RequestFulfilled, RequestCanceled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown request status %q", ErrValidation, s)
}

func ParseDonationStatus(s string) (DonationStatus, error) {
	st := DonationStatus(s)
	switch st {
	case DonationScheduled, DonationCompleted, DonationCanceled, DonationRejected:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown donation status %q", ErrValidation, s)
}

// Transition tables. Anything absent here is rejected; fulfilled/canceled and
// completed/canceled/rejected are terminal.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:  {RequestApproved, RequestCanceled},
	RequestApproved: {RequestFulfilled, RequestCanceled},
}

var donationTransitions = map[DonationStatus][]DonationStatus{
	DonationScheduled: {DonationCompleted, DonationCanceled},
}

// CanTransitionRequest reports whether from -> to is a legal request move.
func CanTransitionRequest(from, to RequestStatus) bool {
	for _, next := range requestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionDonation reports whether from -> to is a legal donation move.
// Only scheduled donations move at all.
func CanTransitionDonation(from, to DonationStatus) bool {
	for _, next := range donationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateRequestTransition returns ErrInvalidTransition for illegal moves.
func ValidateRequestTransition(from, to RequestStatus) error {
	if !CanTransitionRequest(from, to) {
		return fmt.Errorf("%w: request %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ValidateDonationTransition returns ErrInvalidTransition for illegal moves.
func ValidateDonationTransition(from, to DonationStatus) error {
	if !CanTransitionDonation(from, to) {
		return fmt.Errorf("%w: donation %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
