package models

import "time"

type IncidentStatus string

const (
	IncidentPending           IncidentStatus = "pending"
	IncidentAmbulanceAssigned IncidentStatus = "ambulance_assigned"
	IncidentHospitalAssigned  IncidentStatus = "hospital_assigned"
	IncidentCompleted         IncidentStatus = "completed"
	IncidentUnroutable        IncidentStatus = "unroutable"
)

type CandidateStatus string

const (
	CandidateAvailable CandidateStatus = "available"
	CandidateBusy      CandidateStatus = "busy"
)

type BroadcastStatus string

const (
	BroadcastPending   BroadcastStatus = "pending"
	BroadcastAccepted  BroadcastStatus = "accepted"
	BroadcastRejected  BroadcastStatus = "rejected"
	BroadcastCancelled BroadcastStatus = "cancelled"
	BroadcastExpired   BroadcastStatus = "expired"
)

// Terminal reports whether a broadcast status can no longer change.
func (s BroadcastStatus) Terminal() bool {
	return s != BroadcastPending
}

type Role string

const (
	RoleAmbulance Role = "ambulance"
	RoleHospital  Role = "hospital"
)

func (r Role) Valid() bool {
	return r == RoleAmbulance || r == RoleHospital
}

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (l Location) InRange() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}

type Incident struct {
	ID                  string         `json:"id"`
	RequesterID         string         `json:"requester_id,omitempty"`
	Location            Location       `json:"location"`
	Status              IncidentStatus `json:"status"`
	AssignedAmbulanceID *string        `json:"assigned_ambulance_id"`
	AssignedHospitalID  *string        `json:"assigned_hospital_id"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Assigned returns the assignment field for the given role.
func (i Incident) Assigned(role Role) *string {
	if role == RoleAmbulance {
		return i.AssignedAmbulanceID
	}
	return i.AssignedHospitalID
}

// Candidate is an ambulance or a hospital, tagged by Role. Status and
// CurrentIncidentID are mutated only by the dispatch coordinator.
type Candidate struct {
	ID                string          `json:"id"`
	Role              Role            `json:"role"`
	Name              string          `json:"name"`
	Phone             string          `json:"phone,omitempty"`
	Location          Location        `json:"location"`
	Status            CandidateStatus `json:"status"`
	CurrentIncidentID *string         `json:"current_incident_id"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Broadcast is a pending offer of one incident to one candidate. Status
// transitions are one-way; terminal records are kept for audit.
type Broadcast struct {
	ID         string          `json:"id"`
	IncidentID string          `json:"incident_id"`
	TargetType Role            `json:"target_type"`
	TargetID   string          `json:"target_id"`
	DistanceKm float64         `json:"distance_km"`
	Status     BroadcastStatus `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

type RankedCandidate struct {
	Candidate  Candidate `json:"candidate"`
	DistanceKm float64   `json:"distance_km"`
}
