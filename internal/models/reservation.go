package models

import "time"

// ReservationStatus is the state of a reservation. Only ACTIVE exists today;
// cancelled bookings are deleted.
type ReservationStatus string

const ReservationActive ReservationStatus = "ACTIVE"

// Reservation is an exclusive booking of the shared resource over an
// inclusive range of calendar dates.
type Reservation struct {
	ID        uint              `gorm:"primarykey" json:"id"`
	StartDate Date              `gorm:"not null;index" json:"start_date"`
	EndDate   Date              `gorm:"not null;index" json:"end_date"`
	Notes     string            `gorm:"type:text" json:"notes,omitempty"`
	Status    ReservationStatus `gorm:"type:varchar(16);not null;default:'ACTIVE'" json:"status"`
	UserID    uint              `gorm:"not null;index" json:"user_id"`
	User      User              `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Overlaps reports whether r intersects the closed interval [start, end].
// Touching endpoints count as overlap.
func (r *Reservation) Overlaps(start, end Date) bool {
	return !r.StartDate.After(end) && !r.EndDate.Before(start)
}
