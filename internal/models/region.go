package models

import (
	"time"

	"github.com/google/uuid"
)

// Region groups countries for rule scoping. The engine only reads regions.
type Region struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Country maps an ISO 3166-1 alpha-2 code to its owning region.
type Country struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	RegionID  uuid.UUID `json:"region_id"`
	CreatedAt time.Time `json:"created_at"`
}
