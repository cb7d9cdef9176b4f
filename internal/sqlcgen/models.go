package sqlcgen

import "time"

type MapProperty struct {
	ID                 string
	Title              string
	Price              *float64
	AvailabilityStatus string
	Address            *string
	Latitude           *float64
	Longitude          *float64
	Geohash            *string
	ContentHash        string
	Raw                []byte
	SyncedAt           time.Time
}
