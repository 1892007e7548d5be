package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrStale is returned when a versioned update lost the race.
	ErrStale = errors.New("record modified concurrently")
)

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
