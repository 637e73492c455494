package sqlite

import (
	"database/sql"
	"errors"

	"github.com/roni12291832/nexus-car/internal/storage"
)

var ErrNotFound = storage.ErrNotFound

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
