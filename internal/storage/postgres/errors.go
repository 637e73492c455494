package postgres

import "github.com/roni12291832/nexus-car/internal/storage"

// ErrNotFound é o sentinela compartilhado; os handlers comparam contra
// storage.ErrNotFound independente do driver.
var ErrNotFound = storage.ErrNotFound
