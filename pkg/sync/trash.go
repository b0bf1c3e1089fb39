package sync

import (
	"github.com/ldmsys/ldm/pkg/repository"
)

// EmptyTrashResult reports which store(s) emptying the recycle bin
// succeeded or failed on.
type EmptyTrashResult struct {
	CentralPurged int
	LocalPurged   int
	CentralError  error
	LocalError    error
}

// Failed reports whether either store's empty failed.
func (r *EmptyTrashResult) Failed() bool {
	return r.CentralError != nil || r.LocalError != nil
}

// EmptyRecycleBin empties both the authoritative and local trash in one
// user-facing action. Each store is purged independently — a failure on
// one does not stop the other, and the result identifies which store (if
// any) failed, per the "empty recycle bin empties both" contract.
func EmptyRecycleBin(central, local *repository.Repository) *EmptyTrashResult {
	result := &EmptyTrashResult{}

	if central != nil {
		n, err := purgeAllTrash(central)
		result.CentralPurged = n
		result.CentralError = err
	}

	if local != nil {
		n, err := purgeAllTrash(local)
		result.LocalPurged = n
		result.LocalError = err
	}

	return result
}

// purgeAllTrash discards every trash item regardless of expiry, since
// "empty recycle bin" is a user-initiated action, not the retention
// sweeper — everything currently in trash goes, expired or not.
func purgeAllTrash(repo *repository.Repository) (int, error) {
	items, err := repo.ListTrash()
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, item := range items {
		if err := repo.Purge(item.TrashID, "system"); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}
