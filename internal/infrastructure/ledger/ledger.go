package ledger

import (
	"sort"
	"strconv"

	domain "course-enrollment/internal/domain/enrollment"
)

// sortEntries orders entries by numeric class group id.
func sortEntries(entries []*domain.StatusLedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, errA := strconv.ParseInt(entries[i].ClassGroupID, 10, 64)
		b, errB := strconv.ParseInt(entries[j].ClassGroupID, 10, 64)
		if errA != nil || errB != nil {
			return entries[i].ClassGroupID < entries[j].ClassGroupID
		}
		return a < b
	})
}
