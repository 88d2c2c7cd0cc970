package manifest

import "time"

// Plan is the set of master list writes produced by one upload.
type Plan struct {
	Inserts      []MasterEntry
	Updates      []EntryUpdate
	ItemsAdded   int
	ItemsUpdated int
	// Skipped counts rows dropped for having an empty identifier.
	Skipped int
}

// Reconcile decides which rows create new master entries and which update
// existing ones. existing is keyed by normalized identifier. When a batch
// repeats an identifier the last row wins, at the position of its first
// occurrence. Date-typed tracked columns are compared after
// NormalizeDateForComparison, unlike a raw HasValueChanged on the cells.
func Reconcile(shape Shape, existing map[string]MasterEntry, rows []Row, uploadID string, now time.Time) Plan {
	order, latest, skipped := dedupeRows(shape, rows)

	plan := Plan{Skipped: skipped}
	for _, id := range order {
		incoming := latest[id]
		current, ok := existing[id]
		if !ok {
			first := uploadID
			last := uploadID
			plan.Inserts = append(plan.Inserts, MasterEntry{
				Kind:                shape.Kind,
				Identifier:          id,
				Fields:              incoming,
				FirstSeenUploadID:   &first,
				LastUpdatedUploadID: &last,
				CreatedAt:           now,
				UpdatedAt:           now,
			})
			continue
		}

		reasons := changedTrackedColumns(shape, current.Fields, incoming)
		if len(reasons) == 0 {
			continue
		}
		plan.Updates = append(plan.Updates, EntryUpdate{
			Identifier: id,
			Fields:     incoming,
			UploadID:   uploadID,
			Reasons:    reasons,
			UpdatedAt:  now,
		})
	}

	plan.ItemsAdded = len(plan.Inserts)
	plan.ItemsUpdated = len(plan.Updates)
	return plan
}

// dedupeRows normalizes identifiers and keeps the last row per identifier.
// The returned rows carry the normalized identifier in their identifier column.
func dedupeRows(shape Shape, rows []Row) ([]string, map[string]Row, int) {
	order := make([]string, 0, len(rows))
	latest := make(map[string]Row, len(rows))
	skipped := 0

	for _, row := range rows {
		id := shape.Identifier(row)
		if id == "" {
			skipped++
			continue
		}
		if _, seen := latest[id]; !seen {
			order = append(order, id)
		}
		latest[id] = shape.Normalized(row)
	}
	return order, latest, skipped
}

func changedTrackedColumns(shape Shape, stored, incoming Row) []string {
	var reasons []string
	for _, column := range shape.TrackedColumns {
		old := stored[column]
		next := incoming[column]
		if shape.IsDate(column) {
			old = NormalizeDateForComparison(old)
			next = NormalizeDateForComparison(next)
		}
		if HasValueChanged(old, next) {
			reasons = append(reasons, column)
		}
	}
	return reasons
}
