package manifest

// IdentifierDiff holds identifiers that appeared or disappeared between two
// consecutive uploads.
type IdentifierDiff struct {
	New     IDSet
	Removed IDSet
}

// PreviousUpload returns the latest upload strictly earlier than the one
// identified by currentID. Input order does not matter. Uploads sharing the
// current upload date are not considered earlier.
func PreviousUpload(uploads []Upload, currentID string) (Upload, bool) {
	var current Upload
	found := false
	for _, u := range uploads {
		if u.ID == currentID {
			current = u
			found = true
			break
		}
	}
	if !found {
		return Upload{}, false
	}

	var best Upload
	hasBest := false
	for _, u := range uploads {
		if u.ID == currentID || !u.UploadDate.Before(current.UploadDate) {
			continue
		}
		if !hasBest || u.UploadDate.After(best.UploadDate) {
			best = u
			hasBest = true
		}
	}
	return best, hasBest
}

// Identifiers collects the non-empty normalized identifiers of rows.
func (s Shape) Identifiers(rows []Row) IDSet {
	ids := NewIDSet()
	for _, row := range rows {
		if id := s.Identifier(row); id != "" {
			ids.Add(id)
		}
	}
	return ids
}

// DiffIdentifiers compares two batches. A nil previous batch means every
// current identifier is new.
func DiffIdentifiers(shape Shape, current, previous []Row) IdentifierDiff {
	currentIDs := shape.Identifiers(current)
	previousIDs := shape.Identifiers(previous)
	return IdentifierDiff{
		New:     currentIDs.Difference(previousIDs),
		Removed: previousIDs.Difference(currentIDs),
	}
}

// SelectRowsByIdentifier keeps the rows whose identifier is in ids, in order.
func SelectRowsByIdentifier(shape Shape, rows []Row, ids IDSet) []Row {
	out := make([]Row, 0, ids.Len())
	for _, row := range rows {
		if ids.Contains(shape.Identifier(row)) {
			out = append(out, row)
		}
	}
	return out
}

// NewlyReleased returns identifiers that carry a release date in current but
// were absent from previous or had no release date there. For repeated
// identifiers the last row of each batch decides.
func NewlyReleased(shape Shape, current, previous []Row) IDSet {
	previousRelease := releasesByIdentifier(shape, previous)
	out := NewIDSet()
	for id, release := range releasesByIdentifier(shape, current) {
		if release == "" {
			continue
		}
		if prior, ok := previousRelease[id]; !ok || prior == "" {
			out.Add(id)
		}
	}
	return out
}

func releasesByIdentifier(shape Shape, rows []Row) map[string]string {
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		id := shape.Identifier(row)
		if id == "" {
			continue
		}
		out[id] = shape.Release(row)
	}
	return out
}
