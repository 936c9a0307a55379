package snapshot

// Baseline is the table last loaded and treated as persisted truth.
// It belongs to whoever presents the table; it is created on first load,
// replaced on refresh and discarded when that session ends.
//
// Table may be nil when only the fingerprint was kept, for example in a
// browser session cookie.
type Baseline struct {
	Table       *Table `json:"table"`
	Fingerprint string `json:"fingerprint"`
}

// NewBaseline captures t together with its fingerprint.
func NewBaseline(t *Table) *Baseline {
	return &Baseline{Table: t, Fingerprint: Fingerprint(t)}
}

// BaselineOf rebuilds a baseline from a stored fingerprint.
func BaselineOf(fingerprint string) *Baseline {
	if fingerprint == "" {
		return nil
	}
	return &Baseline{Fingerprint: fingerprint}
}

// HasUnsavedChanges reports whether current differs in content from the
// baseline. Without a baseline nothing has been loaded yet, so any row counts
// as unsaved.
func (b *Baseline) HasUnsavedChanges(current *Table) bool {
	if b == nil {
		return current.RowCount() > 0
	}
	return Fingerprint(current) != b.Fingerprint
}
