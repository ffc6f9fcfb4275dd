package broker

import (
	"github.com/pkganalysis/wheelbarrow/internal/message"
	"github.com/pkganalysis/wheelbarrow/internal/suite"
)

// mergeFileResult routes fr through the Suite Deduper when suiteName is
// set, returning the canonical shared *FileResult for fr's key -- fr
// itself on the first call for that key, the existing shared object (with
// fr's states folded in) on subsequent calls (spec section 4.6).
// Analyzers with no suite get a pass-through: fr is already the
// canonical object.
func mergeFileResult(deduper *suite.Deduper, suiteName string, fr *message.FileResult) *message.FileResult {
	if suiteName == "" || len(fr.States) == 0 {
		return fr
	}

	var key suite.Key
	switch {
	case len(fr.States) == 2:
		pair := message.DiffPair{Before: fr.States[0].Trigger, After: fr.States[1].Trigger}
		key = suite.DiffKey(suiteName, pair, fr.Path)
	default:
		key = suite.TriggerKey(suiteName, fr.States[0].Trigger, fr.Path)
	}

	if existing := deduper.Get(key); existing != nil {
		for _, st := range fr.States {
			mergeFileState(existing, st)
		}
		if existing.FileType == message.Unclassified {
			existing.FileType = fr.FileType
		}
		return existing
	}

	deduper.Put(key, fr)
	return fr
}

// mergeFileState folds st's fields into whichever of existing.States
// carries the same trigger, rather than appending a new state -- a
// descriptive result must keep exactly one state and a diff result
// exactly two, ordered before, after (spec section 3). st's trigger is
// expected to already match one of existing's states (both sides were
// built from the same trigger or diff pair); if none matches, the
// state is dropped rather than growing the slice past its invariant
// length.
func mergeFileState(existing *message.FileResult, st message.FileState) {
	for i := range existing.States {
		if existing.States[i].Trigger != st.Trigger {
			continue
		}
		dst := &existing.States[i]
		if st.Permissions != "" {
			dst.Permissions = st.Permissions
		}
		if st.MD5 != "" {
			dst.MD5 = st.MD5
		}
		if st.SHA1 != "" {
			dst.SHA1 = st.SHA1
		}
		if st.SHA256 != "" {
			dst.SHA256 = st.SHA256
		}
		if st.Contents != nil {
			dst.Contents = st.Contents
		}
		if st.EventCount != 0 {
			dst.EventCount = st.EventCount
		}
		return
	}
}
