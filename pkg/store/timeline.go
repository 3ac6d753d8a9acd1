package store

import "sort"

// Chronological sorts observations by created_at, then insertion order.
func Chronological(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].CreatedAt != obs[j].CreatedAt {
			return obs[i].CreatedAt < obs[j].CreatedAt
		}
		return obs[i].Seq < obs[j].Seq
	})
}

// Around returns the window of chronologically sorted session observations
// centred on id: up to before earlier entries, id itself, and up to after
// later entries.
func Around(session []Observation, id string, before, after int) ([]Observation, error) {
	Chronological(session)

	idx := -1
	for i := range session {
		if session[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, NotFoundError{ID: id}
	}

	start := max(idx-max(before, 0), 0)
	end := min(idx+max(after, 0)+1, len(session))
	return session[start:end], nil
}
