// Package domain holds the shopping session record and its state transitions.
//
// Nothing here locks. A Session is owned by exactly one serialization domain
// and every method assumes the caller holds it.
package domain

import (
	"fmt"
	"time"
)

// Session is one collaborative shopping cart.
type Session struct {
	id          string
	creatorName string
	createdAt   time.Time

	participants []Participant
	items        []Item
	total        Amount
	budget       Amount
	itemSeq      uint64
}

// NewSession returns an empty session with zero budget and zero total.
func NewSession(id string, creatorName string, createdAt time.Time) *Session {
	return &Session{
		id:          id,
		creatorName: creatorName,
		createdAt:   createdAt.UTC(),
	}
}

// ID returns the normalized session id.
func (s *Session) ID() string { return s.id }

// CreatorName returns the display name of the first participant.
func (s *Session) CreatorName() string { return s.creatorName }

// CreatedAt returns the creation time in UTC.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Total returns the incrementally maintained total.
func (s *Session) Total() Amount { return s.total }

// Budget returns the budget; zero means unset.
func (s *Session) Budget() Amount { return s.budget }

// ParticipantCount returns the number of attached participants.
func (s *Session) ParticipantCount() int { return len(s.participants) }

// Participant returns the participant for connectionID.
func (s *Session) Participant(connectionID string) (Participant, bool) {
	if i := s.participantIndex(connectionID); i >= 0 {
		return s.participants[i], true
	}
	return Participant{}, false
}

// AddParticipant appends p in join order. A connection that is already a
// participant keeps its position and only its display name is refreshed;
// added is false in that case.
func (s *Session) AddParticipant(p Participant) (added bool) {
	if i := s.participantIndex(p.ConnectionID); i >= 0 {
		s.participants[i].DisplayName = p.DisplayName
		return false
	}
	s.participants = append(s.participants, p)
	return true
}

// RemoveParticipant detaches connectionID and returns the removed record.
func (s *Session) RemoveParticipant(connectionID string) (Participant, bool) {
	i := s.participantIndex(connectionID)
	if i < 0 {
		return Participant{}, false
	}
	removed := s.participants[i]
	s.participants = append(s.participants[:i], s.participants[i+1:]...)
	return removed, true
}

// AddItem validates fields, assigns a fresh id and appends the item.
func (s *Session) AddItem(fields ItemFields, addedBy string, now time.Time) (Item, error) {
	fields, err := NormalizeItemFields(fields)
	if err != nil {
		return Item{}, err
	}
	s.itemSeq++
	item := Item{
		ID:       fmt.Sprintf("%d-%d", now.UnixMilli(), s.itemSeq),
		Name:     fields.Name,
		Price:    *fields.Price,
		Quantity: fields.Quantity,
		Barcode:  fields.Barcode,
		AddedBy:  addedBy,
	}
	s.items = append(s.items, item)
	s.total = s.total.Add(item.Contribution())
	return item, nil
}

// UpdateItem merges patch into the item with itemID. found is false when the
// item does not exist, in which case nothing changes. The returned patch is
// the normalized one that was applied.
func (s *Session) UpdateItem(itemID string, patch ItemPatch) (updated Item, applied ItemPatch, found bool, err error) {
	patch, err = NormalizeItemPatch(patch)
	if err != nil {
		return Item{}, ItemPatch{}, false, err
	}
	i := s.itemIndex(itemID)
	if i < 0 {
		return Item{}, ItemPatch{}, false, nil
	}
	before := s.items[i]
	after := patch.Apply(before)
	s.items[i] = after
	s.total = s.total.Sub(before.Contribution()).Add(after.Contribution())
	return after, patch, true, nil
}

// RemoveItem deletes the item with itemID and subtracts its contribution.
func (s *Session) RemoveItem(itemID string) (Item, bool) {
	i := s.itemIndex(itemID)
	if i < 0 {
		return Item{}, false
	}
	removed := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.total = s.total.Sub(removed.Contribution())
	return removed, true
}

// SetBudget stores amount, treating negative values as zero.
func (s *Session) SetBudget(amount Amount) Amount {
	s.budget = ClampBudget(amount)
	return s.budget
}

// RecomputeTotal sums every item's contribution from scratch.
func (s *Session) RecomputeTotal() Amount {
	total := Zero
	for _, item := range s.items {
		total = total.Add(item.Contribution())
	}
	return total
}

// Reconciliation describes a total that had to be corrected.
type Reconciliation struct {
	Incremental Amount
	Recomputed  Amount
}

// Reconcile compares the incremental total against a full recomputation and
// snaps to the recomputed value (never below zero) when they differ.
func (s *Session) Reconcile() (Reconciliation, bool) {
	recomputed := s.RecomputeTotal()
	if recomputed.IsNegative() {
		recomputed = Zero
	}
	if s.total.Equal(recomputed) {
		return Reconciliation{}, false
	}
	drift := Reconciliation{Incremental: s.total, Recomputed: recomputed}
	s.total = recomputed
	return drift, true
}

// Items returns a copy of the items in add order.
func (s *Session) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Participants returns a copy of the participants in join order.
func (s *Session) Participants() []Participant {
	out := make([]Participant, len(s.participants))
	copy(out, s.participants)
	return out
}

// Snapshot copies the full session state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:           s.id,
		Participants: s.Participants(),
		Items:        s.Items(),
		TotalAmount:  s.total,
		Budget:       s.budget,
		CreatorName:  s.creatorName,
		CreatedAt:    s.createdAt,
	}
}

// Summary returns the directory row for the session.
func (s *Session) Summary() Summary {
	return Summary{
		ID:               s.id,
		ParticipantCount: len(s.participants),
		ItemCount:        len(s.items),
		Budget:           s.budget,
		TotalAmount:      s.total,
		CreatorName:      s.creatorName,
		CreatedAt:        s.createdAt,
	}
}

func (s *Session) participantIndex(connectionID string) int {
	for i, p := range s.participants {
		if p.ConnectionID == connectionID {
			return i
		}
	}
	return -1
}

func (s *Session) itemIndex(itemID string) int {
	for i, item := range s.items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}
