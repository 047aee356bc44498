package domain

import (
	"testing"
	"time"

	apperrors "github.com/louisbranch/sharedcart/internal/platform/errors"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func priceOf(s string) *Amount {
	a := MustAmount(s)
	return &a
}

func TestNewSessionStartsEmpty(t *testing.T) {
	s := NewSession("ABC123", "Alice", fixedNow)
	if s.ID() != "ABC123" {
		t.Fatalf("id = %q, want %q", s.ID(), "ABC123")
	}
	if !s.Total().IsZero() || !s.Budget().IsZero() {
		t.Fatalf("total=%s budget=%s, want zero", s.Total(), s.Budget())
	}
	if s.ParticipantCount() != 0 {
		t.Fatalf("participants = %d, want 0", s.ParticipantCount())
	}
	if s.CreatorName() != "Alice" {
		t.Fatalf("creator = %q, want %q", s.CreatorName(), "Alice")
	}
}

func TestAddParticipantKeepsJoinOrderAndRefreshesName(t *testing.T) {
	s := NewSession("ABC123", "Alice", fixedNow)
	if !s.AddParticipant(Participant{ConnectionID: "c1", DisplayName: "Alice"}) {
		t.Fatal("expected first join to add")
	}
	if !s.AddParticipant(Participant{ConnectionID: "c2", DisplayName: "Bob"}) {
		t.Fatal("expected second join to add")
	}
	if s.AddParticipant(Participant{ConnectionID: "c1", DisplayName: "Alicia"}) {
		t.Fatal("expected rejoin to report not added")
	}

	got := s.Participants()
	if len(got) != 2 {
		t.Fatalf("participants = %d, want 2", len(got))
	}
	if got[0].ConnectionID != "c1" || got[0].DisplayName != "Alicia" {
		t.Fatalf("participant[0] = %+v, want c1/Alicia", got[0])
	}
	if got[1].ConnectionID != "c2" {
		t.Fatalf("participant[1] = %+v, want c2", got[1])
	}
}

func TestRemoveParticipant(t *testing.T) {
	s := NewSession("ABC123", "Alice", fixedNow)
	s.AddParticipant(Participant{ConnectionID: "c1", DisplayName: "Alice"})
	s.AddParticipant(Participant{ConnectionID: "c2", DisplayName: "Bob"})

	removed, ok := s.RemoveParticipant("c1")
	if !ok || removed.DisplayName != "Alice" {
		t.Fatalf("remove = %+v, %v", removed, ok)
	}
	if _, ok := s.RemoveParticipant("c1"); ok {
		t.Fatal("expected second remove to miss")
	}
	if _, ok := s.Participant("c2"); !ok {
		t.Fatal("expected c2 to remain")
	}
	if s.ParticipantCount() != 1 {
		t.Fatalf("participants = %d, want 1", s.ParticipantCount())
	}
}

func TestAddItemComputesTotal(t *testing.T) {
	s := NewSession("ABC123", "Alice", fixedNow)
	item, err := s.AddItem(ItemFields{Name: " Milk ", Price: priceOf("6.99"), Quantity: 2}, "Alice", fixedNow)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if item.Name != "Milk" {
		t.Fatalf("name = %q, want %q", item.Name, "Milk")
	}
	if item.AddedBy != "Alice" {
		t.Fatalf("addedBy = %q, want %q", item.AddedBy, "Alice")
	}
	if want := MustAmount("13.98"); !s.Total().Equal(want) {
		t.Fatalf("total = %s, want %s", s.Total(), want)
	}
}

func TestAddItemAssignsDistinctIDs(t *testing.T) {
	s := NewSession("ABC123", "Alice", fixedNow)
	first, err := s.AddItem(ItemFields{Name: "Milk", Price: priceOf("1"), Quantity: 1}, "Alice", fixedNow)
	if err != nil {
		t.Fatalf("add first: %v", err)
	}
	second, err := s.AddItem(ItemFields{Name: "Milk", Price: priceOf("1"), Quantity: 1}, "Alice", fixedNow)
	if err != nil {
		t.Fatalf("add second: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("ids collide: %q", first.ID)
	}
	wantPrefix := "1772366400000-"
	if first.ID[:len(wantPrefix)] != wantPrefix {
		t.Fatalf("id = %q, want prefix %q", first.ID, wantPrefix)
	}
}

func TestAddItemRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		fields ItemFields
		code   apperrors.Code
	}{
		{name: "empty name", fields: ItemFields{Name: "  ", Price: priceOf("1"), Quantity: 1}, code: apperrors.CodeCartEmptyItemName},
		{name: "missing price", fields: ItemFields{Name: "Milk", Quantity: 1}, code: apperrors.CodeCartInvalidPrice},
		{name: "negative price", fields: ItemFields{Name: "Milk", Price: priceOf("-1"), Quantity: 1}, code: apperrors.CodeCartInvalidPrice},
		{name: "zero quantity", fields: ItemFields{Name: "Milk", Price: priceOf("1"), Quantity: 0}, code: apperrors.CodeCartInvalidQuantity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSession("ABC123", "Alice", fixedNow)
			_, err := s.AddItem(tc.fields, "Alice", fixedNow)
			if got := apperrors.CodeOf(err); got != tc.code {
				t.Fatalf("code = %q, want %q", got, tc.code)
			}
			if len(s.Items()) != 0 || !s.Total().IsZero() {
				t.Fatal("expected session to be unchanged")
			}
		})
	}
}

func TestUpdateItemAdjustsTotal(t *testing.T) {
	s := NewSession("ABC123", "Alice", fixedNow)
	item, err := s.AddItem(ItemFields{Name: "Milk", Price: priceOf("6.99"), Quantity: 2}, "Alice", fixedNow)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	qty := 3
	updated, applied, found, err := s.UpdateItem(item.ID, ItemPatch{Quantity: &qty})
	if err != nil || !found {
		t.Fatalf("update = found %v, err %v", found, err)
	}
	if updated.Quantity != 3 || updated.Name != "Milk" {
		t.Fatalf("updated = %+v", updated)
	}
	if applied.Quantity == nil || *applied.Quantity != 3 {
		t.Fatalf("applied patch = %+v", applied)
	}
	if want := MustAmount("20.97"); !s.Total().Equal(want) {
		t.Fatalf("total = %s, want %s", s.Total(), want)
	}
}

func TestUpdateItemMissingIsNoOp(t *testing.T) {
	s := NewSession("ABC123", "Alice", fixedNow)
	name := "Bread"
	_, _, found, err := s.UpdateItem("nope", ItemPatch{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if found {
		t.Fatal("expected missing item")
	}
}

func TestUpdateItemRejectsInvalidPatch(t *testing.T) {
	s := NewSession("ABC123", "Alice", fixedNow)
	item, _ := s.AddItem(ItemFields{Name: "Milk", Price: priceOf("1"), Quantity: 1}, "Alice", fixedNow)
	zero := 0
	_, _, _, err := s.UpdateItem(item.ID, ItemPatch{Quantity: &zero})
	if got := apperrors.CodeOf(err); got != apperrors.CodeCartInvalidQuantity {
		t.Fatalf("code = %q, want %q", got, apperrors.CodeCartInvalidQuantity)
	}
	if got := s.Items()[0].Quantity; got != 1 {
		t.Fatalf("quantity = %d, want 1", got)
	}
}

func TestRemoveItemSubtractsContribution(t *testing.T) {
	s := NewSession("ABC123", "Alice", fixedNow)
	milk, _ := s.AddItem(ItemFields{Name: "Milk", Price: priceOf("6.99"), Quantity: 2}, "Alice", fixedNow)
	if _, err := s.AddItem(ItemFields{Name: "Bread", Price: priceOf("3.49"), Quantity: 1}, "Bob", fixedNow); err != nil {
		t.Fatalf("add bread: %v", err)
	}

	removed, ok := s.RemoveItem(milk.ID)
	if !ok || removed.ID != milk.ID {
		t.Fatalf("remove = %+v, %v", removed, ok)
	}
	if want := MustAmount("3.49"); !s.Total().Equal(want) {
		t.Fatalf("total = %s, want %s", s.Total(), want)
	}
	if _, ok := s.RemoveItem(milk.ID); ok {
		t.Fatal("expected second remove to miss")
	}
}

func TestSetBudgetClampsNegative(t *testing.T) {
	s := NewSession("ABC123", "Alice", fixedNow)
	if got := s.SetBudget(MustAmount("50")); !got.Equal(MustAmount("50")) {
		t.Fatalf("budget = %s, want 50", got)
	}
	if got := s.SetBudget(MustAmount("-5")); !got.IsZero() {
		t.Fatalf("budget = %s, want 0", got)
	}
}

func TestReconcileSnapsDriftedTotal(t *testing.T) {
	s := NewSession("ABC123", "Alice", fixedNow)
	if _, err := s.AddItem(ItemFields{Name: "Milk", Price: priceOf("2.50"), Quantity: 2}, "Alice", fixedNow); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, drifted := s.Reconcile(); drifted {
		t.Fatal("expected consistent total")
	}

	s.total = MustAmount("-1")
	drift, drifted := s.Reconcile()
	if !drifted {
		t.Fatal("expected drift to be detected")
	}
	if !drift.Incremental.Equal(MustAmount("-1")) || !drift.Recomputed.Equal(MustAmount("5")) {
		t.Fatalf("drift = %+v", drift)
	}
	if !s.Total().Equal(MustAmount("5")) {
		t.Fatalf("total = %s, want 5", s.Total())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewSession("ABC123", "Alice", fixedNow)
	s.AddParticipant(Participant{ConnectionID: "c1", DisplayName: "Alice"})
	if _, err := s.AddItem(ItemFields{Name: "Milk", Price: priceOf("1"), Quantity: 1}, "Alice", fixedNow); err != nil {
		t.Fatalf("add: %v", err)
	}

	snap := s.Snapshot()
	snap.Items[0].Name = "changed"
	snap.Participants[0].DisplayName = "changed"

	if s.Items()[0].Name != "Milk" {
		t.Fatal("snapshot items alias session state")
	}
	if s.Participants()[0].DisplayName != "Alice" {
		t.Fatal("snapshot participants alias session state")
	}
}

func TestSummary(t *testing.T) {
	s := NewSession("ABC123", "Alice", fixedNow)
	s.AddParticipant(Participant{ConnectionID: "c1", DisplayName: "Alice"})
	s.SetBudget(MustAmount("20"))
	if _, err := s.AddItem(ItemFields{Name: "Milk", Price: priceOf("6.99"), Quantity: 2}, "Alice", fixedNow); err != nil {
		t.Fatalf("add: %v", err)
	}

	sum := s.Summary()
	if sum.ID != "ABC123" || sum.ParticipantCount != 1 || sum.ItemCount != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if !sum.TotalAmount.Equal(MustAmount("13.98")) || !sum.Budget.Equal(MustAmount("20")) {
		t.Fatalf("summary amounts = %s / %s", sum.TotalAmount, sum.Budget)
	}
	if !sum.CreatedAt.Equal(fixedNow) {
		t.Fatalf("createdAt = %v, want %v", sum.CreatedAt, fixedNow)
	}
}
