package session

import "github.com/louisbranch/sharedcart/internal/services/cart/domain"

// Outbound event names.
const (
	EventSessionJoined = "sessionJoined"
	EventUserJoined    = "userJoined"
	EventUserLeft      = "userLeft"
	EventItemAdded     = "itemAdded"
	EventItemUpdated   = "itemUpdated"
	EventItemRemoved   = "itemRemoved"
	EventBudgetSet     = "budgetSet"
)

// UserJoined is broadcast to existing participants when someone joins.
type UserJoined struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

// UserLeft is broadcast to remaining participants when someone leaves.
type UserLeft struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

// ItemAdded carries the new item and the updated total.
type ItemAdded struct {
	Item        domain.Item   `json:"item"`
	TotalAmount domain.Amount `json:"totalAmount"`
}

// ItemUpdated carries only the fields that changed.
type ItemUpdated struct {
	ItemID      string           `json:"itemId"`
	Updates     domain.ItemPatch `json:"updates"`
	TotalAmount domain.Amount    `json:"totalAmount"`
}

// ItemRemoved carries the removed id and the updated total.
type ItemRemoved struct {
	ItemID      string        `json:"itemId"`
	TotalAmount domain.Amount `json:"totalAmount"`
}

// BudgetSet carries the stored budget.
type BudgetSet struct {
	Budget domain.Amount `json:"budget"`
}
