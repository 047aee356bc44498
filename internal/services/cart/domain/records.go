package domain

import "time"

// Participant is one connection attached to a session.
type Participant struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

// Item is one line entry in a session's cart.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    Amount `json:"price"`
	Quantity int    `json:"quantity"`
	Barcode  string `json:"barcode,omitempty"`
	AddedBy  string `json:"addedBy"`
}

// Contribution is the item's share of the session total.
func (i Item) Contribution() Amount {
	return i.Price.Times(i.Quantity)
}

// ItemFields carries the client-supplied fields of a new item.
type ItemFields struct {
	Name     string  `json:"name"`
	Price    *Amount `json:"price"`
	Quantity int     `json:"quantity"`
	Barcode  string  `json:"barcode,omitempty"`
}

// ItemPatch is a partial update. Nil fields are left untouched.
type ItemPatch struct {
	Name     *string `json:"name,omitempty"`
	Price    *Amount `json:"price,omitempty"`
	Quantity *int    `json:"quantity,omitempty"`
	Barcode  *string `json:"barcode,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.Quantity == nil && p.Barcode == nil
}

// Apply returns item with every present patch field overwritten.
func (p ItemPatch) Apply(item Item) Item {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.Barcode != nil {
		item.Barcode = *p.Barcode
	}
	return item
}

// Snapshot is the full state handed to a joining participant.
type Snapshot struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
	Items        []Item        `json:"items"`
	TotalAmount  Amount        `json:"totalAmount"`
	Budget       Amount        `json:"budget"`
	CreatorName  string        `json:"creatorName"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Summary is one row of the session directory.
type Summary struct {
	ID               string    `json:"id"`
	ParticipantCount int       `json:"participantCount"`
	ItemCount        int       `json:"itemCount"`
	Budget           Amount    `json:"budget"`
	TotalAmount      Amount    `json:"totalAmount"`
	CreatorName      string    `json:"creatorName"`
	CreatedAt        time.Time `json:"createdAt"`
}
