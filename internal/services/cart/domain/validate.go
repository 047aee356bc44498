package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	apperrors "github.com/louisbranch/sharedcart/internal/platform/errors"
)

// NormalizeSessionID trims and upper-cases a session id so "abc123" and
// " ABC123" name the same session.
func NormalizeSessionID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", apperrors.New(apperrors.CodeCartEmptySessionID, "sessionId is required")
	}
	return cases.Upper(language.Und).String(id), nil
}

// NormalizeItemFields validates a new item and returns it with trimmed text.
func NormalizeItemFields(fields ItemFields) (ItemFields, error) {
	fields.Name = strings.TrimSpace(fields.Name)
	fields.Barcode = strings.TrimSpace(fields.Barcode)
	if fields.Name == "" {
		return ItemFields{}, apperrors.New(apperrors.CodeCartEmptyItemName, "item name is required")
	}
	if fields.Price == nil || fields.Price.IsNegative() {
		return ItemFields{}, apperrors.New(apperrors.CodeCartInvalidPrice, "price must be a non-negative number")
	}
	if fields.Quantity < 1 {
		return ItemFields{}, apperrors.New(apperrors.CodeCartInvalidQuantity, "quantity must be at least 1")
	}
	return fields, nil
}

// NormalizeItemPatch validates the present fields of a patch.
func NormalizeItemPatch(patch ItemPatch) (ItemPatch, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return ItemPatch{}, apperrors.New(apperrors.CodeCartEmptyItemName, "item name cannot be empty")
		}
		patch.Name = &name
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return ItemPatch{}, apperrors.New(apperrors.CodeCartInvalidPrice, "price must be a non-negative number")
	}
	if patch.Quantity != nil && *patch.Quantity < 1 {
		return ItemPatch{}, apperrors.New(apperrors.CodeCartInvalidQuantity, "quantity must be at least 1")
	}
	if patch.Barcode != nil {
		barcode := strings.TrimSpace(*patch.Barcode)
		patch.Barcode = &barcode
	}
	return patch, nil
}

// NormalizeItemID rejects blank item ids.
func NormalizeItemID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", apperrors.New(apperrors.CodeCartEmptyItemID, "itemId is required")
	}
	return id, nil
}

// ClampBudget coerces a budget to a non-negative amount.
func ClampBudget(amount Amount) Amount {
	if amount.IsNegative() {
		return Zero
	}
	return amount
}
