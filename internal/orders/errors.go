package orders

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemUnavailable   = errors.New("item unavailable")
	ErrMixedMerchant     = errors.New("items belong to more than one merchant")
	ErrEmptyCart         = errors.New("cart is empty or not found")
	ErrAlreadyPaid       = errors.New("transaction already paid")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports malformed input on a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientStockError names the item and the quantities involved so the
// caller can react (lower the quantity, drop the line).
type InsufficientStockError struct {
	MenuItemID string `json:"menu_item_id"`
	Requested  int    `json:"required"`
	Available  int    `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: requested %d, available %d",
		e.MenuItemID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type ItemUnavailableError struct {
	MenuItemID string
	Name       string
}

func (e *ItemUnavailableError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("menu %q is no longer available", e.Name)
	}
	return fmt.Sprintf("menu item %s is no longer available", e.MenuItemID)
}

func (e *ItemUnavailableError) Is(target error) bool { return target == ErrItemUnavailable }

func NotFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
}

// IsStockRejection reports whether err rejects an order for lack of stock.
func IsStockRejection(err error) bool {
	return errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrItemUnavailable)
}
