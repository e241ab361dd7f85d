// Package payment records the single payment of a transaction and drives the
// transaction to paid in the same unit of work.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/kantin-orders/internal/identity"
	"github.com/ariefcatur/kantin-orders/internal/lifecycle"
	"github.com/ariefcatur/kantin-orders/internal/orders"
)

type Service struct {
	Store orders.Store
	Now   func() time.Time
}

func NewService(store orders.Store) *Service {
	return &Service{Store: store, Now: time.Now}
}

type RecordInput struct {
	TransactionID string
	Amount        decimal.Decimal
	Method        string // payment method id, resolved against the merchant
	ProofRef      string
}

func (in RecordInput) validate() error {
	if in.TransactionID == "" {
		return orders.Invalid("transaction_id", "is required")
	}
	if in.Amount.IsNegative() {
		return orders.Invalid("amount", "must not be negative")
	}
	if in.Method == "" {
		return orders.Invalid("method", "is required")
	}
	return nil
}

// Receipt is what Record wrote: the payment row and the status change it
// caused. Change.Changed() is false when the transaction was already paid.
type Receipt struct {
	Payment *orders.Payment
	Change  *lifecycle.Change
}

// Record upserts the transaction's payment as paid and moves the transaction
// to paid. If the move fails, for lack of stock for instance, the payment
// write is discarded with it.
func (s *Service) Record(ctx context.Context, in RecordInput) (*Receipt, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	actor, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	var out *Receipt
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		txn, err := tx.LockTransaction(ctx, in.TransactionID)
		if err != nil {
			return err
		}
		if err := authorize(actor, txn); err != nil {
			return err
		}
		if err := payable(txn); err != nil {
			return err
		}
		method, err := acceptedMethod(ctx, tx, txn.MerchantID, in.Method)
		if err != nil {
			return err
		}

		now := s.now()
		p := &orders.Payment{
			TransactionID: txn.ID,
			Amount:        in.Amount,
			Method:        method,
			ProofRef:      in.ProofRef,
			Status:        orders.PaymentPaid,
			PaidAt:        &now,
		}
		if p.ProofRef == "" {
			if existing, err := tx.GetPayment(ctx, txn.ID); err == nil {
				p.ProofRef = existing.ProofRef
			} else if !errors.Is(err, orders.ErrNotFound) {
				return err
			}
		}
		if err := tx.UpsertPayment(ctx, p); err != nil {
			return err
		}

		prev := txn.Status
		effect, err := lifecycle.Apply(ctx, tx, txn, orders.StatusPaid, now)
		if err != nil {
			return err
		}
		out = &Receipt{
			Payment: p,
			Change:  &lifecycle.Change{Transaction: txn, Previous: prev, Effect: effect},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitProof attaches a proof reference for the merchant to verify. The
// payment waits in pending_verification and the transaction stays pending.
func (s *Service) SubmitProof(ctx context.Context, transactionID, proofRef string) (*orders.Payment, error) {
	if transactionID == "" {
		return nil, orders.Invalid("transaction_id", "is required")
	}
	if proofRef == "" {
		return nil, orders.Invalid("proof_ref", "is required")
	}
	actor, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	var out *orders.Payment
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		txn, err := tx.LockTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if err := authorize(actor, txn); err != nil {
			return err
		}
		if txn.Status == orders.StatusPaid {
			return orders.ErrAlreadyPaid
		}
		if err := payable(txn); err != nil {
			return err
		}

		p := &orders.Payment{
			TransactionID: txn.ID,
			Amount:        txn.TotalPrice,
			Method:        txn.PaymentMethod,
			ProofRef:      proofRef,
			Status:        orders.PaymentPendingVerification,
		}
		existing, err := tx.GetPayment(ctx, txn.ID)
		switch {
		case err == nil:
			p.Amount = existing.Amount
			if existing.Method != "" {
				p.Method = existing.Method
			}
		case !errors.Is(err, orders.ErrNotFound):
			return err
		}
		if err := tx.UpsertPayment(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the payment of a transaction the actor can see.
func (s *Service) Get(ctx context.Context, transactionID string) (*orders.Payment, error) {
	actor, err := identity.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	var out *orders.Payment
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		txn, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && actor.UserID != txn.CustomerID && actor.UserID != txn.MerchantID {
			return orders.NotFound("transaction", transactionID)
		}
		out, err = tx.GetPayment(ctx, transactionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// payable rejects transactions past paid or cancelled. A paid transaction is
// still payable: the row is rewritten and the status move is a no-op.
func payable(txn *orders.Transaction) error {
	switch txn.Status {
	case orders.StatusConfirmed, orders.StatusReady, orders.StatusCompleted:
		return orders.ErrAlreadyPaid
	case orders.StatusCancelled:
		return fmt.Errorf("%w: transaction %s is cancelled", orders.ErrInvalidTransition, txn.ID)
	}
	return nil
}

func authorize(a identity.Actor, txn *orders.Transaction) error {
	if a.IsAdmin() || (a.Role == identity.RoleCustomer && a.UserID == txn.CustomerID) {
		return nil
	}
	return orders.ErrUnauthorized
}

// acceptedMethod resolves methodID to the name of an active payment method of
// the merchant.
func acceptedMethod(ctx context.Context, tx orders.Tx, merchantID, methodID string) (string, error) {
	pm, err := tx.GetPaymentMethod(ctx, merchantID, methodID)
	if errors.Is(err, orders.ErrNotFound) || (err == nil && !pm.Active) {
		return "", orders.Invalid("method", "is not accepted by this merchant")
	}
	if err != nil {
		return "", err
	}
	return pm.Name, nil
}
