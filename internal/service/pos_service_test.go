package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	apperrors "go-pos-ws/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidTransaction(t *testing.T, f *fixture) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	p := f.addProduct(t, "Bread", 5000, 10)
	session := f.open(t)
	_, err := session.AddProduct(ctx, p.ID)
	require.NoError(t, err)
	_, err = session.Finalize(ctx, FinalizeInput{CashReceived: ptr(dec("5000"))})
	require.NoError(t, err)
	return session.ID()
}

func TestCompleteLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	id := paidTransaction(t, f)

	view, err := f.svc.Complete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, view.Status)
	require.NotNil(t, view.CompletedAt)
	assert.True(t, strings.HasPrefix(view.Number, "INV-"))

	writes := f.store.writeCount()
	again, err := f.svc.Complete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, again.Status)
	assert.Equal(t, writes, f.store.writeCount(), "completing twice is a no-op")
}

func TestCompleteRejectsDraftAndMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	draft := f.open(t)

	_, err := f.svc.Complete(ctx, draft.ID())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStateConflict))
	assert.Equal(t, model.StatusDraft, f.stored(t, draft.ID()).Status)

	_, err = f.svc.Complete(ctx, uuid.New())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestResumeRejectsFinalized(t *testing.T) {
	f := newFixture(t, "")
	id := paidTransaction(t, f)

	_, err := f.svc.Resume(context.Background(), id)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStateConflict))

	_, err = f.svc.Resume(context.Background(), uuid.New())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestCheckoutCreatesCompletedTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "10")
	coffee := f.addProduct(t, "Coffee", 10000, 5)

	result, err := f.svc.Checkout(ctx, CheckoutInput{
		CashierID:     "cashier-9",
		CashierName:   "Citra",
		Lines:         []CheckoutLine{{ProductID: coffee.ID, Quantity: 2, Discount: dec("5000")}},
		PaymentMethod: model.PaymentCash,
		CashReceived:  ptr(dec("20000")),
	})
	require.NoError(t, err)
	assertDec(t, "16500", result.Total)
	assertDec(t, "3500", result.Change)
	assert.True(t, strings.HasPrefix(result.Number, "INV-"))

	stored := f.stored(t, result.Transaction.ID)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.Equal(t, "cashier-9", stored.CashierID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 2, stored.Items[0].Quantity)
	require.NotNil(t, stored.PaidAt)
	require.NotNil(t, stored.CompletedAt)
}

func TestCheckoutValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	coffee := f.addProduct(t, "Coffee", 10000, 1)

	_, err := f.svc.Checkout(ctx, CheckoutInput{PaymentMethod: model.PaymentCard})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeEmptyCart))

	_, err = f.svc.Checkout(ctx, CheckoutInput{
		Lines:         []CheckoutLine{{ProductID: coffee.ID, Quantity: 2}},
		PaymentMethod: model.PaymentCard,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = f.svc.Checkout(ctx, CheckoutInput{
		Lines:         []CheckoutLine{{ProductID: coffee.ID, Quantity: 1}},
		PaymentMethod: model.PaymentCash,
		CashReceived:  ptr(dec("100")),
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInsufficientPayment))

	_, err = f.svc.Checkout(ctx, CheckoutInput{
		Lines:         []CheckoutLine{{ProductID: coffee.ID, Quantity: 1}},
		PaymentMethod: model.PaymentMethod("BARTER"),
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	list, err := f.svc.List(ctx, repository.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWatchStreamsCanonicalState(t *testing.T) {
	f := newFixture(t, "")
	coffee := f.addProduct(t, "Coffee", 1000, 5)
	session := f.open(t)

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := f.svc.Watch(ctx, session.ID())
	require.NoError(t, err)

	initial := <-updates
	assert.Empty(t, initial.Items)

	_, err = session.AddProduct(context.Background(), coffee.ID)
	require.NoError(t, err)

	select {
	case view := <-updates:
		require.Len(t, view.Items, 1)
		assert.Equal(t, coffee.ID, view.Items[0].ProductID)
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}

	cancel()
	select {
	case _, open := <-updates:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel not closed")
	}

	_, err = f.svc.Watch(context.Background(), uuid.New())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestGetAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	paid := paidTransaction(t, f)
	draft := f.open(t)

	view, err := f.svc.Get(ctx, paid)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, view.Status)

	drafts, err := f.svc.List(ctx, repository.TransactionFilter{Status: model.StatusDraft})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, draft.ID(), drafts[0].ID)
	assert.True(t, strings.HasPrefix(drafts[0].Number, "DRAFT-"))
}

func TestShutdownStopsSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	first := f.open(t)
	second := f.open(t)

	require.NoError(t, f.svc.Shutdown(ctx))
	<-first.Done()
	<-second.Done()
	assert.Equal(t, 0, f.svc.OpenSessions())

	_, err := f.svc.Initialize(ctx, "cashier-1", "Ana")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStateConflict))

	_, err = first.State(ctx)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStateConflict))

	// drafts stay stored
	assert.Equal(t, model.StatusDraft, f.stored(t, first.ID()).Status)
}
