package auth

import (
	"context"
	"errors"
	"testing"
)

func TestGuestRepository_CreateAndGetByToken(t *testing.T) {
	db := testDB(t)
	repo := NewGuestRepository(db)
	ctx := context.Background()

	guest := &Guest{
		Email:       "invitee@example.com",
		Company:     "acme",
		AccessLevel: 2,
	}
	if err := repo.Create(ctx, guest); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if guest.ID == "" {
		t.Fatal("Create() should generate an ID")
	}
	if guest.Token == "" {
		t.Fatal("Create() should generate a token")
	}

	got, err := repo.GetByToken(ctx, guest.Token)
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if got.Email != "invitee@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "invitee@example.com")
	}
	if got.Company != "acme" {
		t.Errorf("Company = %q, want %q", got.Company, "acme")
	}
	if got.AccessLevel != 2 {
		t.Errorf("AccessLevel = %d, want %d", got.AccessLevel, 2)
	}
	if got.Consumed {
		t.Error("new invitation should not be consumed")
	}
}

func TestGuestRepository_UnknownToken(t *testing.T) {
	db := testDB(t)
	repo := NewGuestRepository(db)

	_, err := repo.GetByToken(context.Background(), "no-such-token")
	if !errors.Is(err, ErrGuestNotFound) {
		t.Errorf("GetByToken() error = %v, want ErrGuestNotFound", err)
	}
}

func TestGuestRepository_MarkConsumed(t *testing.T) {
	db := testDB(t)
	repo := NewGuestRepository(db)
	ctx := context.Background()

	guest := &Guest{Email: "invitee@example.com", Company: "acme"}
	if err := repo.Create(ctx, guest); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.MarkConsumed(ctx, guest.ID); err != nil {
		t.Fatalf("MarkConsumed() error = %v", err)
	}

	got, err := repo.GetByToken(ctx, guest.Token)
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if !got.Consumed {
		t.Error("invitation should be consumed after MarkConsumed")
	}

	if err := repo.MarkConsumed(ctx, "gst-missing"); !errors.Is(err, ErrGuestNotFound) {
		t.Errorf("MarkConsumed() error = %v, want ErrGuestNotFound", err)
	}
}
