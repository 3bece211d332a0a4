package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
)

type memCatalog struct {
	services map[string]model.Service
	txs      int
}

func (m *memCatalog) InTx(_ context.Context, fn func(Tx) error) error {
	m.txs++
	return fn(m)
}

func (m *memCatalog) Service(_ context.Context, id string) (model.Service, error) {
	s, ok := m.services[id]
	if !ok {
		return model.Service{}, fmt.Errorf("service: %w", apperror.ErrNotFound)
	}
	return s, nil
}

func (m *memCatalog) InsertService(_ context.Context, s model.Service) (model.Service, error) {
	m.services[s.ID] = s
	return s, nil
}

func (m *memCatalog) UpdateService(_ context.Context, s model.Service) (model.Service, error) {
	m.services[s.ID] = s
	return s, nil
}

func newTestAdmin() (*Admin, *memCatalog) {
	store := &memCatalog{services: map[string]model.Service{}}
	a := NewAdmin(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.newID = func() string { return "svc-1" }
	return a, store
}

func TestCreateService(t *testing.T) {
	a, store := newTestAdmin()
	svc, err := a.CreateService(context.Background(), ServiceInput{
		Name: "  Deep Tissue ", DurationMinutes: 90, Price: "120.5",
	}, "admin")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if svc.Name != "Deep Tissue" || !svc.Active || svc.PriceString() != "120.50" {
		t.Fatalf("unexpected service %+v", svc)
	}
	if _, ok := store.services["svc-1"]; !ok {
		t.Fatalf("service not stored")
	}
}

func TestCreateServiceValidation(t *testing.T) {
	a, store := newTestAdmin()
	cases := []ServiceInput{
		{Name: "X", DurationMinutes: 60, Price: "10"},
		{Name: "Massage", DurationMinutes: 0, Price: "10"},
		{Name: "Massage", DurationMinutes: 60, Price: "-1"},
		{Name: "Massage", DurationMinutes: 60, Price: "10.005"},
		{Name: "Massage", DurationMinutes: 60, Price: "ten"},
	}
	for i, in := range cases {
		if _, err := a.CreateService(context.Background(), in, "admin"); !apperror.Is(err, apperror.KindValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if store.txs != 0 {
		t.Fatalf("invalid input must not open a transaction, got %d", store.txs)
	}
}

func TestUpdateService(t *testing.T) {
	a, store := newTestAdmin()
	if _, err := a.CreateService(context.Background(), ServiceInput{Name: "Facial", DurationMinutes: 45, Price: "60"}, "admin"); err != nil {
		t.Fatalf("create: %v", err)
	}

	price := "75.00"
	inactive := false
	svc, err := a.UpdateService(context.Background(), "svc-1", ServicePatch{Price: &price, Active: &inactive}, "admin")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if svc.Name != "Facial" || svc.DurationMinutes != 45 || svc.PriceString() != "75.00" || svc.Active {
		t.Fatalf("unexpected service %+v", svc)
	}
	if store.services["svc-1"].Active {
		t.Fatalf("stored service should be inactive")
	}

	if _, err := a.UpdateService(context.Background(), "missing", ServicePatch{Price: &price}, "admin"); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	zero := 0
	if _, err := a.UpdateService(context.Background(), "svc-1", ServicePatch{DurationMinutes: &zero}, "admin"); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
