package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/model"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/validation"
	"github.com/shopspring/decimal"
)

type Tx interface {
	Service(ctx context.Context, id string) (model.Service, error)
	InsertService(ctx context.Context, s model.Service) (model.Service, error)
	UpdateService(ctx context.Context, s model.Service) (model.Service, error)
}

type UnitOfWork interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

type Admin struct {
	uow    UnitOfWork
	logger *slog.Logger
	newID  func() string
}

func NewAdmin(uow UnitOfWork, logger *slog.Logger) *Admin {
	return &Admin{uow: uow, logger: logger, newID: uuid.NewString}
}

type ServiceInput struct {
	Name            string `json:"name" validate:"required,min=2,max=100"`
	Description     string `json:"description" validate:"max=2000"`
	DurationMinutes int    `json:"duration_minutes" validate:"gt=0,lte=720"`
	Price           string `json:"price" validate:"required,decimal2"`
	Active          *bool  `json:"active"`
}

// ServicePatch changes only the fields that are set.
type ServicePatch struct {
	Name            *string `json:"name" validate:"omitnil,min=2,max=100"`
	Description     *string `json:"description" validate:"omitnil,max=2000"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitnil,gt=0,lte=720"`
	Price           *string `json:"price" validate:"omitnil,decimal2"`
	Active          *bool   `json:"active"`
}

func (a *Admin) CreateService(ctx context.Context, in ServiceInput, actor string) (model.Service, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validation.Struct(in); err != nil {
		return model.Service{}, err
	}
	price, _ := decimal.NewFromString(in.Price)
	svc := model.Service{
		ID:              a.newID(),
		Name:            in.Name,
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		Price:           price,
		Active:          in.Active == nil || *in.Active,
	}

	var created model.Service
	err := a.uow.InTx(ctx, func(tx Tx) error {
		var err error
		created, err = tx.InsertService(ctx, svc)
		return err
	})
	if err != nil {
		return model.Service{}, apperror.FromStore("create service", "service", err)
	}
	a.logger.Info("service created", "service_id", created.ID, "actor", actor)
	return created, nil
}

// UpdateService applies patch. Existing appointments keep the end time they were booked with.
func (a *Admin) UpdateService(ctx context.Context, id string, patch ServicePatch, actor string) (model.Service, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if err := validation.Struct(patch); err != nil {
		return model.Service{}, err
	}

	var updated model.Service
	err := a.uow.InTx(ctx, func(tx Tx) error {
		svc, err := tx.Service(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			svc.Name = *patch.Name
		}
		if patch.Description != nil {
			svc.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.DurationMinutes != nil {
			svc.DurationMinutes = *patch.DurationMinutes
		}
		if patch.Price != nil {
			svc.Price, _ = decimal.NewFromString(*patch.Price)
		}
		if patch.Active != nil {
			svc.Active = *patch.Active
		}
		updated, err = tx.UpdateService(ctx, svc)
		return err
	})
	if err != nil {
		return model.Service{}, apperror.FromStore("update service", "service", err)
	}
	a.logger.Info("service updated", "service_id", id, "actor", actor)
	return updated, nil
}
