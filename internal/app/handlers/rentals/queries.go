package rentals

import (
	"context"
	"sort"

	"rentbook/internal/app/dto"
	"rentbook/internal/app/queries"
	"rentbook/internal/app/uow"
	"rentbook/internal/domain/rental"
)

const (
	getRentalKey         = "rentals.get"
	listRenterRentalsKey = "rentals.list_renter"
	listOwnerRentalsKey  = "rentals.list_owner"
)

type GetRentalQuery struct {
	RentalID string `validate:"required"`
	Actor    string `validate:"required"`
}

func (q GetRentalQuery) Key() string     { return getRentalKey }
func (q GetRentalQuery) ActorID() string { return q.Actor }

type GetRentalHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetRentalHandler) Handle(ctx context.Context, q GetRentalQuery) (dto.Rental, error) {
	return uow.Read(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) (dto.Rental, error) {
		r, err := unit.Rentals().ByID(ctx, rental.RentalID(q.RentalID))
		if err != nil {
			return dto.Rental{}, err
		}
		if !r.CanView(q.Actor) {
			return dto.Rental{}, rental.ErrForbidden
		}
		return dto.MapRental(r), nil
	})
}

type ListRenterRentalsQuery struct {
	RenterID string `validate:"required"`
}

func (q ListRenterRentalsQuery) Key() string     { return listRenterRentalsKey }
func (q ListRenterRentalsQuery) ActorID() string { return q.RenterID }

type ListOwnerRentalsQuery struct {
	OwnerID string `validate:"required"`
}

func (q ListOwnerRentalsQuery) Key() string     { return listOwnerRentalsKey }
func (q ListOwnerRentalsQuery) ActorID() string { return q.OwnerID }

type ListRentalsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListRentalsHandler) HandleRenter(ctx context.Context, q ListRenterRentalsQuery) (dto.RentalCollection, error) {
	return h.list(ctx, func(ctx context.Context, repo rental.Repository) ([]*rental.Rental, error) {
		return repo.ListByRenter(ctx, q.RenterID)
	})
}

func (h *ListRentalsHandler) HandleOwner(ctx context.Context, q ListOwnerRentalsQuery) (dto.RentalCollection, error) {
	return h.list(ctx, func(ctx context.Context, repo rental.Repository) ([]*rental.Rental, error) {
		return repo.ListByOwner(ctx, q.OwnerID)
	})
}

func (h *ListRentalsHandler) list(ctx context.Context, load func(context.Context, rental.Repository) ([]*rental.Rental, error)) (dto.RentalCollection, error) {
	rs, err := uow.Read(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) ([]*rental.Rental, error) {
		return load(ctx, unit.Rentals())
	})
	if err != nil {
		return dto.RentalCollection{}, err
	}
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].CreatedAt.After(rs[j].CreatedAt)
	})
	return dto.MapRentals(rs), nil
}

var _ queries.Handler[GetRentalQuery, dto.Rental] = (*GetRentalHandler)(nil)
