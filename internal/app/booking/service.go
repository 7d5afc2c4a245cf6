// Package booking assembles the rental and availability handlers behind one
// orchestrating surface. Every mutating call runs through the command pipeline,
// so a state transition and its ledger side effects commit together.
package booking

import (
	"context"
	"log/slog"
	"time"

	"rentbook/internal/app/commands"
	"rentbook/internal/app/dto"
	availabilityapp "rentbook/internal/app/handlers/availability"
	rentalsapp "rentbook/internal/app/handlers/rentals"
	handlersupport "rentbook/internal/app/handlers/support"
	"rentbook/internal/app/middleware"
	"rentbook/internal/app/outbox"
	"rentbook/internal/app/policies"
	"rentbook/internal/app/queries"
	"rentbook/internal/app/uow"
)

type Deps struct {
	UoWFactory   uow.UoWFactory
	Outbox       outbox.Outbox
	Encoder      outbox.Encoder
	Payments     policies.PaymentsPort
	Idempotency  middleware.IdempotencyStore
	Clock        handlersupport.Clock
	RetryBackoff []time.Duration
	Logger       *slog.Logger
}

// Service is the only entry point callers use to act on rentals and calendars.
type Service struct {
	Commands commands.Bus
	Queries  queries.Bus
}

func NewService(d Deps) *Service {
	logger := handlersupport.Logger(d.Logger)
	base := rentalsapp.Base{
		UoWFactory: d.UoWFactory,
		Outbox:     d.Outbox,
		Encoder:    d.Encoder,
		Clock:      d.Clock,
		Logger:     logger,
	}

	commandBus := commands.NewRouter()
	commands.Register(commandBus, &rentalsapp.CreateRentalHandler{Base: base})
	commands.Register(commandBus, &rentalsapp.AcceptRentalHandler{Base: base})
	commands.Register(commandBus, &rentalsapp.ConfirmRentalHandler{Base: base, Payments: d.Payments})
	commands.Register(commandBus, &rentalsapp.ExtendRentalHandler{Base: base})
	commands.Register(commandBus, &rentalsapp.CancelRentalHandler{Base: base})
	commands.Register(commandBus, &rentalsapp.PickUpRentalHandler{Base: base})
	commands.Register(commandBus, &rentalsapp.ReturnRentalHandler{Base: base})
	commands.Register(commandBus, &rentalsapp.DisputeRentalHandler{Base: base})
	commands.Register(commandBus, &rentalsapp.ExpireStaleRentalsHandler{Base: base})

	dates := &availabilityapp.DatesHandler{
		UoWFactory: d.UoWFactory,
		Outbox:     d.Outbox,
		Encoder:    d.Encoder,
		Clock:      d.Clock,
		Logger:     logger,
	}
	commands.Register(commandBus, commands.HandlerFunc[availabilityapp.BlockDatesCommand, *dto.BlockResult](dates.HandleBlock))
	commands.Register(commandBus, commands.HandlerFunc[availabilityapp.UnblockDatesCommand, *dto.BlockResult](dates.HandleUnblock))

	queryBus := queries.Table{}
	lists := &rentalsapp.ListRentalsHandler{UoWFactory: d.UoWFactory}
	queries.Register(queryBus, &rentalsapp.GetRentalHandler{UoWFactory: d.UoWFactory})
	queries.Register(queryBus, queries.HandlerFunc[rentalsapp.ListRenterRentalsQuery, dto.RentalCollection](lists.HandleRenter))
	queries.Register(queryBus, queries.HandlerFunc[rentalsapp.ListOwnerRentalsQuery, dto.RentalCollection](lists.HandleOwner))
	queries.Register(queryBus, &availabilityapp.GetCalendarHandler{UoWFactory: d.UoWFactory, Clock: d.Clock})
	queries.Register(queryBus, &availabilityapp.CheckAvailabilityHandler{UoWFactory: d.UoWFactory})

	validator := middleware.NewStructValidator()
	mws := []middleware.CommandMiddleware{
		middleware.Validation(validator),
		middleware.Authorization(middleware.ActorAuthorizer{}),
	}
	if d.Idempotency != nil {
		mws = append(mws, middleware.Idempotency(d.Idempotency, d.Clock.Now))
	}
	mws = append(mws,
		middleware.Retry(middleware.RetryPolicy{Backoff: d.RetryBackoff, Logger: logger}),
	)
	if d.Outbox != nil {
		mws = append(mws, middleware.OutboxFlush(d.Outbox, logger))
	}
	mws = append(mws, middleware.Transaction(d.UoWFactory))

	return &Service{
		Commands: middleware.ChainCommands(commandBus, mws...),
		Queries: middleware.ChainQueries(queryBus,
			middleware.QueryValidation(validator),
			middleware.QueryAuthorization(middleware.ActorAuthorizer{}),
		),
	}
}

func (s *Service) CreateRental(ctx context.Context, cmd rentalsapp.CreateRentalCommand) (*dto.Rental, error) {
	return commands.Send[*dto.Rental](ctx, s.Commands, cmd)
}

func (s *Service) AcceptRental(ctx context.Context, rentalID, ownerID string) (*dto.Rental, error) {
	return commands.Send[*dto.Rental](ctx, s.Commands,
		rentalsapp.AcceptRentalCommand{RentalID: rentalID, OwnerID: ownerID})
}

func (s *Service) ConfirmRental(ctx context.Context, cmd rentalsapp.ConfirmRentalCommand) (*dto.Rental, error) {
	return commands.Send[*dto.Rental](ctx, s.Commands, cmd)
}

func (s *Service) ExtendRental(ctx context.Context, cmd rentalsapp.ExtendRentalCommand) (*dto.Rental, error) {
	return commands.Send[*dto.Rental](ctx, s.Commands, cmd)
}

func (s *Service) CancelRental(ctx context.Context, cmd rentalsapp.CancelRentalCommand) (*dto.Rental, error) {
	return commands.Send[*dto.Rental](ctx, s.Commands, cmd)
}

func (s *Service) PickUpRental(ctx context.Context, rentalID, ownerID string) (*dto.Rental, error) {
	return commands.Send[*dto.Rental](ctx, s.Commands,
		rentalsapp.PickUpRentalCommand{RentalID: rentalID, OwnerID: ownerID})
}

func (s *Service) ReturnRental(ctx context.Context, rentalID, ownerID string) (*dto.Rental, error) {
	return commands.Send[*dto.Rental](ctx, s.Commands,
		rentalsapp.ReturnRentalCommand{RentalID: rentalID, OwnerID: ownerID})
}

func (s *Service) DisputeRental(ctx context.Context, rentalID, actorID string) (*dto.Rental, error) {
	return commands.Send[*dto.Rental](ctx, s.Commands,
		rentalsapp.DisputeRentalCommand{RentalID: rentalID, Actor: actorID})
}

func (s *Service) ExpireStaleRentals(ctx context.Context, asOf time.Time) (*dto.ExpireResult, error) {
	return commands.Send[*dto.ExpireResult](ctx, s.Commands,
		rentalsapp.ExpireStaleRentalsCommand{AsOf: asOf})
}

func (s *Service) GetRental(ctx context.Context, rentalID, actorID string) (dto.Rental, error) {
	return queries.Ask[dto.Rental](ctx, s.Queries,
		rentalsapp.GetRentalQuery{RentalID: rentalID, Actor: actorID})
}

func (s *Service) ListRenterRentals(ctx context.Context, renterID string) (dto.RentalCollection, error) {
	return queries.Ask[dto.RentalCollection](ctx, s.Queries,
		rentalsapp.ListRenterRentalsQuery{RenterID: renterID})
}

func (s *Service) ListOwnerRentals(ctx context.Context, ownerID string) (dto.RentalCollection, error) {
	return queries.Ask[dto.RentalCollection](ctx, s.Queries,
		rentalsapp.ListOwnerRentalsQuery{OwnerID: ownerID})
}

func (s *Service) GetAvailabilityCalendar(ctx context.Context, q availabilityapp.GetCalendarQuery) (dto.Calendar, error) {
	return queries.Ask[dto.Calendar](ctx, s.Queries, q)
}

func (s *Service) CheckAvailability(ctx context.Context, q availabilityapp.CheckAvailabilityQuery) (dto.AvailabilityCheck, error) {
	return queries.Ask[dto.AvailabilityCheck](ctx, s.Queries, q)
}

func (s *Service) BlockDates(ctx context.Context, cmd availabilityapp.BlockDatesCommand) (*dto.BlockResult, error) {
	return commands.Send[*dto.BlockResult](ctx, s.Commands, cmd)
}

func (s *Service) UnblockDates(ctx context.Context, cmd availabilityapp.UnblockDatesCommand) (*dto.BlockResult, error) {
	return commands.Send[*dto.BlockResult](ctx, s.Commands, cmd)
}
