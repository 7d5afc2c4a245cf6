package memory

import (
	"context"
	"errors"
	"time"

	appoutbox "rentbook/internal/app/outbox"
	"rentbook/internal/app/uow"
	"rentbook/internal/domain/availability"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/rental"
	"rentbook/internal/domain/shared/daterange"
	"rentbook/internal/domain/shared/fault"
)

var (
	// ErrFactoryMisconfigured indicates a factory without a store.
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
	ErrReadOnly             = errors.New("memory: write in read-only unit of work")
)

// Factory starts units of work over a shared Store.
type Factory struct {
	Store *Store
}

func (f Factory) Begin(_ context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		store:    f.Store,
		readOnly: opts.ReadOnly,
		held:     make(map[catalog.ItemID]chan struct{}),
		rentals:  make(map[rental.RentalID]rental.Rental),
		expected: make(map[rental.RentalID]int64),
		days:     make(map[catalog.ItemID]map[time.Time]availability.Day),
		items:    make(map[catalog.ItemID]bool),
	}, nil
}

// Unit buffers writes until Commit. Item locks are held until the unit ends.
type Unit struct {
	store    *Store
	readOnly bool
	done     bool

	held     map[catalog.ItemID]chan struct{}
	rentals  map[rental.RentalID]rental.Rental
	expected map[rental.RentalID]int64
	days     map[catalog.ItemID]map[time.Time]availability.Day
	items    map[catalog.ItemID]bool
	outbox   []appoutbox.EventRecord
}

func (u *Unit) Items() catalog.Repository {
	return itemRepository{u}
}

func (u *Unit) Rentals() rental.Repository {
	return rentalRepository{u}
}

func (u *Unit) Availability() availability.Repository {
	return availabilityRepository{u}
}

func (u *Unit) LockItem(ctx context.Context, id catalog.ItemID) error {
	if u.done {
		return ErrUnitClosed
	}
	if _, ok := u.held[id]; ok {
		return nil
	}
	ch := u.store.itemLock(id)
	select {
	case ch <- struct{}{}:
		u.held[id] = ch
		return nil
	case <-ctx.Done():
		return fault.Transient(ctx.Err())
	}
}

func (u *Unit) Commit(context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	defer u.finish()
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, want := range u.expected {
		if current, ok := s.rentals[id]; ok && current.Version != want || !ok && want != 0 {
			return rental.ErrConcurrentUpdate
		}
	}
	for id, r := range u.rentals {
		s.rentals[id] = r
	}
	for itemID, staged := range u.days {
		if s.days[itemID] == nil {
			s.days[itemID] = make(map[time.Time]availability.Day)
		}
		for date, d := range staged {
			s.days[itemID][date] = d
		}
	}
	for id, available := range u.items {
		if item, ok := s.items[id]; ok {
			item.Available = available
			s.items[id] = item
		}
	}
	s.outbox.append(u.outbox...)
	return nil
}

func (u *Unit) Rollback(context.Context) error {
	if u.done {
		return nil
	}
	u.finish()
	return nil
}

func (u *Unit) finish() {
	u.done = true
	for id, ch := range u.held {
		<-ch
		delete(u.held, id)
	}
}

func (u *Unit) writable() error {
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnly
	}
	return nil
}

type itemRepository struct{ u *Unit }

func (r itemRepository) ByID(_ context.Context, id catalog.ItemID) (*catalog.Item, error) {
	r.u.store.mu.RLock()
	item, ok := r.u.store.items[id]
	r.u.store.mu.RUnlock()
	if !ok {
		return nil, catalog.ErrItemNotFound
	}
	if available, staged := r.u.items[id]; staged {
		item.Available = available
	}
	return &item, nil
}

func (r itemRepository) SetAvailable(_ context.Context, id catalog.ItemID, available bool) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	r.u.items[id] = available
	return nil
}

type rentalRepository struct{ u *Unit }

func (r rentalRepository) ByID(_ context.Context, id rental.RentalID) (*rental.Rental, error) {
	if staged, ok := r.u.rentals[id]; ok {
		return &staged, nil
	}
	r.u.store.mu.RLock()
	stored, ok := r.u.store.rentals[id]
	r.u.store.mu.RUnlock()
	if !ok {
		return nil, rental.ErrRentalNotFound
	}
	return &stored, nil
}

func (r rentalRepository) Save(_ context.Context, rent *rental.Rental) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.u.expected[rent.ID]; !ok {
		r.u.expected[rent.ID] = rent.Version
	}
	cp := *rent
	cp.Discard()
	cp.Version = r.u.expected[rent.ID] + 1
	r.u.rentals[rent.ID] = cp
	rent.Version = cp.Version
	return nil
}

func (r rentalRepository) filter(keep func(*rental.Rental) bool) []*rental.Rental {
	merged := r.u.store.rentalSnapshot()
	for id, staged := range r.u.rentals {
		merged[id] = staged
	}
	var out []*rental.Rental
	for _, rent := range merged {
		rent := rent
		if keep(&rent) {
			out = append(out, &rent)
		}
	}
	sortRentals(out)
	return out
}

func (r rentalRepository) Blocking(_ context.Context, itemID catalog.ItemID, window daterange.DateRange) ([]*rental.Rental, error) {
	return r.filter(func(rent *rental.Rental) bool {
		return rent.ItemID == itemID && !rent.Status.Terminal() && rent.Period.Overlaps(window)
	}), nil
}

func (r rentalRepository) ListByItem(_ context.Context, itemID catalog.ItemID) ([]*rental.Rental, error) {
	return r.filter(func(rent *rental.Rental) bool { return rent.ItemID == itemID }), nil
}

func (r rentalRepository) ListByRenter(_ context.Context, renterID string) ([]*rental.Rental, error) {
	return r.filter(func(rent *rental.Rental) bool { return rent.RenterID == renterID }), nil
}

func (r rentalRepository) ListByOwner(_ context.Context, ownerID string) ([]*rental.Rental, error) {
	return r.filter(func(rent *rental.Rental) bool { return rent.OwnerID == ownerID }), nil
}

func (r rentalRepository) ListStale(_ context.Context, day time.Time) ([]*rental.Rental, error) {
	return r.filter(func(rent *rental.Rental) bool {
		return (rent.Status == rental.StatusPending || rent.Status == rental.StatusOwnerAccepted) && rent.Period.Start.Before(day)
	}), nil
}

type availabilityRepository struct{ u *Unit }

func (r availabilityRepository) merged(itemID catalog.ItemID) map[time.Time]availability.Day {
	out := make(map[time.Time]availability.Day)
	r.u.store.mu.RLock()
	for date, d := range r.u.store.days[itemID] {
		out[date] = d
	}
	r.u.store.mu.RUnlock()
	for date, d := range r.u.days[itemID] {
		out[date] = d
	}
	return out
}

func (r availabilityRepository) Range(_ context.Context, itemID catalog.ItemID, window daterange.DateRange) ([]availability.Day, error) {
	var out []availability.Day
	for date, d := range r.merged(itemID) {
		if window.Contains(date) {
			out = append(out, d)
		}
	}
	sortDays(out)
	return out, nil
}

func (r availabilityRepository) ByRental(_ context.Context, rentalID string) ([]availability.Day, error) {
	items := make(map[catalog.ItemID]struct{})
	r.u.store.mu.RLock()
	for id := range r.u.store.days {
		items[id] = struct{}{}
	}
	r.u.store.mu.RUnlock()
	for id := range r.u.days {
		items[id] = struct{}{}
	}
	var out []availability.Day
	for id := range items {
		for _, d := range r.merged(id) {
			if d.RentalID == rentalID {
				out = append(out, d)
			}
		}
	}
	sortDays(out)
	return out, nil
}

func (r availabilityRepository) Save(_ context.Context, days []availability.Day) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	for _, d := range days {
		d.Date = daterange.Day(d.Date)
		if r.u.days[d.ItemID] == nil {
			r.u.days[d.ItemID] = make(map[time.Time]availability.Day)
		}
		r.u.days[d.ItemID][d.Date] = d
	}
	return nil
}
