package uow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentbook/internal/domain/availability"
	"rentbook/internal/domain/catalog"
	"rentbook/internal/domain/rental"
)

type recordingUnit struct {
	committed, rolledBack int
	commitErr             error
}

func (u *recordingUnit) Items() catalog.Repository                      { return nil }
func (u *recordingUnit) Rentals() rental.Repository                     { return nil }
func (u *recordingUnit) Availability() availability.Repository          { return nil }
func (u *recordingUnit) LockItem(context.Context, catalog.ItemID) error { return nil }
func (u *recordingUnit) Commit(context.Context) error                   { u.committed++; return u.commitErr }
func (u *recordingUnit) Rollback(context.Context) error                 { u.rolledBack++; return nil }

type singleFactory struct {
	unit *recordingUnit
	opts []TxOptions
}

func (f *singleFactory) Begin(_ context.Context, opts TxOptions) (UnitOfWork, error) {
	f.opts = append(f.opts, opts)
	return f.unit, nil
}

func TestWriteCommitsOnSuccess(t *testing.T) {
	f := &singleFactory{unit: &recordingUnit{}}
	err := Write(context.Background(), f, func(ctx context.Context, unit UnitOfWork) error {
		got, ok := FromContext(ctx)
		require.True(t, ok)
		assert.Same(t, unit, got)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.unit.committed)
	assert.Zero(t, f.unit.rolledBack)
}

func TestWriteRollsBackOnError(t *testing.T) {
	f := &singleFactory{unit: &recordingUnit{}}
	boom := errors.New("boom")
	err := Write(context.Background(), f, func(context.Context, UnitOfWork) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, f.unit.committed)
	assert.Equal(t, 1, f.unit.rolledBack)
}

func TestWriteRollsBackWhenCommitFails(t *testing.T) {
	f := &singleFactory{unit: &recordingUnit{commitErr: errors.New("lost")}}
	err := Write(context.Background(), f, func(context.Context, UnitOfWork) error { return nil })
	require.Error(t, err)
	assert.Equal(t, 1, f.unit.rolledBack)
}

func TestReadNeverCommits(t *testing.T) {
	f := &singleFactory{unit: &recordingUnit{}}
	n, err := Read(context.Background(), f, func(context.Context, UnitOfWork) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Zero(t, f.unit.committed)
	assert.Equal(t, 1, f.unit.rolledBack)
	assert.Equal(t, []TxOptions{{ReadOnly: true}}, f.opts)
}

func TestDoJoinsUnitFromContext(t *testing.T) {
	outer := &recordingUnit{}
	f := &singleFactory{unit: &recordingUnit{}}
	ctx := With(context.Background(), outer)

	err := Write(ctx, f, func(_ context.Context, unit UnitOfWork) error {
		assert.Same(t, outer, unit)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, f.opts)
	assert.Zero(t, outer.committed)
}

func TestDoWithoutFactory(t *testing.T) {
	err := Write(context.Background(), nil, func(context.Context, UnitOfWork) error { return nil })
	assert.ErrorIs(t, err, ErrUnitOfWorkMissing)
}
