package repository

import (
	"github.com/jackc/pgx/v5"
	"github.com/sakashimaa/electro-shop/internal/domain"
)

func (s *RepositoryTestSuite) TestLockForUpdate() {
	a := s.seedProduct(5)
	b := s.seedProduct(7)

	err := s.inTx(func(tx pgx.Tx) error {
		snaps, err := s.inventory.LockForUpdate(s.Ctx, tx, []int64{b, a, 999})
		s.Require().NoError(err)
		s.Len(snaps, 2)
		s.EqualValues(5, snaps[a].Stock)
		s.EqualValues(7, snaps[b].Stock)
		s.Equal("Pixel 9", snaps[a].Name)
		return nil
	})
	s.Require().NoError(err)
}

func (s *RepositoryTestSuite) TestReserve() {
	id := s.seedProduct(5)

	err := s.inTx(func(tx pgx.Tx) error {
		return s.inventory.Reserve(s.Ctx, tx, id, 3, 5)
	})
	s.Require().NoError(err)
	s.EqualValues(2, s.stockOf(id))

	// stale expectation
	err = s.inTx(func(tx pgx.Tx) error {
		return s.inventory.Reserve(s.Ctx, tx, id, 1, 5)
	})
	s.ErrorIs(err, domain.ErrStockConflict)

	err = s.inTx(func(tx pgx.Tx) error {
		return s.inventory.Reserve(s.Ctx, tx, id, 3, 2)
	})
	s.ErrorIs(err, domain.ErrStockConflict)
	s.EqualValues(2, s.stockOf(id))
}

func (s *RepositoryTestSuite) TestDecrementStockIfAtLeast() {
	id := s.seedProduct(5)

	err := s.inTx(func(tx pgx.Tx) error {
		return s.inventory.DecrementStockIfAtLeast(s.Ctx, tx, id, 5)
	})
	s.Require().NoError(err)
	s.EqualValues(0, s.stockOf(id))

	err = s.inTx(func(tx pgx.Tx) error {
		return s.inventory.DecrementStockIfAtLeast(s.Ctx, tx, id, 1)
	})
	s.ErrorIs(err, domain.ErrStockConflict)
	s.EqualValues(0, s.stockOf(id))
}

func (s *RepositoryTestSuite) TestRestock() {
	id := s.seedProduct(1)

	s.Require().NoError(s.inTx(func(tx pgx.Tx) error {
		return s.inventory.Restock(s.Ctx, tx, id, 4)
	}))
	s.EqualValues(5, s.stockOf(id))

	s.Require().NoError(s.inTx(func(tx pgx.Tx) error {
		return s.inventory.Restock(s.Ctx, tx, 999, 4)
	}))
}

func (s *RepositoryTestSuite) TestRollbackLeavesStock() {
	id := s.seedProduct(5)

	tx, err := s.DbPool.Begin(s.Ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.inventory.DecrementStockIfAtLeast(s.Ctx, tx, id, 3))
	s.Require().NoError(tx.Rollback(s.Ctx))

	s.EqualValues(5, s.stockOf(id))
}
