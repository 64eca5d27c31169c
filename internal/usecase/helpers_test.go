package usecase_test

import (
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/iho/ledgercore/internal/usecase/mocks"
)

type uowMocks struct {
	factory      *mocks.MockUnitOfWorkFactory
	uow          *mocks.MockUnitOfWork
	accounts     *mocks.MockChartOfAccountsRepository
	transactions *mocks.MockLedgerTransactionRepository
	idGen        *mocks.MockIDGenerator
}

// newUoWMocks wires a factory that hands out one unit of work exposing mocked repositories.
func newUoWMocks(t *testing.T) *uowMocks {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := &uowMocks{
		factory:      mocks.NewMockUnitOfWorkFactory(ctrl),
		uow:          mocks.NewMockUnitOfWork(ctrl),
		accounts:     mocks.NewMockChartOfAccountsRepository(ctrl),
		transactions: mocks.NewMockLedgerTransactionRepository(ctrl),
		idGen:        mocks.NewMockIDGenerator(ctrl),
	}

	m.factory.EXPECT().Begin(gomock.Any()).Return(m.uow, nil).AnyTimes()
	m.uow.EXPECT().Accounts().Return(m.accounts).AnyTimes()
	m.uow.EXPECT().Transactions().Return(m.transactions).AnyTimes()

	return m
}

func (m *uowMocks) expectCommit() {
	m.uow.EXPECT().Commit(gomock.Any()).Return(nil)
}

func (m *uowMocks) expectRollback() {
	m.uow.EXPECT().Rollback(gomock.Any()).Return(nil)
}
