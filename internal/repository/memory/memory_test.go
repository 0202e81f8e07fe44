package memory

import (
	"testing"

	"diskcatalog/internal/repository/storetest"
)

func newBackend(t *testing.T) storetest.Backend {
	db := NewDatabase()
	return storetest.Backend{
		Tree:   NewTreeStore(db),
		Ledger: NewHistoryLedger(db),
		Tx:     NewTransactionManager(db),
	}
}

func TestTreeStore(t *testing.T) {
	storetest.RunTreeStoreSuite(t, newBackend)
}

func TestHistoryLedger(t *testing.T) {
	storetest.RunHistoryLedgerSuite(t, newBackend)
}
