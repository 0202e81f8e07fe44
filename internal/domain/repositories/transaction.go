package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles units of work.
//
// ExecTx runs fn with exclusive write access to the catalog. Every mutation fn
// performs through a repository bound to the returned context commits
// together when fn returns nil and is discarded otherwise. Readers never
// observe a partially applied unit. A context that already carries a
// transaction joins it instead of nesting.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
