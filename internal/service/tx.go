package service

import "context"

// TxRunner scopes a mutation sequence to a single transaction. The
// production implementation is persistence.Postgres; nested calls join
// the transaction already carried by ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
