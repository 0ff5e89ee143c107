package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// scanOne 按 db tag 把首行扫描到结构体
func scanOne[T any](rows pgx.Rows) (*T, error) {
	item, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByNameLax[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, err
	}
	return item, nil
}

// scanAll 按 db tag 扫描所有行
func scanAll[T any](rows pgx.Rows) ([]*T, error) {
	return pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[T])
}
