package repository

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubPool struct {
	execSQL  []string
	execArgs [][]any
	execErr  error

	batchResults *stubBatchResults
	queuedBatch  *pgx.Batch

	querySQL  string
	queryArgs []any
	rowsData  [][]any
	queryErr  error

	rowSQL    string
	rowArgs   []any
	rowValues []any
	rowErr    error
}

func (s *stubPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execSQL = append(s.execSQL, sql)
	s.execArgs = append(s.execArgs, args)
	return pgconn.CommandTag{}, s.execErr
}

func (s *stubPool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	s.queuedBatch = b
	if s.batchResults == nil {
		s.batchResults = &stubBatchResults{}
	}
	return s.batchResults
}

func (s *stubPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.querySQL = sql
	s.queryArgs = args
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return &stubRows{data: s.rowsData}, nil
}

func (s *stubPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.rowSQL = sql
	s.rowArgs = args
	return &stubRow{values: s.rowValues, err: s.rowErr}
}

type stubBatchResults struct {
	execCalls int
	failAt    int
	err       error
}

func (s *stubBatchResults) Exec() (pgconn.CommandTag, error) {
	s.execCalls++
	if s.err != nil && s.execCalls == s.failAt {
		return pgconn.CommandTag{}, s.err
	}
	return pgconn.CommandTag{}, nil
}

func (s *stubBatchResults) Query() (pgx.Rows, error) { return &stubRows{}, nil }

func (s *stubBatchResults) QueryRow() pgx.Row { return &stubRow{} }

func (s *stubBatchResults) Close() error { return nil }

type stubRows struct {
	data [][]any
	idx  int
}

func (r *stubRows) Close() {}

func (r *stubRows) Err() error { return nil }

func (r *stubRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return fmt.Errorf("invalid scan index")
	}
	return assignAll(r.data[r.idx-1], dest)
}

func (r *stubRows) Values() ([]any, error) { return nil, nil }

func (r *stubRows) RawValues() [][]byte { return nil }

func (r *stubRows) Conn() *pgx.Conn { return nil }

type stubRow struct {
	values []any
	err    error
}

func (r *stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assignAll(r.values, dest)
}

// assignAll copies row values into scan targets. A nil value zeroes the
// target, which is how NULL lands in pointer columns.
func assignAll(row []any, dest []any) error {
	if len(row) != len(dest) {
		return fmt.Errorf("scan: %d values for %d targets", len(row), len(dest))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d)
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("scan target %d is %T", i, d)
		}
		elem := target.Elem()
		if row[i] == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		v := reflect.ValueOf(row[i])
		switch {
		case v.Type().AssignableTo(elem.Type()):
			elem.Set(v)
		case elem.Kind() == reflect.Pointer && v.Type().AssignableTo(elem.Type().Elem()):
			p := reflect.New(elem.Type().Elem())
			p.Elem().Set(v)
			elem.Set(p)
		default:
			return fmt.Errorf("cannot scan %T into %T", row[i], d)
		}
	}
	return nil
}
