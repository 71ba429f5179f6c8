package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/entity-metrics/internal/testutil"
)

func TestTxOptions(t *testing.T) {
	tests := []struct {
		name string
		in   *sql.TxOptions
		want pgx.TxOptions
	}{
		{name: "nil", in: nil, want: pgx.TxOptions{}},
		{
			name: "default isolation read write",
			in:   &sql.TxOptions{},
			want: pgx.TxOptions{AccessMode: pgx.ReadWrite},
		},
		{
			name: "serializable read only",
			in:   &sql.TxOptions{Isolation: sql.LevelSerializable, ReadOnly: true},
			want: pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadOnly},
		},
		{
			name: "snapshot maps to repeatable read",
			in:   &sql.TxOptions{Isolation: sql.LevelSnapshot},
			want: pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadWrite},
		},
		{
			name: "read committed",
			in:   &sql.TxOptions{Isolation: sql.LevelReadCommitted},
			want: pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TxOptions(tt.in))
		})
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := testutil.SetupEphemeralSchemaDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `CREATE TABLE pgxutil_rows (id INT PRIMARY KEY)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTx(ctx, db, nil, func(tx pgx.Tx) error {
		if _, execErr := tx.Exec(ctx, `INSERT INTO pgxutil_rows (id) VALUES (1)`); execErr != nil {
			return execErr
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, WithTx(ctx, db, nil, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, `INSERT INTO pgxutil_rows (id) VALUES (2)`)
		return execErr
	}))

	var ids []int32
	require.NoError(t, WithConn(ctx, db, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, `SELECT id FROM pgxutil_rows ORDER BY id`)
		if qErr != nil {
			return qErr
		}
		ids, qErr = pgx.CollectRows(rows, pgx.RowTo[int32])
		return qErr
	}))
	assert.Equal(t, []int32{2}, ids)
}
