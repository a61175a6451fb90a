// Package merge implements the pure row-set reconciliation at the heart of
// the storage engine. Given an existing partition's rows, an incoming batch,
// a primary key and a write mode, it produces a new row set plus
// insert/update/skip counts. Inputs are never aliased into the output.
//
// All three algorithms are order-free over the primary key set, with one
// shared tie-break: when the incoming batch contains duplicate primary keys,
// the last-occurring row for a key wins.
package merge

import (
	"fmt"

	"github.com/xtxerr/pricelake/internal/errors"
	"github.com/xtxerr/pricelake/internal/lake/types"
)

// Result holds the merged row set and per-row accounting.
//
// Invariant: Inserted + Updated + Skipped == len(incoming) for Upsert and
// Append; for InsertOverwrite, Inserted == len(incoming) and the other two
// are zero.
type Result struct {
	Rows     []types.PriceBar
	Inserted int
	Updated  int
	Skipped  int
}

// Merge dispatches on the write mode.
func Merge(existing, incoming []types.PriceBar, primaryKey []string, mode types.WriteMode) (Result, error) {
	switch mode {
	case types.WriteModeUpsert:
		return Upsert(existing, incoming, primaryKey), nil
	case types.WriteModeAppend:
		return Append(existing, incoming, primaryKey), nil
	case types.WriteModeInsertOverwrite:
		return InsertOverwrite(existing, incoming, primaryKey), nil
	default:
		return Result{}, fmt.Errorf("%w: %q", errors.ErrInvalidWriteMode, mode)
	}
}

// Upsert inserts rows with new keys and updates rows whose non-key values
// changed; rows equal to the existing row (NULL-aware on adj_close) are
// skipped with the existing values retained.
func Upsert(existing, incoming []types.PriceBar, primaryKey []string) Result {
	byKey := indexByKey(existing, primaryKey)

	var res Result
	for i := range incoming {
		row := &incoming[i]
		old, ok := byKey[row.Key(primaryKey)]
		switch {
		case !ok:
			res.Inserted++
		case old.EqualMeasures(row, primaryKey):
			res.Skipped++
		default:
			res.Updated++
		}
	}

	winners, order := lastWins(incoming, primaryKey)

	res.Rows = make([]types.PriceBar, 0, len(existing)+len(order))
	for i := range existing {
		if _, touched := winners[existing[i].Key(primaryKey)]; !touched {
			res.Rows = append(res.Rows, existing[i])
		}
	}
	for _, key := range order {
		res.Rows = append(res.Rows, winners[key])
	}
	return res
}

// Append inserts rows with new keys only. Rows whose key already exists are
// skipped entirely, whether or not their values differ; Updated is always 0.
func Append(existing, incoming []types.PriceBar, primaryKey []string) Result {
	byKey := indexByKey(existing, primaryKey)

	var fresh []types.PriceBar
	var res Result
	for i := range incoming {
		if _, ok := byKey[incoming[i].Key(primaryKey)]; ok {
			res.Skipped++
			continue
		}
		res.Inserted++
		fresh = append(fresh, incoming[i])
	}

	winners, order := lastWins(fresh, primaryKey)

	res.Rows = make([]types.PriceBar, 0, len(existing)+len(order))
	res.Rows = append(res.Rows, existing...)
	for _, key := range order {
		res.Rows = append(res.Rows, winners[key])
	}
	return res
}

// InsertOverwrite removes every existing row whose key appears in the
// incoming batch, then writes the whole batch. This is a windowed replace:
// existing rows outside the batch's key set are preserved untouched.
func InsertOverwrite(existing, incoming []types.PriceBar, primaryKey []string) Result {
	winners, order := lastWins(incoming, primaryKey)

	res := Result{Inserted: len(incoming)}
	res.Rows = make([]types.PriceBar, 0, len(existing)+len(order))
	for i := range existing {
		if _, replaced := winners[existing[i].Key(primaryKey)]; !replaced {
			res.Rows = append(res.Rows, existing[i])
		}
	}
	for _, key := range order {
		res.Rows = append(res.Rows, winners[key])
	}
	return res
}

// indexByKey maps primary key strings to rows.
func indexByKey(rows []types.PriceBar, primaryKey []string) map[string]*types.PriceBar {
	m := make(map[string]*types.PriceBar, len(rows))
	for i := range rows {
		m[rows[i].Key(primaryKey)] = &rows[i]
	}
	return m
}

// lastWins collapses a batch to one row per key (the last occurrence) and
// returns the keys in order of first appearance, keeping output stable.
func lastWins(rows []types.PriceBar, primaryKey []string) (map[string]types.PriceBar, []string) {
	winners := make(map[string]types.PriceBar, len(rows))
	var order []string
	for i := range rows {
		key := rows[i].Key(primaryKey)
		if _, seen := winners[key]; !seen {
			order = append(order, key)
		}
		winners[key] = rows[i]
	}
	return winners, order
}
