package postgres

import (
	"database/sql"

	"github.com/alfredjeanlab/grapio/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanFlag scans a single row into a model.FeatureFlag.
// The row must contain columns in the order defined by flagColumns.
func scanFlag(row scannable) (*model.FeatureFlag, error) {
	var f model.FeatureFlag
	if err := row.Scan(&f.Key, &f.Consumer, &f.Value); err != nil {
		return nil, err
	}
	return &f, nil
}

// scanFlags collects every remaining row of rows.
func scanFlags(rows *sql.Rows) ([]*model.FeatureFlag, error) {
	var flags []*model.FeatureFlag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}
