package sqlengine

import (
	"context"
	"fmt"
)

type columnTypes struct {
	uuid      string
	date      string
	json      string
	timestamp string
	text      string
}

var dialectColumnTypes = map[string]columnTypes{
	DialectPostgres: {uuid: "UUID", date: "DATE", json: "JSONB", timestamp: "BIGINT", text: "TEXT"},
	DialectSQLite:   {uuid: "TEXT", date: "DATE", json: "TEXT", timestamp: "INTEGER", text: "TEXT"},
}

// CreateSchema creates the tables and indexes if they do not exist yet.
func (r *Repository) CreateSchema(ctx context.Context) error {
	types := dialectColumnTypes[r.dialect]

	statements := []string{
		fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %[1]s (
				%[2]s %[9]s PRIMARY KEY,
				%[3]s %[10]s NOT NULL,
				%[4]s %[12]s NOT NULL,
				%[5]s %[11]s NOT NULL,
				%[6]s %[11]s NOT NULL,
				%[7]s %[9]s NULL,
				%[8]s %[9]s NULL
			)`,
			r.eventTableName, colID, colOccurred, colCreatedMS, colTags, colFields, colAmendedFrom, colSourceTemplate,
			types.uuid, types.date, types.json, types.timestamp,
		),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_%[2]s_idx ON %[1]s (%[2]s, %[3]s)`, r.eventTableName, colOccurred, colCreatedMS),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_%[2]s_idx ON %[1]s (%[2]s)`, r.eventTableName, colAmendedFrom),
		fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %[1]s (
				%[2]s %[9]s PRIMARY KEY,
				%[3]s %[13]s NOT NULL,
				%[4]s %[10]s NULL,
				%[5]s %[10]s NULL,
				%[6]s %[11]s NOT NULL,
				%[7]s %[11]s NOT NULL,
				%[8]s %[12]s NOT NULL
			)`,
			r.templateTableName, colID, colRule, colRangeLower, colRangeUpper, colTags, colFactory, colCreatedMS,
			types.uuid, types.date, types.json, types.timestamp, types.text,
		),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_range_idx ON %[1]s (%[2]s, %[3]s)`, r.templateTableName, colRangeLower, colRangeUpper),
		fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %[1]s (
				%[2]s %[6]s PRIMARY KEY,
				%[3]s %[7]s NOT NULL,
				%[4]s %[8]s NOT NULL,
				%[5]s %[9]s NOT NULL
			)`,
			r.accrualTableName, colID, colAccruedUntil, colAmounts, colCreatedMS,
			types.uuid, types.date, types.json, types.timestamp,
		),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_%[2]s_idx ON %[1]s (%[2]s, %[3]s)`, r.accrualTableName, colAccruedUntil, colCreatedMS),
	}

	for _, statement := range statements {
		if _, err := r.executeStatement(ctx, statement, logActionCreateSchema); err != nil {
			return err
		}
	}

	r.logOperation(logMsgSchemaCreated, logAttrDialect, r.dialect)

	return nil
}
