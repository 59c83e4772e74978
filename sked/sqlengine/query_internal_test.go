package sqlengine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/sked-go/sked"
)

func Test_buildSelectEventsQuery_ForPostgres(t *testing.T) {
	// setup
	repo, err := newRepository(nil, nil)
	require.NoError(t, err)

	// act
	sqlQuery, err := repo.toSQL(repo.buildSelectEventsQuery(
		sked.Between(sked.NewDate(2024, 1, 1), sked.NewDate(2024, 2, 1)),
		sked.ConcreteEventQuery{RequireNonAmended: true, OrderByOccurred: true},
	))

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `FROM "events" AS "e"`)
	assert.Contains(t, sqlQuery, `EXISTS (SELECT 1 FROM "events" AS "a"`)
	assert.Contains(t, sqlQuery, `"a"."amended_from" = "e"."id"`)
	assert.Contains(t, sqlQuery, `AS "amended"`)
	assert.Contains(t, sqlQuery, `("e"."occurred" >= '2024-01-01')`)
	assert.Contains(t, sqlQuery, `("e"."occurred" < '2024-02-01')`)
	assert.Contains(t, sqlQuery, `NOT EXISTS (SELECT 1`)
	assert.Contains(t, sqlQuery, `ORDER BY "e"."occurred" ASC, "e"."created_ms" ASC, "e"."id" ASC`)
}

func Test_buildSelectEventsQuery_When_WindowIsUnboundedAndUnordered(t *testing.T) {
	// setup
	repo, err := newRepository(nil, nil)
	require.NoError(t, err)

	// act
	sqlQuery, err := repo.toSQL(repo.buildSelectEventsQuery(sked.Unbounded(), sked.ConcreteEventQuery{}))

	// assert
	require.NoError(t, err)
	assert.NotContains(t, sqlQuery, "NOT EXISTS")
	assert.NotContains(t, sqlQuery, "ORDER BY")
	assert.NotContains(t, sqlQuery, `"occurred" >=`)
}

func Test_buildSelectTemplatesQuery_When_WindowHasOnlyALowerBound(t *testing.T) {
	// setup
	repo, err := newRepository(nil, []Option{WithDialect(DialectSQLite), WithTemplateTableName("tpl")})
	require.NoError(t, err)

	// act
	sqlQuery, err := repo.toSQL(repo.buildSelectTemplatesQuery(sked.From(sked.NewDate(2024, 1, 1))))

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, "`range_upper` > '2024-01-01'")
	assert.NotContains(t, sqlQuery, "`range_lower` < '")
}

func Test_buildInsertEventQuery_When_Amending_ForPostgres(t *testing.T) {
	// setup
	repo, err := newRepository(nil, nil)
	require.NoError(t, err)

	// act
	sqlQuery, err := repo.buildInsertEventQuery(sked.ConcreteEvent{
		ID:          uuid.New(),
		Occurred:    sked.NewDate(2024, 1, 2),
		Fields:      sked.Fields{"value": 1},
		AmendedFrom: mo.Some(uuid.New()),
	})

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, "INSERT INTO \"events\"")
	assert.Contains(t, sqlQuery, "'2024-01-02'::date")
	assert.Contains(t, sqlQuery, "'{\"value\":1}'::jsonb")
	assert.Contains(t, sqlQuery, "(EXISTS (SELECT 1 FROM \"events\" WHERE (\"id\" = ")
	assert.Contains(t, sqlQuery, "NOT EXISTS (SELECT 1 FROM \"events\" WHERE (\"amended_from\" = ")
}

func Test_buildInsertEventQuery_When_Materializing_ForSQLite(t *testing.T) {
	// setup
	repo, err := newRepository(nil, []Option{WithDialect(DialectSQLite)})
	require.NoError(t, err)
	tpl := uuid.New()

	// act
	sqlQuery, err := repo.buildInsertEventQuery(sked.ConcreteEvent{
		ID:             uuid.New(),
		Occurred:       sked.NewDate(2024, 1, 5),
		SourceTemplate: mo.Some(tpl),
	})

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, "INSERT INTO `events`")
	assert.Contains(t, sqlQuery, "WHERE NOT EXISTS (SELECT 1 FROM `events` WHERE ((`source_template` = '"+tpl.String()+"') AND (`occurred` = '2024-01-05')))")
}
