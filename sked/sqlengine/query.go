package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/AntonStoeckl/sked-go/sked"
	"github.com/AntonStoeckl/sked-go/sked/sqlengine/internal/adapters"
)

// FindConcreteEvents implements sked.EventRepository.
//
// The amended flag is computed with an EXISTS subquery over amended_from; RequireNonAmended
// turns it into a NOT EXISTS filter. Ordered results are sorted by occurred, then creation time.
func (r *Repository) FindConcreteEvents(
	ctx context.Context,
	window sked.TimeRange,
	query sked.ConcreteEventQuery,
) (sked.Iterator[sked.ConcreteEvent], error) {

	if window.IsEmpty() {
		return sked.SliceIterator[sked.ConcreteEvent](nil), nil
	}

	sqlQuery, buildErr := r.toSQL(r.buildSelectEventsQuery(window, query))
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := r.executeQuery(ctx, sqlQuery, logActionQueryEvents)
	if queryErr != nil {
		return nil, queryErr
	}

	return newRowIterator(r, rows, scanConcreteEvent), nil
}

func (r *Repository) buildSelectEventsQuery(window sked.TimeRange, query sked.ConcreteEventQuery) *goqu.SelectDataset {
	builder := r.builder()

	amendments := builder.
		From(goqu.T(r.eventTableName).As(aliasAmendment)).
		Select(goqu.L("1")).
		Where(goqu.I(aliasAmendment + "." + colAmendedFrom).Eq(goqu.I(aliasEvent + "." + colID)))

	selectStmt := builder.
		From(goqu.T(r.eventTableName).As(aliasEvent)).
		Select(
			eventColumn(colID),
			eventColumn(colOccurred),
			eventColumn(colCreatedMS),
			eventColumn(colTags),
			eventColumn(colFields),
			eventColumn(colAmendedFrom),
			eventColumn(colSourceTemplate),
			goqu.L("EXISTS ?", amendments).As(colAmended),
		).
		Where(windowConditions(eventColumn(colOccurred), window)...)

	if query.RequireNonAmended {
		selectStmt = selectStmt.Where(goqu.L("NOT EXISTS ?", amendments))
	}

	if query.OrderByOccurred {
		selectStmt = selectStmt.Order(
			eventColumn(colOccurred).Asc(),
			eventColumn(colCreatedMS).Asc(),
			eventColumn(colID).Asc(),
		)
	}

	return selectStmt
}

func eventColumn(column string) exp.IdentifierExpression {
	return goqu.I(aliasEvent + "." + column)
}

func windowConditions(column exp.IdentifierExpression, window sked.TimeRange) []exp.Expression {
	conditions := make([]exp.Expression, 0, 2)

	if lower, ok := window.Lower.Get(); ok {
		conditions = append(conditions, column.Gte(lower.String()))
	}

	if upper, ok := window.Upper.Get(); ok {
		conditions = append(conditions, column.Lt(upper.String()))
	}

	return conditions
}

func scanConcreteEvent(rows adapters.DBRows) (sked.ConcreteEvent, error) {
	var (
		ev             sked.ConcreteEvent
		createdMS      int64
		tagsJSON       []byte
		fieldsJSON     []byte
		amendedFrom    uuid.NullUUID
		sourceTemplate uuid.NullUUID
	)

	scanErr := rows.Scan(&ev.ID, &ev.Occurred, &createdMS, &tagsJSON, &fieldsJSON, &amendedFrom, &sourceTemplate, &ev.Amended)
	if scanErr != nil {
		return sked.ConcreteEvent{}, errors.Join(ErrScanningDBRowFailed, scanErr)
	}

	tags, tagsErr := decodeJSON[sked.Tags](tagsJSON)
	if tagsErr != nil {
		return sked.ConcreteEvent{}, tagsErr
	}

	fields, fieldsErr := decodeJSON[sked.Fields](fieldsJSON)
	if fieldsErr != nil {
		return sked.ConcreteEvent{}, fieldsErr
	}

	ev.Created = time.UnixMilli(createdMS).UTC()
	ev.Tags = tags
	ev.Fields = fields
	ev.AmendedFrom = optionalUUID(amendedFrom)
	ev.SourceTemplate = optionalUUID(sourceTemplate)

	return ev, nil
}

func optionalUUID(id uuid.NullUUID) mo.Option[uuid.UUID] {
	if !id.Valid {
		return mo.None[uuid.UUID]()
	}

	return mo.Some(id.UUID)
}

// FindTemplatesOverlapping implements sked.TemplateRepository. Templates come in creation order.
func (r *Repository) FindTemplatesOverlapping(
	ctx context.Context,
	window sked.TimeRange,
) (sked.Iterator[sked.RecurringEventTemplate], error) {

	if window.IsEmpty() {
		return sked.SliceIterator[sked.RecurringEventTemplate](nil), nil
	}

	sqlQuery, buildErr := r.toSQL(r.buildSelectTemplatesQuery(window))
	if buildErr != nil {
		return nil, buildErr
	}

	rows, queryErr := r.executeQuery(ctx, sqlQuery, logActionQueryTemplates)
	if queryErr != nil {
		return nil, queryErr
	}

	return newRowIterator(r, rows, scanTemplate), nil
}

func (r *Repository) buildSelectTemplatesQuery(window sked.TimeRange) *goqu.SelectDataset {
	lower := goqu.C(colRangeLower)
	upper := goqu.C(colRangeUpper)

	selectStmt := r.builder().
		From(r.templateTableName).
		Select(colID, colRule, colRangeLower, colRangeUpper, colTags, colFactory).
		Where(goqu.Or(lower.IsNull(), upper.IsNull(), lower.Lt(upper))).
		Order(goqu.C(colCreatedMS).Asc(), goqu.C(colID).Asc())

	if windowUpper, ok := window.Upper.Get(); ok {
		selectStmt = selectStmt.Where(goqu.Or(lower.IsNull(), lower.Lt(windowUpper.String())))
	}

	if windowLower, ok := window.Lower.Get(); ok {
		selectStmt = selectStmt.Where(goqu.Or(upper.IsNull(), upper.Gt(windowLower.String())))
	}

	return selectStmt
}

func scanTemplate(rows adapters.DBRows) (sked.RecurringEventTemplate, error) {
	var (
		tpl         sked.RecurringEventTemplate
		rangeLower  sql.Null[sked.Date]
		rangeUpper  sql.Null[sked.Date]
		tagsJSON    []byte
		factoryJSON []byte
	)

	scanErr := rows.Scan(&tpl.ID, &tpl.Rule, &rangeLower, &rangeUpper, &tagsJSON, &factoryJSON)
	if scanErr != nil {
		return sked.RecurringEventTemplate{}, errors.Join(ErrScanningDBRowFailed, scanErr)
	}

	tags, tagsErr := decodeJSON[sked.Tags](tagsJSON)
	if tagsErr != nil {
		return sked.RecurringEventTemplate{}, tagsErr
	}

	factory, factoryErr := decodeJSON[sked.Fields](factoryJSON)
	if factoryErr != nil {
		return sked.RecurringEventTemplate{}, factoryErr
	}

	tpl.Range = sked.TimeRange{Lower: optionalDate(rangeLower), Upper: optionalDate(rangeUpper)}
	tpl.Tags = tags
	tpl.Factory = factory

	return tpl, nil
}

func optionalDate(d sql.Null[sked.Date]) mo.Option[sked.Date] {
	if !d.Valid {
		return mo.None[sked.Date]()
	}

	return mo.Some(d.V)
}

// LatestAccrual implements sked.AccrualStore: the most recent checkpoint dated on or before
// onOrBefore, the newest one winning among several for the same date.
func (r *Repository) LatestAccrual(ctx context.Context, onOrBefore sked.Date) (mo.Option[sked.Accrual], error) {
	none := mo.None[sked.Accrual]()

	selectStmt := r.builder().
		From(r.accrualTableName).
		Select(colAccruedUntil, colAmounts, colCreatedMS).
		Where(goqu.C(colAccruedUntil).Lte(onOrBefore.String())).
		Order(goqu.C(colAccruedUntil).Desc(), goqu.C(colCreatedMS).Desc()).
		Limit(1)

	sqlQuery, buildErr := r.toSQL(selectStmt)
	if buildErr != nil {
		return none, buildErr
	}

	rows, queryErr := r.executeQuery(ctx, sqlQuery, logActionQueryAccruals)
	if queryErr != nil {
		return none, queryErr
	}
	defer r.closeRows(rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return none, errors.Join(ErrQueryingFailed, rowsErr)
		}

		return none, nil
	}

	var (
		accrual     sked.Accrual
		amountsJSON []byte
		createdMS   int64
	)

	if scanErr := rows.Scan(&accrual.Date, &amountsJSON, &createdMS); scanErr != nil {
		r.logError(logMsgScanRowFailed, scanErr)
		return none, errors.Join(ErrScanningDBRowFailed, scanErr)
	}

	amounts, decodeErr := decodeJSON[map[string]float64](amountsJSON)
	if decodeErr != nil {
		return none, decodeErr
	}

	accrual.Values = amounts
	accrual.Created = time.UnixMilli(createdMS).UTC()

	return mo.Some(accrual), nil
}
