package sqlengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/AntonStoeckl/sked-go/sked"
)

// AppendEvent stores ev under a fresh ID and creation time and returns the stored event.
// AmendedFrom is ignored, use Amend to store amendments.
func (r *Repository) AppendEvent(ctx context.Context, ev sked.ConcreteEvent) (sked.ConcreteEvent, error) {
	ev.AmendedFrom = mo.None[uuid.UUID]()

	return r.insertEvent(ctx, ev)
}

// Materialize stores a virtual occurrence, as produced by Engine.Overlap, as a concrete event.
// Later overlaps yield the stored event instead of the occurrence. Fails with
// ErrAlreadyMaterialized if an event of the same template on the same date is already stored.
func (r *Repository) Materialize(ctx context.Context, occurrence sked.ConcreteEvent) (sked.ConcreteEvent, error) {
	if !occurrence.IsVirtual() || occurrence.SourceTemplate.IsAbsent() {
		return sked.ConcreteEvent{}, ErrNotAnOccurrence
	}

	occurrence.AmendedFrom = mo.None[uuid.UUID]()

	return r.insertEvent(ctx, occurrence)
}

// Amend stores ev as a correction of the event with ID original. The amended event stays in
// storage but is no longer part of any overlap. Fails with ErrUnknownEvent if original does not exist
// and with ErrAlreadyAmended if original already has an amendment; amend that one instead.
func (r *Repository) Amend(ctx context.Context, original uuid.UUID, ev sked.ConcreteEvent) (sked.ConcreteEvent, error) {
	ev.AmendedFrom = mo.Some(original)

	return r.insertEvent(ctx, ev)
}

func (r *Repository) insertEvent(ctx context.Context, ev sked.ConcreteEvent) (sked.ConcreteEvent, error) {
	id, idErr := uuid.NewV7()
	if idErr != nil {
		return sked.ConcreteEvent{}, idErr
	}

	ev.ID = id
	ev.Created = r.now()
	ev.Amended = false

	sqlQuery, buildErr := r.buildInsertEventQuery(ev)
	if buildErr != nil {
		return sked.ConcreteEvent{}, buildErr
	}

	rowsAffected, execErr := r.executeStatement(ctx, sqlQuery, logActionAppendEvent)
	if execErr != nil {
		return sked.ConcreteEvent{}, execErr
	}

	if rowsAffected == 0 {
		return sked.ConcreteEvent{}, r.rejectionOf(ctx, ev)
	}

	r.logOperation(logMsgEventAppended, logAttrEventID, ev.ID.String(), logAttrDate, ev.Occurred.String())

	return ev, nil
}

// buildInsertEventQuery builds a plain insert, or an INSERT ... SELECT that only inserts when
// the guard holds: an amendment needs an existing, not yet amended original and an occurrence
// of a template must not be stored twice for the same date.
func (r *Repository) buildInsertEventQuery(ev sked.ConcreteEvent) (string, error) {
	tagsJSON, tagsErr := encodeJSON(ev.Tags)
	if tagsErr != nil {
		return "", tagsErr
	}

	fieldsJSON, fieldsErr := encodeJSON(ev.Fields)
	if fieldsErr != nil {
		return "", fieldsErr
	}

	builder := r.builder()
	cols := []any{colID, colOccurred, colCreatedMS, colTags, colFields, colAmendedFrom, colSourceTemplate}

	guard := r.insertGuard(ev)
	if guard == nil {
		insertStmt := builder.
			Insert(r.eventTableName).
			Cols(cols...).
			Vals(goqu.Vals{
				ev.ID.String(),
				ev.Occurred.String(),
				ev.Created.UnixMilli(),
				tagsJSON,
				fieldsJSON,
				nil,
				nullableUUID(ev.SourceTemplate),
			})

		return r.toSQL(insertStmt)
	}

	selectStmt := builder.
		Select(
			r.cast("uuid", ev.ID.String()),
			r.cast("date", ev.Occurred.String()),
			r.cast("bigint", ev.Created.UnixMilli()),
			r.cast("jsonb", tagsJSON),
			r.cast("jsonb", fieldsJSON),
			r.cast("uuid", nullableUUID(ev.AmendedFrom)),
			r.cast("uuid", nullableUUID(ev.SourceTemplate)),
		).
		Where(guard)

	insertStmt := builder.
		Insert(r.eventTableName).
		Cols(cols...).
		FromQuery(selectStmt)

	return r.toSQL(insertStmt)
}

// insertGuard returns the condition an event must satisfy to be inserted, nil if there is none.
func (r *Repository) insertGuard(ev sked.ConcreteEvent) exp.Expression {
	if original, ok := ev.AmendedFrom.Get(); ok {
		return goqu.And(
			goqu.L("EXISTS ?", r.selectEventWithID(original)),
			goqu.L("NOT EXISTS ?", r.selectAmendmentsOf(original)),
		)
	}

	if tpl, ok := ev.SourceTemplate.Get(); ok {
		return goqu.L("NOT EXISTS ?", r.selectOccurrence(tpl, ev.Occurred))
	}

	return nil
}

func (r *Repository) selectEventWithID(id uuid.UUID) *goqu.SelectDataset {
	return r.builder().
		From(r.eventTableName).
		Select(goqu.L("1")).
		Where(goqu.C(colID).Eq(id.String()))
}

func (r *Repository) selectAmendmentsOf(original uuid.UUID) *goqu.SelectDataset {
	return r.builder().
		From(r.eventTableName).
		Select(goqu.L("1")).
		Where(goqu.C(colAmendedFrom).Eq(original.String()))
}

func (r *Repository) selectOccurrence(tpl uuid.UUID, occurred sked.Date) *goqu.SelectDataset {
	return r.builder().
		From(r.eventTableName).
		Select(goqu.L("1")).
		Where(
			goqu.C(colSourceTemplate).Eq(tpl.String()),
			goqu.C(colOccurred).Eq(occurred.String()),
		)
}

// rejectionOf explains why the guarded insert of ev affected no row.
func (r *Repository) rejectionOf(ctx context.Context, ev sked.ConcreteEvent) error {
	original, isAmendment := ev.AmendedFrom.Get()
	if !isAmendment {
		return fmt.Errorf("%w: template %s on %s", ErrAlreadyMaterialized, ev.SourceTemplate.OrEmpty(), ev.Occurred)
	}

	exists, err := r.exists(ctx, r.selectEventWithID(original))
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, original)
	}

	return fmt.Errorf("%w: %s", ErrAlreadyAmended, original)
}

func (r *Repository) exists(ctx context.Context, selectStmt *goqu.SelectDataset) (bool, error) {
	sqlQuery, buildErr := r.toSQL(selectStmt.Limit(1))
	if buildErr != nil {
		return false, buildErr
	}

	rows, queryErr := r.executeQuery(ctx, sqlQuery, logActionCheckEvent)
	if queryErr != nil {
		return false, queryErr
	}
	defer r.closeRows(rows)

	found := rows.Next()
	if rowsErr := rows.Err(); rowsErr != nil {
		return false, errors.Join(ErrQueryingFailed, rowsErr)
	}

	return found, nil
}

func nullableUUID(id mo.Option[uuid.UUID]) any {
	if value, ok := id.Get(); ok {
		return value.String()
	}

	return nil
}

func nullableDate(d mo.Option[sked.Date]) any {
	if value, ok := d.Get(); ok {
		return value.String()
	}

	return nil
}

// AppendTemplate validates and stores tpl under a fresh ID and returns the stored template.
func (r *Repository) AppendTemplate(ctx context.Context, tpl sked.RecurringEventTemplate) (sked.RecurringEventTemplate, error) {
	if err := validateTemplate(tpl); err != nil {
		return sked.RecurringEventTemplate{}, err
	}

	id, idErr := uuid.NewV7()
	if idErr != nil {
		return sked.RecurringEventTemplate{}, idErr
	}

	tpl.ID = id

	tagsJSON, tagsErr := encodeJSON(tpl.Tags)
	if tagsErr != nil {
		return sked.RecurringEventTemplate{}, tagsErr
	}

	factoryJSON, factoryErr := encodeJSON(tpl.Factory)
	if factoryErr != nil {
		return sked.RecurringEventTemplate{}, factoryErr
	}

	insertStmt := r.builder().
		Insert(r.templateTableName).
		Cols(colID, colRule, colRangeLower, colRangeUpper, colTags, colFactory, colCreatedMS).
		Vals(goqu.Vals{
			tpl.ID.String(),
			tpl.Rule,
			nullableDate(tpl.Range.Lower),
			nullableDate(tpl.Range.Upper),
			tagsJSON,
			factoryJSON,
			r.now().UnixMilli(),
		})

	sqlQuery, buildErr := r.toSQL(insertStmt)
	if buildErr != nil {
		return sked.RecurringEventTemplate{}, buildErr
	}

	if _, execErr := r.executeStatement(ctx, sqlQuery, logActionAppendTemplate); execErr != nil {
		return sked.RecurringEventTemplate{}, execErr
	}

	r.logOperation(logMsgTemplateAppended, logAttrTemplateID, tpl.ID.String())

	return tpl, nil
}

func validateTemplate(tpl sked.RecurringEventTemplate) error {
	if err := tpl.Range.Validate(); err != nil {
		return errors.Join(ErrInvalidTemplate, err)
	}

	// any anchor date will do, the rule text is what gets checked
	dates, evalErr := sked.RRuleEvaluator{}.Evaluate(tpl.Rule, tpl.Range.Lower.OrElse(sked.NewDate(2000, 1, 1)))
	if evalErr != nil {
		return errors.Join(ErrInvalidTemplate, evalErr)
	}

	return dates.Close()
}

// SaveAccrual implements sked.AccrualStore. Checkpoints are append-only.
func (r *Repository) SaveAccrual(ctx context.Context, accrual sked.Accrual) error {
	id, idErr := uuid.NewV7()
	if idErr != nil {
		return idErr
	}

	created := accrual.Created
	if created.IsZero() {
		created = r.now()
	}

	amountsJSON, encodeErr := encodeJSON(accrual.Values)
	if encodeErr != nil {
		return encodeErr
	}

	insertStmt := r.builder().
		Insert(r.accrualTableName).
		Cols(colID, colAccruedUntil, colAmounts, colCreatedMS).
		Vals(goqu.Vals{id.String(), accrual.Date.String(), amountsJSON, created.UnixMilli()})

	sqlQuery, buildErr := r.toSQL(insertStmt)
	if buildErr != nil {
		return buildErr
	}

	if _, execErr := r.executeStatement(ctx, sqlQuery, logActionSaveAccrual); execErr != nil {
		return execErr
	}

	r.logOperation(logMsgAccrualSaved, logAttrDate, accrual.Date.String())

	return nil
}
