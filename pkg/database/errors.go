package database

import (
	"strings"

	"github.com/idcheck/mrzscan/pkg/errors"
	"github.com/lib/pq"
)

// constraintFields maps audit table CHECK constraints to the field and
// message reported back to the caller.
var constraintFields = map[string][2]string{
	"mrz_scan_audit_input_kind_valid": {"input_kind", "must be one of: text, image"},
	"mrz_scan_audit_status_valid":     {"status", "must be one of: completed, failed"},
}

// MapPQError translates integrity violations raised by PostgreSQL into
// AppErrors. It returns nil for any other error so the caller can wrap it.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code.Name() {
	case "check_violation":
		if f, ok := constraintFields[pqErr.Constraint]; ok {
			return errors.Validation(map[string]string{f[0]: f[1]})
		}
		return errors.BadRequest("data validation failed: " + pqErr.Constraint)

	case "unique_violation":
		if strings.HasSuffix(pqErr.Constraint, "job_id_key") {
			return errors.Conflict("this scan job was already recorded")
		}
		return errors.Conflict("a record with these values already exists")

	case "not_null_violation":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{col: "must not be empty"})
	}
	return nil
}
