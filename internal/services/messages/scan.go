package messages

import (
	"database/sql"
	stderrs "errors"
	"time"
)

func parseTS(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isNoRows(err error) bool { return stderrs.Is(err, sql.ErrNoRows) }
