package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/asaalabbadi2-web/goldbooks_backend/config"
)

var mutex sync.Mutex

const maxSequenceAttempts = 5

// GetYearSequence issues the next sequence number for T, scoped per business
// and calendar year. Redis holds the hot counter; when it is cold (or absent)
// the counter is rebuilt from the DB max. Uniqueness is re-checked against the
// DB before a number is handed out, so a stale counter can never double-issue.
func GetYearSequence[T any](ctx context.Context, businessId string, year int) (int64, error) {
	var model T
	_ = model

	mutex.Lock()
	defer mutex.Unlock()

	cacheKey := fmt.Sprintf("%s-%s_seq:%d", businessId, strings.ToLower(GetTypeName[T]()), year)
	var seqNo int64
	var err error
	db := config.GetDB()

	for attempt := 0; attempt < maxSequenceAttempts; attempt++ {
		seqNo, err = config.GetRedisCounter(ctx, cacheKey)
		if err != nil {
			return 0, err
		}
		// cold counter (redis empty or unavailable): rebuild from db max
		if seqNo <= 1 {
			var dbSeq *int64
			var m T
			if err := db.WithContext(ctx).Model(&m).Select("max(sequence_no)").
				Where("business_id = ? AND entry_year = ?", businessId, year).
				Scan(&dbSeq).Error; err != nil {
				return 0, err
			}
			if dbSeq == nil {
				seqNo = 0
			} else {
				seqNo = *dbSeq
			}
			seqNo++
			if err := config.SetRedisObject(cacheKey, &seqNo, 0); err != nil {
				return 0, err
			}
		}
		// check if sequence number already exists in db
		err = ValidateUniqueWhere[T](ctx, businessId, "entry_year = ? AND sequence_no = ?", year, seqNo)
		if err == nil {
			return seqNo, nil
		}
	}
	return 0, errors.New("could not obtain a unique sequence number")
}
