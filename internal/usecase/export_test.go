//go:build !integration

package usecase

import "time"

// SetScheduleClock replaces the clock a schedule use case reads.
func SetScheduleClock(uc ScheduleUseCase, now func() time.Time) {
	uc.(*scheduleUC).now = now
}
