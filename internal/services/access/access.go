// Package access вычисляет уровень доступа пользователя по записи
// пользователя. Это единственное место, где определяется, может ли
// пользователь создавать новые записи дневника.
package access

import (
	"time"

	"github.com/magabrotheeeer/journal-accounts/internal/models"
)

// Evaluate возвращает уровень доступа на момент now. Правила проверяются
// по порядку, побеждает первое сработавшее:
//
//  1. pro_override → pro
//  2. subscription_status = active → pro
//  3. пробный период идёт (now < trial_end_at) → trial
//  4. пробный период закончился → expired
//  5. первая запись ещё не написана → trial
//  6. иначе → expired
//
// Отсутствующая запись даёт expired.
func Evaluate(user *models.UserRecord, now time.Time) models.AccessLevel {
	switch {
	case user == nil:
		return models.AccessExpired
	case user.ProOverride:
		return models.AccessPro
	case user.SubscriptionStatus == models.StatusActive:
		return models.AccessPro
	case user.TrialStarted() && now.Before(*user.TrialEndAt):
		return models.AccessTrial
	case user.TrialStarted():
		return models.AccessExpired
	case !user.HasWrittenFirstEntry:
		return models.AccessTrial
	default:
		return models.AccessExpired
	}
}

// CanCreateEntries сообщает, разрешено ли создавать записи на уровне level.
func CanCreateEntries(level models.AccessLevel) bool {
	return level != models.AccessExpired
}
