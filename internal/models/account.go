package models

import "time"

// AccountChange описывает изменение поля scheduled_for_deletion_at.
// Публикуется при каждой записи этого поля и потребляется триггером
// обновления аккаунта.
type AccountChange struct {
	UserUID   string     `json:"user_uid"`
	Before    *time.Time `json:"before,omitempty"`
	After     *time.Time `json:"after,omitempty"`
	ChangedAt time.Time  `json:"changed_at"`
}

// Scheduled сообщает о переходе «нет удаления» → «удаление запланировано».
func (c AccountChange) Scheduled() bool {
	return c.Before == nil && c.After != nil
}

// Restored сообщает о переходе «удаление запланировано» → «нет удаления».
func (c AccountChange) Restored() bool {
	return c.Before != nil && c.After == nil
}

// AccountStatus — представление аккаунта для клиента.
type AccountStatus struct {
	User        *UserRecord `json:"user"`
	AccessLevel AccessLevel `json:"access_level"`
	CanWrite    bool        `json:"can_write"`
}
