package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func employeeHandlers() repository.ModelHandlers[*employeeRecord] {
	return repository.ModelHandlers[*employeeRecord]{
		NewRecord: func() *employeeRecord {
			return &employeeRecord{}
		},
		GetID: func(record *employeeRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *employeeRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *employeeRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func guarantorHandlers() repository.ModelHandlers[*guarantorRecord] {
	return repository.ModelHandlers[*guarantorRecord]{
		NewRecord: func() *guarantorRecord {
			return &guarantorRecord{}
		},
		GetID: func(record *guarantorRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *guarantorRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *guarantorRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func grantTypeHandlers() repository.ModelHandlers[*grantTypeRecord] {
	return repository.ModelHandlers[*grantTypeRecord]{
		NewRecord: func() *grantTypeRecord {
			return &grantTypeRecord{}
		},
		GetID: func(record *grantTypeRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *grantTypeRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *grantTypeRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func loanHandlers() repository.ModelHandlers[*loanRecord] {
	return repository.ModelHandlers[*loanRecord]{
		NewRecord: func() *loanRecord {
			return &loanRecord{}
		},
		GetID: func(record *loanRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *loanRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *loanRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func paymentHandlers() repository.ModelHandlers[*paymentRecord] {
	return repository.ModelHandlers[*paymentRecord]{
		NewRecord: func() *paymentRecord {
			return &paymentRecord{}
		},
		GetID: func(record *paymentRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *paymentRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *paymentRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func outboxHandlers() repository.ModelHandlers[*loanOutboxRecord] {
	return repository.ModelHandlers[*loanOutboxRecord]{
		NewRecord: func() *loanOutboxRecord {
			return &loanOutboxRecord{}
		},
		GetID: func(record *loanOutboxRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *loanOutboxRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *loanOutboxRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func notificationDispatchHandlers() repository.ModelHandlers[*notificationDispatchRecord] {
	return repository.ModelHandlers[*notificationDispatchRecord]{
		NewRecord: func() *notificationDispatchRecord {
			return &notificationDispatchRecord{}
		},
		GetID: func(record *notificationDispatchRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *notificationDispatchRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *notificationDispatchRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
