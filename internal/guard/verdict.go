package guard

import (
	"fmt"

	"github.com/annel0/packetguard/internal/protocol"
)

// Outcome — итог проверки или всего конвейера.
type Outcome int

const (
	// Continue — перейти к следующей проверке.
	Continue Outcome = iota
	// Drop — не применять и не исправлять. Может нести исправления,
	// если клиент уже показал изменение у себя.
	Drop
	// Reject — не применять, отправить отправителю авторитетное состояние.
	Reject
	// Fatal — Reject плюс отключение соединения (Disabled).
	Fatal
	// Kick — разорвать соединение с причиной.
	Kick
	// Commit — все проверки пройдены, изменение применено.
	Commit
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Drop:
		return "drop"
	case Reject:
		return "reject"
	case Fatal:
		return "fatal"
	case Kick:
		return "kick"
	case Commit:
		return "commit"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// RelayMode — кому пересылать принятое сообщение.
type RelayMode int

const (
	RelayNone RelayMode = iota
	RelayAll
	RelayAllExceptSender
)

func (m RelayMode) String() string {
	switch m {
	case RelayAll:
		return "all"
	case RelayAllExceptSender:
		return "all_except_sender"
	default:
		return "none"
	}
}

// Verdict — результат одной проверки.
type Verdict struct {
	Outcome     Outcome
	Reason      string
	Corrections []Correction
	Notices     []string

	// useDefault — добавить исправления, которые цепочка строит для своей записи.
	useDefault bool
	// violation — нарушение протокола (подмена индекса, значение вне диапазона).
	violation bool
}

var pass = Verdict{}

func drop() Verdict { return Verdict{Outcome: Drop} }

func reject() Verdict { return Verdict{Outcome: Reject, useDefault: true} }

func rejectWith(c ...Correction) Verdict { return Verdict{Outcome: Reject, Corrections: c} }

func fatal(reason string) Verdict {
	return Verdict{Outcome: Fatal, Reason: reason, useDefault: true}
}

func kick(reason string) Verdict { return Verdict{Outcome: Kick, Reason: reason} }

// violation — отклонение без исправления с учетом в счетчике нарушений протокола.
func violation(format string, args ...any) Verdict {
	return Verdict{Outcome: Reject, Reason: fmt.Sprintf(format, args...), violation: true}
}

// notify добавляет сообщение отправителю.
func (v Verdict) notify(msg string) Verdict {
	v.Notices = append(v.Notices, msg)
	return v
}

// with добавляет исправления.
func (v Verdict) with(c ...Correction) Verdict {
	v.Corrections = append(v.Corrections, c...)
	return v
}

// because задает причину для журнала.
func (v Verdict) because(format string, args ...any) Verdict {
	v.Reason = fmt.Sprintf(format, args...)
	return v
}

// Result — итог обработки одного сообщения.
type Result struct {
	Kind    protocol.Kind
	Outcome Outcome
	// Check — имя проверки, остановившей конвейер; пусто при Commit.
	Check  string
	Reason string

	// Исправления для отправителя (или всем, если Broadcast).
	Corrections []Correction
	// Сообщения в чат отправителю.
	Notices []string
	// Сообщения в чат всем соединениям.
	Announcements []string
	// Записи, которые нужно отправить только отправителю (WorldInfo, PasswordRequired...).
	Replies []protocol.Record

	// Пересылка по Relay: записи Broadcast, а если их нет — само принятое сообщение.
	Relay     RelayMode
	Broadcast []protocol.Record

	// Disabled — это сообщение перевело соединение в Disabled.
	Disabled bool
}

// committed — результат применения с пересылкой записей.
func committed(mode RelayMode, recs ...protocol.Record) Result {
	return Result{Outcome: Commit, Relay: mode, Broadcast: recs}
}
