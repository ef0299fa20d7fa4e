package notify

import (
	"bytes"
	"text/template"
	"time"
)

// Notice kinds sent by the auth service.
const (
	NoticeTwoFactorEnabled   = "two_factor_enabled"
	NoticeTwoFactorDisabled  = "two_factor_disabled"
	NoticeBackupCodesRenewed = "backup_codes_renewed"
	NoticeBackupCodeUsed     = "backup_code_used"
	NoticeAccountDeleted     = "account_deleted"
)

type noticeTemplate struct {
	subject string
	body    *template.Template
}

var notices = map[string]noticeTemplate{
	NoticeTwoFactorEnabled: {
		subject: "Two-factor authentication enabled",
		body: template.Must(template.New("").Parse(
			"Hi {{.Name}},\n\nTwo-factor authentication was turned on for your {{.App}} account at {{.At}}.\n" +
				"If this wasn't you, reset your password immediately.\n")),
	},
	NoticeTwoFactorDisabled: {
		subject: "Two-factor authentication disabled",
		body: template.Must(template.New("").Parse(
			"Hi {{.Name}},\n\nTwo-factor authentication was turned off for your {{.App}} account at {{.At}}.\n" +
				"If this wasn't you, reset your password and turn it back on.\n")),
	},
	NoticeBackupCodesRenewed: {
		subject: "New backup codes generated",
		body: template.Must(template.New("").Parse(
			"Hi {{.Name}},\n\nA new set of backup codes was generated for your {{.App}} account at {{.At}}.\n" +
				"Your previous codes no longer work.\n")),
	},
	NoticeBackupCodeUsed: {
		subject: "A backup code was used to sign in",
		body: template.Must(template.New("").Parse(
			"Hi {{.Name}},\n\nA backup code was used to sign in to your {{.App}} account at {{.At}}.\n" +
				"You have {{.Remaining}} backup codes left.\n")),
	},
	NoticeAccountDeleted: {
		subject: "Your account was deleted",
		body: template.Must(template.New("").Parse(
			"Hi {{.Name}},\n\nYour {{.App}} account and all of its data were deleted at {{.At}}.\n")),
	},
}

// NoticeData fills a notice template.
type NoticeData struct {
	App       string
	Name      string
	At        time.Time
	Remaining int
}

// Render builds the message for a notice kind. Unknown kinds return false.
func Render(kind, to string, data NoticeData) (Message, bool) {
	tpl, ok := notices[kind]
	if !ok {
		return Message{}, false
	}

	var buf bytes.Buffer
	data.At = data.At.UTC()
	if err := tpl.body.Execute(&buf, data); err != nil {
		return Message{}, false
	}
	return Message{To: to, Subject: tpl.subject, Body: buf.String()}, true
}
