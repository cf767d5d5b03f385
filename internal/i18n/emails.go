package i18n

import (
	"html"
	"strconv"
	"strings"
)

type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

// LinkParams fill the account emails.
type LinkParams struct {
	FirstName string
	LastName  string
	Email     string
	Link      string
	Hours     int
}

type emailStrings struct {
	ConfirmSubject string
	ConfirmText    string
	ConfirmHTML    string

	ResetSubject string
	ResetText    string
	ResetHTML    string
}

var emailTranslations = map[string]emailStrings{
	"en": {
		ConfirmSubject: "Confirm your Account!",
		ConfirmText: "Hi {firstName} {lastName},\n\n" +
			"Please confirm the account for {email} by opening this link:\n{link}\n\n" +
			"The link expires in {hours} hours. If you did not sign up, ignore this email.",
		ConfirmHTML: "<p>Hi {firstName} {lastName},</p>" +
			"<p>Please confirm the account for <strong>{email}</strong>.</p>" +
			"<p><a href=\"{link}\">Confirm account</a></p>" +
			"<p>The link expires in {hours} hours.</p>" +
			"<p>If you did not sign up, ignore this email.</p>",

		ResetSubject: "Reset your Password!",
		ResetText: "Hi {firstName} {lastName},\n\n" +
			"Reset your password: {link}\n" +
			"The link expires in {hours} hours and works once.\n" +
			"If you did not request this, ignore this email.",
		ResetHTML: "<p>Hi {firstName} {lastName},</p>" +
			"<p>Click the button to reset your password.</p>" +
			"<p><a href=\"{link}\">Reset password</a></p>" +
			"<p>The link expires in {hours} hours and works once.</p>" +
			"<p>If you did not request this, ignore this email.</p>",
	},
	"de": {
		ConfirmSubject: "Bestätigen Sie Ihr Konto!",
		ConfirmText: "Hallo {firstName} {lastName},\n\n" +
			"bitte bestätigen Sie das Konto für {email} über diesen Link:\n{link}\n\n" +
			"Der Link ist {hours} Stunden gültig. Wenn Sie sich nicht registriert haben, ignorieren Sie diese E-Mail.",
		ConfirmHTML: "<p>Hallo {firstName} {lastName},</p>" +
			"<p>bitte bestätigen Sie das Konto für <strong>{email}</strong>.</p>" +
			"<p><a href=\"{link}\">Konto bestätigen</a></p>" +
			"<p>Der Link ist {hours} Stunden gültig.</p>" +
			"<p>Wenn Sie sich nicht registriert haben, ignorieren Sie diese E-Mail.</p>",

		ResetSubject: "Setzen Sie Ihr Passwort zurück!",
		ResetText: "Hallo {firstName} {lastName},\n\n" +
			"Setzen Sie Ihr Passwort zurück: {link}\n" +
			"Der Link ist {hours} Stunden gültig und nur einmal verwendbar.\n" +
			"Wenn Sie dies nicht angefordert haben, ignorieren Sie diese E-Mail.",
		ResetHTML: "<p>Hallo {firstName} {lastName},</p>" +
			"<p>Klicken Sie auf den Button, um Ihr Passwort zurückzusetzen.</p>" +
			"<p><a href=\"{link}\">Passwort zurücksetzen</a></p>" +
			"<p>Der Link ist {hours} Stunden gültig und nur einmal verwendbar.</p>" +
			"<p>Wenn Sie dies nicht angefordert haben, ignorieren Sie diese E-Mail.</p>",
	},
}

func emailStringsForLocale(locale string) emailStrings {
	if val, ok := emailTranslations[NormalizeLocale(locale)]; ok {
		return val
	}
	return emailTranslations[DefaultLocale]
}

func renderTemplate(tmpl string, values map[string]string) string {
	if tmpl == "" || len(values) == 0 {
		return tmpl
	}
	replacements := make([]string, 0, len(values)*2)
	for key, value := range values {
		replacements = append(replacements, "{"+key+"}", value)
	}
	return strings.NewReplacer(replacements...).Replace(tmpl)
}

func (p LinkParams) values(escape bool) map[string]string {
	esc := func(s string) string { return s }
	if escape {
		esc = html.EscapeString
	}
	return map[string]string{
		"firstName": esc(p.FirstName),
		"lastName":  esc(p.LastName),
		"email":     esc(p.Email),
		"link":      esc(p.Link),
		"hours":     strconv.Itoa(p.Hours),
	}
}

func render(subject, text, htmlTmpl string, p LinkParams) EmailContent {
	return EmailContent{
		Subject: subject,
		Text:    renderTemplate(text, p.values(false)),
		HTML:    renderTemplate(htmlTmpl, p.values(true)),
	}
}

func ConfirmAccountEmail(locale string, p LinkParams) EmailContent {
	t := emailStringsForLocale(locale)
	return render(t.ConfirmSubject, t.ConfirmText, t.ConfirmHTML, p)
}

func ResetPasswordEmail(locale string, p LinkParams) EmailContent {
	t := emailStringsForLocale(locale)
	return render(t.ResetSubject, t.ResetText, t.ResetHTML, p)
}
