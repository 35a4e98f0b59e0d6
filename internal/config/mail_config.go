package config

const (
	MailProviderSMTP    = "smtp"
	MailProviderMailgun = "mailgun"
)

type MailConfig interface {
	GetMailProvider() string
	GetMailFrom() string
	GetSmtpHost() string
	GetSmtpPort() string
	GetSmtpPassword() string
	GetSmtpAccount() string
	GetSmtpRecipient() string
	GetMailgunDomain() string
	GetMailgunKey() string
}

type Mail struct{}

var _ MailConfig = Mail{}

func (Mail) GetMailProvider() string {
	return GetEnv("MAIL_PROVIDER", MailProviderSMTP)
}

func (m Mail) GetMailFrom() string {
	return GetEnv("MAIL_FROM", m.GetSmtpAccount())
}

func (Mail) GetSmtpPassword() string {
	return GetEnv("SMTP_PASSWORD", "")
}

func (Mail) GetSmtpAccount() string {
	return GetEnv("SMTP_ACCOUNT", "")
}

func (Mail) GetSmtpHost() string {
	return GetEnv("SMTP_HOST", "smtp.gmail.com")
}

func (Mail) GetSmtpPort() string {
	return GetEnv("SMTP_PORT", "587")
}

func (Mail) GetSmtpRecipient() string {
	return GetEnv("EMAIL_RECIPIENT", "")
}

func (Mail) GetMailgunDomain() string {
	return GetEnv("MAILGUN_DOMAIN", "")
}

func (Mail) GetMailgunKey() string {
	return GetEnv("MAILGUN_API_KEY", "")
}
