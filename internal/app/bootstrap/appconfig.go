// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for CrewTask.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers
// framework-level settings (logging level and format, timeouts);
// AppConfig is everything specific to this application.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI      string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase string // Database name within MongoDB

	// Email/SMTP configuration for verification and reset mail
	MailSMTPHost string // SMTP server host (e.g., localhost for Mailpit)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string // SMTP username (empty for Mailpit)
	MailSMTPPass string // SMTP password
	MailFrom     string // From email address
	MailFromName string // From display name

	// Base URL for verification/reset links in email
	BaseURL string

	// Email verification settings
	EmailVerifyExpiry time.Duration // code/link expiry (e.g., 10m, 1h)

	// SuperAdmin bootstrap: the single email granted the superadmin
	// role and verification bypass.
	SuperAdminEmail string

	// Site name used in outbound email
	SiteName string
}
