package directory

import (
	"fmt"

	"gorm.io/gorm"
)

// Domain is a mail provider whose submission routes are known ahead
// of time, keyed by the address domain.
type Domain struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description,omitempty"`
}

// Server is a submission host one or more domains route through.
type Server struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Host        string `gorm:"uniqueIndex;not null" json:"host"`
	Description string `json:"description,omitempty"`
}

// Credential is a sending account used to authenticate to a server.
// Username and Secret may be stored sealed, see AES.
type Credential struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Username    string `json:"username"`
	Secret      string `json:"-"`
	Description string `json:"description,omitempty"`
}

// Link joins a domain to one of its servers with the connection
// options for that pair. CredentialID zero means no authentication.
type Link struct {
	DomainID     uint   `gorm:"primaryKey;autoIncrement:false" json:"domain_id"`
	ServerID     uint   `gorm:"primaryKey;autoIncrement:false" json:"server_id"`
	CredentialID uint   `gorm:"default:0" json:"credential_id"`
	UseTLS       bool   `gorm:"default:true" json:"use_tls"`
	Port         int    `gorm:"default:465" json:"port"`
	Domain       Domain `gorm:"foreignKey:DomainID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Server       Server `gorm:"foreignKey:ServerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Migrate creates or updates the directory schema and rebuilds the
// read view the lookup path queries.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Domain{}, &Server{}, &Credential{}, &Link{}); err != nil {
		return fmt.Errorf("directory: migrate: %w", err)
	}
	if err := db.Exec("DROP VIEW IF EXISTS " + viewName).Error; err != nil {
		return fmt.Errorf("directory: migrate: %w", err)
	}
	view := `CREATE VIEW ` + viewName + ` AS
SELECT d.name AS domain,
       s.host AS server,
       COALESCE(c.username, '') AS username,
       COALESCE(c.secret, '') AS secret,
       l.use_tls AS use_tls,
       l.port AS port
FROM links l
JOIN domains d ON d.id = l.domain_id
JOIN servers s ON s.id = l.server_id
LEFT JOIN credentials c ON c.id = l.credential_id`
	if err := db.Exec(view).Error; err != nil {
		return fmt.Errorf("directory: migrate: %w", err)
	}
	return nil
}

// Seed loads the well known provider routes so a fresh directory is
// immediately useful. Credentials are placeholders and must be
// replaced before delivery probes can authenticate. Seeding twice is
// a no-op.
func Seed(db *gorm.DB) error {
	seeds := []struct {
		domain     string
		domainDesc string
		server     string
		serverDesc string
		username   string
		secret     string
		credDesc   string
		useTLS     bool
		port       int
	}{
		{
			domain: "gmail.com", domainDesc: "Addresses like example@gmail.com",
			server: "smtp.gmail.com", serverDesc: "Submission host for Google addresses",
			username: "CHANGE_ME@gmail.com", secret: "CHANGE_ME",
			credDesc: "Sending account for Google services",
			useTLS:   true, port: 465,
		},
		{
			domain: "yahoo.com", domainDesc: "Addresses like example@yahoo.com",
			server: "smtp.mail.yahoo.com", serverDesc: "Submission host for Yahoo addresses",
			username: "CHANGE_ME@yahoo.com", secret: "CHANGE_ME",
			credDesc: "Sending account for Yahoo services",
			useTLS:   true, port: 465,
		},
		{
			domain: "hotmail.com", domainDesc: "Addresses like example@hotmail.com",
			server: "smtp.live.com", serverDesc: "Submission host for Hotmail and Live addresses",
			username: "CHANGE_ME@live.com", secret: "CHANGE_ME",
			credDesc: "Sending account for Microsoft services",
			useTLS:   true, port: 587,
		},
		{
			domain: "live.com", domainDesc: "Addresses like example@live.com",
			server: "smtp.live.com", serverDesc: "Submission host for Hotmail and Live addresses",
			username: "CHANGE_ME@live.com", secret: "CHANGE_ME",
			credDesc: "Sending account for Microsoft services",
			useTLS:   true, port: 587,
		},
	}

	for _, sd := range seeds {
		d := Domain{Name: sd.domain, Description: sd.domainDesc}
		if err := db.FirstOrCreate(&d, "name = ?", sd.domain).Error; err != nil {
			return fmt.Errorf("directory: seed domain %s: %w", sd.domain, err)
		}
		srv := Server{Host: sd.server, Description: sd.serverDesc}
		if err := db.FirstOrCreate(&srv, "host = ?", sd.server).Error; err != nil {
			return fmt.Errorf("directory: seed server %s: %w", sd.server, err)
		}
		cred := Credential{Username: sd.username, Secret: sd.secret, Description: sd.credDesc}
		if err := db.FirstOrCreate(&cred, "username = ?", sd.username).Error; err != nil {
			return fmt.Errorf("directory: seed credential %s: %w", sd.username, err)
		}
		link := Link{DomainID: d.ID, ServerID: srv.ID, CredentialID: cred.ID, UseTLS: sd.useTLS, Port: sd.port}
		err := db.FirstOrCreate(&link, "domain_id = ? AND server_id = ?", d.ID, srv.ID).Error
		if err != nil {
			return fmt.Errorf("directory: seed link %s -> %s: %w", sd.domain, sd.server, err)
		}
	}
	return nil
}
