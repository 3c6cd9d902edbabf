package cmd

import (
	"database/sql"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-checkout/config"

	_ "github.com/go-sql-driver/mysql"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Run:   runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS checkout_sessions (
		session_id VARCHAR(128) NOT NULL,
		transaction_id BIGINT UNSIGNED NOT NULL,
		invoice_id BIGINT UNSIGNED NOT NULL,
		member_id BIGINT UNSIGNED NOT NULL DEFAULT 0,
		email VARCHAR(255) NOT NULL DEFAULT '',
		description VARCHAR(512) NOT NULL DEFAULT '',
		amount_cents BIGINT NOT NULL DEFAULT 0,
		currency CHAR(3) NOT NULL DEFAULT 'USD',
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (session_id),
		KEY idx_checkout_sessions_transaction (transaction_id, created_at),
		KEY idx_checkout_sessions_invoice (invoice_id, created_at),
		KEY idx_checkout_sessions_status_created (status, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS session_events (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		session_id VARCHAR(128) NOT NULL,
		event_type VARCHAR(64) NOT NULL,
		old_status VARCHAR(32) NULL,
		new_status VARCHAR(32) NOT NULL,
		detail TEXT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (id),
		KEY idx_session_events_session (session_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS webhook_deliveries (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		session_id VARCHAR(128) NULL,
		event_type VARCHAR(64) NOT NULL DEFAULT '',
		signature VARCHAR(255) NOT NULL DEFAULT '',
		source_addr VARCHAR(64) NOT NULL DEFAULT '',
		payload_json MEDIUMTEXT NOT NULL,
		status INT NOT NULL,
		error TEXT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (id),
		KEY idx_webhook_deliveries_session (session_id, created_at),
		KEY idx_webhook_deliveries_status (status, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

func runMigrate(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			logrus.WithError(err).WithField("migration", i).Fatal("Migration failed")
		}
	}

	logrus.WithField("migrations", len(migrations)).Info("Schema is up to date")
}
