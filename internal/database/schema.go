package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables owned by the auth core. Statements are run one
// at a time because the DSN does not enable multiStatements.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                 BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email              VARCHAR(255) NOT NULL,
		password_hash      VARCHAR(255) NOT NULL,
		role               ENUM('patient','doctor','donor','ngo','pharmacy','admin') NOT NULL,
		is_active          BOOLEAN NOT NULL DEFAULT TRUE,
		is_verified        BOOLEAN NOT NULL DEFAULT FALSE,
		full_name          VARCHAR(255) NOT NULL,
		phone_number       VARCHAR(32) NOT NULL DEFAULT '',
		date_of_birth      DATE NULL,
		gender             VARCHAR(16) NOT NULL DEFAULT '',
		preferred_language VARCHAR(10) NOT NULL DEFAULT 'en',
		created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email),
		KEY idx_users_role (role)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS patients (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_patients_user (user_id),
		CONSTRAINT fk_patients_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS doctors (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id        BIGINT UNSIGNED NOT NULL,
		specialization VARCHAR(255) NOT NULL,
		license_number VARCHAR(64) NOT NULL DEFAULT '',
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_doctors_user (user_id),
		CONSTRAINT fk_doctors_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS ngos (
		id                BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id           BIGINT UNSIGNED NOT NULL,
		organization_name VARCHAR(255) NOT NULL,
		created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_ngos_user (user_id),
		CONSTRAINT fk_ngos_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
