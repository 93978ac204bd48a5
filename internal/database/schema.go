package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the tables in dependency order.  Money columns are
// DECIMAL(10,2) and timestamps keep microseconds so lease arithmetic
// is not truncated to whole seconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS theatres (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		city VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS movies (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NULL,
		length_minutes DOUBLE NOT NULL,
		cast_members JSON NOT NULL,
		director VARCHAR(255) NOT NULL,
		genre VARCHAR(255) NOT NULL,
		certificate VARCHAR(8) NOT NULL,
		release_date DATETIME(6) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS halls (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		theatre_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(255) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_halls_theatre_name (theatre_id, name),
		CONSTRAINT fk_halls_theatre FOREIGN KEY (theatre_id) REFERENCES theatres (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seat_types (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		theatre_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(255) NOT NULL,
		price_multiplier DECIMAL(10,2) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		CONSTRAINT fk_seat_types_theatre FOREIGN KEY (theatre_id) REFERENCES theatres (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seats (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		hall_id BIGINT UNSIGNED NOT NULL,
		seat_type_id BIGINT UNSIGNED NOT NULL,
		seat_row VARCHAR(16) NOT NULL,
		seat_column VARCHAR(16) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_seats_position (hall_id, seat_row, seat_column),
		CONSTRAINT fk_seats_hall FOREIGN KEY (hall_id) REFERENCES halls (id),
		CONSTRAINT fk_seats_type FOREIGN KEY (seat_type_id) REFERENCES seat_types (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS shows (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		movie_id BIGINT UNSIGNED NOT NULL,
		hall_id BIGINT UNSIGNED NOT NULL,
		starts_at DATETIME(6) NOT NULL,
		ends_at DATETIME(6) NOT NULL,
		base_price DECIMAL(10,2) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY idx_shows_hall_start (hall_id, starts_at),
		CONSTRAINT fk_shows_movie FOREIGN KEY (movie_id) REFERENCES movies (id),
		CONSTRAINT fk_shows_hall FOREIGN KEY (hall_id) REFERENCES halls (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		uuid CHAR(36) NOT NULL,
		price DECIMAL(10,2) NOT NULL,
		tax DECIMAL(10,2) NOT NULL DEFAULT 0,
		paid TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		modified_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_bookings_uuid (uuid),
		KEY idx_bookings_paid_modified (paid, modified_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tickets (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		uuid CHAR(36) NOT NULL,
		show_id BIGINT UNSIGNED NOT NULL,
		seat_id BIGINT UNSIGNED NOT NULL,
		price DECIMAL(10,2) NOT NULL,
		booking_id BIGINT UNSIGNED NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_tickets_uuid (uuid),
		UNIQUE KEY uq_tickets_show_seat (show_id, seat_id),
		KEY idx_tickets_booking (booking_id),
		CONSTRAINT fk_tickets_show FOREIGN KEY (show_id) REFERENCES shows (id),
		CONSTRAINT fk_tickets_seat FOREIGN KEY (seat_id) REFERENCES seats (id),
		CONSTRAINT fk_tickets_booking FOREIGN KEY (booking_id) REFERENCES bookings (id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates every missing table.  Existing tables are left as
// they are; the statements are safe to run on each start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
