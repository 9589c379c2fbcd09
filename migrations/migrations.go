package migrations

import (
	"database/sql"
	"fmt"
	"time"
)

// Plan types stored on users.plan_type
const (
	PlanNone    = "none"
	PlanSingle  = "single"
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
)

type User struct {
	ID            int        `db:"id"`
	FirstName     string     `db:"first_name"`
	LastName      string     `db:"last_name"`
	Email         string     `db:"email"`
	Password      string     `db:"password"`
	Role          string     `db:"role"`
	ProfileImage  string     `db:"profile_image"`
	City          string     `db:"city"`
	Bio           string     `db:"bio"`
	PlanType      string     `db:"plan_type"`
	PlanEnd       *time.Time `db:"plan_end"`
	SingleCredits int        `db:"single_credits"`
	FreeTrialUsed bool       `db:"free_trial_used"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

var db *sql.DB

// Init sets the DB connection for migrations and queries
func Init(database *sql.DB) {
	db = database
}

// Migrate creates required tables if they do not exist
func Migrate() error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	createUsers := `
	CREATE TABLE IF NOT EXISTS users (
		id INT AUTO_INCREMENT PRIMARY KEY,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		email VARCHAR(191) NOT NULL UNIQUE,
		password VARCHAR(191) NOT NULL,
		role VARCHAR(50) NOT NULL DEFAULT 'user',
		profile_image VARCHAR(255) NOT NULL DEFAULT '',
		city VARCHAR(100) NOT NULL DEFAULT '',
		bio VARCHAR(500) NOT NULL DEFAULT '',
		plan_type VARCHAR(20) NOT NULL DEFAULT 'none',
		plan_end DATETIME NULL,
		single_credits INT NOT NULL DEFAULT 0,
		free_trial_used TINYINT(1) NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createUsers); err != nil {
		return err
	}

	createActivities := `
	CREATE TABLE IF NOT EXISTS activities (
		id INT AUTO_INCREMENT PRIMARY KEY,
		creator_id INT NOT NULL,
		title VARCHAR(140) NOT NULL,
		description TEXT NOT NULL,
		lng DOUBLE NULL,
		lat DOUBLE NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (creator_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createActivities); err != nil {
		return err
	}

	createPhotos := `
	CREATE TABLE IF NOT EXISTS activity_photos (
		id INT AUTO_INCREMENT PRIMARY KEY,
		activity_id INT NOT NULL,
		url VARCHAR(500) NOT NULL,
		public_id VARCHAR(191) NOT NULL DEFAULT '',
		position INT NOT NULL DEFAULT 0,
		FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createPhotos); err != nil {
		return err
	}

	createParticipants := `
	CREATE TABLE IF NOT EXISTS activity_participants (
		activity_id INT NOT NULL,
		user_id INT NOT NULL,
		joined_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (activity_id, user_id),
		FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createParticipants); err != nil {
		return err
	}

	// Composite indexes back the two access patterns: conversation listing
	// (sender, receiver, recency) and unread counts (receiver, is_read).
	createMessages := `
	CREATE TABLE IF NOT EXISTS messages (
		id INT AUTO_INCREMENT PRIMARY KEY,
		sender_id INT NOT NULL,
		receiver_id INT NOT NULL,
		body TEXT NULL,
		type VARCHAR(20) NOT NULL DEFAULT 'TEXT',
		attachment_url VARCHAR(500) NULL,
		is_read TINYINT(1) NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		FOREIGN KEY (sender_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (receiver_id) REFERENCES users(id) ON DELETE CASCADE,
		INDEX idx_messages_conversation (sender_id, receiver_id, created_at DESC),
		INDEX idx_messages_unread (receiver_id, is_read)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createMessages); err != nil {
		return err
	}

	createPlans := `
	CREATE TABLE IF NOT EXISTS plans (
		id INT AUTO_INCREMENT PRIMARY KEY,
		code VARCHAR(50) NOT NULL UNIQUE,
		name VARCHAR(100) NOT NULL,
		currency VARCHAR(10) NOT NULL DEFAULT 'USD',
		price DECIMAL(10,2) NOT NULL DEFAULT 0.00,
		credits INT NOT NULL DEFAULT 0,
		duration_days INT NOT NULL DEFAULT 0,
		stripe_product_id VARCHAR(191) NOT NULL DEFAULT '',
		stripe_price_id VARCHAR(191) NOT NULL DEFAULT ''
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	if _, err := db.Exec(createPlans); err != nil {
		return err
	}
	return nil
}

// SeedDefaultPlans inserts the purchasable plans if none exist
func SeedDefaultPlans() error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	var count int
	if err := db.QueryRow("SELECT COUNT(1) FROM plans").Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if _, err := db.Exec(`INSERT INTO plans (code, name, currency, price, credits, duration_days) VALUES ('single','Single Activity','USD',2.99,1,0)`); err != nil {
			return err
		}
		if _, err := db.Exec(`INSERT INTO plans (code, name, currency, price, credits, duration_days) VALUES ('monthly','Monthly','USD',7.99,0,30)`); err != nil {
			return err
		}
		if _, err := db.Exec(`INSERT INTO plans (code, name, currency, price, credits, duration_days) VALUES ('yearly','Yearly','USD',59.99,0,365)`); err != nil {
			return err
		}
	}
	return nil
}

const userColumns = "id, first_name, last_name, email, password, role, IFNULL(profile_image,''), IFNULL(city,''), IFNULL(bio,''), plan_type, plan_end, single_credits, free_trial_used, created_at, updated_at"

func scanUser(row *sql.Row) *User {
	var u User
	var planEnd sql.NullTime
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password, &u.Role, &u.ProfileImage, &u.City, &u.Bio,
		&u.PlanType, &planEnd, &u.SingleCredits, &u.FreeTrialUsed, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil
	}
	if planEnd.Valid {
		t := planEnd.Time
		u.PlanEnd = &t
	}
	return &u
}

// GetUserByEmail retrieves a user from DB by email
func GetUserByEmail(email string) *User {
	if db == nil {
		return nil
	}
	row := db.QueryRow("SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1", email)
	return scanUser(row)
}

// GetUserByID retrieves a user by its ID
func GetUserByID(id int) *User {
	if db == nil {
		return nil
	}
	row := db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id)
	return scanUser(row)
}

// CreateUser inserts a new user record
func CreateUser(firstName, lastName, email, password, role string) error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	_, err := db.Exec(
		"INSERT INTO users (first_name, last_name, email, password, role) VALUES (?, ?, ?, ?, ?)",
		firstName, lastName, email, password, role,
	)
	return err
}

// EmailExists checks if a user with the given email exists
func EmailExists(email string) (bool, error) {
	if db == nil {
		return false, fmt.Errorf("db is not initialized")
	}
	var count int
	if err := db.QueryRow("SELECT COUNT(1) FROM users WHERE email = ?", email).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateUserProfileImage updates the profile_image URL
func UpdateUserProfileImage(id int, url string) error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	_, err := db.Exec("UPDATE users SET profile_image = ?, updated_at = NOW() WHERE id = ?", url, id)
	return err
}

// UpdateUserProfile updates first/last name and optional city/bio
func UpdateUserProfile(id int, firstName, lastName, city, bio string) error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	cur := GetUserByID(id)
	if cur == nil {
		return fmt.Errorf("user not found")
	}
	if firstName == "" {
		firstName = cur.FirstName
	}
	if lastName == "" {
		lastName = cur.LastName
	}
	if city == "" {
		city = cur.City
	}
	if bio == "" {
		bio = cur.Bio
	}
	_, err := db.Exec("UPDATE users SET first_name = ?, last_name = ?, city = ?, bio = ?, updated_at = NOW() WHERE id = ?", firstName, lastName, city, bio, id)
	return err
}

// UpdateUserPassword updates the password for the given user id
func UpdateUserPassword(id int, password string) error {
	if db == nil {
		return fmt.Errorf("db is not initialized")
	}
	_, err := db.Exec("UPDATE users SET password = ?, updated_at = NOW() WHERE id = ?", password, id)
	return err
}
