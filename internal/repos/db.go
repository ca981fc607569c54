package repos

import (
	"log"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// OpenDB opens the SQLite store, creates the schema and seeds the demo
// accounts and cars. It is safe to call on an existing database.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection: ":memory:" databases are per-connection, and SQLite
	// serialises writers anyway. Transactions must only use their tx.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	if err := seedUsers(db); err != nil {
		return nil, err
	}
	if err := seedCarsIfEmpty(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('customer','admin')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- value of the 'sid' cookie
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

-- Cars
CREATE TABLE IF NOT EXISTS cars(
  id TEXT PRIMARY KEY,
  brand TEXT NOT NULL,
  model TEXT NOT NULL,
  year INTEGER NOT NULL,
  price REAL NOT NULL CHECK (price >= 0),
  description TEXT NOT NULL DEFAULT '',
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  images_json TEXT NOT NULL DEFAULT '[]',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cars_created_at ON cars(created_at);

-- Bookings. car_id is not a foreign key: brand/model are snapshotted and
-- bookings outlive a deleted listing.
CREATE TABLE IF NOT EXISTS bookings(
  id TEXT PRIMARY KEY,
  car_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  user_name TEXT NOT NULL DEFAULT '',
  user_email TEXT NOT NULL DEFAULT '',
  brand TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL CHECK (status IN ('pending','accepted','rejected','cancelled')),
  created_at TEXT NOT NULL,
  decided_at TEXT,
  cancelled_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status, created_at);
-- at most one active booking per (user, car)
CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_active
  ON bookings(user_id, car_id) WHERE status IN ('pending','accepted');

-- Enquiries
CREATE TABLE IF NOT EXISTS enquiries(
  id TEXT PRIMARY KEY,
  car_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  user_name TEXT NOT NULL DEFAULT '',
  user_email TEXT NOT NULL DEFAULT '',
  brand TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL DEFAULT '',
  message TEXT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('new','open','resolved')),
  admin_reply TEXT NOT NULL DEFAULT '',
  follow_up_message TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  replied_at TEXT,
  resolved_by_customer_at TEXT,
  followed_up_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_enquiries_user ON enquiries(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_enquiries_created_at ON enquiries(created_at);
`
	_, err := db.Exec(schema)
	return err
}

// seedUsers ensures the demo customers and the admin exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) u {
		h, _ := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}
	}

	users := []u{
		mk("u-asha", "asha@carmarket.test", "Asha", "customer", "Passw0rd!"),
		mk("u-ravi", "ravi@carmarket.test", "Ravi", "customer", "Passw0rd!"),
		mk("u-admin", "admin@carmarket.test", "Admin", "admin", "Passw0rd!"),
	}

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,name,password_hash,role)
			VALUES(?,?,?,?,?)
			ON CONFLICT(email) DO NOTHING
		`, x.ID, x.Email, x.Name, x.Hash, x.Role); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func seedCarsIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM cars`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo cars")

	now := fmtTime(nowUTC())
	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT INTO cars(id,brand,model,year,price,description,stock,images_json,created_at,updated_at) VALUES
	  ('car-swift-2021','Maruti Suzuki','Swift',2021,650000,'Single owner, full service history.',2,'["https://images.carmarket.test/swift/front.jpg"]',?,?),
	  ('car-city-2019','Honda','City',2019,900000,'Petrol, manual, 42k km.',1,'["https://images.carmarket.test/city/front.jpg","https://images.carmarket.test/city/side.jpg"]',?,?),
	  ('car-nexon-2023','Tata','Nexon EV',2023,1450000,'Long range battery pack.',0,'[]',?,?)`,
		now, now, now, now, now, now); err != nil {
		return err
	}

	return tx.Commit()
}
