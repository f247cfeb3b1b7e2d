package database

import (
	"database/sql"

	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new database connection pool.
func New(dataSourceName string) (*sql.DB, error) {
	dsn := dataSourceName + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS system_config (
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (organization_id, key)
	);

	CREATE TABLE IF NOT EXISTS job_roles (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (organization_id, title)
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		role TEXT NOT NULL, -- ADMIN, MANAGER, TRAINER, EMPLOYEE
		department TEXT NOT NULL DEFAULT '',
		job_role_id TEXT REFERENCES job_roles(id) ON DELETE SET NULL,
		employee_type TEXT NOT NULL DEFAULT 'NEW', -- NEW, EXISTING
		manager_id TEXT REFERENCES users(id) ON DELETE SET NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS otp_records (
		id TEXT NOT NULL PRIMARY KEY,
		email TEXT NOT NULL,
		code_hash TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		consumed_at DATETIME,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_otp_email ON otp_records(email);

	CREATE TABLE IF NOT EXISTS skill_categories (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (organization_id, name)
	);

	CREATE TABLE IF NOT EXISTS skills (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		category_id TEXT NOT NULL REFERENCES skill_categories(id) ON DELETE RESTRICT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (organization_id, name)
	);

	CREATE TABLE IF NOT EXISTS role_competencies (
		id TEXT NOT NULL PRIMARY KEY,
		job_role_id TEXT NOT NULL REFERENCES job_roles(id) ON DELETE CASCADE,
		skill_id TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
		required_level TEXT NOT NULL,
		UNIQUE (job_role_id, skill_id)
	);

	CREATE TABLE IF NOT EXISTS skill_matrix (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		skill_id TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
		current_level TEXT, -- NULL until assessed
		desired_level TEXT NOT NULL,
		source TEXT NOT NULL, -- MANUAL, ROLE, ASSESSMENT, TRAINING
		assessed_by TEXT,
		assessed_at DATETIME,
		notes TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL,
		UNIQUE (user_id, skill_id)
	);

	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		skill_id TEXT REFERENCES skills(id) ON DELETE SET NULL,
		target_level TEXT NOT NULL DEFAULT 'BEGINNER',
		passing_score INTEGER NOT NULL,
		time_limit_minutes INTEGER NOT NULL DEFAULT 0,
		is_published INTEGER NOT NULL DEFAULT 0,
		created_by TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT NOT NULL PRIMARY KEY,
		assessment_id TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
		type TEXT NOT NULL, -- MCQ, TRUE_FALSE, FILL_BLANK, DESCRIPTIVE
		prompt TEXT NOT NULL,
		options_json TEXT NOT NULL DEFAULT '[]',
		correct_answer TEXT NOT NULL DEFAULT '',
		points INTEGER NOT NULL,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assessment_attempts (
		id TEXT NOT NULL PRIMARY KEY,
		assessment_id TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		status TEXT NOT NULL, -- IN_PROGRESS, SUBMITTED, GRADED
		score INTEGER NOT NULL DEFAULT 0,
		max_score INTEGER NOT NULL DEFAULT 0,
		percentage REAL NOT NULL DEFAULT 0,
		passed INTEGER NOT NULL DEFAULT 0,
		late INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		submitted_at DATETIME,
		graded_at DATETIME,
		graded_by TEXT
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_open ON assessment_attempts(assessment_id, user_id) WHERE status = 'IN_PROGRESS';

	CREATE TABLE IF NOT EXISTS attempt_answers (
		id TEXT NOT NULL PRIMARY KEY,
		attempt_id TEXT NOT NULL REFERENCES assessment_attempts(id) ON DELETE CASCADE,
		question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		answer TEXT NOT NULL DEFAULT '',
		is_correct INTEGER, -- NULL while awaiting manual grading
		points_awarded INTEGER,
		feedback TEXT NOT NULL DEFAULT '',
		UNIQUE (attempt_id, question_id)
	);

	CREATE TABLE IF NOT EXISTS trainings (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL, -- ONLINE, OFFLINE
		skill_id TEXT REFERENCES skills(id) ON DELETE SET NULL,
		target_level TEXT NOT NULL DEFAULT 'BEGINNER',
		url TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		starts_at DATETIME,
		ends_at DATETIME,
		duration_hours REAL NOT NULL DEFAULT 0,
		created_by TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS training_assignments (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		training_id TEXT NOT NULL REFERENCES trainings(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		assigned_by TEXT,
		status TEXT NOT NULL, -- ASSIGNED, IN_PROGRESS, COMPLETED, OVERDUE
		due_date DATETIME,
		assigned_at DATETIME NOT NULL,
		started_at DATETIME,
		completed_at DATETIME,
		UNIQUE (training_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS proofs (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		assignment_id TEXT NOT NULL REFERENCES training_assignments(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		file_key TEXT NOT NULL,
		file_name TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size INTEGER NOT NULL,
		status TEXT NOT NULL, -- PENDING, APPROVED, REJECTED
		reviewer_id TEXT,
		review_note TEXT NOT NULL DEFAULT '',
		uploaded_at DATETIME NOT NULL,
		reviewed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS journeys (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		employee_type TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		UNIQUE (organization_id, employee_type)
	);

	CREATE TABLE IF NOT EXISTS journey_phases (
		id TEXT NOT NULL PRIMARY KEY,
		journey_id TEXT NOT NULL REFERENCES journeys(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		duration_days INTEGER NOT NULL,
		training_id TEXT REFERENCES trainings(id) ON DELETE SET NULL,
		assessment_id TEXT REFERENCES assessments(id) ON DELETE SET NULL,
		UNIQUE (journey_id, position)
	);

	CREATE TABLE IF NOT EXISTS employee_journeys (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		journey_id TEXT NOT NULL REFERENCES journeys(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		status TEXT NOT NULL, -- ACTIVE, COMPLETED
		started_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS phase_progress (
		id TEXT NOT NULL PRIMARY KEY,
		employee_journey_id TEXT NOT NULL REFERENCES employee_journeys(id) ON DELETE CASCADE,
		phase_id TEXT NOT NULL REFERENCES journey_phases(id) ON DELETE CASCADE,
		status TEXT NOT NULL, -- LOCKED, IN_PROGRESS, COMPLETED, OVERDUE
		started_at DATETIME,
		due_date DATETIME,
		completed_at DATETIME,
		UNIQUE (employee_journey_id, phase_id)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		read_at DATETIME,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT NOT NULL PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		type TEXT NOT NULL,  -- e.g. "skill.create", "journey.phase.overdue"
		level TEXT NOT NULL, -- info, warn, error
		message TEXT NOT NULL,
		actor_id TEXT,
		created_at DATETIME NOT NULL
	);
	`
	_, err := db.Exec(sqlStmt)
	return err
}
