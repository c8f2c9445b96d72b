package database

// schema is valid for both MySQL and SQLite.
const schema = `
CREATE TABLE IF NOT EXISTS auth_tokens (
    chat_id BIGINT NOT NULL PRIMARY KEY,
    token TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`
