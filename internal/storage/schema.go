package storage

// Timestamps are stored as unix milliseconds so range predicates compare integers.
const schema = `
-- The 'notes' table stores each user's learning notes and their review counters.
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL,
    understanding TEXT NOT NULL,
    analysis TEXT,
    last_reviewed_at INTEGER,
    review_count INTEGER NOT NULL DEFAULT 0 CHECK (review_count >= 0),
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    source_hash TEXT
);

CREATE INDEX IF NOT EXISTS idx_notes_owner_created ON notes (owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_notes_owner_reviewed ON notes (owner_id, last_reviewed_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_owner_source_hash ON notes (owner_id, source_hash)
    WHERE source_hash IS NOT NULL;

-- The 'entitlements' table holds one subscription record per user.
CREATE TABLE IF NOT EXISTS entitlements (
    user_id TEXT PRIMARY KEY,
    plan TEXT NOT NULL DEFAULT 'free',
    plan_type TEXT,
    status TEXT NOT NULL DEFAULT 'active',
    gateway_subscription_id TEXT,
    current_period_start INTEGER,
    current_period_end INTEGER,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

-- The 'push_subscriptions' table holds one browser push registration per user.
CREATE TABLE IF NOT EXISTS push_subscriptions (
    user_id TEXT PRIMARY KEY,
    endpoint TEXT NOT NULL,
    subscription TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    preferred_time TEXT NOT NULL DEFAULT '19:00',
    daily_reminder INTEGER NOT NULL DEFAULT 1,
    streak_warning INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
`
