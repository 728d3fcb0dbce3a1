package postgres

// Schema is the DDL required by this repository. Deployments apply it with
// their own migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS content (
    id UUID PRIMARY KEY,
    type VARCHAR(50) NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    images JSONB,
    video_links TEXT[],
    language VARCHAR(10) NOT NULL,
    status VARCHAR(50) NOT NULL DEFAULT '',
    prev_status VARCHAR(50) NOT NULL DEFAULT '',
    author_id UUID,
    alias_id UUID,
    section TEXT NOT NULL DEFAULT '',
    tags TEXT[],
    publish_time TIMESTAMPTZ,
    options JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
    deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS content_listing_idx
    ON content (type, language, status, publish_time DESC)
    WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS content_alias (
    id UUID PRIMARY KEY,
    alias TEXT NOT NULL,
    target TEXT NOT NULL,
    language VARCHAR(10) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
    CONSTRAINT content_alias_path_unique UNIQUE (alias, language)
);

CREATE INDEX IF NOT EXISTS content_alias_target_idx ON content_alias (target);
`
