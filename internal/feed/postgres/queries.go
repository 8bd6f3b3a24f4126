package postgres

const queryFetchEntries = `
SELECT seq, event_kind, entity_type, row_image
FROM change_feed
WHERE seq > $1
ORDER BY seq ASC
LIMIT $2
`

const queryLoadCursor = `
SELECT seq FROM feed_cursors WHERE consumer = $1
`

const queryCommitCursor = `
INSERT INTO feed_cursors (consumer, seq, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (consumer) DO UPDATE
SET seq = EXCLUDED.seq, updated_at = EXCLUDED.updated_at
WHERE feed_cursors.seq < EXCLUDED.seq
`
