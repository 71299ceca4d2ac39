package mysql

const getHotelSQL = `
SELECT id, name, address, city, country
FROM hotels
WHERE id = ?
`

const upsertLinkSQL = `
INSERT INTO review_source_links
  (hotel_id, source, external_id, name, verified, next_sync_at)
VALUES
  (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  external_id = VALUES(external_id),
  name        = VALUES(name),
  verified    = VALUES(verified),
  next_sync_at = VALUES(next_sync_at),
  updated_at  = CURRENT_TIMESTAMP
`

const linksSQL = `
SELECT hotel_id, source, external_id, name, verified,
       last_sync_at, last_sync_status, sync_error_message, sync_error_count, next_sync_at
FROM review_source_links
WHERE hotel_id = ?
ORDER BY source
`

const updateLinkSyncSQL = `
UPDATE review_source_links
SET last_sync_at       = ?,
    last_sync_status   = ?,
    sync_error_message = ?,
    sync_error_count   = ?,
    next_sync_at       = ?,
    updated_at         = CURRENT_TIMESTAMP
WHERE hotel_id = ? AND source = ?
`

// A (hotel, source) pair is due when its next refresh time has passed and its
// failure history does not exclude it: fewer than maxErrors strikes, or the
// last attempt is older than the dead-letter window.
const dueHotelsSQL = `
SELECT l.hotel_id
FROM review_source_links l
WHERE (l.next_sync_at IS NULL OR l.next_sync_at <= ?)
  AND (l.sync_error_count < ? OR l.last_sync_at IS NULL OR l.last_sync_at < ?)
GROUP BY l.hotel_id
ORDER BY MIN(COALESCE(l.last_sync_at, '1970-01-01 00:00:00')) ASC
LIMIT ?
`

// One logical snapshot per (hotel, source, day); later syncs the same day
// overwrite it.
const upsertSnapshotSQL = `
INSERT INTO rating_snapshots
  (hotel_id, source, snapshot_day, rating, review_count, fetched_at)
VALUES
  (?, ?, DATE(?), ?, ?, ?)
ON DUPLICATE KEY UPDATE
  rating       = VALUES(rating),
  review_count = VALUES(review_count),
  fetched_at   = VALUES(fetched_at)
`

const insertReviewsPrefix = "INSERT INTO reviews\n" +
	"  (hotel_id, source, external_review_id, author, rating, `text`, lang, published_at, fetched_at)\nVALUES "

// COALESCE keeps the old value when a re-sync carries NULL for a field.
const insertReviewsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  author       = COALESCE(VALUES(author), reviews.author),\n" +
	"  rating       = VALUES(rating),\n" +
	"  `text`       = COALESCE(VALUES(`text`), reviews.`text`),\n" +
	"  lang         = COALESCE(VALUES(lang), reviews.lang),\n" +
	"  published_at = VALUES(published_at),\n" +
	"  fetched_at   = VALUES(fetched_at)\n"

const insertScoreSQL = `
INSERT INTO eywa_scores
  (hotel_id, eywa_score, per_source, trend, trend_delta, computed_at)
VALUES
  (?, ?, ?, ?, ?, ?)
`

const latestScoreSQL = `
SELECT hotel_id, eywa_score, per_source, trend, trend_delta, computed_at
FROM eywa_scores
WHERE hotel_id = ?
ORDER BY computed_at DESC, id DESC
LIMIT 1
`

const scoresSinceSQL = `
SELECT hotel_id, eywa_score, per_source, trend, trend_delta, computed_at
FROM eywa_scores
WHERE hotel_id = ? AND computed_at >= ?
ORDER BY computed_at ASC, id ASC
`

// Latest snapshot per source for one hotel.
const latestSnapshotsSQL = `
SELECT s.hotel_id, s.source, s.rating, s.review_count, s.fetched_at
FROM rating_snapshots s
JOIN (
  SELECT source, MAX(fetched_at) AS max_fetched
  FROM rating_snapshots
  WHERE hotel_id = ?
  GROUP BY source
) m ON m.source = s.source AND m.max_fetched = s.fetched_at
WHERE s.hotel_id = ?
`

const reviewsSinceSQL = `
SELECT hotel_id, source, external_review_id, author, rating, ` + "`text`" + `, lang, published_at, fetched_at
FROM reviews
WHERE hotel_id = ? AND published_at >= ?
ORDER BY published_at DESC, id DESC
`

const insertJobSQL = `
INSERT INTO sync_jobs
  (id, job_type, status, triggered_by, started_at)
VALUES
  (?, ?, ?, ?, ?)
`

const finishJobSQL = `
UPDATE sync_jobs
SET status = ?,
    completed_at = ?,
    hotels_total = ?,
    hotels_success = ?,
    hotels_failed = ?,
    error_message = ?
WHERE id = ?
`

const insertSyncErrorSQL = `
INSERT INTO sync_errors
  (job_id, hotel_id, source, error_type, error_message, created_at)
VALUES
  (?, ?, ?, ?, ?, ?)
`
