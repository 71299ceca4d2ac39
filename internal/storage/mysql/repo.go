package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"eywa/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
func valStatus(p *domain.SyncStatus) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

// Policy carries the tunable parts of due selection.
type Policy struct {
	MaxErrors  int
	DeadLetter time.Duration
}

func (p *Policy) applyDefaults() {
	if p.MaxErrors <= 0 {
		p.MaxErrors = 3
	}
	if p.DeadLetter <= 0 {
		p.DeadLetter = 7 * 24 * time.Hour
	}
}

type Repo struct {
	db     *sql.DB
	policy Policy
}

func New(db *sql.DB, policy Policy) *Repo {
	policy.applyDefaults()
	return &Repo{db: db, policy: policy}
}

func (r *Repo) GetHotel(ctx context.Context, id int64) (domain.Hotel, error) {
	var h domain.Hotel
	var addr sql.NullString
	err := r.db.QueryRowContext(ctx, getHotelSQL, id).
		Scan(&h.ID, &h.Name, &addr, &h.City, &h.Country)
	if err == sql.ErrNoRows {
		return domain.Hotel{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Hotel{}, err
	}
	if addr.Valid {
		a := addr.String
		h.Address = &a
	}
	return h, nil
}

func (r *Repo) UpsertLink(ctx context.Context, l domain.ReviewSourceLink) error {
	_, err := r.db.ExecContext(ctx, upsertLinkSQL,
		l.HotelID, string(l.Source), l.ExternalID, l.Name, l.Verified, valTime(l.NextSyncAt))
	return err
}

func (r *Repo) Links(ctx context.Context, hotelID int64) ([]domain.ReviewSourceLink, error) {
	rows, err := r.db.QueryContext(ctx, linksSQL, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReviewSourceLink
	for rows.Next() {
		var (
			l       domain.ReviewSourceLink
			src     string
			lastAt  sql.NullTime
			status  sql.NullString
			errMsg  sql.NullString
			nextAt  sql.NullTime
		)
		if err := rows.Scan(&l.HotelID, &src, &l.ExternalID, &l.Name, &l.Verified,
			&lastAt, &status, &errMsg, &l.SyncErrorCount, &nextAt); err != nil {
			return nil, err
		}
		l.Source = domain.Source(src)
		if lastAt.Valid {
			t := lastAt.Time
			l.LastSyncAt = &t
		}
		if status.Valid {
			s := domain.SyncStatus(status.String)
			l.LastSyncStatus = &s
		}
		if errMsg.Valid {
			m := errMsg.String
			l.SyncErrorMessage = &m
		}
		if nextAt.Valid {
			t := nextAt.Time
			l.NextSyncAt = &t
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateLinkSync(ctx context.Context, l domain.ReviewSourceLink) error {
	_, err := r.db.ExecContext(ctx, updateLinkSyncSQL,
		valTime(l.LastSyncAt),
		valStatus(l.LastSyncStatus),
		valStr(l.SyncErrorMessage),
		l.SyncErrorCount,
		valTime(l.NextSyncAt),
		l.HotelID,
		string(l.Source),
	)
	return err
}

func (r *Repo) DueHotels(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, dueHotelsSQL,
		now, r.policy.MaxErrors, now.Add(-r.policy.DeadLetter), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *Repo) UpsertSnapshot(ctx context.Context, s domain.RatingSnapshot) error {
	_, err := r.db.ExecContext(ctx, upsertSnapshotSQL,
		s.HotelID, string(s.Source), s.FetchedAt, s.Rating, s.ReviewCount, s.FetchedAt)
	return err
}

func (r *Repo) UpsertReviews(ctx context.Context, rs []domain.ReviewRecord) error {
	if len(rs) == 0 {
		return nil
	}
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*9)
	for _, rv := range rs {
		values = append(values, "(?,?,?,?,?,?,?,?,?)")
		args = append(args,
			rv.HotelID,
			string(rv.Source),
			rv.ExternalReviewID,
			valStr(rv.Author),
			rv.Rating,
			valStr(rv.Text),
			valStr(rv.Language),
			rv.PublishedAt,
			rv.FetchedAt,
		)
	}
	sqlStr := insertReviewsPrefix + strings.Join(values, ",") + insertReviewsOnDup
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *Repo) InsertScore(ctx context.Context, s domain.ScoreRecord) error {
	perSource, err := json.Marshal(s.PerSource)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertScoreSQL,
		s.HotelID, s.EywaScore, string(perSource), string(s.Trend), s.TrendDelta, s.ComputedAt)
	return err
}

func (r *Repo) LatestScore(ctx context.Context, hotelID int64) (*domain.ScoreRecord, error) {
	row := r.db.QueryRowContext(ctx, latestScoreSQL, hotelID)
	s, err := scanScore(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) ScoresSince(ctx context.Context, hotelID int64, since time.Time) ([]domain.ScoreRecord, error) {
	rows, err := r.db.QueryContext(ctx, scoresSinceSQL, hotelID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScoreRecord
	for rows.Next() {
		s, err := scanScore(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanScore(scan func(...any) error) (domain.ScoreRecord, error) {
	var (
		s         domain.ScoreRecord
		perSource []byte
		trend     string
	)
	if err := scan(&s.HotelID, &s.EywaScore, &perSource, &trend, &s.TrendDelta, &s.ComputedAt); err != nil {
		return domain.ScoreRecord{}, err
	}
	s.Trend = domain.Trend(trend)
	if len(perSource) > 0 {
		_ = json.Unmarshal(perSource, &s.PerSource)
	}
	return s, nil
}

func (r *Repo) LatestSnapshots(ctx context.Context, hotelID int64) ([]domain.RatingSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, latestSnapshotsSQL, hotelID, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RatingSnapshot
	for rows.Next() {
		var (
			s   domain.RatingSnapshot
			src string
		)
		if err := rows.Scan(&s.HotelID, &src, &s.Rating, &s.ReviewCount, &s.FetchedAt); err != nil {
			return nil, err
		}
		s.Source = domain.Source(src)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) ReviewsSince(ctx context.Context, hotelID int64, since time.Time) ([]domain.ReviewRecord, error) {
	rows, err := r.db.QueryContext(ctx, reviewsSinceSQL, hotelID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReviewRecord
	for rows.Next() {
		var (
			rv     domain.ReviewRecord
			src    string
			author sql.NullString
			text   sql.NullString
			lang   sql.NullString
		)
		if err := rows.Scan(&rv.HotelID, &src, &rv.ExternalReviewID,
			&author, &rv.Rating, &text, &lang, &rv.PublishedAt, &rv.FetchedAt); err != nil {
			return nil, err
		}
		rv.Source = domain.Source(src)
		if author.Valid {
			a := author.String
			rv.Author = &a
		}
		if text.Valid {
			t := text.String
			rv.Text = &t
		}
		if lang.Valid {
			l := lang.String
			rv.Language = &l
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *Repo) CreateJob(ctx context.Context, j domain.SyncJob) error {
	_, err := r.db.ExecContext(ctx, insertJobSQL,
		j.ID, string(j.JobType), string(j.Status), j.TriggeredBy, j.StartedAt)
	return err
}

func (r *Repo) FinishJob(ctx context.Context, j domain.SyncJob) error {
	_, err := r.db.ExecContext(ctx, finishJobSQL,
		string(j.Status), valTime(j.CompletedAt),
		j.HotelsTotal, j.HotelsSuccess, j.HotelsFailed,
		valStr(j.ErrorMessage), j.ID)
	return err
}

func (r *Repo) InsertSyncError(ctx context.Context, e domain.SyncError) error {
	_, err := r.db.ExecContext(ctx, insertSyncErrorSQL,
		e.JobID, e.HotelID, string(e.Source), e.ErrorType, e.ErrorMessage, e.CreatedAt)
	return err
}
