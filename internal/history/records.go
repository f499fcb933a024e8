package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Record is one job row.
type Record struct {
	JobID        string
	ArtifactName string
	ArtifactKey  string
	SourcePath   string
	State        string
	Reason       string
	ErrorMessage string
	ProjectDir   string
	ArchivePath  string
	RemoteID     string
	Link         string
	Images       int
	Models       int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Link is the latest published URL for an artifact name.
type Link struct {
	ArtifactName string
	URL          string
	RemoteID     string
	ProjectDir   string
	GeneratedAt  time.Time
}

const recordColumns = "job_id, artifact_name, artifact_key, source_path, state, reason, error_message, project_dir, archive_path, remote_id, link, images, models, created_at, updated_at"

// RecordJob inserts or updates the row for rec.JobID.
func (s *Store) RecordJob(ctx context.Context, rec Record) error {
	if rec.JobID == "" {
		return errors.New("record has no job id")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}
	_, err := s.exec(ctx,
		`INSERT INTO jobs (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(job_id) DO UPDATE SET
             state = excluded.state, reason = excluded.reason, error_message = excluded.error_message,
             project_dir = excluded.project_dir, archive_path = excluded.archive_path,
             remote_id = excluded.remote_id, link = excluded.link,
             images = excluded.images, models = excluded.models, updated_at = excluded.updated_at`,
		rec.JobID,
		rec.ArtifactName,
		rec.ArtifactKey,
		nullableString(rec.SourcePath),
		rec.State,
		nullableString(rec.Reason),
		nullableString(rec.ErrorMessage),
		nullableString(rec.ProjectDir),
		nullableString(rec.ArchivePath),
		nullableString(rec.RemoteID),
		nullableString(rec.Link),
		rec.Images,
		rec.Models,
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", rec.JobID, err)
	}
	return nil
}

// RecordLink stores the link for an artifact, replacing any earlier one.
func (s *Store) RecordLink(ctx context.Context, link Link) error {
	_, err := s.exec(ctx,
		`INSERT INTO links (artifact_name, url, remote_id, project_dir, generated_at) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(artifact_name) DO UPDATE SET
             url = excluded.url, remote_id = excluded.remote_id,
             project_dir = excluded.project_dir, generated_at = excluded.generated_at`,
		link.ArtifactName,
		link.URL,
		nullableString(link.RemoteID),
		nullableString(link.ProjectDir),
		formatTime(link.GeneratedAt),
	)
	if err != nil {
		return fmt.Errorf("record link %s: %w", link.ArtifactName, err)
	}
	return nil
}

// ListJobs returns up to limit jobs, most recently updated first. A limit of
// zero or less returns every row.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM jobs ORDER BY updated_at DESC, job_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetJob returns the job with id, or nil when it does not exist.
func (s *Store) GetJob(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM jobs WHERE job_id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &rec, nil
}

// ListLinks returns every stored link ordered by artifact name.
func (s *Store) ListLinks(ctx context.Context) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT artifact_name, url, remote_id, project_dir, generated_at FROM links ORDER BY artifact_name`)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var (
			link       Link
			remoteID   sql.NullString
			projectDir sql.NullString
			generated  string
		)
		if err := rows.Scan(&link.ArtifactName, &link.URL, &remoteID, &projectDir, &generated); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		link.RemoteID = remoteID.String
		link.ProjectDir = projectDir.String
		link.GeneratedAt = parseTime(generated)
		links = append(links, link)
	}
	return links, rows.Err()
}

// Stats counts jobs per state.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// Clear deletes every job and link and reports how many jobs were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	if _, err := s.exec(ctx, `DELETE FROM links`); err != nil {
		return 0, fmt.Errorf("clear links: %w", err)
	}
	return res.RowsAffected()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec                                    Record
		sourcePath, reason, errMsg, projectDir sql.NullString
		archivePath, remoteID, link            sql.NullString
		createdRaw, updatedRaw                 string
	)
	if err := scanner.Scan(
		&rec.JobID,
		&rec.ArtifactName,
		&rec.ArtifactKey,
		&sourcePath,
		&rec.State,
		&reason,
		&errMsg,
		&projectDir,
		&archivePath,
		&remoteID,
		&link,
		&rec.Images,
		&rec.Models,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return Record{}, err
	}
	rec.SourcePath = sourcePath.String
	rec.Reason = reason.String
	rec.ErrorMessage = errMsg.String
	rec.ProjectDir = projectDir.String
	rec.ArchivePath = archivePath.String
	rec.RemoteID = remoteID.String
	rec.Link = link.String
	rec.CreatedAt = parseTime(createdRaw)
	rec.UpdatedAt = parseTime(updatedRaw)
	return rec, nil
}
