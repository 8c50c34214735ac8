package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/listenupapp/clipdeck/internal/clips"
	"github.com/listenupapp/clipdeck/internal/domain"
	"github.com/listenupapp/clipdeck/internal/errors"
)

// SavedTimeline summarizes one stored snapshot.
type SavedTimeline struct {
	Timeline  domain.Timeline `json:"timeline"`
	SavedAt   time.Time       `json:"saved_at"`
	ClipCount int             `json:"clip_count"`
}

// SaveSnapshot replaces the stored state of snap's timeline in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap clips.Snapshot) error {
	cards := make(map[string]domain.Flashcard, len(snap.Flashcards))
	for _, card := range snap.Flashcards {
		cards[card.ID] = card
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO timelines (id, duration_ms, pixels_per_second, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			duration_ms = excluded.duration_ms,
			pixels_per_second = excluded.pixels_per_second,
			saved_at = excluded.saved_at`,
		snap.Timeline.ID,
		snap.Timeline.DurationMs,
		snap.Timeline.PixelsPerSecond,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert timeline: %w", err)
	}

	// Flashcards go with their clips via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM clips WHERE timeline_id = ?`, snap.Timeline.ID); err != nil {
		return fmt.Errorf("clear clips: %w", err)
	}

	for _, clip := range snap.Clips {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clips (id, timeline_id, start_ms, end_ms)
			VALUES (?, ?, ?, ?)`,
			clip.ID, snap.Timeline.ID, clip.Start, clip.End,
		)
		if err != nil {
			return fmt.Errorf("insert clip %s: %w", clip.ID, err)
		}

		card, ok := cards[clip.ID]
		if !ok {
			card = domain.NewFlashcard(clip.ID)
		}
		if err := insertFlashcard(ctx, tx, card); err != nil {
			return fmt.Errorf("insert flashcard %s: %w", clip.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug("snapshot saved", "timeline_id", snap.Timeline.ID, "clips", len(snap.Clips))
	return nil
}

func insertFlashcard(ctx context.Context, tx *sql.Tx, card domain.Flashcard) error {
	card = card.Clone()
	fieldsJSON, err := json.Marshal(card.Fields)
	if err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(card.Tags)
	if err != nil {
		return err
	}
	clozesJSON, err := json.Marshal(card.Clozes)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO flashcards (clip_id, fields, tags, clozes)
		VALUES (?, ?, ?, ?)`,
		card.ID, string(fieldsJSON), string(tagsJSON), string(clozesJSON),
	)
	return err
}

// LoadSnapshot reads a stored timeline. Clips come back in start order.
// Returns a NOT_FOUND error if the timeline was never saved.
func (s *Store) LoadSnapshot(ctx context.Context, timelineID string) (clips.Snapshot, error) {
	var snap clips.Snapshot
	err := s.db.QueryRowContext(ctx,
		`SELECT id, duration_ms, pixels_per_second FROM timelines WHERE id = ?`, timelineID,
	).Scan(&snap.Timeline.ID, &snap.Timeline.DurationMs, &snap.Timeline.PixelsPerSecond)
	if err == sql.ErrNoRows {
		return clips.Snapshot{}, errors.NotFoundf("no snapshot for timeline %q", timelineID)
	}
	if err != nil {
		return clips.Snapshot{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.start_ms, c.end_ms, f.fields, f.tags, f.clozes
		FROM clips c
		LEFT JOIN flashcards f ON f.clip_id = c.id
		WHERE c.timeline_id = ?
		ORDER BY c.start_ms`, timelineID)
	if err != nil {
		return clips.Snapshot{}, err
	}
	defer rows.Close()

	snap.Clips = []domain.Clip{}
	snap.Flashcards = []domain.Flashcard{}
	for rows.Next() {
		clip := domain.Clip{TimelineID: timelineID}
		var fieldsJSON, tagsJSON, clozesJSON sql.NullString
		if err := rows.Scan(&clip.ID, &clip.Start, &clip.End, &fieldsJSON, &tagsJSON, &clozesJSON); err != nil {
			return clips.Snapshot{}, err
		}

		card := domain.NewFlashcard(clip.ID)
		if err := unmarshalColumn(fieldsJSON, &card.Fields); err != nil {
			return clips.Snapshot{}, fmt.Errorf("flashcard %s fields: %w", clip.ID, err)
		}
		if err := unmarshalColumn(tagsJSON, &card.Tags); err != nil {
			return clips.Snapshot{}, fmt.Errorf("flashcard %s tags: %w", clip.ID, err)
		}
		if err := unmarshalColumn(clozesJSON, &card.Clozes); err != nil {
			return clips.Snapshot{}, fmt.Errorf("flashcard %s clozes: %w", clip.ID, err)
		}

		snap.Clips = append(snap.Clips, clip)
		snap.Flashcards = append(snap.Flashcards, card.Clone())
	}
	if err := rows.Err(); err != nil {
		return clips.Snapshot{}, err
	}
	return snap, nil
}

func unmarshalColumn(col sql.NullString, dst any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dst)
}

// ListTimelines returns every stored timeline, most recently saved first.
func (s *Store) ListTimelines(ctx context.Context) ([]SavedTimeline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.duration_ms, t.pixels_per_second, t.saved_at, COUNT(c.id)
		FROM timelines t
		LEFT JOIN clips c ON c.timeline_id = t.id
		GROUP BY t.id
		ORDER BY t.saved_at DESC, t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SavedTimeline
	for rows.Next() {
		var (
			st      SavedTimeline
			savedAt string
		)
		if err := rows.Scan(&st.Timeline.ID, &st.Timeline.DurationMs, &st.Timeline.PixelsPerSecond, &savedAt, &st.ClipCount); err != nil {
			return nil, err
		}
		if st.SavedAt, err = parseTime(savedAt); err != nil {
			return nil, fmt.Errorf("timeline %s saved_at: %w", st.Timeline.ID, err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// DeleteTimeline removes a stored timeline with its clips and flashcards.
// Returns a NOT_FOUND error if the timeline was never saved.
func (s *Store) DeleteTimeline(ctx context.Context, timelineID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM timelines WHERE id = ?`, timelineID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundf("no snapshot for timeline %q", timelineID)
	}
	s.logger.Debug("snapshot deleted", "timeline_id", timelineID)
	return nil
}
