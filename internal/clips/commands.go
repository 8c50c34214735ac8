package clips

import (
	"fmt"

	"github.com/listenupapp/clipdeck/internal/domain"
)

// Command is one store mutation. Apply dispatches it to the matching method so
// every mutation path goes through the same invariant checks.
type Command interface {
	command()
}

// AddCommand adds a clip with its flashcard.
type AddCommand struct {
	TimelineID string
	Clip       domain.Clip
	Flashcard  domain.Flashcard
}

// MoveCommand shifts a clip and absorbs OverlapIDs.
type MoveCommand struct {
	ClipID     string
	DeltaMs    int64
	OverlapIDs []string
}

// StretchCommand moves one clip edge and absorbs OverlapIDs.
type StretchCommand struct {
	ClipID     string
	Edge       domain.Edge
	Boundary   int64
	OverlapIDs []string
}

// MergeCommand collapses AbsorbedIDs into SurvivorID.
type MergeCommand struct {
	SurvivorID  string
	AbsorbedIDs []string
}

// DeleteCommand removes clips.
type DeleteCommand struct {
	ClipIDs []string
}

// UpdateFlashcardCommand replaces a clip's flashcard.
type UpdateFlashcardCommand struct {
	Flashcard domain.Flashcard
}

func (AddCommand) command()             {}
func (MoveCommand) command()            {}
func (StretchCommand) command()         {}
func (MergeCommand) command()           {}
func (DeleteCommand) command()          {}
func (UpdateFlashcardCommand) command() {}

// Apply executes cmd.
func (s *Store) Apply(cmd Command) error {
	switch c := cmd.(type) {
	case AddCommand:
		_, err := s.Add(c.TimelineID, c.Clip, c.Flashcard)
		return err
	case MoveCommand:
		return s.Move(c.ClipID, c.DeltaMs, c.OverlapIDs)
	case StretchCommand:
		return s.Stretch(c.ClipID, c.Edge, c.Boundary, c.OverlapIDs)
	case MergeCommand:
		return s.MergeInto(c.SurvivorID, c.AbsorbedIDs)
	case DeleteCommand:
		s.DeleteMany(c.ClipIDs)
		return nil
	case UpdateFlashcardCommand:
		_, err := s.UpdateFlashcard(c.Flashcard)
		return err
	default:
		panic(fmt.Sprintf("clips: unknown command %T", cmd))
	}
}
