package keygen

import (
	"context"
	"time"

	"mpc-wallet/internal/dto"
	"mpc-wallet/internal/logger"
	"mpc-wallet/internal/mpcerr"
	"mpc-wallet/internal/session"
)

// Session tracks one key generation quorum: which of the n parties have
// registered, and the terminal outcome. The tracker does no cryptography;
// the key material itself is produced by the keygen collaborator and
// delivered through the finalize event.
type Session struct {
	ID         string
	WalletName string
	Threshold  int
	Total      int
	Members    []dto.KeygenMember
	Status     dto.KeygenStatus
	Message    string
	CreatedAt  time.Time
}

func (s *Session) RecordID() string { return s.ID }

func (s *Session) progress() dto.KeygenProgress {
	members := make([]dto.KeygenMember, len(s.Members))
	copy(members, s.Members)
	return dto.KeygenProgress{
		Members:  members,
		Progress: 100 * len(s.Members) / s.Total,
	}
}

// FinalizeFunc receives a snapshot of a session the moment its quorum
// completes. The keygen collaborator reacts by producing and storing the
// encrypted key shares.
type FinalizeFunc func(id string, members []dto.KeygenMember)

// Tracker manages keygen sessions from creation to quorum completion.
type Tracker struct {
	registry   *session.Registry[*Session]
	onFinalize FinalizeFunc
}

// NewTracker creates a tracker. persist may be nil; onFinalize may be nil
// when no collaborator is listening.
func NewTracker(persist session.PersistFunc[*Session], onFinalize FinalizeFunc) *Tracker {
	return &Tracker{
		registry:   session.NewRegistry[*Session](persist),
		onFinalize: onFinalize,
	}
}

// Create registers a new keygen session in CREATED state.
func (t *Tracker) Create(ctx context.Context, req dto.CreateKeygenRequest) error {
	if req.KeygenID == "" {
		return mpcerr.New(mpcerr.CodeInvalidRequest, "keygen id is required")
	}
	if req.Threshold < 1 || req.Threshold > req.NumberOfMembers {
		return mpcerr.New(mpcerr.CodeInvalidRequest,
			"threshold %d must be within [1, %d]", req.Threshold, req.NumberOfMembers)
	}
	s := &Session{
		ID:         req.KeygenID,
		WalletName: req.WalletName,
		Threshold:  req.Threshold,
		Total:      req.NumberOfMembers,
		Status:     dto.KeygenCreated,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := t.registry.Add(ctx, s)
	return err
}

// Join registers one member. The n-th distinct member completes the quorum:
// the session transitions to COMPLETED and the finalize event fires with
// the full member list.
func (t *Tracker) Join(ctx context.Context, id string, member dto.KeygenMember) (dto.KeygenProgress, error) {
	var (
		prog      dto.KeygenProgress
		completed []dto.KeygenMember
	)
	_, err := t.registry.Update(ctx, id, session.ForceVersion, func(s *Session) error {
		if s.Status == dto.KeygenFailed {
			return mpcerr.New(mpcerr.CodeSessionClosed, "keygen session %s has failed", id)
		}
		if len(s.Members) == s.Total {
			return mpcerr.New(mpcerr.CodeSessionFull, "keygen session %s already has %d members", id, s.Total)
		}
		if member.PartyID < 1 {
			return mpcerr.New(mpcerr.CodeInvalidRequest, "party id %d must be >= 1", member.PartyID)
		}
		for _, m := range s.Members {
			if m.PartyID == member.PartyID {
				return mpcerr.New(mpcerr.CodeDuplicateParty, "party %d already joined session %s", member.PartyID, id)
			}
		}
		s.Members = append(s.Members, member)
		if len(s.Members) == s.Total {
			s.Status = dto.KeygenCompleted
			completed = make([]dto.KeygenMember, len(s.Members))
			copy(completed, s.Members)
		}
		prog = s.progress()
		return nil
	})
	if err != nil {
		return dto.KeygenProgress{}, err
	}
	if completed != nil {
		logger.Log.Infof("keygen session %s reached full quorum of %d members", id, len(completed))
		if t.onFinalize != nil {
			t.onFinalize(id, completed)
		}
	}
	return prog, nil
}

// Progress reports the current join progress of a session.
func (t *Tracker) Progress(id string) (dto.KeygenProgress, error) {
	var prog dto.KeygenProgress
	err := t.registry.View(id, func(s *Session, _ int64) error {
		prog = s.progress()
		return nil
	})
	return prog, err
}

// Status reports the lifecycle state of a session.
func (t *Tracker) Status(id string) (dto.KeygenStatus, error) {
	var st dto.KeygenStatus
	err := t.registry.View(id, func(s *Session, _ int64) error {
		st = s.Status
		return nil
	})
	return st, err
}

// Abort forces a session to FAILED. Aborting an already-terminal session is
// a no-op, not an error.
func (t *Tracker) Abort(ctx context.Context, id string, reason string) error {
	_, err := t.registry.Update(ctx, id, session.ForceVersion, func(s *Session) error {
		if s.Status.Terminal() {
			return nil
		}
		s.Status = dto.KeygenFailed
		s.Message = reason
		logger.Log.Warnf("keygen session %s aborted: %s", id, reason)
		return nil
	})
	return err
}
