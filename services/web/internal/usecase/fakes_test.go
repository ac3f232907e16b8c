package usecase_test

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vasapolrittideah/flowup/services/web/internal/model"
	"github.com/vasapolrittideah/flowup/services/web/internal/repository"
)

// memoryProfileRepository mirrors the Mongo repository: unique sub, unique
// email when present, sub match preferred on lookup.
type memoryProfileRepository struct {
	mu       sync.Mutex
	profiles []*model.Profile

	findCalls   int
	insertCalls int

	// beforeInsert runs inside InsertProfile before uniqueness is checked.
	beforeInsert func(r *memoryProfileRepository)
	insertNil    bool
	findErr      error
}

func newMemoryProfileRepository(seed ...*model.Profile) *memoryProfileRepository {
	r := &memoryProfileRepository{}
	for _, p := range seed {
		r.add(p)
	}
	return r
}

func (r *memoryProfileRepository) add(p *model.Profile) {
	cp := *p
	if cp.ID.IsZero() {
		cp.ID = bson.NewObjectID()
	}
	r.profiles = append(r.profiles, &cp)
}

func (r *memoryProfileRepository) FindProfileByIdentityOrEmail(
	_ context.Context,
	sub string,
	email string,
) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++

	if r.findErr != nil {
		return nil, r.findErr
	}

	var byEmail *model.Profile
	for _, p := range r.profiles {
		if p.Sub == sub {
			cp := *p
			return &cp, nil
		}
		if email != "" && p.Email == email && byEmail == nil {
			byEmail = p
		}
	}
	if byEmail != nil {
		cp := *byEmail
		return &cp, nil
	}
	return nil, repository.ErrProfileNotFound
}

func (r *memoryProfileRepository) InsertProfile(_ context.Context, profile *model.Profile) (*model.Profile, error) {
	r.mu.Lock()
	r.insertCalls++
	hook := r.beforeInsert
	r.beforeInsert = nil
	r.mu.Unlock()

	if hook != nil {
		hook(r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.insertNil {
		return nil, nil
	}
	for _, p := range r.profiles {
		if p.Sub == profile.Sub || (profile.Email != "" && p.Email == profile.Email) {
			return nil, repository.ErrProfileConflict
		}
	}

	r.add(profile)
	cp := *r.profiles[len(r.profiles)-1]
	return &cp, nil
}

func (r *memoryProfileRepository) GetUserProfile(_ context.Context, sub string) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.profiles {
		if p.Sub == sub {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrProfileNotFound
}

func (r *memoryProfileRepository) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findCalls + r.insertCalls
}

func (r *memoryProfileRepository) countBySub(sub string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, p := range r.profiles {
		if p.Sub == sub {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu      sync.Mutex
	created []*model.Profile
	err     error
	// release, when set, blocks ProfileCreated until it is closed.
	release chan struct{}
}

func (n *recordingNotifier) ProfileCreated(ctx context.Context, profile *model.Profile) error {
	if n.release != nil {
		select {
		case <-n.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, profile)
	return n.err
}

func (n *recordingNotifier) notified() []*model.Profile {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*model.Profile(nil), n.created...)
}
