package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/diagnoclinic/apiserver/types"
)

// DoctorRepository is the physician directory. The JSON document is read
// once at startup; every write rewrites it in full after copying the
// previous content to a .bak file.
type DoctorRepository struct {
	mu          sync.RWMutex
	path        string
	ordinalBase int
	doctors     map[string]types.Doctor
	byID        map[string]string
}

// OpenDoctorRepository hydrates the directory from path. Records missing a
// public ID or ordinal number are assigned one in memory; the file catches
// up on the next write.
func OpenDoctorRepository(path string, ordinalBase int) (*DoctorRepository, error) {
	r := &DoctorRepository{
		path:        path,
		ordinalBase: ordinalBase,
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *DoctorRepository) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw := map[string]types.Doctor{}
	if err := readJSON(r.path, &raw); err != nil {
		return err
	}

	r.doctors = make(map[string]types.Doctor, len(raw))
	r.byID = make(map[string]string, len(raw))

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		doctor := raw[key]
		doctor.Username = key
		id := normalizeID(doctor.ID)
		if id == "" || r.idTakenLocked(id) {
			id = allocatePublicID(key, r.idTakenLocked)
		}
		doctor.ID = id
		r.doctors[key] = doctor
		r.byID[id] = key
	}

	for _, key := range keys {
		doctor := r.doctors[key]
		if doctor.Ordinal == 0 {
			doctor.Ordinal = r.nextOrdinalLocked()
			r.doctors[key] = doctor
		}
	}
	return nil
}

// List returns every doctor sorted by username.
func (r *DoctorRepository) List(ctx context.Context) ([]types.Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doctors := make([]types.Doctor, 0, len(r.doctors))
	for _, doctor := range r.doctors {
		doctors = append(doctors, doctor)
	}
	sort.Slice(doctors, func(i, j int) bool {
		return doctors[i].Username < doctors[j].Username
	})
	return doctors, nil
}

// Get returns the doctor stored under username.
func (r *DoctorRepository) Get(ctx context.Context, username string) (types.Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doctor, ok := r.doctors[username]
	if !ok {
		return types.Doctor{}, ErrNotFound
	}
	return doctor, nil
}

// Resolve accepts either the storage key or the public ID.
func (r *DoctorRepository) Resolve(ctx context.Context, keyOrID string) (types.Doctor, error) {
	keyOrID = strings.TrimSpace(keyOrID)
	if keyOrID == "" {
		return types.Doctor{}, ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if doctor, ok := r.doctors[keyOrID]; ok {
		return doctor, nil
	}
	if doctor, ok := r.doctors[strings.ToLower(keyOrID)]; ok {
		return doctor, nil
	}
	if username, ok := r.byID[normalizeID(keyOrID)]; ok {
		return r.doctors[username], nil
	}
	return types.Doctor{}, ErrNotFound
}

// Create adds a doctor. An empty Username is derived from the display name
// and disambiguated with a numeric suffix; an empty ID and a zero ordinal are
// allocated. Allocation and insertion happen under one lock, so concurrent
// creations never receive the same key or ID.
func (r *DoctorRepository) Create(ctx context.Context, doctor types.Doctor) (types.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username := strings.TrimSpace(doctor.Username)
	if username == "" {
		username = allocateUsername(BaseUsername(doctor.Name), r.usernameTakenLocked)
	} else if r.usernameTakenLocked(username) {
		return types.Doctor{}, ErrConflict
	}
	doctor.Username = username

	id := normalizeID(doctor.ID)
	if id == "" {
		id = allocatePublicID(username, r.idTakenLocked)
	} else if r.idTakenLocked(id) {
		return types.Doctor{}, ErrConflict
	}
	doctor.ID = id

	if doctor.Ordinal == 0 {
		doctor.Ordinal = r.nextOrdinalLocked()
	}

	r.doctors[username] = doctor
	r.byID[id] = username
	return doctor, r.saveLocked()
}

// Update replaces an existing doctor. The public ID cannot change.
func (r *DoctorRepository) Update(ctx context.Context, doctor types.Doctor) (types.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.doctors[doctor.Username]
	if !ok {
		return types.Doctor{}, ErrNotFound
	}
	doctor.ID = current.ID
	if doctor.Ordinal == 0 {
		doctor.Ordinal = current.Ordinal
	}

	r.doctors[doctor.Username] = doctor
	return doctor, r.saveLocked()
}

func (r *DoctorRepository) saveLocked() error {
	backupFile(r.path)
	return persistErr(writeJSON(r.path, r.doctors))
}

func (r *DoctorRepository) usernameTakenLocked(username string) bool {
	_, ok := r.doctors[username]
	return ok
}

func (r *DoctorRepository) idTakenLocked(id string) bool {
	_, ok := r.byID[id]
	return ok
}

func (r *DoctorRepository) nextOrdinalLocked() int {
	highest := 0
	for _, doctor := range r.doctors {
		if doctor.Ordinal > highest {
			highest = doctor.Ordinal
		}
	}
	if highest == 0 {
		return r.ordinalBase
	}
	return highest + 1
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
