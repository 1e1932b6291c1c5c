package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-field-extractor/internal/infra/metrics"
)

// Role tells what an artifact holds.
type Role string

const (
	RoleInput  Role = "input"
	RoleOutput Role = "output"
)

var (
	ErrScopeClosed = errors.New("staging scope closed")
	ErrInvalidRole = errors.New("invalid artifact role")

	artifactNameRe = regexp.MustCompile(`^(input|output)_[0-9A-HJKMNP-TV-Z]{26}\.txt$`)
)

// Artifact is a temporary file owned by exactly one request.
type Artifact struct {
	Token     string
	RequestID string
	Role      Role
	Path      string
	CreatedAt time.Time
}

// OpenRead opens the artifact read-only.
func (a *Artifact) OpenRead() (*os.File, error) {
	return os.Open(a.Path)
}

// OpenWrite truncates the artifact and opens it for writing.
func (a *Artifact) OpenWrite() (*os.File, error) {
	return os.OpenFile(a.Path, os.O_WRONLY|os.O_TRUNC, 0o600)
}

// Size returns the current size of the artifact on disk.
func (a *Artifact) Size() (int64, error) {
	fi, err := os.Stat(a.Path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Store manages the staging directory. The directory is assumed to be
// used exclusively by one Store.
type Store struct {
	dir  string
	log  *zerolog.Logger
	mu   sync.Mutex
	held map[string]*Artifact
}

// New creates dir if needed and returns a Store rooted there.
func New(dir string, logger *zerolog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("staging dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve staging dir: %w", err)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "StagingStore").Logger()
	return &Store{dir: abs, log: &l, held: map[string]*Artifact{}}, nil
}

func (s *Store) Dir() string { return s.dir }

// Acquire creates a new uniquely named empty file for requestID.
// The name is derived from a ULID, not from requestID, so retries of the
// same request never collide.
func (s *Store) Acquire(requestID string, role Role) (*Artifact, error) {
	if role != RoleInput && role != RoleOutput {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	token := ulid.Make().String()
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.txt", role, token))

	a := &Artifact{Token: token, RequestID: requestID, Role: role, Path: path, CreatedAt: time.Now()}

	// Registered before the file exists so a concurrent Sweep never sees
	// an unowned file.
	s.mu.Lock()
	s.held[token] = a
	n := len(s.held)
	s.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err == nil {
		if err = f.Close(); err != nil {
			_ = os.Remove(path)
		}
	}
	if err != nil {
		s.mu.Lock()
		delete(s.held, token)
		s.mu.Unlock()
		return nil, fmt.Errorf("acquire artifact: %w", err)
	}

	metrics.IncArtifact("acquired")
	metrics.SetArtifactsActive(n)
	s.log.Debug().Str("request_id", requestID).Str("artifact", token).Str("role", string(role)).Msg("artifact acquired")
	return a, nil
}

// Release deletes the artifact's file. Releasing twice, or releasing an
// artifact whose file is already gone, is not an error.
func (s *Store) Release(a *Artifact) error {
	if a == nil {
		return nil
	}
	s.mu.Lock()
	_, ok := s.held[a.Token]
	delete(s.held, a.Token)
	n := len(s.held)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	metrics.IncArtifact("released")
	metrics.SetArtifactsActive(n)
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Error().Err(err).Str("artifact", a.Token).Msg("failed to remove artifact")
		return fmt.Errorf("release artifact: %w", err)
	}
	s.log.Debug().Str("request_id", a.RequestID).Str("artifact", a.Token).Msg("artifact released")
	return nil
}

// Active is the number of artifacts currently held.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.held)
}

// Sweep removes files that follow the artifact naming scheme but are not
// held by this store, e.g. leftovers of a crashed process.
func (s *Store) Sweep() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("sweep staging dir: %w", err)
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !artifactNameRe.MatchString(e.Name()) {
			continue
		}
		token := tokenFromName(e.Name())
		s.mu.Lock()
		_, held := s.held[token]
		s.mu.Unlock()
		if held {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		metrics.AddArtifactsSwept(removed)
		s.log.Info().Int("count", removed).Msg("swept orphaned artifacts")
	}
	return removed, errors.Join(errs...)
}

func tokenFromName(name string) string {
	base := name[:len(name)-len(filepath.Ext(name))]
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '_' {
			return base[i+1:]
		}
	}
	return base
}
