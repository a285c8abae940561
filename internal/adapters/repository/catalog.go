package repository

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/okian/classboard/internal/domain/model"
	"github.com/okian/classboard/internal/domain/types"
)

// CatalogFile is the catalogue's file name inside the data directory.
const CatalogFile = "assignments.json"

var assignmentIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Catalog serves assignment configuration from a JSON object keyed by
// assignment id. The file is re-read when its modification time changes.
type Catalog struct {
	path string

	mu      sync.RWMutex
	modTime time.Time
	byID    map[string]*model.Assignment
	ids     []string
}

// NewCatalog loads the catalogue at path. A missing file is an empty catalogue.
func NewCatalog(path string) (*Catalog, error) {
	c := &Catalog{path: path, byID: map[string]*model.Assignment{}}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the catalogue if the file changed since the last load.
func (c *Catalog) Reload() error {
	info, err := os.Stat(c.path)
	if errors.Is(err, os.ErrNotExist) {
		c.mu.Lock()
		c.byID, c.ids, c.modTime = map[string]*model.Assignment{}, nil, time.Time{}
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "stat %s", c.path)
	}

	c.mu.RLock()
	fresh := info.ModTime().Equal(c.modTime) && c.ids != nil
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return errors.Wrapf(err, "read %s", c.path)
	}
	byID, ids, err := parseCatalog(data)
	if err != nil {
		return errors.Wrapf(err, "%s", c.path)
	}

	c.mu.Lock()
	c.byID, c.ids, c.modTime = byID, ids, info.ModTime()
	c.mu.Unlock()
	return nil
}

func parseCatalog(data []byte) (map[string]*model.Assignment, []string, error) {
	var raw map[string]*model.Assignment
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, errors.Wrapf(ErrInvalidCatalog, "%v", err)
	}
	byID := make(map[string]*model.Assignment, len(raw))
	ids := make([]string, 0, len(raw))
	for id, a := range raw {
		if !assignmentIDPattern.MatchString(id) {
			return nil, nil, errors.Wrapf(ErrInvalidCatalog, "assignment id %q", id)
		}
		if a == nil {
			a = &model.Assignment{}
		}
		a.ID = id
		if err := a.Normalize(); err != nil {
			return nil, nil, errors.Wrapf(ErrInvalidCatalog, "%v", err)
		}
		byID[id] = a
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return byID, ids, nil
}

// AssignmentConfig implements reconcile.ConfigProvider.
func (c *Catalog) AssignmentConfig(_ context.Context, assignmentID string) (*model.Assignment, bool, error) {
	if err := c.Reload(); err != nil {
		return nil, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.byID[assignmentID]
	return a, ok, nil
}

// Assignments returns every configured assignment sorted by id.
func (c *Catalog) Assignments(_ context.Context) ([]*model.Assignment, error) {
	if err := c.Reload(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Assignment, len(c.ids))
	for i, id := range c.ids {
		out[i] = c.byID[id]
	}
	return out, nil
}

// LoadRoster reads the enrolled students from a JSON array. An empty path or
// a missing file yields no students.
func LoadRoster(path string) ([]types.RosterStudent, error) {
	if path == "" {
		return nil, nil
	}
	var roster []types.RosterStudent
	if _, err := readJSON(path, &roster); err != nil {
		return nil, err
	}
	return roster, nil
}
