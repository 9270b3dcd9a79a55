package directory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/qj0r9j0vc2/chat-relay/internal/domain/entity"
)

// Logger defines the contract for logging within the directory source.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// CSVDirectory serves preferred names out of a people-directory CSV. The
// sheet lives either behind a URL, re-fetched when the cache TTL expires,
// or in a local file, re-read when its modification time changes.
//
// Implements identity.Directory and tools.PersonLookup.
type CSVDirectory struct {
	url    string
	path   string
	ttl    time.Duration
	client *http.Client
	logger Logger
	now    func() time.Time

	mu        sync.RWMutex
	records   map[string]string
	fetchedAt time.Time
	fileMod   time.Time
}

// New creates a CSV directory source. Exactly one of url and path should
// be set; when both are, the URL wins.
func New(url, path string, ttl time.Duration, logger Logger) *CSVDirectory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CSVDirectory{
		url:     url,
		path:    path,
		ttl:     ttl,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
		now:     time.Now,
		records: make(map[string]string),
	}
}

// PreferredName returns the directory name for a user, or "" when the
// sheet has no record.
func (d *CSVDirectory) PreferredName(ctx context.Context, userID string) (string, error) {
	if err := d.refresh(ctx); err != nil {
		return "", err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.records[entity.NormalizeUserID(userID)], nil
}

func (d *CSVDirectory) refresh(ctx context.Context) error {
	if d.url != "" {
		return d.refreshRemote(ctx)
	}
	return d.refreshFile()
}

func (d *CSVDirectory) refreshRemote(ctx context.Context) error {
	d.mu.RLock()
	fresh := !d.fetchedAt.IsZero() && d.now().Sub(d.fetchedAt) < d.ttl
	d.mu.RUnlock()
	if fresh {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return fmt.Errorf("building directory request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching directory: unexpected status %d", resp.StatusCode)
	}

	records, err := parse(resp.Body)
	if err != nil {
		return fmt.Errorf("parsing directory: %w", err)
	}

	d.mu.Lock()
	d.records = records
	d.fetchedAt = d.now()
	d.mu.Unlock()

	d.logger.Info("directory refreshed", "source", "remote", "entries", len(records))
	return nil
}

func (d *CSVDirectory) refreshFile() error {
	info, err := os.Stat(d.path)
	if err != nil {
		return fmt.Errorf("stat directory file: %w", err)
	}

	d.mu.RLock()
	unchanged := !d.fileMod.IsZero() && info.ModTime().Equal(d.fileMod)
	d.mu.RUnlock()
	if unchanged {
		return nil
	}

	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("opening directory file: %w", err)
	}
	defer f.Close()

	records, err := parse(f)
	if err != nil {
		return fmt.Errorf("parsing directory file: %w", err)
	}

	d.mu.Lock()
	d.records = records
	d.fileMod = info.ModTime()
	d.mu.Unlock()

	d.logger.Info("directory refreshed", "source", "file", "entries", len(records))
	return nil
}

// parse reads the sheet into a userID -> preferred name map. The header
// row locates the user ID column and the name columns; the "pref" name
// column beats the "first" name column per record.
func parse(r io.Reader) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idCol, prefCol, firstCol := -1, -1, -1
	for i, h := range header {
		switch normalizeHeader(h) {
		case "slackid", "slackmemberid", "memberid", "userid", "slackuserid":
			if idCol < 0 {
				idCol = i
			}
		case "namepref", "preferredname", "prefname":
			if prefCol < 0 {
				prefCol = i
			}
		case "namefirst", "firstname", "name":
			if firstCol < 0 {
				firstCol = i
			}
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("no user ID column in header %v", header)
	}
	if prefCol < 0 && firstCol < 0 {
		return nil, fmt.Errorf("no name column in header %v", header)
	}

	out := make(map[string]string)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		userID := ""
		if idCol < len(row) {
			userID = entity.NormalizeUserID(row[idCol])
		}
		if userID == "" {
			continue
		}

		name := ""
		if prefCol >= 0 && prefCol < len(row) {
			name = strings.TrimSpace(row[prefCol])
		}
		if name == "" && firstCol >= 0 && firstCol < len(row) {
			name = strings.TrimSpace(row[firstCol])
		}
		if name == "" {
			continue
		}
		out[userID] = name
	}
	return out, nil
}

// normalizeHeader lowercases a header cell and strips everything but
// letters and digits, so "Name (pref)" and "name_pref" match the same key.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
