package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aperturehq/aperture/internal/apperrors"
	"github.com/aperturehq/aperture/internal/logging"
)

// LoadOptions parameterizes one Loader.Load call, mirroring the excerpt of
// Policy the loader consumes.
type LoadOptions struct {
	ExcludedGlobs []string
	MaxFiles      int
	SinceUnix     int64 // 0 = no lower bound
	HistoryDepth  int   // 0 = unbounded
	PolicyHash    string
}

// Loader produces Snapshots from a working tree path and a ref.
type Loader struct{}

// NewLoader returns a Loader.
func NewLoader() *Loader { return &Loader{} }

// Load walks the working tree at path and assembles a Snapshot. A ref other
// than "." (the working copy) is only verified to exist; files and history
// are still read from the working tree and its checked-out HEAD, not from
// that ref. NotARepository and RefNotFound are fatal; FileUnreadable is
// logged and the file is simply absent from the Snapshot.
func (l *Loader) Load(ctx context.Context, path, ref string, opts LoadOptions) (*Snapshot, error) {
	timer := logging.StartTimer(logging.CategoryLoader, "Load")
	defer timer.StopWithInfo()

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotARepository, path)
	}
	if ref != "." && ref != "" {
		if err := checkRefExists(ctx, path, ref); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrRefNotFound, ref, err)
		}
	}

	files, err := walkAndHash(ctx, path, opts)
	if err != nil {
		return nil, err
	}

	commits, err := scanGitHistory(ctx, path, opts)
	if err != nil {
		logging.Get(logging.CategoryLoader).Warn("git history scan failed, proceeding with no history: %v", err)
		commits = nil
	}

	manifest := parseManifest(path)

	snap := New(path, ref, files, commits, manifest, opts.PolicyHash)
	logging.Get(logging.CategoryLoader).Info("loaded snapshot %s: %d files, %d commits", snap.ID(), len(snap.Files), len(snap.Commits))
	return snap, nil
}

func checkRefExists(ctx context.Context, root, ref string) error {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", ref)
	cmd.Dir = root
	return cmd.Run()
}

// walkAndHash walks the tree, skipping excluded globs, hashing file content,
// and inferring language by extension, honoring the MaxFiles bound.
func walkAndHash(ctx context.Context, root string, opts LoadOptions) ([]FileEntry, error) {
	var files []FileEntry

	err := filepath.Walk(root, func(p string, fi os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			rel = p
		}
		if fi.IsDir() {
			if rel != "." && isExcluded(rel, opts.ExcludedGlobs) {
				return filepath.SkipDir
			}
			return nil
		}
		if isExcluded(rel, opts.ExcludedGlobs) {
			return nil
		}
		if opts.MaxFiles > 0 && len(files) >= opts.MaxFiles {
			return filepath.SkipAll
		}

		hash, size, err := hashFile(p)
		if err != nil {
			logging.Get(logging.CategoryLoader).Warn("%v: %s: %v", apperrors.ErrFileUnreadable, rel, err)
			return nil
		}
		files = append(files, FileEntry{
			Path:        filepath.ToSlash(rel),
			Language:    languageFromExt(filepath.Ext(p)),
			ByteLength:  size,
			ContentHash: hash,
		})
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return nil, err
	}
	return files, nil
}

// isExcluded matches rel against each glob pattern, both as a whole path and
// per path segment.
func isExcluded(rel string, globs []string) bool {
	relSlash := filepath.ToSlash(rel)
	for _, g := range globs {
		if ok, _ := filepath.Match(g, relSlash); ok {
			return true
		}
		// Support "dir/*" matching anything under dir at any depth, not just
		// one level at the root.
		if strings.HasSuffix(g, "/*") {
			prefix := strings.TrimSuffix(g, "/*")
			if relSlash == prefix || strings.HasPrefix(relSlash, prefix+"/") ||
				strings.Contains(relSlash, "/"+prefix+"/") || strings.HasSuffix(relSlash, "/"+prefix) {
				return true
			}
		}
		for _, seg := range strings.Split(relSlash, "/") {
			if ok, _ := filepath.Match(g, seg); ok {
				return true
			}
		}
	}
	return false
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

var extToLanguage = map[string]string{
	".go": "go", ".py": "python", ".js": "javascript", ".jsx": "javascript",
	".ts": "typescript", ".tsx": "typescript", ".java": "java", ".cs": "csharp",
	".rs": "rust", ".c": "c", ".h": "c", ".cpp": "cpp", ".cc": "cpp", ".rb": "ruby",
}

func languageFromExt(ext string) string {
	if lang, ok := extToLanguage[strings.ToLower(ext)]; ok {
		return lang
	}
	return "unknown"
}

// scanGitHistory shells out to `git log --numstat`, parsing commit metadata
// and per-file added/deleted line counts.
func scanGitHistory(ctx context.Context, root string, opts LoadOptions) ([]CommitRecord, error) {
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return nil, nil // not a git repo: history-less snapshot, not an error
	}

	args := []string{"log", "--pretty=format:COMMIT:%H|%P|%an <%ae>|%ct", "--numstat"}
	if opts.HistoryDepth > 0 {
		args = append(args, fmt.Sprintf("-n%d", opts.HistoryDepth))
	}
	if opts.SinceUnix > 0 {
		args = append(args, fmt.Sprintf("--since=@%d", opts.SinceUnix))
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git log failed: %w", err)
	}

	var commits []CommitRecord
	var cur *CommitRecord

	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "COMMIT:") {
			if cur != nil {
				commits = append(commits, *cur)
			}
			parts := strings.SplitN(strings.TrimPrefix(line, "COMMIT:"), "|", 4)
			if len(parts) < 4 {
				cur = nil
				continue
			}
			var parents []string
			if parts[1] != "" {
				parents = strings.Fields(parts[1])
			}
			ts, _ := strconv.ParseInt(parts[3], 10, 64)
			cur = &CommitRecord{
				ID:            parts[0],
				ParentIDs:     parents,
				AuthorKey:     authorKey(parts[2]),
				TimestampUnix: ts,
			}
			continue
		}
		if cur == nil || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		added, _ := strconv.Atoi(fields[0])
		deleted, _ := strconv.Atoi(fields[1])
		cur.Touched = append(cur.Touched, TouchedFile{Path: fields[2], Added: added, Deleted: deleted})
	}
	if cur != nil {
		commits = append(commits, *cur)
	}
	return commits, nil
}

// authorKey returns a stable hash of the author identity rather than the raw
// email.
func authorKey(raw string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(h[:])[:16]
}

// parseManifest looks for a go.mod at root and extracts require lines as a
// coarse DependencyManifest; richer manifest formats are the Structure
// analyzer's concern, not the Loader's.
func parseManifest(root string) DependencyManifest {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return nil
	}
	manifest := make(DependencyManifest)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, " v") || strings.HasPrefix(line, "module") || strings.HasPrefix(line, "go ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && strings.HasPrefix(fields[len(fields)-1], "v") {
			manifest[fields[0]] = fields[len(fields)-1]
		}
	}
	if len(manifest) == 0 {
		return nil
	}
	return manifest
}
