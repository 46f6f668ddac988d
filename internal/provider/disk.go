package provider

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/remotefs/internal/errors"
	"github.com/Aman-CERP/remotefs/internal/event"
	"github.com/Aman-CERP/remotefs/internal/vfs"
	"github.com/Aman-CERP/remotefs/internal/watcher"
)

// Disk provider defaults.
const (
	DefaultMaxOpenFiles    = 256
	DefaultStreamChunkSize = 64 * 1024
	DefaultCopyConcurrency = 8
)

// DiskOptions configures a DiskProvider.
type DiskOptions struct {
	// Root is the directory resources are resolved against. Empty serves the
	// whole file system.
	Root   string
	Logger *slog.Logger
	// MaxOpenFiles bounds the descriptor table. The least recently used
	// descriptor is closed when the table is full.
	MaxOpenFiles    int
	StreamChunkSize int
	HighWaterMark   int
	CopyConcurrency int
	// CaseSensitive overrides the platform's path case sensitivity.
	CaseSensitive *bool
	// Watch configures the watch scopes created by this provider. Nil
	// factories select the native fsnotify watchers.
	Watch   watcher.ServiceOptions
	Watcher watcher.Options
}

// DiskProvider implements FileSystem on the local disk.
type DiskProvider struct {
	root      string
	logger    *slog.Logger
	chunkSize int
	hwm       int
	copyLimit int
	watchOpts watcher.ServiceOptions

	caps   *vfs.CapabilitySet
	fds    *lru.Cache[int, *openFile]
	nextFD atomic.Int64

	scopeMu sync.Mutex
	scope   *WatchScope

	disposeOnce sync.Once
}

var _ FileSystem = (*DiskProvider)(nil)

// openFile is one entry of the descriptor table.
type openFile struct {
	file *os.File
	lock *flock.Flock
	path string

	once sync.Once
	err  error
}

func (f *openFile) close() error {
	f.once.Do(func() {
		f.err = f.file.Close()
		if f.lock != nil {
			if err := f.lock.Unlock(); err != nil && f.err == nil {
				f.err = err
			}
		}
	})
	return f.err
}

// NewDiskProvider creates a DiskProvider.
func NewDiskProvider(opts DiskOptions) (*DiskProvider, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxOpenFiles <= 0 {
		opts.MaxOpenFiles = DefaultMaxOpenFiles
	}
	if opts.StreamChunkSize <= 0 {
		opts.StreamChunkSize = DefaultStreamChunkSize
	}
	if opts.CopyConcurrency <= 0 {
		opts.CopyConcurrency = DefaultCopyConcurrency
	}

	root := string(filepath.Separator)
	if opts.Root != "" {
		abs, err := filepath.Abs(opts.Root)
		if err != nil {
			return nil, fmt.Errorf("resolve root %s: %w", opts.Root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, errors.FromOS(err, abs)
		}
		if !info.IsDir() {
			return nil, errors.New(errors.ErrCodeFileNotADirectory, fmt.Sprintf("root is not a directory: %s", abs), nil)
		}
		root = abs
	}

	logger := opts.Logger.With(slog.String("component", "disk-provider"))
	fds, err := lru.NewWithEvict[int, *openFile](opts.MaxOpenFiles, func(fd int, f *openFile) {
		if err := f.close(); err != nil {
			logger.Warn("close evicted descriptor failed",
				slog.Int("fd", fd),
				slog.String("path", f.path),
				slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create descriptor table: %w", err)
	}

	watchOpts := opts.Watch
	if watchOpts.Logger == nil {
		watchOpts.Logger = opts.Logger
	}
	if watchOpts.RecursiveFactory == nil {
		watchOpts.RecursiveFactory = watcher.NewNativeRecursiveFactory(opts.Watcher)
	}
	if watchOpts.FileFactory == nil {
		watchOpts.FileFactory = watcher.NewNativeFileFactory(opts.Watcher)
	}

	caps := vfs.NewCapabilitySet(vfs.DefaultCapabilities)
	caseSensitive := platformCaseSensitive()
	if opts.CaseSensitive != nil {
		caseSensitive = *opts.CaseSensitive
	}
	caps.SetCaseSensitive(caseSensitive)

	return &DiskProvider{
		root:      root,
		logger:    logger,
		chunkSize: opts.StreamChunkSize,
		hwm:       opts.HighWaterMark,
		copyLimit: opts.CopyConcurrency,
		watchOpts: watchOpts,
		caps:      caps,
		fds:       fds,
	}, nil
}

func platformCaseSensitive() bool {
	switch runtime.GOOS {
	case "darwin", "windows", "ios":
		return false
	default:
		return true
	}
}

// Root returns the directory resources are resolved against.
func (p *DiskProvider) Root() string { return p.root }

// Resolve maps a resource to its path on disk. Paths cannot escape the root.
func (p *DiskProvider) Resolve(resource vfs.URI) (string, error) {
	if resource.Scheme != vfs.SchemeFile {
		return "", errors.InvalidInput(fmt.Sprintf("unsupported scheme %q", resource.Scheme))
	}
	clean := path.Clean("/" + resource.Path)
	return filepath.Join(p.root, filepath.FromSlash(clean)), nil
}

// URIFor maps a path on disk back to a resource.
func (p *DiskProvider) URIFor(osPath string) vfs.URI {
	rel, err := filepath.Rel(p.root, osPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return vfs.File(filepath.ToSlash(osPath))
	}
	if rel == "." {
		return vfs.File("/")
	}
	return vfs.File("/" + filepath.ToSlash(rel))
}

func (p *DiskProvider) Capabilities() vfs.Capabilities {
	return p.caps.Value()
}

func (p *DiskProvider) OnDidChangeCapabilities(fn func()) event.Disposable {
	return p.caps.OnDidChange(fn)
}

func (p *DiskProvider) Stat(ctx context.Context, resource vfs.URI) (vfs.Stat, error) {
	name, err := p.Resolve(resource)
	if err != nil {
		return vfs.Stat{}, err
	}
	return statPath(name)
}

func statPath(name string) (vfs.Stat, error) {
	info, err := os.Lstat(name)
	if err != nil {
		return vfs.Stat{}, errors.FromOS(err, name)
	}

	var typ vfs.FileType
	if info.Mode()&fs.ModeSymlink != 0 {
		typ = vfs.FileTypeSymbolicLink
		if target, err := os.Stat(name); err == nil {
			info = target
			typ |= fileTypeOf(target.Mode())
		}
	} else {
		typ = fileTypeOf(info.Mode())
	}

	mtime := info.ModTime().UnixMilli()
	st := vfs.Stat{
		Type:  typ,
		Ctime: mtime,
		Mtime: mtime,
		Size:  info.Size(),
	}
	if info.Mode().Perm()&0o200 == 0 {
		st.Permissions = vfs.PermissionReadonly
	}
	return st, nil
}

func fileTypeOf(mode fs.FileMode) vfs.FileType {
	switch {
	case mode.IsDir():
		return vfs.FileTypeDirectory
	case mode.IsRegular():
		return vfs.FileTypeFile
	case mode&fs.ModeSymlink != 0:
		return vfs.FileTypeSymbolicLink
	default:
		return vfs.FileTypeUnknown
	}
}

func (p *DiskProvider) ReadDir(ctx context.Context, resource vfs.URI) ([]vfs.DirEntry, error) {
	dir, err := p.Resolve(resource)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.FromOS(err, dir)
	}

	out := make([]vfs.DirEntry, 0, len(entries))
	for _, e := range entries {
		typ := fileTypeOf(e.Type())
		if typ.IsSymlink() {
			if target, err := os.Stat(filepath.Join(dir, e.Name())); err == nil {
				typ |= fileTypeOf(target.Mode())
			}
		}
		out = append(out, vfs.DirEntry{Name: e.Name(), Type: typ})
	}
	return out, nil
}

func (p *DiskProvider) ReadFile(ctx context.Context, resource vfs.URI) ([]byte, error) {
	name, err := p.Resolve(resource)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.FromOS(err, name)
	}
	return data, nil
}

// WriteFile writes content to resource while holding its write lock.
func (p *DiskProvider) WriteFile(ctx context.Context, resource vfs.URI, content []byte, opts vfs.WriteOptions) error {
	name, err := p.Resolve(resource)
	if err != nil {
		return err
	}

	info, err := os.Stat(name)
	switch {
	case err == nil:
		if info.IsDir() {
			return errors.New(errors.ErrCodeFileIsADirectory, fmt.Sprintf("is a directory: %s", name), nil).
				WithDetail("resource", name)
		}
		if !opts.Overwrite {
			return errors.New(errors.ErrCodeFileExists, fmt.Sprintf("file exists: %s", name), nil).
				WithDetail("resource", name)
		}
		if err := p.ensureWritable(name, info, opts.Unlock); err != nil {
			return err
		}
	case os.IsNotExist(err):
		if !opts.Create {
			return errors.FileNotFound(name, err)
		}
	default:
		return errors.FromOS(err, name)
	}

	f, lock, err := p.openLocked(name, os.O_WRONLY|os.O_CREATE)
	if err != nil {
		return err
	}
	defer lock.Unlock()
	defer f.Close()

	if err := f.Truncate(0); err != nil {
		return errors.FromOS(err, name)
	}
	if _, err := f.Write(content); err != nil {
		return errors.FromOS(err, name)
	}
	return errors.FromOS(f.Close(), name)
}

// ensureWritable clears the read-only bit of name when unlock is set.
func (p *DiskProvider) ensureWritable(name string, info fs.FileInfo, unlock bool) error {
	if info.Mode().Perm()&0o200 != 0 {
		return nil
	}
	if !unlock {
		return errors.New(errors.ErrCodeNoPermissions, fmt.Sprintf("file is read-only: %s", name), nil).
			WithDetail("resource", name)
	}
	if err := os.Chmod(name, info.Mode().Perm()|0o200); err != nil {
		return errors.FromOS(err, name)
	}
	p.logger.Debug("unlocked read-only file", slog.String("path", name))
	return nil
}

// openLocked opens name and takes its advisory write lock without blocking.
func (p *DiskProvider) openLocked(name string, flag int) (*os.File, *flock.Flock, error) {
	f, err := os.OpenFile(name, flag, 0o666)
	if err != nil {
		return nil, nil, errors.FromOS(err, name)
	}

	lock := flock.New(name)
	locked, err := lock.TryLock()
	if err != nil {
		f.Close()
		return nil, nil, errors.FromOS(err, name)
	}
	if !locked {
		f.Close()
		return nil, nil, errors.New(errors.ErrCodeFileWriteLocked, fmt.Sprintf("file is locked by another writer: %s", name), nil).
			WithDetail("resource", name)
	}
	return f, lock, nil
}

// Open opens resource and returns a descriptor. Create opens the file for
// writing, truncating it, and holds its write lock until Close.
func (p *DiskProvider) Open(ctx context.Context, resource vfs.URI, opts vfs.OpenOptions) (int, error) {
	name, err := p.Resolve(resource)
	if err != nil {
		return 0, err
	}

	entry := &openFile{path: name}
	if opts.Create {
		if info, err := os.Stat(name); err == nil {
			if info.IsDir() {
				return 0, errors.New(errors.ErrCodeFileIsADirectory, fmt.Sprintf("is a directory: %s", name), nil)
			}
			if err := p.ensureWritable(name, info, opts.Unlock); err != nil {
				return 0, err
			}
		}
		f, lock, err := p.openLocked(name, os.O_RDWR|os.O_CREATE)
		if err != nil {
			return 0, err
		}
		if err := f.Truncate(0); err != nil {
			f.Close()
			lock.Unlock()
			return 0, errors.FromOS(err, name)
		}
		entry.file, entry.lock = f, lock
	} else {
		f, err := os.Open(name)
		if err != nil {
			return 0, errors.FromOS(err, name)
		}
		entry.file = f
	}

	fd := int(p.nextFD.Add(1))
	p.fds.Add(fd, entry)
	p.logger.Debug("opened descriptor", slog.Int("fd", fd), slog.String("path", name), slog.Bool("write", opts.Create))
	return fd, nil
}

func (p *DiskProvider) lookup(fd int) (*openFile, error) {
	f, ok := p.fds.Get(fd)
	if !ok {
		return nil, errors.New(errors.ErrCodeBadFileDescriptor, fmt.Sprintf("bad file descriptor: %d", fd), nil)
	}
	return f, nil
}

// Close releases fd. Closing an unknown descriptor is an error.
func (p *DiskProvider) Close(ctx context.Context, fd int) error {
	f, ok := p.fds.Peek(fd)
	if !ok {
		return errors.New(errors.ErrCodeBadFileDescriptor, fmt.Sprintf("bad file descriptor: %d", fd), nil)
	}
	p.fds.Remove(fd)
	return errors.FromOS(f.close(), f.path)
}

func checkRange(data []byte, offset, length int) error {
	if offset < 0 || length < 0 || offset+length > len(data) {
		return errors.InvalidInput(fmt.Sprintf("range %d+%d outside buffer of %d bytes", offset, length, len(data)))
	}
	return nil
}

// Read reads up to length bytes at pos into data[offset:]. A read at or past
// the end of file returns 0.
func (p *DiskProvider) Read(ctx context.Context, fd int, pos int64, data []byte, offset, length int) (int, error) {
	if err := checkRange(data, offset, length); err != nil {
		return 0, err
	}
	f, err := p.lookup(fd)
	if err != nil {
		return 0, err
	}
	n, err := f.file.ReadAt(data[offset:offset+length], pos)
	if err != nil && err != io.EOF {
		return n, errors.FromOS(err, f.path)
	}
	return n, nil
}

func (p *DiskProvider) Write(ctx context.Context, fd int, pos int64, data []byte, offset, length int) (int, error) {
	if err := checkRange(data, offset, length); err != nil {
		return 0, err
	}
	f, err := p.lookup(fd)
	if err != nil {
		return 0, err
	}
	n, err := f.file.WriteAt(data[offset:offset+length], pos)
	if err != nil {
		return n, errors.FromOS(err, f.path)
	}
	return n, nil
}

func (p *DiskProvider) Mkdir(ctx context.Context, resource vfs.URI) error {
	name, err := p.Resolve(resource)
	if err != nil {
		return err
	}
	return errors.FromOS(os.Mkdir(name, 0o755), name)
}

func (p *DiskProvider) Delete(ctx context.Context, resource vfs.URI, opts vfs.DeleteOptions) error {
	if opts.UseTrash {
		return errors.InvalidInput("deleting to trash is not supported")
	}
	name, err := p.Resolve(resource)
	if err != nil {
		return err
	}
	if name == p.root {
		return errors.InvalidInput("refusing to delete the root")
	}
	if _, err := os.Lstat(name); err != nil {
		return errors.FromOS(err, name)
	}
	if opts.Recursive {
		return errors.FromOS(os.RemoveAll(name), name)
	}
	return errors.FromOS(os.Remove(name), name)
}

// prepareTarget enforces the overwrite rule for Rename and Copy.
func prepareTarget(from, to string, overwrite bool) error {
	if _, err := os.Lstat(from); err != nil {
		return errors.FromOS(err, from)
	}
	if _, err := os.Lstat(to); err == nil {
		if !overwrite {
			return errors.New(errors.ErrCodeFileExists, fmt.Sprintf("file exists: %s", to), nil).
				WithDetail("resource", to)
		}
		if err := os.RemoveAll(to); err != nil {
			return errors.FromOS(err, to)
		}
	} else if !os.IsNotExist(err) {
		return errors.FromOS(err, to)
	}
	return nil
}

func (p *DiskProvider) Rename(ctx context.Context, from, to vfs.URI, opts vfs.OverwriteOptions) error {
	src, err := p.Resolve(from)
	if err != nil {
		return err
	}
	dst, err := p.Resolve(to)
	if err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	if err := prepareTarget(src, dst, opts.Overwrite); err != nil {
		return err
	}
	return errors.FromOS(os.Rename(src, dst), src)
}

// Copy copies a file, symbolic link or folder. Files of a folder are copied
// concurrently.
func (p *DiskProvider) Copy(ctx context.Context, from, to vfs.URI, opts vfs.OverwriteOptions) error {
	src, err := p.Resolve(from)
	if err != nil {
		return err
	}
	dst, err := p.Resolve(to)
	if err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	if strings.HasPrefix(dst, src+string(filepath.Separator)) {
		return errors.InvalidInput(fmt.Sprintf("cannot copy %s into itself", src))
	}
	if err := prepareTarget(src, dst, opts.Overwrite); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.copyLimit)

	walkErr := filepath.WalkDir(src, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, name)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(name)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			g.Go(func() error { return copyFile(gctx, name, target) })
			return nil
		}
	})
	if err := g.Wait(); err != nil && walkErr == nil {
		walkErr = err
	}
	if walkErr != nil {
		return errors.FromOS(walkErr, src)
	}
	return nil
}

func copyFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ReadFileStream streams resource in chunks of the configured size.
// Cancelling ctx fails the stream with ERR_499_CANCELED.
func (p *DiskProvider) ReadFileStream(ctx context.Context, resource vfs.URI, opts vfs.ReadStreamOptions) *vfs.ReadStream {
	stream := vfs.NewReadStream(p.hwm)

	name, err := p.Resolve(resource)
	if err != nil {
		stream.Fail(err)
		stream.End()
		return stream
	}

	stop := context.AfterFunc(ctx, func() {
		stream.Fail(errors.Canceled())
		stream.End()
	})

	go func() {
		defer stop()
		defer stream.End()
		if err := p.pump(ctx, stream, name, opts); err != nil {
			stream.Fail(err)
		}
	}()
	return stream
}

func (p *DiskProvider) pump(ctx context.Context, stream *vfs.ReadStream, name string, opts vfs.ReadStreamOptions) error {
	f, err := os.Open(name)
	if err != nil {
		return errors.FromOS(err, name)
	}
	defer f.Close()

	if opts.Position > 0 {
		if _, err := f.Seek(opts.Position, io.SeekStart); err != nil {
			return errors.FromOS(err, name)
		}
	}

	var r io.Reader = f
	if opts.Length >= 0 {
		r = io.LimitReader(f, opts.Length)
	}

	size := p.chunkSize
	if opts.BufferSize > 0 {
		size = opts.BufferSize
	}
	buf := make([]byte, size)
	for {
		if ctx.Err() != nil {
			return errors.Canceled()
		}
		n, err := r.Read(buf)
		if n > 0 && !stream.Write(buf[:n]) {
			return nil
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.FromOS(err, name)
		}
	}
}

// WatchScope is a set of watches whose events are delivered together. Each
// daemon session owns one; DiskProvider.Watch uses a shared default scope.
type WatchScope struct {
	provider *DiskProvider
	service  *watcher.Service
	changes  *event.Emitter[[]vfs.FileChange]
	store    event.Store
}

// NewWatchScope creates an independent watch scope. Changes are reported as
// resources of this provider.
func (p *DiskProvider) NewWatchScope() *WatchScope {
	s := &WatchScope{
		provider: p,
		service:  watcher.NewService(p.watchOpts),
		changes:  event.NewEmitter[[]vfs.FileChange](),
	}
	s.store.Add(s.service.OnDidChangeFile(func(batch []vfs.FileChange) {
		out := make([]vfs.FileChange, len(batch))
		for i, c := range batch {
			out[i] = vfs.FileChange{Resource: p.URIFor(c.Resource.FSPath()), Type: c.Type}
		}
		s.changes.Fire(out)
	}))
	return s
}

// Watch starts watching resource within the scope.
func (s *WatchScope) Watch(resource vfs.URI, opts vfs.WatchOptions) (event.Disposable, error) {
	name, err := s.provider.Resolve(resource)
	if err != nil {
		return nil, err
	}
	return s.service.Watch(name, opts)
}

func (s *WatchScope) OnDidChangeFile(fn func([]vfs.FileChange)) event.Disposable {
	return s.changes.On(fn)
}

func (s *WatchScope) OnDidErrorOccur(fn func(string)) event.Disposable {
	return s.service.OnDidErrorOccur(fn)
}

// Dispose stops every watch of the scope.
func (s *WatchScope) Dispose() {
	s.store.Dispose()
	s.service.Dispose()
	s.changes.Dispose()
}

func (p *DiskProvider) defaultScope() *WatchScope {
	p.scopeMu.Lock()
	defer p.scopeMu.Unlock()
	if p.scope == nil {
		p.scope = p.NewWatchScope()
	}
	return p.scope
}

func (p *DiskProvider) Watch(ctx context.Context, resource vfs.URI, opts vfs.WatchOptions) (event.Disposable, error) {
	return p.defaultScope().Watch(resource, opts)
}

func (p *DiskProvider) OnDidChangeFile(fn func([]vfs.FileChange)) event.Disposable {
	return p.defaultScope().OnDidChangeFile(fn)
}

func (p *DiskProvider) OnDidErrorOccur(fn func(string)) event.Disposable {
	return p.defaultScope().OnDidErrorOccur(fn)
}

// OpenFiles returns the number of open descriptors.
func (p *DiskProvider) OpenFiles() int {
	return p.fds.Len()
}

// Dispose closes every descriptor and stops the default watch scope.
func (p *DiskProvider) Dispose() {
	p.disposeOnce.Do(func() {
		p.fds.Purge()

		p.scopeMu.Lock()
		scope := p.scope
		p.scope = nil
		p.scopeMu.Unlock()
		if scope != nil {
			scope.Dispose()
		}
		p.caps.Dispose()
	})
}
