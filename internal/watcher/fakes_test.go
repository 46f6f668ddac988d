package watcher

import (
	"errors"
	"sync"
)

// fakeRecursive records every call the coordinator makes.
type fakeRecursive struct {
	mu         sync.Mutex
	initial    []Request
	setFolders [][]Request
	verbose    []bool
	disposed   int
	onChange   func([]DiskChange)
	onLog      func(LogMessage)
}

func (f *fakeRecursive) SetFolders(folders []Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setFolders = append(f.setFolders, folders)
	return nil
}

func (f *fakeRecursive) SetVerboseLogging(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verbose = append(f.verbose, v)
}

func (f *fakeRecursive) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposed++
}

func (f *fakeRecursive) lastFolders() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.setFolders) == 0 {
		return nil
	}
	return f.setFolders[len(f.setFolders)-1]
}

// recursiveFactory hands out fakeRecursive watchers; failures makes the next
// n calls fail.
type recursiveFactory struct {
	mu            sync.Mutex
	created       []*fakeRecursive
	verboseAtInit []bool
	failures      int
}

func (rf *recursiveFactory) factory(folders []Request, onChange func([]DiskChange), onLog func(LogMessage), verbose bool) (RecursiveWatcher, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.failures > 0 {
		rf.failures--
		return nil, errors.New("inotify limit reached")
	}
	w := &fakeRecursive{initial: folders, onChange: onChange, onLog: onLog}
	rf.created = append(rf.created, w)
	rf.verboseAtInit = append(rf.verboseAtInit, verbose)
	return w, nil
}

func (rf *recursiveFactory) count() int {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return len(rf.created)
}

func (rf *recursiveFactory) last() *fakeRecursive {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.created[len(rf.created)-1]
}

type fakeFile struct {
	mu       sync.Mutex
	path     string
	verbose  []bool
	disposed int
	onChange func([]DiskChange)
	onLog    func(LogMessage)
}

func (f *fakeFile) SetVerboseLogging(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verbose = append(f.verbose, v)
}

func (f *fakeFile) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposed++
}

type fileFactory struct {
	mu      sync.Mutex
	created []*fakeFile
	fail    bool
}

func (ff *fileFactory) factory(path string, onChange func([]DiskChange), onLog func(LogMessage), verbose bool) (FileWatcher, error) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.fail {
		return nil, errors.New("no such file")
	}
	w := &fakeFile{path: path, onChange: onChange, onLog: onLog, verbose: []bool{verbose}}
	ff.created = append(ff.created, w)
	return w, nil
}
