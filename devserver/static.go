package devserver

import (
	"net/http"
	"os"
	"path"
)

// noListingFileSystem hides directories that have no index.html, so that
// http.FileServer answers 404 instead of generating a listing.
type noListingFileSystem struct {
	fs http.FileSystem
}

func (n noListingFileSystem) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		index, err := n.fs.Open(path.Join(name, "index.html"))
		if err != nil {
			_ = f.Close()
			return nil, os.ErrNotExist
		}
		_ = index.Close()
	}
	return f, nil
}

func staticHandler(documentRoot string) http.Handler {
	return http.FileServer(noListingFileSystem{http.Dir(documentRoot)})
}
